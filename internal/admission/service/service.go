package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	admissionModels "memberdir/internal/admission/models"
	"memberdir/internal/admission/metrics"
	"memberdir/internal/audit"
	"memberdir/internal/member/models"
	"memberdir/internal/member/roles"
	"memberdir/internal/notify"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/platform/sentinel"
	"memberdir/pkg/requestcontext"
)

var tracer = otel.Tracer("memberdir/admission")

// Store is the member persistence the workflow needs. TransitionAdmission must
// apply mutate only when the stored status and version still match.
type Store interface {
	FindByID(ctx context.Context, memberID uuid.UUID) (*models.Member, error)
	TransitionAdmission(ctx context.Context, memberID uuid.UUID, expected models.AdmissionStatus, expectedVersion int64, mutate func(*models.Member) error) (*models.Member, error)
}

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type CallerResolver interface {
	Resolve(ctx context.Context, subject string) (roles.Caller, error)
}

// Service runs the directory admission workflow:
// none -> pending -> approved | denied, with denied -> pending on resubmit.
type Service struct {
	store          Store
	notifier       Notifier
	callers        CallerResolver
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	concurrency    int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBatchConcurrency caps how many members of one batch are processed at once.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(store Store, notifier Notifier, callers CallerResolver, opts ...Option) *Service {
	s := &Service{
		store:       store,
		notifier:    notifier,
		callers:     callers,
		logger:      slog.Default(),
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitRequest stores the clinic and display records and moves the member to
// pending. A pending or approved member cannot resubmit.
func (s *Service) SubmitRequest(ctx context.Context, memberID uuid.UUID, clinic *models.Clinic, display *models.Display) (*models.Member, error) {
	ctx, span := tracer.Start(ctx, "Admission.Service.SubmitRequest",
		trace.WithAttributes(attribute.String("member_id", memberID.String())))
	defer span.End()

	errs := models.FieldErrors{}
	clinic.Validate(errs)
	display.Validate(errs)
	if len(errs) > 0 {
		return nil, dErrors.Validation("invalid directory admission request", errs)
	}

	current, err := s.load(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if err := current.CanSubmitAdmission(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.TransitionAdmission(ctx, memberID, current.Account.Admission, current.Account.Version,
		func(m *models.Member) error {
			m.ApplyAdmissionRequest(*clinic, *display, now)
			return nil
		})
	if err != nil {
		err = s.translateTransitionErr(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return nil, err
	}

	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventAdmissionRequested),
		MemberID: memberID.String(),
		Decision: string(models.AdmissionPending),
	})
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(models.AdmissionPending))
	}
	return updated, nil
}

// Approve moves each pending member to approved and sends the approval email.
func (s *Service) Approve(ctx context.Context, callerSubject string, memberIDs []uuid.UUID) (admissionModels.BatchResult, error) {
	return s.decide(ctx, callerSubject, memberIDs, admissionModels.DecisionApprove, "")
}

// Deny moves each pending member to denied and sends the reason by email.
// An empty reason is rejected before any member is touched.
func (s *Service) Deny(ctx context.Context, callerSubject string, memberIDs []uuid.UUID, reason string) (admissionModels.BatchResult, error) {
	return s.decide(ctx, callerSubject, memberIDs, admissionModels.DecisionDeny, reason)
}

func (s *Service) decide(ctx context.Context, callerSubject string, memberIDs []uuid.UUID, decision admissionModels.Decision, reason string) (admissionModels.BatchResult, error) {
	ctx, span := tracer.Start(ctx, "Admission.Service.Decide",
		trace.WithAttributes(
			attribute.String("decision", string(decision)),
			attribute.Int("batch_size", len(memberIDs)),
		))
	defer span.End()

	caller, err := s.callers.Resolve(ctx, callerSubject)
	if err != nil {
		return admissionModels.BatchResult{}, err
	}
	if !caller.Role.IsAdmin() {
		return admissionModels.BatchResult{}, dErrors.New(dErrors.CodeForbidden, "only admins can review directory requests")
	}
	reason = strings.TrimSpace(reason)
	if decision == admissionModels.DecisionDeny && reason == "" {
		return admissionModels.BatchResult{}, dErrors.Validation("a denial needs a reason",
			map[string]string{"reason": "is required"})
	}
	ids := dedupe(memberIDs)
	if len(ids) == 0 {
		return admissionModels.BatchResult{}, dErrors.Validation("no members selected",
			map[string]string{"memberIds": "at least one member id is required"})
	}
	if s.metrics != nil {
		s.metrics.ObserveBatch(len(ids))
	}

	// Each member is independent; outcomes are written by index so no lock is needed.
	outcomes := make([]admissionModels.Outcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = s.decideOne(ctx, caller, id, decision, reason)
			return nil
		})
	}
	_ = g.Wait()

	result := admissionModels.BatchResult{Outcomes: outcomes}
	span.SetAttributes(attribute.Int("succeeded", result.Succeeded()))
	return result, nil
}

func (s *Service) decideOne(ctx context.Context, caller roles.Caller, memberID uuid.UUID, decision admissionModels.Decision, reason string) admissionModels.Outcome {
	ctx, span := tracer.Start(ctx, "Admission.Service.DecideOne",
		trace.WithAttributes(attribute.String("member_id", memberID.String())))
	defer span.End()

	next := decision.Status()
	current, err := s.load(ctx, memberID)
	if err == nil {
		err = current.CanDecideAdmission(next)
	}
	var updated *models.Member
	if err == nil {
		now := requestcontext.Now(ctx)
		updated, err = s.store.TransitionAdmission(ctx, memberID, models.AdmissionPending, current.Account.Version,
			func(m *models.Member) error {
				m.ApplyAdmissionDecision(next, now)
				return nil
			})
		err = s.translateTransitionErr(err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		s.logger.WarnContext(ctx, "admission decision rejected",
			"member_id", memberID,
			"decision", string(decision),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return admissionModels.Failed(memberID, err)
	}

	s.logAudit(ctx, audit.Event{
		Action:   auditAction(decision),
		MemberID: memberID.String(),
		ActorID:  caller.MemberID.String(),
		Decision: string(next),
		Reason:   reason,
	})
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(next))
	}

	outcome := admissionModels.Outcome{MemberID: memberID, Status: next}
	if err := s.notify(ctx, updated, decision, reason); err != nil {
		// The transition stands; the failure is reported for this member only.
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "admission notification failed",
			"member_id", memberID,
			"decision", string(decision),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.logAudit(ctx, audit.Event{
			Action:   string(audit.EventNotificationFailed),
			MemberID: memberID.String(),
			ActorID:  caller.MemberID.String(),
			Decision: string(next),
		})
		if s.metrics != nil {
			s.metrics.IncrementNotificationFailure()
		}
		outcome.Error = &admissionModels.OutcomeError{
			Code:    dErrors.CodeDependency,
			Message: "status updated but the notification could not be sent",
		}
		return outcome
	}
	outcome.Notified = true
	return outcome
}

func (s *Service) notify(ctx context.Context, m *models.Member, decision admissionModels.Decision, reason string) error {
	kind := notify.KindApproval
	if decision == admissionModels.DecisionDeny {
		kind = notify.KindDenial
	}
	msg, err := notify.Render(kind, notify.Data{FirstName: m.Personal.FirstName, Reason: reason})
	if err != nil {
		return err
	}
	return s.notifier.Send(ctx, m.Personal.Email, msg.Subject, msg.Body)
}

func (s *Service) load(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	m, err := s.store.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return m, nil
}

func (s *Service) translateTransitionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrStale):
		if s.metrics != nil {
			s.metrics.IncrementConflict()
		}
		return dErrors.New(dErrors.CodeConflict, "admission was changed by another request")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update admission")
}

func auditAction(decision admissionModels.Decision) string {
	if decision == admissionModels.DecisionApprove {
		return string(audit.EventAdmissionApproved)
	}
	return string(audit.EventAdmissionDenied)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	event.Timestamp = requestcontext.Now(ctx)
	s.logger.InfoContext(ctx, event.Action,
		"event", event.Action,
		"log_type", "audit",
		"member_id", event.MemberID,
		"actor_id", event.ActorID,
		"decision", event.Decision,
		"request_id", event.RequestID,
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"event", event.Action,
			"error", err,
		)
	}
}
