package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"memberdir/internal/audit"
	"memberdir/internal/member/classification"
	"memberdir/internal/member/metrics"
	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	"memberdir/pkg/attrs"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/email"
	"memberdir/pkg/platform/sentinel"
	"memberdir/pkg/requestcontext"
)

// Store is the persistence the member service needs.
type Store interface {
	Create(ctx context.Context, m *models.Member) error
	FindByID(ctx context.Context, memberID uuid.UUID) (*models.Member, error)
	FindBySubject(ctx context.Context, subject string) (*models.Member, error)
	Search(ctx context.Context, pred query.Predicate, page query.Page) (query.Result, error)
	UpdateMembership(ctx context.Context, memberID uuid.UUID, mutate func(*models.Member) error) (*models.Member, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service handles member registration, membership edits and search.
type Service struct {
	store          Store
	policy         classification.EditPolicy
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

// WithEditPolicy sets where membership edits re-enter the questionnaire.
func WithEditPolicy(policy classification.EditPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, policy: classification.EditPolicyRevisit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput is the signup payload: profile plus questionnaire answers.
type RegisterInput struct {
	Personal     models.Personal
	Professional models.Professional
	Answers      models.Answers
	Subrecords   classification.Subrecords
}

// Register classifies the answers and creates the member with role member
// and no admission request.
func (s *Service) Register(ctx context.Context, subject string, in RegisterInput) (*models.Member, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	in.Personal.Email = email.Normalize(in.Personal.Email)
	c, err := classification.Validate(in.Answers, in.Subrecords)
	if err != nil {
		return nil, err
	}
	m, err := models.NewMember(uuid.New(), subject, in.Personal, in.Professional, c, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a member is already registered for this identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create member")
	}
	s.logAudit(ctx, string(audit.EventMemberRegistered),
		"member_id", m.ID,
		"membership", string(c.Category),
	)
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	return m, nil
}

// Questionnaire returns the starting state for editing the caller's
// membership under the configured edit policy.
func (s *Service) Questionnaire(ctx context.Context, subject string) (classification.State, classification.Outcome, error) {
	m, err := s.GetBySubject(ctx, subject)
	if err != nil {
		return classification.State{}, classification.Outcome{}, err
	}
	state := classification.Resume(m.Answers, s.policy)
	outcome, err := classification.Evaluate(state)
	if err != nil {
		return classification.State{}, classification.Outcome{}, err
	}
	return state, outcome, nil
}

// EditInput carries the answers given while editing membership. Under the
// revisit policy unanswered questions default to the stored answers.
type EditInput struct {
	Answers    models.Answers
	Subrecords classification.Subrecords
}

// EditMembership re-runs the questionnaire and replaces the category and its
// sub-record. Admission state is untouched.
func (s *Service) EditMembership(ctx context.Context, subject string, in EditInput) (*models.Member, error) {
	current, err := s.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	answers, err := s.replay(classification.Resume(current.Answers, s.policy), in.Answers)
	if err != nil {
		return nil, err
	}
	subrecords := in.Subrecords
	if s.policy == classification.EditPolicyRevisit {
		if subrecords.Education == nil {
			subrecords.Education = current.Education
		}
		if subrecords.Associate == nil {
			subrecords.Associate = current.Associate
		}
	}
	c, err := classification.Validate(answers, subrecords)
	if err != nil {
		return nil, err
	}
	if q, ok := offPath(in.Answers, answers); ok {
		return nil, dErrors.Validation("invalid questionnaire answer",
			map[string]string{"answers." + string(q): "answer is not on the active path"})
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.UpdateMembership(ctx, current.ID, func(m *models.Member) error {
		return m.ApplyClassification(c, now)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update membership")
	}
	s.logAudit(ctx, string(audit.EventMembershipChanged),
		"member_id", updated.ID,
		"from", string(current.Account.Membership),
		"membership", string(c.Category),
	)
	if s.metrics != nil {
		s.metrics.IncrementMembershipChanged(string(c.Category))
	}
	return updated, nil
}

// replay walks the tree from the root, taking each submitted answer or else
// the default. Once a submitted answer departs from its default, the
// remaining defaults are discarded.
func (s *Service) replay(defaults classification.State, submitted models.Answers) (models.Answers, error) {
	state := classification.State{}
	useDefaults := true
	q := classification.Root
	for {
		answer, ok := answerFor(q, submitted)
		def, hasDef := answerFor(q, defaults.Answers)
		switch {
		case ok && hasDef && useDefaults:
			useDefaults = answer.Equal(def)
		case !ok && hasDef && useDefaults:
			answer, ok = def, true
		}
		if !ok {
			return state.Answers, nil
		}
		next, outcome, err := classification.Step(state, q, answer)
		if err != nil {
			return models.Answers{}, err
		}
		state = next
		if outcome.IsDone() {
			return state.Answers, nil
		}
		q = outcome.NextQuestion()
	}
}

// offPath returns the first submitted answer that the replay did not keep,
// matching how Register rejects answers beyond the terminal category.
func offPath(submitted, kept models.Answers) (classification.Question, bool) {
	for _, q := range []classification.Question{
		classification.QuestionFormalTraining,
		classification.QuestionQualifyingDegree,
		classification.QuestionClinicalYear,
		classification.QuestionPathChoice,
	} {
		given, ok := answerFor(q, submitted)
		if !ok {
			continue
		}
		got, ok := answerFor(q, kept)
		if !ok || !got.Equal(given) {
			return q, true
		}
	}
	return "", false
}

func answerFor(q classification.Question, a models.Answers) (classification.Answer, bool) {
	var b *bool
	switch q {
	case classification.QuestionFormalTraining:
		b = a.FormalTraining
	case classification.QuestionQualifyingDegree:
		b = a.QualifyingDegree
	case classification.QuestionClinicalYear:
		b = a.ClinicalYear
	case classification.QuestionPathChoice:
		if a.PathChoice == "" {
			return classification.Answer{}, false
		}
		return classification.Choose(a.PathChoice), true
	}
	if b == nil {
		return classification.Answer{}, false
	}
	if *b {
		return classification.Yes(), true
	}
	return classification.No(), true
}

func (s *Service) Get(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	m, err := s.store.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return m, nil
}

func (s *Service) GetBySubject(ctx context.Context, subject string) (*models.Member, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	m, err := s.store.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return m, nil
}

// Search returns one page of members matching spec plus the total count.
func (s *Service) Search(ctx context.Context, spec query.FilterSpec, page query.Page) (query.Result, error) {
	if err := spec.Validate(); err != nil {
		return query.Result{}, err
	}
	start := time.Now()
	res, err := s.store.Search(ctx, query.Build(spec), page)
	if s.metrics != nil {
		s.metrics.ObserveSearch(start)
	}
	if err != nil {
		return query.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search members")
	}
	return res, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:    event,
		MemberID:  attrs.ExtractString(attributes, "member_id"),
		Decision:  attrs.ExtractString(attributes, "membership"),
		RequestID: requestcontext.RequestID(ctx),
	})
}
