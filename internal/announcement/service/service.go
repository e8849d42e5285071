package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"memberdir/internal/announcement/models"
	"memberdir/internal/announcement/recipients"
	"memberdir/internal/audit"
	"memberdir/internal/notify"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/platform/sentinel"
	"memberdir/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, a *models.Announcement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error)
}

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service creates announcements and delivers them to their audience.
type Service struct {
	store          Store
	directory      recipients.Directory
	notifier       Notifier
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

// WithSendConcurrency caps parallel sends during delivery.
func WithSendConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(store Store, directory recipients.Directory, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:       store,
		directory:   directory,
		notifier:    notifier,
		logger:      slog.Default(),
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create resolves the audience and stores the announcement.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title, body string, spec []string) (*models.Announcement, error) {
	audience, err := recipients.Resolve(spec)
	if err != nil {
		return nil, err
	}
	a, err := models.NewAnnouncement(uuid.New(), ownerID, title, body, audience, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store announcement")
	}
	s.logAudit(ctx, audit.Event{
		Action:   string(audit.EventAnnouncementCreated),
		MemberID: ownerID.String(),
		Decision: string(audience.Mode()),
	})
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "announcement not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load announcement")
	}
	return a, nil
}

// Audience expands the stored recipients to concrete addresses.
func (s *Service) Audience(ctx context.Context, id uuid.UUID) ([]string, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, a)
}

func (s *Service) expand(ctx context.Context, a *models.Announcement) ([]string, error) {
	audience, err := a.Audience()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored recipients are invalid")
	}
	addrs, err := audience.Expand(ctx, s.directory)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expand recipients")
	}
	return addrs, nil
}

// Deliver sends the announcement to every address in its audience. Failed
// addresses are reported, not retried.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID) (models.Delivery, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return models.Delivery{}, err
	}
	addrs, err := s.expand(ctx, a)
	if err != nil {
		return models.Delivery{}, err
	}
	msg, err := notify.Render(notify.KindAnnouncement, notify.Data{Title: a.Title, Body: a.Body})
	if err != nil {
		return models.Delivery{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render announcement")
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, to := range addrs {
		g.Go(func() error {
			if err := s.notifier.Send(ctx, to, msg.Subject, msg.Body); err != nil {
				s.logger.WarnContext(ctx, "announcement send failed",
					"announcement_id", a.ID,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				mu.Lock()
				failed = append(failed, to)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(failed)

	return models.Delivery{AnnouncementID: a.ID, Sent: len(addrs) - len(failed), Failed: failed}, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	event.Timestamp = requestcontext.Now(ctx)
	s.logger.InfoContext(ctx, event.Action,
		"event", event.Action,
		"log_type", "audit",
		"member_id", event.MemberID,
		"request_id", event.RequestID,
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event", "event", event.Action, "error", err)
	}
}
