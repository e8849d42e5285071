// Package roles resolves an authenticated subject to the caller's member id
// and role, optionally through a Redis cache.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"memberdir/internal/member/models"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/platform/sentinel"
)

const keyPrefix = "memberdir:caller:"

// Caller is the authorization view of the requesting member.
type Caller struct {
	MemberID uuid.UUID   `json:"memberId"`
	Role     models.Role `json:"role"`
}

// MemberFinder is the store lookup used on cache miss.
type MemberFinder interface {
	FindBySubject(ctx context.Context, subject string) (*models.Member, error)
}

// Resolver looks up callers. With a nil Redis client every lookup goes to the store.
type Resolver struct {
	members MemberFinder
	cache   redis.Cmdable
	ttl     time.Duration
	logger  *slog.Logger
}

type Option func(*Resolver)

// WithCache enables the Redis cache with the given entry TTL.
func WithCache(client redis.Cmdable, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = client
		r.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func New(members MemberFinder, opts ...Option) *Resolver {
	r := &Resolver{members: members, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the caller for subject. An unknown subject is forbidden:
// the identity is valid but has no member record yet.
func (r *Resolver) Resolve(ctx context.Context, subject string) (Caller, error) {
	if subject == "" {
		return Caller{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if c, ok := r.fromCache(ctx, subject); ok {
		return c, nil
	}

	m, err := r.members.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Caller{}, dErrors.New(dErrors.CodeForbidden, "caller is not a registered member")
		}
		return Caller{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load caller")
	}
	c := Caller{MemberID: m.ID, Role: m.Role}
	r.store(ctx, subject, c)
	return c, nil
}

// Invalidate drops a cached entry, e.g. after a role change.
func (r *Resolver) Invalidate(ctx context.Context, subject string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Del(ctx, keyPrefix+subject).Err()
}

// Cache errors degrade to a store lookup; they are logged, not returned.
func (r *Resolver) fromCache(ctx context.Context, subject string) (Caller, bool) {
	if r.cache == nil {
		return Caller{}, false
	}
	raw, err := r.cache.Get(ctx, keyPrefix+subject).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "role cache read failed", "error", err)
		}
		return Caller{}, false
	}
	var c Caller
	if err := json.Unmarshal(raw, &c); err != nil || !c.Role.IsValid() {
		return Caller{}, false
	}
	return c, true
}

func (r *Resolver) store(ctx context.Context, subject string, c Caller) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, keyPrefix+subject, raw, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "role cache write failed", "error", err)
	}
}
