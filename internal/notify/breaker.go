package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting sends.
var ErrCircuitOpen = errors.New("notification relay unavailable: circuit open")

// Breaker wraps a Notifier and fails fast after threshold consecutive send
// failures. After cooldown one send is let through; its result decides
// whether the circuit closes again.
type Breaker struct {
	next Notifier
	now  func() time.Time

	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	open      bool
	// trial is set while the single half-open send is in flight.
	trial bool
}

type BreakerOption func(*Breaker)

// WithBreakerClock overrides the time source. Intended for tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

func NewBreaker(next Notifier, threshold int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	b := &Breaker{next: next, threshold: threshold, cooldown: cooldown, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Send(ctx context.Context, to, subject, body string) error {
	trial, ok := b.allow()
	if !ok {
		return ErrCircuitOpen
	}
	if trial {
		defer b.endTrial()
	}
	if err := b.next.Send(ctx, to, subject, body); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// IsOpen reports whether sends are currently rejected.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && (b.trial || !b.now().After(b.openUntil))
}

// allow admits a send. After the cooldown exactly one trial send is admitted
// and the circuit stays open until it reports back.
func (b *Breaker) allow() (trial, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false, true
	}
	if b.trial || !b.now().After(b.openUntil) {
		return false, false
	}
	b.trial = true
	return true, true
}

func (b *Breaker) endTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.trial || b.failures >= b.threshold {
		b.open = true
		b.openUntil = b.now().Add(b.cooldown)
	}
}
