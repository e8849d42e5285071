package audit

import (
	"context"
	"sync"
)

// Sink receives audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// InMemoryStore keeps events per member. It backs tests and local runs
// without Kafka.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.MemberID] = append(s.events[event.MemberID], event)
	return nil
}

func (s *InMemoryStore) ListByMember(_ context.Context, memberID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[memberID]...), nil
}
