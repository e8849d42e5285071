package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"memberdir/internal/announcement/models"
	"memberdir/pkg/platform/sentinel"
)

// InMemoryStore keeps announcements in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu            sync.RWMutex
	announcements map[uuid.UUID]*models.Announcement
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{announcements: make(map[uuid.UUID]*models.Announcement)}
}

func (s *InMemoryStore) Create(_ context.Context, a *models.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.announcements[a.ID]; ok {
		return sentinel.ErrConflict
	}
	s.announcements[a.ID] = clone(a)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.announcements[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(a), nil
}

func clone(a *models.Announcement) *models.Announcement {
	c := *a
	c.Recipients = append([]string(nil), a.Recipients...)
	return &c
}
