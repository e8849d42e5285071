// Package store persists members in memory or in Postgres.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	"memberdir/pkg/platform/sentinel"
)

// InMemoryStore keeps members in a map guarded by a mutex. Admission
// transitions are compare-and-set under the write lock.
type InMemoryStore struct {
	mu        sync.RWMutex
	members   map[uuid.UUID]*models.Member
	bySubject map[string]uuid.UUID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		members:   make(map[uuid.UUID]*models.Member),
		bySubject: make(map[string]uuid.UUID),
	}
}

// Create inserts a member. A second member for the same subject is a conflict.
func (s *InMemoryStore) Create(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySubject[m.Subject]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.members[m.ID]; ok {
		return sentinel.ErrConflict
	}
	s.members[m.ID] = m.Clone()
	s.bySubject[m.Subject] = m.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, memberID uuid.UUID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *InMemoryStore) FindBySubject(_ context.Context, subject string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memberID, ok := s.bySubject[subject]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.members[memberID].Clone(), nil
}

// Search returns the requested page of matches ordered by last name, first
// name, then id, along with the total match count.
func (s *InMemoryStore) Search(_ context.Context, pred query.Predicate, page query.Page) (query.Result, error) {
	s.mu.RLock()
	var matches []*models.Member
	for _, m := range s.members {
		if pred.Match(m) {
			matches = append(matches, m.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return less(matches[i], matches[j]) })

	result := query.Result{Count: len(matches), Members: []*models.Member{}}
	start := page.Offset()
	if start < 0 || start >= len(matches) {
		return result, nil
	}
	end := min(start+page.Size, len(matches))
	result.Members = matches[start:end]
	return result, nil
}

// Emails returns the personal email of every member matching pred.
func (s *InMemoryStore) Emails(_ context.Context, pred query.Predicate) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var emails []string
	for _, m := range s.members {
		if pred.Match(m) && m.Personal.Email != "" {
			emails = append(emails, m.Personal.Email)
		}
	}
	sort.Strings(emails)
	return emails, nil
}

// UpdateMembership applies mutate to the stored member. Admission fields are
// not writable through this path.
func (s *InMemoryStore) UpdateMembership(_ context.Context, memberID uuid.UUID, mutate func(*models.Member) error) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	kept := cur.Clone()
	next.Account.Admission = kept.Account.Admission
	next.Account.Version = kept.Account.Version
	next.Clinic, next.Display = kept.Clinic, kept.Display
	s.members[memberID] = next
	return next.Clone(), nil
}

// TransitionAdmission applies mutate only if the stored admission status and
// version still equal the expected values. Otherwise it returns sentinel.ErrStale
// and leaves the member untouched.
func (s *InMemoryStore) TransitionAdmission(_ context.Context, memberID uuid.UUID, expected models.AdmissionStatus, expectedVersion int64, mutate func(*models.Member) error) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if cur.Account.Admission != expected || cur.Account.Version != expectedVersion {
		return nil, sentinel.ErrStale
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.members[memberID] = next
	return next.Clone(), nil
}

// SetRole is used by seed data and tests; role changes have no public endpoint.
func (s *InMemoryStore) SetRole(_ context.Context, memberID uuid.UUID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.Role = role
	return nil
}

func less(a, b *models.Member) bool {
	if a.Personal.LastName != b.Personal.LastName {
		return a.Personal.LastName < b.Personal.LastName
	}
	if a.Personal.FirstName != b.Personal.FirstName {
		return a.Personal.FirstName < b.Personal.FirstName
	}
	return a.ID.String() < b.ID.String()
}
