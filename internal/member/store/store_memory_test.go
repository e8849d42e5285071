package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	"memberdir/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newMember(subject, first, last string) *models.Member {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Member{
		ID:        uuid.New(),
		Subject:   subject,
		Role:      models.RoleMember,
		Personal:  models.Personal{FirstName: first, LastName: last, Email: subject + "@example.org", Phone: "1"},
		Account:   models.Account{Membership: models.CategoryGeneticCounselor, Admission: models.AdmissionNone},
		Answers:   models.Answers{FormalTraining: models.Yes()},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	m := newMember("sub-1", "Ada", "Lovelace")
	s.Require().NoError(s.store.Create(s.ctx, m))

	byID, err := s.store.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(m.Personal, byID.Personal)

	bySubject, err := s.store.FindBySubject(s.ctx, "sub-1")
	s.Require().NoError(err)
	s.Equal(m.ID, bySubject.ID)

	s.Run("returned members are copies", func() {
		byID.Personal.FirstName = "Changed"
		again, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal("Ada", again.Personal.FirstName)
	})

	s.Run("duplicate subject conflicts", func() {
		err := s.store.Create(s.ctx, newMember("sub-1", "Other", "Person"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing member", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindBySubject(s.ctx, "nobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestSearchPaginates() {
	for _, name := range []string{"Carter", "Adams", "Baker", "Diaz", "Evans"} {
		s.Require().NoError(s.store.Create(s.ctx, newMember("sub-"+name, "Pat", name)))
	}

	res, err := s.store.Search(s.ctx, query.True(), query.NewPage(1, 2))
	s.Require().NoError(err)
	s.Equal(5, res.Count)
	s.Require().Len(res.Members, 2)
	s.Equal("Adams", res.Members[0].Personal.LastName)
	s.Equal("Baker", res.Members[1].Personal.LastName)

	res, err = s.store.Search(s.ctx, query.True(), query.NewPage(3, 2))
	s.Require().NoError(err)
	s.Require().Len(res.Members, 1)
	s.Equal("Evans", res.Members[0].Personal.LastName)

	res, err = s.store.Search(s.ctx, query.True(), query.NewPage(9, 2))
	s.Require().NoError(err)
	s.Equal(5, res.Count)
	s.Empty(res.Members)

	res, err = s.store.Search(s.ctx, query.Build(query.FilterSpec{Search: "dia"}), query.NewPage(1, 10))
	s.Require().NoError(err)
	s.Equal(1, res.Count)
}

func (s *InMemoryStoreSuite) TestSearchOverflowingOffsetReturnsEmptyPage() {
	for _, name := range []string{"Carter", "Adams", "Baker", "Diaz", "Evans"} {
		s.Require().NoError(s.store.Create(s.ctx, newMember("sub-"+name, "Pat", name)))
	}
	res, err := s.store.Search(s.ctx, query.True(), query.Page{Number: math.MaxInt, Size: query.MaxPageSize})
	s.Require().NoError(err)
	s.Equal(5, res.Count)
	s.Empty(res.Members)
}

func (s *InMemoryStoreSuite) TestTransitionAdmissionCompareAndSet() {
	m := newMember("sub-cas", "Grace", "Hopper")
	s.Require().NoError(s.store.Create(s.ctx, m))

	submit := func(mm *models.Member) error {
		mm.ApplyAdmissionRequest(models.Clinic{Name: "C"}, models.Display{Services: []string{"x"}}, time.Now())
		return nil
	}

	updated, err := s.store.TransitionAdmission(s.ctx, m.ID, models.AdmissionNone, 0, submit)
	s.Require().NoError(err)
	s.Equal(models.AdmissionPending, updated.Account.Admission)
	s.Equal(int64(1), updated.Account.Version)

	s.Run("stale version is rejected", func() {
		_, err := s.store.TransitionAdmission(s.ctx, m.ID, models.AdmissionNone, 0, submit)
		s.ErrorIs(err, sentinel.ErrStale)
	})

	s.Run("mutate error leaves member untouched", func() {
		boom := errors.New("boom")
		_, err := s.store.TransitionAdmission(s.ctx, m.ID, models.AdmissionPending, 1, func(mm *models.Member) error {
			mm.Account.Admission = models.AdmissionApproved
			return boom
		})
		s.ErrorIs(err, boom)
		cur, err := s.store.FindByID(s.ctx, m.ID)
		s.Require().NoError(err)
		s.Equal(models.AdmissionPending, cur.Account.Admission)
	})
}

// Concurrent deciders racing on the same expected version: exactly one wins.
func (s *InMemoryStoreSuite) TestTransitionAdmissionRace() {
	m := newMember("sub-race", "Alan", "Turing")
	m.Account.Admission = models.AdmissionPending
	m.Account.Version = 3
	s.Require().NoError(s.store.Create(s.ctx, m))

	const goroutines = 20
	var wins, stale atomic.Int32
	var wg sync.WaitGroup
	for i := range goroutines {
		target := models.AdmissionApproved
		if i%2 == 1 {
			target = models.AdmissionDenied
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.TransitionAdmission(s.ctx, m.ID, models.AdmissionPending, 3, func(mm *models.Member) error {
				mm.ApplyAdmissionDecision(target, time.Now())
				return nil
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrStale):
				stale.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), stale.Load())
	cur, err := s.store.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(int64(4), cur.Account.Version)
}

func (s *InMemoryStoreSuite) TestUpdateMembershipKeepsAdmission() {
	m := newMember("sub-edit", "Barbara", "Liskov")
	m.Account.Admission = models.AdmissionPending
	m.Account.Version = 2
	s.Require().NoError(s.store.Create(s.ctx, m))

	updated, err := s.store.UpdateMembership(s.ctx, m.ID, func(mm *models.Member) error {
		mm.Account.Admission = models.AdmissionApproved
		return mm.ApplyClassification(models.Classification{
			Category:  models.CategoryAssociate,
			Associate: &models.AssociateInfo{Organization: "Lab", Specialization: "genomics"},
		}, time.Now())
	})
	s.Require().NoError(err)
	s.Equal(models.CategoryAssociate, updated.Account.Membership)
	s.Equal(models.AdmissionPending, updated.Account.Admission)
	s.Equal(int64(2), updated.Account.Version)
}

func (s *InMemoryStoreSuite) TestEmails() {
	a := newMember("sub-a", "Ana", "Silva")
	a.Professional.PreferredLanguage = models.LanguagePortuguese
	b := newMember("sub-b", "Bo", "Berg")
	b.Professional.PreferredLanguage = models.LanguageEnglish
	s.Require().NoError(s.store.Create(s.ctx, a))
	s.Require().NoError(s.store.Create(s.ctx, b))

	all, err := s.store.Emails(s.ctx, query.True())
	s.Require().NoError(err)
	s.Equal([]string{"sub-a@example.org", "sub-b@example.org"}, all)

	pt, err := s.store.Emails(s.ctx, query.PreferredLanguageIn(models.LanguagePortuguese))
	s.Require().NoError(err)
	s.Equal([]string{"sub-a@example.org"}, pt)
}
