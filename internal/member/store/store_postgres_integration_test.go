//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	"memberdir/internal/member/store"
	"memberdir/internal/platform/postgres"
	"memberdir/internal/platform/postgres/migrations"
	"memberdir/pkg/platform/sentinel"
	"memberdir/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB, migrations.FS))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "announcements", "members")
	s.Require().NoError(err)
}

func newTestMember(subject, first, last string) *models.Member {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Member{
		ID:           uuid.New(),
		Subject:      subject,
		Role:         models.RoleMember,
		Personal:     models.Personal{FirstName: first, LastName: last, Email: subject + "@example.org", Phone: "1"},
		Professional: models.Professional{Title: "MS", Country: "US", PreferredLanguage: models.LanguageSpanish},
		Account:      models.Account{Membership: models.CategoryGeneticCounselor, Admission: models.AdmissionNone},
		Answers:      models.Answers{FormalTraining: models.Yes()},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PostgresStoreSuite) TestCreateRoundTrip() {
	ctx := context.Background()
	m := newTestMember("pg-1", "Ada", "Lovelace")
	m.Account.Membership = models.CategoryStudent
	m.Education = &models.Education{School: "U", Program: "GC", Degree: "masters", GraduationYear: 2027}
	s.Require().NoError(s.store.Create(ctx, m))

	got, err := s.store.FindBySubject(ctx, "pg-1")
	s.Require().NoError(err)
	s.Equal(m.ID, got.ID)
	s.Equal(m.Education, got.Education)
	s.Equal(m.Professional, got.Professional)
	s.NotNil(got.Answers.FormalTraining)

	s.ErrorIs(s.store.Create(ctx, newTestMember("pg-1", "Dup", "Licate")), sentinel.ErrConflict)

	_, err = s.store.FindByID(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSearchRendersPredicates() {
	ctx := context.Background()
	for i, last := range []string{"Adams", "Baker", "Carter"} {
		m := newTestMember("pg-search-"+last, "Pat", last)
		if i == 1 {
			m.Role = models.RoleAdmin
		}
		s.Require().NoError(s.store.Create(ctx, m))
	}
	isAdmin := false
	res, err := s.store.Search(ctx, query.Build(query.FilterSpec{
		Search:    "a",
		IsAdmin:   &isAdmin,
		Countries: []string{"US"},
	}), query.NewPage(1, 1))
	s.Require().NoError(err)
	s.Equal(2, res.Count)
	s.Require().Len(res.Members, 1)
	s.Equal("Adams", res.Members[0].Personal.LastName)

	emails, err := s.store.Emails(ctx, query.PreferredLanguageIn(models.LanguageSpanish))
	s.Require().NoError(err)
	s.Len(emails, 3)
}

// TestConcurrentTransition verifies the conditional UPDATE lets exactly one
// of many racing deciders win.
func (s *PostgresStoreSuite) TestConcurrentTransition() {
	ctx := context.Background()
	m := newTestMember("pg-race", "Grace", "Hopper")
	s.Require().NoError(s.store.Create(ctx, m))
	_, err := s.store.TransitionAdmission(ctx, m.ID, models.AdmissionNone, 0, func(mm *models.Member) error {
		mm.ApplyAdmissionRequest(models.Clinic{Name: "C"}, models.Display{Services: []string{"cancer"}}, time.Now())
		return nil
	})
	s.Require().NoError(err)

	const goroutines = 10
	var wg sync.WaitGroup
	var wins, stale atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := models.AdmissionApproved
			if i%2 == 0 {
				target = models.AdmissionDenied
			}
			_, err := s.store.TransitionAdmission(ctx, m.ID, models.AdmissionPending, 1, func(mm *models.Member) error {
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

	res, err := s.store.Search(ctx, query.Build(query.FilterSpec{Services: []string{"cancer"}}), query.NewPage(1, 10))
	s.Require().NoError(err)
	s.Equal(1, res.Count)
}
