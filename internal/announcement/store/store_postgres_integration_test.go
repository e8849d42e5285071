//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberdir/internal/announcement/models"
	"memberdir/internal/announcement/store"
	memberModels "memberdir/internal/member/models"
	memberStore "memberdir/internal/member/store"
	"memberdir/internal/platform/postgres"
	"memberdir/internal/platform/postgres/migrations"
	"memberdir/pkg/platform/sentinel"
	"memberdir/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	owner    uuid.UUID
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
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "announcements", "members"))
	owner, err := memberModels.NewMember(uuid.New(), "sub-owner",
		memberModels.Personal{FirstName: "O", LastName: "W", Email: "owner@example.org", Phone: "1"},
		memberModels.Professional{},
		memberModels.Classification{Category: memberModels.CategoryGeneticCounselor, Answers: memberModels.Answers{FormalTraining: memberModels.Yes()}},
		time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(memberStore.NewPostgres(s.postgres.DB).Create(ctx, owner))
	s.owner = owner.ID
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	a := &models.Announcement{
		ID:         uuid.New(),
		OwnerID:    s.owner,
		Title:      "Meeting",
		Body:       "Agenda",
		Recipients: []string{"language:spanish", "language:other"},
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Create(ctx, a))
	s.ErrorIs(s.store.Create(ctx, a), sentinel.ErrConflict)

	got, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Recipients, got.Recipients)
	s.Equal(a.Title, got.Title)
	s.True(a.CreatedAt.Equal(got.CreatedAt))

	_, err = s.store.FindByID(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
