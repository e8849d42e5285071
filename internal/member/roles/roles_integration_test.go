//go:build integration

package roles_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberdir/internal/member/models"
	"memberdir/internal/member/roles"
	"memberdir/pkg/platform/sentinel"
	"memberdir/pkg/testutil/containers"
)

type countingFinder struct {
	member *models.Member
	calls  int
}

func (f *countingFinder) FindBySubject(_ context.Context, subject string) (*models.Member, error) {
	f.calls++
	if f.member == nil || f.member.Subject != subject {
		return nil, sentinel.ErrNotFound
	}
	return f.member, nil
}

type RedisRoleCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisRoleCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisRoleCacheSuite))
}

func (s *RedisRoleCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisRoleCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisRoleCacheSuite) TestSecondLookupIsServedFromCache() {
	ctx := context.Background()
	finder := &countingFinder{member: &models.Member{ID: uuid.New(), Subject: "sub-1", Role: models.RoleSuperadmin}}
	r := roles.New(finder, roles.WithCache(s.redis.Client, time.Minute))

	first, err := r.Resolve(ctx, "sub-1")
	s.Require().NoError(err)
	second, err := r.Resolve(ctx, "sub-1")
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal(1, finder.calls)

	s.Require().NoError(r.Invalidate(ctx, "sub-1"))
	_, err = r.Resolve(ctx, "sub-1")
	s.Require().NoError(err)
	s.Equal(2, finder.calls)
}

func (s *RedisRoleCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	finder := &countingFinder{member: &models.Member{ID: uuid.New(), Subject: "sub-2", Role: models.RoleMember}}
	r := roles.New(finder, roles.WithCache(s.redis.Client, 200*time.Millisecond))

	_, err := r.Resolve(ctx, "sub-2")
	s.Require().NoError(err)
	time.Sleep(400 * time.Millisecond)
	_, err = r.Resolve(ctx, "sub-2")
	s.Require().NoError(err)
	s.Equal(2, finder.calls)
}
