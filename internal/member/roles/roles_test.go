package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberdir/internal/member/models"
	dErrors "memberdir/pkg/domain-errors"
	"memberdir/pkg/platform/sentinel"
)

type stubFinder struct {
	members map[string]*models.Member
	calls   int
	err     error
}

func (f *stubFinder) FindBySubject(_ context.Context, subject string) (*models.Member, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.members[subject]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m, nil
}

func TestResolveWithoutCache(t *testing.T) {
	adminID := uuid.New()
	finder := &stubFinder{members: map[string]*models.Member{
		"admin-sub": {ID: adminID, Role: models.RoleAdmin},
	}}
	r := New(finder)

	c, err := r.Resolve(context.Background(), "admin-sub")
	require.NoError(t, err)
	assert.Equal(t, Caller{MemberID: adminID, Role: models.RoleAdmin}, c)

	_, err = r.Resolve(context.Background(), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = r.Resolve(context.Background(), "stranger")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	finder.err = errors.New("db down")
	_, err = r.Resolve(context.Background(), "admin-sub")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.NoError(t, r.Invalidate(context.Background(), "admin-sub"))
}
