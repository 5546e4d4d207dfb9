package users

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/validation"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
	"github.com/osu-guessr/guessr-stats/test/mocks"
	"github.com/osu-guessr/guessr-stats/test/testdb"
)

func setupTestService() (*Service, *mocks.MockUserRepository, *mocks.MockProfileInvalidator) {
	repo := mocks.NewMockUserRepository()
	profiles := &mocks.MockProfileInvalidator{}
	return NewServiceWithInterfaces(repo, profiles, logger.Nop()), repo, profiles
}

func TestSearchUsers_Scenario(t *testing.T) {
	db := testdb.New(t)
	service := NewService(repository.NewUserRepository(db), nil, logger.Nop())

	testdb.CreateUser(t, db, 1, "abby")
	testdb.CreateUser(t, db, 2, "gabriel")
	testdb.CreateUser(t, db, 3, "xyz")

	found, err := service.SearchUsers(context.Background(), "ab", 5)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "abby", found[0].Username)
	assert.Equal(t, "gabriel", found[1].Username)

	none, err := service.SearchUsers(context.Background(), "qq", 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSearchUsers_Validation(t *testing.T) {
	service, repo, _ := setupTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		term  string
		limit int
	}{
		{name: "term too short", term: "a", limit: 10},
		{name: "term too long", term: strings.Repeat("a", 251), limit: 10},
		{name: "limit zero", term: "ab", limit: 0},
		{name: "limit above max", term: "ab", limit: 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.SearchUsers(ctx, tt.term, tt.limit)
			assert.True(t, errors.Is(err, validation.ErrInvalid), "got %v", err)
		})
	}
	assert.Zero(t, repo.SearchCalls, "invalid input must not reach the store")
}

func TestSearchUsers_Boundaries(t *testing.T) {
	service, repo, _ := setupTestService()
	ctx := context.Background()

	_, err := service.SearchUsers(ctx, "ab", 1)
	assert.NoError(t, err)
	_, err = service.SearchUsers(ctx, strings.Repeat("é", 250), 100)
	assert.NoError(t, err, "length counts characters, not bytes")
	assert.Equal(t, 2, repo.SearchCalls)
}

func TestSearchUsers_StoreError(t *testing.T) {
	service, repo, _ := setupTestService()
	repo.SearchFunc = func(string, int) ([]models.User, error) {
		return nil, errors.New("too many connections")
	}

	_, err := service.SearchUsers(context.Background(), "ab", 10)
	require.Error(t, err)
	assert.False(t, errors.Is(err, validation.ErrInvalid))
}

func TestUpsert(t *testing.T) {
	service, repo, profiles := setupTestService()
	ctx := context.Background()

	badge := "Mapper"
	repo.Users[5] = &models.User{BanchoID: 5, Username: "old", SpecialBadge: &badge}

	user, err := service.Upsert(ctx, &models.User{BanchoID: 5, Username: "  new  ", AvatarURL: "a"})
	require.NoError(t, err)
	assert.Equal(t, "new", user.Username)
	require.NotNil(t, user.SpecialBadge)
	assert.Equal(t, "Mapper", *user.SpecialBadge)
	assert.Equal(t, []int{5}, profiles.Invalidated)
}

func TestUpsert_Validation(t *testing.T) {
	service, _, _ := setupTestService()

	_, err := service.Upsert(context.Background(), &models.User{BanchoID: 0, Username: "x"})
	assert.True(t, errors.Is(err, validation.ErrInvalid))

	_, err = service.Upsert(context.Background(), &models.User{BanchoID: 1, Username: "   "})
	assert.True(t, errors.Is(err, validation.ErrInvalid))
}

func TestGetByID(t *testing.T) {
	service, repo, _ := setupTestService()
	repo.Users[5] = &models.User{BanchoID: 5, Username: "alice"}

	user, err := service.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	user, err = service.GetByID(context.Background(), 6)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestDelete(t *testing.T) {
	service, repo, profiles := setupTestService()
	repo.Users[5] = &models.User{BanchoID: 5, Username: "alice"}

	deleted, err := service.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []int{5}, profiles.Invalidated)

	deleted, err = service.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Len(t, profiles.Invalidated, 1)
}

func TestSetSpecialBadge(t *testing.T) {
	service, repo, profiles := setupTestService()
	repo.Users[5] = &models.User{BanchoID: 5, Username: "alice"}
	ctx := context.Background()

	require.NoError(t, service.SetSpecialBadge(ctx, 5, "Tournament Winner", "#ffd700"))
	assert.Equal(t, "Tournament Winner", *repo.Users[5].SpecialBadge)
	assert.Equal(t, "#ffd700", *repo.Users[5].SpecialBadgeColor)

	require.NoError(t, service.SetSpecialBadge(ctx, 5, "", "#ffd700"))
	assert.Nil(t, repo.Users[5].SpecialBadge)
	assert.Nil(t, repo.Users[5].SpecialBadgeColor, "clearing the badge clears its colour")
	assert.Len(t, profiles.Invalidated, 2)
}

func TestInvalidationFailureIsNotFatal(t *testing.T) {
	service, repo, profiles := setupTestService()
	repo.Users[5] = &models.User{BanchoID: 5, Username: "alice"}
	profiles.Err = errors.New("redis down")

	deleted, err := service.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, deleted)
}
