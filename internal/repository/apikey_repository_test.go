package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/test/testdb"
)

func TestAPIKeyRepository_Lifecycle(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAPIKeyRepository(db)
	ctx := context.Background()

	key := &models.APIKey{Name: "game-server", KeyHash: "abc123"}
	require.NoError(t, repo.Create(ctx, key))
	require.NotZero(t, key.ID)

	found, err := repo.FindActiveByHash(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "game-server", found.Name)
	assert.True(t, found.IsActive())

	missing, err := repo.FindActiveByHash(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Revoke(ctx, key.ID))
	require.NoError(t, repo.Revoke(ctx, key.ID))

	revoked, err := repo.FindActiveByHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, revoked)
}

func TestAPIKeyRepository_DuplicateHash(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAPIKeyRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.APIKey{Name: "one", KeyHash: "same"}))
	assert.Error(t, repo.Create(ctx, &models.APIKey{Name: "two", KeyHash: "same"}))
}
