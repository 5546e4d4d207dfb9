package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/service/aggregator"
	"github.com/osu-guessr/guessr-stats/test/testdb"
)

func record(t *testing.T, db *repository.DB, games ...models.GameResult) {
	t.Helper()
	repo := repository.NewGameRepository(db)
	for i := range games {
		delta := aggregator.FromResult(games[i])
		require.NoError(t, repo.Insert(context.Background(), &games[i], &delta))
	}
}

func TestGameRepository_InsertMaintainsAchievements(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")

	first := testdb.Game(1, models.GameModeBackground, models.VariantClassic, 100, 3, 0)
	second := testdb.Game(1, models.GameModeBackground, models.VariantClassic, 50, 6, 10)
	older := testdb.Game(1, models.GameModeBackground, models.VariantClassic, 20, 1, -30)
	record(t, db, first, second, older)

	rows, err := repository.NewAchievementRepository(db).ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, int64(170), row.TotalScore)
	assert.Equal(t, int64(3), row.GamesPlayed)
	assert.Equal(t, 6, row.HighestStreak)
	assert.Equal(t, 100, row.HighestScore)
	assert.True(t, row.LastPlayed.Equal(second.EndedAt), "last played must not move backwards, got %v", row.LastPlayed)
}

func TestGameRepository_InsertDeathVariant(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")

	record(t, db,
		testdb.Game(1, models.GameModeSkin, models.VariantDeath, 0, 9, 0),
		testdb.Game(1, models.GameModeSkin, models.VariantDeath, 0, 4, 1),
	)

	rows, err := repository.NewAchievementRepository(db).ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.VariantDeath, rows[0].Variant)
	assert.Equal(t, 9, rows[0].HighestStreak)
	assert.Zero(t, rows[0].TotalScore)
	assert.Equal(t, int64(2), rows[0].GamesPlayed)
}

func TestGameRepository_List(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")
	testdb.CreateUser(t, db, 2, "bob")

	record(t, db,
		testdb.Game(1, models.GameModeAudio, models.VariantClassic, 10, 1, 0),
		testdb.Game(1, models.GameModeAudio, models.VariantDeath, 0, 5, 5),
		testdb.Game(1, models.GameModeSkin, models.VariantClassic, 30, 2, 10),
		testdb.Game(2, models.GameModeAudio, models.VariantClassic, 40, 3, 15),
	)
	repo := repository.NewGameRepository(db)
	ctx := context.Background()

	all, err := repo.List(ctx, repository.GameFilter{UserID: 1}, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.GameModeSkin, all[0].GameMode, "newest first")

	audio, err := repo.List(ctx, repository.GameFilter{UserID: 1, GameMode: models.GameModeAudio}, 10)
	require.NoError(t, err)
	assert.Len(t, audio, 2)

	death, err := repo.List(ctx, repository.GameFilter{Variant: models.VariantDeath}, 10)
	require.NoError(t, err)
	require.Len(t, death, 1)
	assert.Equal(t, 5, death[0].Streak)

	limited, err := repo.List(ctx, repository.GameFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, 2, limited[0].UserID)
}

func TestGameRepository_Replay(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")

	for i := 0; i < 7; i++ {
		record(t, db, testdb.Game(1, models.GameModeAudio, models.VariantClassic, i, 1, i))
	}
	repo := repository.NewGameRepository(db)

	var batches, seen int
	err := repo.Replay(context.Background(), 3, func(batch []models.GameResult) error {
		batches++
		seen += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, batches)
	assert.Equal(t, 7, seen)
}
