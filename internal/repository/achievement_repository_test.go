package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/test/testdb"
)

func TestAchievementRepository_CountAheadMode(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")
	testdb.CreateUser(t, db, 2, "bob")
	testdb.CreateUser(t, db, 3, "carol")

	// alice 150 over two games, bob 80, carol has no background games.
	record(t, db,
		testdb.Game(1, models.GameModeBackground, models.VariantClassic, 100, 2, 0),
		testdb.Game(1, models.GameModeBackground, models.VariantClassic, 50, 1, 1),
		testdb.Game(2, models.GameModeBackground, models.VariantClassic, 80, 9, 2),
		testdb.Game(3, models.GameModeAudio, models.VariantClassic, 500, 1, 3),
	)
	repo := repository.NewAchievementRepository(db)
	bg := models.ModePartition(models.GameModeBackground)
	ctx := context.Background()

	ahead, err := repo.CountAhead(ctx, 1, bg, models.VariantClassic)
	require.NoError(t, err)
	assert.Zero(t, ahead)

	ahead, err = repo.CountAhead(ctx, 2, bg, models.VariantClassic)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ahead)

	// No row counts as 0, so everyone with a positive score is ahead.
	ahead, err = repo.CountAhead(ctx, 3, bg, models.VariantClassic)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ahead)

	// Streaks from classic games never leak into death ranks.
	ahead, err = repo.CountAhead(ctx, 1, bg, models.VariantDeath)
	require.NoError(t, err)
	assert.Zero(t, ahead)
}

func TestAchievementRepository_CountAheadModeDeath(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")
	testdb.CreateUser(t, db, 2, "bob")
	testdb.CreateUser(t, db, 3, "carol")

	record(t, db,
		testdb.Game(1, models.GameModeSkin, models.VariantDeath, 0, 12, 0),
		testdb.Game(2, models.GameModeSkin, models.VariantDeath, 0, 12, 1),
		testdb.Game(3, models.GameModeSkin, models.VariantDeath, 0, 4, 2),
	)
	repo := repository.NewAchievementRepository(db)
	skin := models.ModePartition(models.GameModeSkin)
	ctx := context.Background()

	for _, id := range []int{1, 2} {
		ahead, err := repo.CountAhead(ctx, id, skin, models.VariantDeath)
		require.NoError(t, err)
		assert.Zero(t, ahead, "tied users share the top rank")
	}

	ahead, err := repo.CountAhead(ctx, 3, skin, models.VariantDeath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ahead, "competition ranking skips after a tie")
}

func TestAchievementRepository_CountAheadGlobal(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")
	testdb.CreateUser(t, db, 2, "bob")
	testdb.CreateUser(t, db, 3, "carol")

	record(t, db,
		// alice: 60 + 60 = 120 classic across modes, best death streak 5.
		testdb.Game(1, models.GameModeAudio, models.VariantClassic, 60, 1, 0),
		testdb.Game(1, models.GameModeSkin, models.VariantClassic, 60, 1, 1),
		testdb.Game(1, models.GameModeAudio, models.VariantDeath, 0, 5, 2),
		// bob: 100 classic in one mode, death streaks 3 and 8 in two modes.
		testdb.Game(2, models.GameModeBackground, models.VariantClassic, 100, 1, 3),
		testdb.Game(2, models.GameModeAudio, models.VariantDeath, 0, 3, 4),
		testdb.Game(2, models.GameModeSkin, models.VariantDeath, 0, 8, 5),
	)
	repo := repository.NewAchievementRepository(db)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  int
		variant models.Variant
		want    int64
	}{
		{name: "classic sums across modes", userID: 1, variant: models.VariantClassic, want: 0},
		{name: "classic second place", userID: 2, variant: models.VariantClassic, want: 1},
		{name: "classic with no games", userID: 3, variant: models.VariantClassic, want: 2},
		{name: "death takes best mode", userID: 2, variant: models.VariantDeath, want: 0},
		{name: "death second place", userID: 1, variant: models.VariantDeath, want: 1},
		{name: "death with no games", userID: 3, variant: models.VariantDeath, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ahead, err := repo.CountAhead(ctx, tt.userID, models.GlobalPartition, tt.variant)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ahead)
		})
	}
}

func TestAchievementRepository_CountAheadUnknownQuery(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	_, err := repo.CountAhead(context.Background(), 1, models.ModePartition("karaoke"), models.VariantClassic)
	assert.Error(t, err)

	_, err = repo.CountAhead(context.Background(), 1, models.GlobalPartition, models.Variant("zen"))
	assert.Error(t, err)
}

func TestAchievementRepository_Top(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 3, "carol")
	testdb.CreateUser(t, db, 1, "alice")
	testdb.CreateUser(t, db, 2, "bob")

	record(t, db,
		testdb.Game(3, models.GameModeAudio, models.VariantClassic, 70, 1, 0),
		testdb.Game(1, models.GameModeAudio, models.VariantClassic, 70, 1, 1),
		testdb.Game(2, models.GameModeAudio, models.VariantClassic, 90, 1, 2),
		testdb.Game(2, models.GameModeSkin, models.VariantClassic, 999, 1, 3),
	)
	repo := repository.NewAchievementRepository(db)

	rows, err := repo.Top(context.Background(), models.GameModeAudio, models.VariantClassic, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{2, 1, 3}, []int{rows[0].UserID, rows[1].UserID, rows[2].UserID})
	assert.Equal(t, "bob", rows[0].Username)
	assert.Equal(t, int64(90), rows[0].TotalScore)

	rows, err = repo.Top(context.Background(), models.GameModeAudio, models.VariantClassic, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAchievementRepository_ReplaceAll(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")
	record(t, db, testdb.Game(1, models.GameModeAudio, models.VariantClassic, 10, 1, 0))
	repo := repository.NewAchievementRepository(db)
	ctx := context.Background()

	replacement := []models.UserAchievement{{
		UserID: 1, GameMode: models.GameModeSkin, Variant: models.VariantDeath,
		GamesPlayed: 4, HighestStreak: 20, LastPlayed: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, repo.ReplaceAll(ctx, replacement))

	rows, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.GameModeSkin, rows[0].GameMode)
	assert.Equal(t, 20, rows[0].HighestStreak)

	require.NoError(t, repo.ReplaceAll(ctx, nil))
	rows, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
