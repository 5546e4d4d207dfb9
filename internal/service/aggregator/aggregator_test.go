package aggregator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/service/aggregator"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
	"github.com/osu-guessr/guessr-stats/test/testdb"
)

func TestFromResult(t *testing.T) {
	classic := aggregator.FromResult(testdb.Game(1, models.GameModeAudio, models.VariantClassic, 120, 4, 0))
	assert.Equal(t, int64(120), classic.TotalScore)
	assert.Equal(t, 120, classic.HighestScore)
	assert.Equal(t, 4, classic.HighestStreak)
	assert.Equal(t, int64(1), classic.GamesPlayed)

	death := aggregator.FromResult(testdb.Game(1, models.GameModeAudio, models.VariantDeath, 90, 7, 0))
	assert.Zero(t, death.TotalScore, "death games do not add to total score")
	assert.Zero(t, death.HighestScore)
	assert.Equal(t, 7, death.HighestStreak)
	assert.Equal(t, int64(1), death.GamesPlayed)
}

func TestAggregate(t *testing.T) {
	results := []models.GameResult{
		testdb.Game(2, models.GameModeSkin, models.VariantClassic, 50, 2, 5),
		testdb.Game(1, models.GameModeBackground, models.VariantClassic, 100, 3, 0),
		testdb.Game(1, models.GameModeBackground, models.VariantClassic, 50, 8, 10),
		testdb.Game(1, models.GameModeBackground, models.VariantDeath, 0, 12, 2),
		testdb.Game(1, models.GameModeBackground, models.VariantDeath, 0, 9, 20),
	}

	rows := aggregator.Aggregate(results)
	require.Len(t, rows, 3)

	bgClassic := rows[0]
	assert.Equal(t, models.AchievementKey{UserID: 1, GameMode: models.GameModeBackground, Variant: models.VariantClassic}, bgClassic.Key())
	assert.Equal(t, int64(150), bgClassic.TotalScore)
	assert.Equal(t, int64(2), bgClassic.GamesPlayed)
	assert.Equal(t, 8, bgClassic.HighestStreak)
	assert.Equal(t, 100, bgClassic.HighestScore)
	assert.True(t, bgClassic.LastPlayed.Equal(results[2].EndedAt))

	bgDeath := rows[1]
	assert.Equal(t, models.VariantDeath, bgDeath.Variant)
	assert.Equal(t, 12, bgDeath.HighestStreak)
	assert.Equal(t, int64(2), bgDeath.GamesPlayed)
	assert.True(t, bgDeath.LastPlayed.Equal(results[4].EndedAt))

	assert.Equal(t, 2, rows[2].UserID)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	results := []models.GameResult{
		testdb.Game(1, models.GameModeAudio, models.VariantClassic, 10, 1, 30),
		testdb.Game(1, models.GameModeAudio, models.VariantClassic, 70, 6, 0),
		testdb.Game(1, models.GameModeAudio, models.VariantClassic, 40, 3, 15),
	}
	reversed := []models.GameResult{results[2], results[1], results[0]}

	assert.Equal(t, aggregator.Aggregate(results), aggregator.Aggregate(reversed))
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, aggregator.Aggregate(nil))
}

func TestCompare(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	row := func(user int, total int64) models.UserAchievement {
		return models.UserAchievement{
			UserID: user, GameMode: models.GameModeSkin, Variant: models.VariantClassic,
			TotalScore: total, GamesPlayed: 1, HighestScore: int(total), LastPlayed: base,
		}
	}

	expected := []models.UserAchievement{row(1, 10), row(2, 20), row(3, 30)}
	stored := []models.UserAchievement{row(1, 10), row(2, 25), row(4, 40)}

	report := aggregator.Compare(expected, stored)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, []models.AchievementKey{row(3, 0).Key()}, report.Missing)
	assert.Equal(t, []models.AchievementKey{row(2, 0).Key()}, report.Drifted)
	assert.Equal(t, []models.AchievementKey{row(4, 0).Key()}, report.Extra)
	assert.False(t, report.Consistent())
	assert.Equal(t, 3, report.Problems())

	assert.True(t, aggregator.Compare(expected, expected).Consistent())
}

func newService(t *testing.T) (*aggregator.Service, *repository.DB) {
	t.Helper()
	db := testdb.New(t)
	svc := aggregator.NewService(repository.NewRollupRepository(db), logger.Nop())
	return svc, db
}

func insertGames(t *testing.T, db *repository.DB, games ...models.GameResult) {
	t.Helper()
	repo := repository.NewGameRepository(db)
	for i := range games {
		delta := aggregator.FromResult(games[i])
		require.NoError(t, repo.Insert(context.Background(), &games[i], &delta))
	}
}

func TestService_VerifyConsistentAfterInserts(t *testing.T) {
	svc, db := newService(t)
	testdb.CreateUser(t, db, 1, "alice")
	testdb.CreateUser(t, db, 2, "bob")

	insertGames(t, db,
		testdb.Game(1, models.GameModeBackground, models.VariantClassic, 100, 3, 0),
		testdb.Game(1, models.GameModeBackground, models.VariantClassic, 50, 5, 1),
		testdb.Game(2, models.GameModeBackground, models.VariantClassic, 80, 2, 2),
		testdb.Game(2, models.GameModeAudio, models.VariantDeath, 0, 11, 3),
	)

	report, err := svc.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "incremental upserts should match a full replay: %+v", report)
	assert.Equal(t, 3, report.Checked)
}

func TestService_RebuildRepairsDrift(t *testing.T) {
	svc, db := newService(t)
	testdb.CreateUser(t, db, 1, "alice")

	insertGames(t, db,
		testdb.Game(1, models.GameModeSkin, models.VariantClassic, 60, 3, 0),
		testdb.Game(1, models.GameModeSkin, models.VariantClassic, 40, 1, 1),
	)

	// Corrupt the rollup and add a row with no games behind it.
	require.NoError(t, db.Model(&models.UserAchievement{}).
		Where("user_id = ?", 1).
		Update("total_score", 999).Error)
	require.NoError(t, db.Create(&models.UserAchievement{
		UserID: 1, GameMode: models.GameModeAudio, Variant: models.VariantDeath,
		GamesPlayed: 1, HighestStreak: 50, LastPlayed: time.Now(),
	}).Error)

	report, err := svc.Verify(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Drifted, 1)
	assert.Len(t, report.Extra, 1)

	written, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	rows, err := repository.NewAchievementRepository(db).ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0].TotalScore)
	assert.Equal(t, int64(2), rows[0].GamesPlayed)

	report, err = svc.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}

func TestService_RebuildEmptyLog(t *testing.T) {
	svc, _ := newService(t)

	written, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, written)
}

// fakeStore runs fn against tx without any transaction.
type fakeStore struct {
	tx repository.RollupTx
}

func (s fakeStore) WithLockedLog(_ context.Context, fn func(repository.RollupTx) error) error {
	return fn(s.tx)
}

func (s fakeStore) WithSnapshot(_ context.Context, fn func(repository.RollupTx) error) error {
	return fn(s.tx)
}

type failingLogTx struct {
	replaced bool
}

func (*failingLogTx) Replay(context.Context, int, func([]models.GameResult) error) error {
	return errors.New("connection reset")
}

func (*failingLogTx) All(context.Context) ([]models.UserAchievement, error) { return nil, nil }

func (tx *failingLogTx) ReplaceAll(context.Context, []models.UserAchievement) error {
	tx.replaced = true
	return nil
}

func TestService_RebuildReplayError(t *testing.T) {
	tx := &failingLogTx{}
	svc := aggregator.NewServiceWithInterfaces(fakeStore{tx: tx}, logger.Nop())

	_, err := svc.Rebuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, tx.replaced, "rollup must not be replaced when the replay fails")

	_, err = svc.Verify(context.Background())
	require.Error(t, err)
}

// replayHookStore runs afterReplay once the locked rebuild has read the log.
type replayHookStore struct {
	aggregator.Store
	afterReplay func()
}

func (s replayHookStore) WithLockedLog(ctx context.Context, fn func(repository.RollupTx) error) error {
	return s.Store.WithLockedLog(ctx, func(tx repository.RollupTx) error {
		return fn(replayHookTx{RollupTx: tx, afterReplay: s.afterReplay})
	})
}

type replayHookTx struct {
	repository.RollupTx
	afterReplay func()
}

func (tx replayHookTx) Replay(ctx context.Context, batchSize int, fn func([]models.GameResult) error) error {
	if err := tx.RollupTx.Replay(ctx, batchSize, fn); err != nil {
		return err
	}
	tx.afterReplay()
	return nil
}

func TestService_RebuildKeepsGamesRecordedMeanwhile(t *testing.T) {
	db := testdb.New(t)
	testdb.CreateUser(t, db, 1, "alice")
	testdb.CreateUser(t, db, 2, "bob")
	insertGames(t, db, testdb.Game(1, models.GameModeSkin, models.VariantClassic, 100, 3, 0))

	recorded := make(chan error, 1)
	store := replayHookStore{
		Store: repository.NewRollupRepository(db),
		afterReplay: func() {
			go func() {
				game := testdb.Game(2, models.GameModeSkin, models.VariantClassic, 500, 4, 5)
				delta := aggregator.FromResult(game)
				recorded <- repository.NewGameRepository(db).Insert(context.Background(), &game, &delta)
			}()
			// Give the insert every chance to land between the replay and the write.
			select {
			case err := <-recorded:
				recorded <- err
			case <-time.After(200 * time.Millisecond):
			}
		},
	}
	svc := aggregator.NewServiceWithInterfaces(store, logger.Nop())

	_, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-recorded)

	rows, err := repository.NewAchievementRepository(db).ListByUser(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 1, "a game recorded during the rebuild must survive it")
	assert.Equal(t, int64(500), rows[0].TotalScore)

	report, err := aggregator.NewService(repository.NewRollupRepository(db), logger.Nop()).Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%+v", report)
}
