package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/osu-guessr/guessr-stats/internal/models"
)

// RollupTx is the game log and the achievement rollup seen through one transaction.
type RollupTx interface {
	Replay(ctx context.Context, batchSize int, fn func(batch []models.GameResult) error) error
	All(ctx context.Context) ([]models.UserAchievement, error)
	ReplaceAll(ctx context.Context, rows []models.UserAchievement) error
}

type rollupTx struct {
	*GameRepository
	*AchievementRepository
}

// RollupRepository runs rollup maintenance against a consistent view of the game log.
type RollupRepository struct {
	db *DB
}

// NewRollupRepository creates a new rollup repository.
func NewRollupRepository(db *DB) *RollupRepository {
	return &RollupRepository{db: db}
}

// WithLockedLog runs fn in one transaction during which no game can be recorded.
// On PostgreSQL game_results is locked in SHARE mode, which waits for in-flight inserts
// and holds new ones until commit. SQLite serializes writers by itself.
func (r *RollupRepository) WithLockedLog(ctx context.Context, fn func(tx RollupTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isPostgres(tx) {
			if err := tx.Exec("LOCK TABLE game_results IN SHARE MODE").Error; err != nil {
				return fmt.Errorf("failed to lock game log: %w", err)
			}
		}
		return fn(newRollupTx(tx))
	})
}

// WithSnapshot runs fn in one read-only transaction in which every read sees the same snapshot.
func (r *RollupRepository) WithSnapshot(ctx context.Context, fn func(tx RollupTx) error) error {
	var opts []*sql.TxOptions
	if isPostgres(r.db.DB) {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRollupTx(tx))
	}, opts...)
}

func newRollupTx(tx *gorm.DB) rollupTx {
	db := &DB{DB: tx}
	return rollupTx{
		GameRepository:        NewGameRepository(db),
		AchievementRepository: NewAchievementRepository(db),
	}
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
