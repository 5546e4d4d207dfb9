package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/osu-guessr/guessr-stats/internal/models"
)

// GameFilter narrows a game history query. Zero values mean "any".
type GameFilter struct {
	UserID   int
	GameMode models.GameMode
	Variant  models.Variant
}

// GameRepository handles the append-only game_results log.
type GameRepository struct {
	db *DB
}

// NewGameRepository creates a new game repository.
func NewGameRepository(db *DB) *GameRepository {
	return &GameRepository{db: db}
}

// achievementUpsert folds a freshly inserted result into the existing row in a single statement,
// so concurrent inserts for the same key cannot lose updates.
var achievementUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "user_id"}, {Name: "game_mode"}, {Name: "variant"}},
	DoUpdates: clause.Assignments(map[string]interface{}{
		"total_score":    gorm.Expr("user_achievements.total_score + excluded.total_score"),
		"games_played":   gorm.Expr("user_achievements.games_played + excluded.games_played"),
		"highest_streak": gorm.Expr("CASE WHEN excluded.highest_streak > user_achievements.highest_streak THEN excluded.highest_streak ELSE user_achievements.highest_streak END"),
		"highest_score":  gorm.Expr("CASE WHEN excluded.highest_score > user_achievements.highest_score THEN excluded.highest_score ELSE user_achievements.highest_score END"),
		"last_played":    gorm.Expr("CASE WHEN excluded.last_played > user_achievements.last_played THEN excluded.last_played ELSE user_achievements.last_played END"),
	}),
}

// Insert appends a game result and merges its contribution into user_achievements
// in the same transaction. delta is the achievement row the result alone would produce.
func (r *GameRepository) Insert(ctx context.Context, result *models.GameResult, delta *models.UserAchievement) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(result).Error; err != nil {
			return fmt.Errorf("failed to insert game result: %w", err)
		}
		if err := tx.Clauses(achievementUpsert).Create(delta).Error; err != nil {
			return fmt.Errorf("failed to update achievements: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record game for user %d: %w", result.UserID, err)
	}
	return nil
}

// List returns games matching filter, newest first.
func (r *GameRepository) List(ctx context.Context, filter GameFilter, limit int) ([]models.GameResult, error) {
	query := r.db.WithContext(ctx).Model(&models.GameResult{})

	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.GameMode != "" {
		query = query.Where("game_mode = ?", filter.GameMode)
	}
	if filter.Variant != "" {
		query = query.Where("variant = ?", filter.Variant)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	games := make([]models.GameResult, 0)
	if err := query.Order("ended_at DESC").Order("id DESC").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to list game results: %w", err)
	}
	return games, nil
}

// Replay streams the whole log in primary key order, batchSize rows at a time.
func (r *GameRepository) Replay(ctx context.Context, batchSize int, fn func(batch []models.GameResult) error) error {
	var batch []models.GameResult
	res := r.db.WithContext(ctx).
		Model(&models.GameResult{}).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			return fn(batch)
		})
	if res.Error != nil {
		return fmt.Errorf("failed to replay game results: %w", res.Error)
	}
	return nil
}

