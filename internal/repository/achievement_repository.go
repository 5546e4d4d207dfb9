package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/osu-guessr/guessr-stats/internal/models"
)

// AchievementRepository reads and maintains the user_achievements rollup.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// ListByUser returns every (mode, variant) row the user has played.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID int) ([]models.UserAchievement, error) {
	rows := make([]models.UserAchievement, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("game_mode ASC").
		Order("variant ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements for user %d: %w", userID, err)
	}
	return rows, nil
}

// All returns the whole rollup table.
func (r *AchievementRepository) All(ctx context.Context) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	err := r.db.WithContext(ctx).
		Order("user_id ASC").
		Order("game_mode ASC").
		Order("variant ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return rows, nil
}

// ReplaceAll swaps the rollup table contents for rows in one transaction.
func (r *AchievementRepository) ReplaceAll(ctx context.Context, rows []models.UserAchievement) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAchievement{}).Error; err != nil {
			return fmt.Errorf("failed to clear achievements: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("failed to insert achievements: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace achievements: %w", err)
	}
	return nil
}

// TopRow is a leaderboard row: identity joined with the partition's rollup.
type TopRow struct {
	UserID            int
	Username          string
	AvatarURL         string
	SpecialBadge      *string
	SpecialBadgeColor *string
	TotalScore        int64
	GamesPlayed       int64
	HighestStreak     int
	HighestScore      int
	LastPlayed        time.Time
}

// leaderboardOrder is the ranking column per variant. Ties fall back to user id.
var leaderboardOrder = map[models.Variant]string{
	models.VariantClassic: "ua.total_score DESC, ua.user_id ASC",
	models.VariantDeath:   "ua.highest_streak DESC, ua.user_id ASC",
}

// Top returns the best limit players of a (mode, variant) pair.
func (r *AchievementRepository) Top(ctx context.Context, mode models.GameMode, variant models.Variant, limit int) ([]TopRow, error) {
	order, ok := leaderboardOrder[variant]
	if !ok || !mode.Valid() {
		return nil, fmt.Errorf("no leaderboard query for %s/%s", mode, variant)
	}

	rows := make([]TopRow, 0, limit)
	err := r.db.WithContext(ctx).
		Table("user_achievements AS ua").
		Select("ua.user_id, u.username, u.avatar_url, u.special_badge, u.special_badge_color, " +
			"ua.total_score, ua.games_played, ua.highest_streak, ua.highest_score, ua.last_played").
		Joins("JOIN users AS u ON u.bancho_id = ua.user_id").
		Where("ua.game_mode = ? AND ua.variant = ?", mode, variant).
		Order(order).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get top players for %s/%s: %w", mode, variant, err)
	}
	return rows, nil
}

type rankStatement struct {
	sql string
	// args builds the bind parameters from the subject and mode.
	args func(userID int, mode models.GameMode) []interface{}
}

// The closed set of rank statements. Each counts users whose metric strictly
// exceeds the subject's, with a missing subject row counting as 0.
var (
	modeArgs = func(userID int, mode models.GameMode) []interface{} {
		return []interface{}{mode, userID, mode}
	}
	globalArgs = func(userID int, _ models.GameMode) []interface{} {
		return []interface{}{userID}
	}

	rankModeClassic = rankStatement{
		sql: `SELECT COUNT(*) FROM user_achievements
WHERE game_mode = ? AND variant = 'classic'
  AND total_score > COALESCE((SELECT total_score FROM user_achievements
                              WHERE user_id = ? AND game_mode = ? AND variant = 'classic'), 0)`,
		args: modeArgs,
	}
	rankModeDeath = rankStatement{
		sql: `SELECT COUNT(*) FROM user_achievements
WHERE game_mode = ? AND variant = 'death'
  AND highest_streak > COALESCE((SELECT highest_streak FROM user_achievements
                                 WHERE user_id = ? AND game_mode = ? AND variant = 'death'), 0)`,
		args: modeArgs,
	}
	rankGlobalClassic = rankStatement{
		sql: `SELECT COUNT(*) FROM (
  SELECT user_id FROM user_achievements
  WHERE variant = 'classic'
  GROUP BY user_id
  HAVING SUM(total_score) > COALESCE((SELECT SUM(total_score) FROM user_achievements
                                      WHERE user_id = ? AND variant = 'classic'), 0)
) AS ahead`,
		args: globalArgs,
	}
	rankGlobalDeath = rankStatement{
		sql: `SELECT COUNT(*) FROM (
  SELECT user_id FROM user_achievements
  WHERE variant = 'death'
  GROUP BY user_id
  HAVING MAX(highest_streak) > COALESCE((SELECT MAX(highest_streak) FROM user_achievements
                                         WHERE user_id = ? AND variant = 'death'), 0)
) AS ahead`,
		args: globalArgs,
	}
)

func lookupRankStatement(partition models.Partition, variant models.Variant) (rankStatement, error) {
	switch {
	case partition.IsGlobal() && variant == models.VariantClassic:
		return rankGlobalClassic, nil
	case partition.IsGlobal() && variant == models.VariantDeath:
		return rankGlobalDeath, nil
	case partition.Mode.Valid() && variant == models.VariantClassic:
		return rankModeClassic, nil
	case partition.Mode.Valid() && variant == models.VariantDeath:
		return rankModeDeath, nil
	}
	return rankStatement{}, fmt.Errorf("no rank query for %s/%s", partition, variant)
}

// CountAhead returns how many users have a strictly better metric than userID
// in the partition and variant.
func (r *AchievementRepository) CountAhead(ctx context.Context, userID int, partition models.Partition, variant models.Variant) (int64, error) {
	stmt, err := lookupRankStatement(partition, variant)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := r.db.WithContext(ctx).Raw(stmt.sql, stmt.args(userID, partition.Mode)...).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users ahead of %d in %s/%s: %w", userID, partition, variant, err)
	}
	return count, nil
}
