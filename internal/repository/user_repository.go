package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/osu-guessr/guessr-stats/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user or refreshes its username and avatar.
// Special badge fields are managed separately and never overwritten here.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bancho_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "avatar_url", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.BanchoID, err)
	}
	return nil
}

// GetByBanchoID retrieves a user. It returns nil, nil when the user does not exist.
func (r *UserRepository) GetByBanchoID(ctx context.Context, banchoID int) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("bancho_id = ?", banchoID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by bancho_id %d: %w", banchoID, err)
	}
	return &user, nil
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

// SearchByUsername returns users whose username contains term, ignoring case,
// ordered by username then bancho id.
func (r *UserRepository) SearchByUsername(ctx context.Context, term string, limit int) ([]models.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	users := make([]models.User, 0)
	err := r.db.WithContext(ctx).
		Where(`LOWER(username) LIKE ? ESCAPE '\'`, pattern).
		Order("username ASC").
		Order("bancho_id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search users by %q: %w", term, err)
	}
	return users, nil
}

// Delete removes a user together with their games and achievements.
// It reports whether the user existed.
func (r *UserRepository) Delete(ctx context.Context, banchoID int) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", banchoID).Delete(&models.UserAchievement{}).Error; err != nil {
			return fmt.Errorf("failed to delete achievements: %w", err)
		}
		if err := tx.Where("user_id = ?", banchoID).Delete(&models.GameResult{}).Error; err != nil {
			return fmt.Errorf("failed to delete game results: %w", err)
		}
		res := tx.Where("bancho_id = ?", banchoID).Delete(&models.User{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete user: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete user %d: %w", banchoID, err)
	}
	return deleted, nil
}

// SetSpecialBadge assigns or clears (nil badge) a user's special badge.
func (r *UserRepository) SetSpecialBadge(ctx context.Context, banchoID int, badge, color *string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("bancho_id = ?", banchoID).
		Updates(map[string]interface{}{
			"special_badge":       badge,
			"special_badge_color": color,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set special badge for user %d: %w", banchoID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to set special badge for user %d: %w", banchoID, gorm.ErrRecordNotFound)
	}
	return nil
}
