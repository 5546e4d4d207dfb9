package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/osu-guessr/guessr-stats/internal/models"
)

// APIKeyRepository handles api_keys.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores a new key.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		return fmt.Errorf("failed to create api key %q: %w", key.Name, err)
	}
	return nil
}

// FindActiveByHash returns the non-revoked key with the given hash, or nil, nil.
func (r *APIKeyRepository) FindActiveByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	err := r.db.WithContext(ctx).
		Where("key_hash = ? AND revoked_at IS NULL", hash).
		First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	return &key, nil
}

// Revoke marks a key as revoked. Revoking twice is a no-op.
func (r *APIKeyRepository) Revoke(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now())
	if res.Error != nil {
		return fmt.Errorf("failed to revoke api key %d: %w", id, res.Error)
	}
	return nil
}
