// Package apikeys issues, validates and revokes API keys. Only key hashes are stored.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/validation"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// keyPrefix marks issued keys so they are recognisable in configs and logs.
const keyPrefix = "gsk_"

// Repository interface for key storage.
type Repository interface {
	Create(ctx context.Context, key *models.APIKey) error
	FindActiveByHash(ctx context.Context, hash string) (*models.APIKey, error)
	Revoke(ctx context.Context, id uint) error
}

// Service manages API keys.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new API key service.
func NewService(repo *repository.APIKeyRepository, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, log)
}

// NewServiceWithInterfaces creates a new API key service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// HashKey returns the hex SHA-256 of a plaintext key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Create issues a new key. The plaintext is returned once and never stored.
func (s *Service) Create(ctx context.Context, name string) (string, *models.APIKey, error) {
	name = strings.TrimSpace(name)
	if err := validation.Required("name", name); err != nil {
		return "", nil, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	plaintext := keyPrefix + hex.EncodeToString(buf)

	key := &models.APIKey{Name: name, KeyHash: HashKey(plaintext)}
	if err := s.repo.Create(ctx, key); err != nil {
		return "", nil, err
	}

	s.log.Info().Uint("key_id", key.ID).Str("name", name).Msg("Issued API key")
	return plaintext, key, nil
}

// Validate reports whether key is an issued, non-revoked key.
func (s *Service) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	found, err := s.repo.FindActiveByHash(ctx, HashKey(key))
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

// Revoke disables a key.
func (s *Service) Revoke(ctx context.Context, id uint) error {
	if err := s.repo.Revoke(ctx, id); err != nil {
		return err
	}
	s.log.Info().Uint("key_id", id).Msg("Revoked API key")
	return nil
}
