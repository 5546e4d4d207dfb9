// Package users provides player lookup, search and account maintenance.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/validation"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// UserRepository interface for user operations.
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByBanchoID(ctx context.Context, banchoID int) (*models.User, error)
	SearchByUsername(ctx context.Context, term string, limit int) ([]models.User, error)
	Delete(ctx context.Context, banchoID int) (bool, error)
	SetSpecialBadge(ctx context.Context, banchoID int, badge, color *string) error
}

// ProfileInvalidator drops cached profiles.
type ProfileInvalidator interface {
	InvalidateProfile(ctx context.Context, userID int) error
}

// Service handles user operations.
type Service struct {
	repo     UserRepository
	profiles ProfileInvalidator
	log      *logger.Logger
}

// NewService creates a new user service.
func NewService(repo *repository.UserRepository, profiles ProfileInvalidator, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(repo, profiles, log)
}

// NewServiceWithInterfaces creates a new user service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo UserRepository, profiles ProfileInvalidator, log *logger.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, log: log}
}

// SearchUsers returns at most limit users whose username contains term, ignoring case,
// ordered by username. No match yields an empty slice.
func (s *Service) SearchUsers(ctx context.Context, term string, limit int) ([]models.User, error) {
	if err := validation.SearchTerm(term); err != nil {
		return nil, err
	}
	if err := validation.Limit(limit); err != nil {
		return nil, err
	}

	found, err := s.repo.SearchByUsername(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	metrics.RecordUserSearch(len(found))

	return found, nil
}

// GetByID returns the user or nil, nil when it does not exist.
func (s *Service) GetByID(ctx context.Context, banchoID int) (*models.User, error) {
	if err := validation.UserID(banchoID); err != nil {
		return nil, err
	}
	return s.repo.GetByBanchoID(ctx, banchoID)
}

// Upsert creates the user or refreshes their username and avatar.
func (s *Service) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if err := validation.UserID(user.BanchoID); err != nil {
		return nil, err
	}
	user.Username = strings.TrimSpace(user.Username)
	if err := validation.Required("username", user.Username); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	s.invalidate(ctx, user.BanchoID)

	s.log.Debug().
		Int("bancho_id", user.BanchoID).
		Str("username", user.Username).
		Msg("Upserted user")

	// Re-read so callers see badge fields the upsert did not touch.
	stored, err := s.repo.GetByBanchoID(ctx, user.BanchoID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("user %d vanished after upsert", user.BanchoID)
	}
	return stored, nil
}

// Delete removes a user with all their games. It reports whether the user existed.
func (s *Service) Delete(ctx context.Context, banchoID int) (bool, error) {
	if err := validation.UserID(banchoID); err != nil {
		return false, err
	}

	deleted, err := s.repo.Delete(ctx, banchoID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidate(ctx, banchoID)
		s.log.Info().Int("bancho_id", banchoID).Msg("Deleted user")
	}
	return deleted, nil
}

// SetSpecialBadge assigns a badge, or clears it when badge is empty.
func (s *Service) SetSpecialBadge(ctx context.Context, banchoID int, badge, color string) error {
	if err := validation.UserID(banchoID); err != nil {
		return err
	}

	var badgePtr, colorPtr *string
	if badge = strings.TrimSpace(badge); badge != "" {
		badgePtr = &badge
		if color = strings.TrimSpace(color); color != "" {
			colorPtr = &color
		}
	}

	if err := s.repo.SetSpecialBadge(ctx, banchoID, badgePtr, colorPtr); err != nil {
		return err
	}
	s.invalidate(ctx, banchoID)
	return nil
}

// invalidate evicts a cached profile. Eviction failures only shorten freshness until the TTL.
func (s *Service) invalidate(ctx context.Context, banchoID int) {
	if s.profiles == nil {
		return
	}
	if err := s.profiles.InvalidateProfile(ctx, banchoID); err != nil {
		s.log.Warn().Err(err).Int("bancho_id", banchoID).Msg("Failed to invalidate cached profile")
	}
}
