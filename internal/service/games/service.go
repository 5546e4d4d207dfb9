// Package games records finished games and serves game history.
package games

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/service/aggregator"
	"github.com/osu-guessr/guessr-stats/internal/validation"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// ErrUserNotFound is returned when the player of a request does not exist.
var ErrUserNotFound = errors.New("user not found")

// GameRepository interface for the game log.
type GameRepository interface {
	Insert(ctx context.Context, result *models.GameResult, delta *models.UserAchievement) error
	List(ctx context.Context, filter repository.GameFilter, limit int) ([]models.GameResult, error)
}

// AchievementRepository interface for rollup reads.
type AchievementRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.UserAchievement, error)
}

// UserRepository interface for user lookups.
type UserRepository interface {
	GetByBanchoID(ctx context.Context, banchoID int) (*models.User, error)
}

// ProfileInvalidator drops cached profiles.
type ProfileInvalidator interface {
	InvalidateProfile(ctx context.Context, userID int) error
}

// Service handles game recording and history.
type Service struct {
	games        GameRepository
	achievements AchievementRepository
	users        UserRepository
	profiles     ProfileInvalidator
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates a new game service.
func NewService(
	gameRepo *repository.GameRepository,
	achievementRepo *repository.AchievementRepository,
	userRepo *repository.UserRepository,
	profiles ProfileInvalidator,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(gameRepo, achievementRepo, userRepo, profiles, log)
}

// NewServiceWithInterfaces creates a new game service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	gameRepo GameRepository,
	achievementRepo AchievementRepository,
	userRepo UserRepository,
	profiles ProfileInvalidator,
	log *logger.Logger,
) *Service {
	return &Service{
		games:        gameRepo,
		achievements: achievementRepo,
		users:        userRepo,
		profiles:     profiles,
		log:          log,
		now:          time.Now,
	}
}

// RecordGame appends a finished game to the log and folds it into the player's achievements.
// Death games carry no points, so any submitted points are dropped. A zero EndedAt means now.
func (s *Service) RecordGame(ctx context.Context, result models.GameResult) (*models.GameResult, error) {
	if err := validateResult(&result); err != nil {
		return nil, err
	}

	result.ID = 0
	if result.Variant == models.VariantDeath {
		result.Points = 0
	}
	if result.EndedAt.IsZero() {
		result.EndedAt = s.now().UTC()
	}

	if err := s.requireUser(ctx, result.UserID); err != nil {
		return nil, err
	}

	delta := aggregator.FromResult(result)
	if err := s.games.Insert(ctx, &result, &delta); err != nil {
		return nil, err
	}
	metrics.RecordGame(string(result.GameMode), string(result.Variant))

	if s.profiles != nil {
		if err := s.profiles.InvalidateProfile(ctx, result.UserID); err != nil {
			s.log.Warn().Err(err).Int("user_id", result.UserID).Msg("Failed to invalidate cached profile")
		}
	}

	s.log.Info().
		Uint("game_id", result.ID).
		Int("user_id", result.UserID).
		Str("game_mode", string(result.GameMode)).
		Str("variant", string(result.Variant)).
		Int("points", result.Points).
		Int("streak", result.Streak).
		Msg("Recorded game")

	return &result, nil
}

func validateResult(r *models.GameResult) error {
	if err := validation.UserID(r.UserID); err != nil {
		return err
	}
	if err := validation.GameMode(r.GameMode); err != nil {
		return err
	}
	if err := validation.Variant(r.Variant); err != nil {
		return err
	}
	if err := validation.NonNegative("points", r.Points); err != nil {
		return err
	}
	return validation.NonNegative("streak", r.Streak)
}

// HistoryFilter narrows History to one mode and/or variant. Empty fields match everything.
type HistoryFilter struct {
	GameMode models.GameMode
	Variant  models.Variant
}

// History returns the user's most recent games, newest first.
func (s *Service) History(ctx context.Context, userID int, filter HistoryFilter, limit int) ([]models.GameResult, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	if filter.GameMode != "" {
		if err := validation.GameMode(filter.GameMode); err != nil {
			return nil, err
		}
	}
	if filter.Variant != "" {
		if err := validation.Variant(filter.Variant); err != nil {
			return nil, err
		}
	}
	if err := validation.Limit(limit); err != nil {
		return nil, err
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	return s.games.List(ctx, repository.GameFilter{
		UserID:   userID,
		GameMode: filter.GameMode,
		Variant:  filter.Variant,
	}, limit)
}

// Achievements returns the user's rollup rows for every (mode, variant) they have played.
func (s *Service) Achievements(ctx context.Context, userID int) ([]models.UserAchievement, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.achievements.ListByUser(ctx, userID)
}

func (s *Service) requireUser(ctx context.Context, userID int) error {
	user, err := s.users.GetByBanchoID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user %d: %w", userID, err)
	}
	if user == nil {
		return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}
	return nil
}
