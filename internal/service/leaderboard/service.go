// Package leaderboard builds top player lists and assembles user profiles with ranks.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/osu-guessr/guessr-stats/internal/cache"
	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/service/ranking"
	"github.com/osu-guessr/guessr-stats/internal/validation"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// AchievementRepository interface for rollup reads.
type AchievementRepository interface {
	Top(ctx context.Context, mode models.GameMode, variant models.Variant, limit int) ([]repository.TopRow, error)
	ListByUser(ctx context.Context, userID int) ([]models.UserAchievement, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByBanchoID(ctx context.Context, banchoID int) (*models.User, error)
}

// Ranker computes a single rank.
type Ranker interface {
	Rank(ctx context.Context, userID int, partition models.Partition, variant models.Variant) (int, error)
}

// TopPlayer represents a single entry in a leaderboard.
type TopPlayer struct {
	Rank              int             `json:"rank"`
	UserID            int             `json:"user_id"`
	Username          string          `json:"username"`
	AvatarURL         string          `json:"avatar_url"`
	SpecialBadge      *string         `json:"special_badge,omitempty"`
	SpecialBadgeColor *string         `json:"special_badge_color,omitempty"`
	GameMode          models.GameMode `json:"game_mode"`
	Variant           models.Variant  `json:"variant"`
	TotalScore        int64           `json:"total_score"`
	GamesPlayed       int64           `json:"games_played"`
	HighestStreak     int             `json:"highest_streak"`
	HighestScore      int             `json:"highest_score"`
	LastPlayed        time.Time       `json:"last_played"`
}

// Service handles leaderboard generation and user profiles.
type Service struct {
	achievements AchievementRepository
	users        UserRepository
	ranker       Ranker
	cache        cache.Cache
	profileTTL   time.Duration
	log          *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
// A nil cache or a zero profileTTL disables profile caching.
func NewService(
	achievementRepo *repository.AchievementRepository,
	userRepo *repository.UserRepository,
	ranker *ranking.Service,
	profileCache cache.Cache,
	profileTTL time.Duration,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(achievementRepo, userRepo, ranker, profileCache, profileTTL, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	achievementRepo AchievementRepository,
	userRepo UserRepository,
	ranker Ranker,
	profileCache cache.Cache,
	profileTTL time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		achievements: achievementRepo,
		users:        userRepo,
		ranker:       ranker,
		cache:        profileCache,
		profileTTL:   profileTTL,
		log:          log,
	}
}

// TopPlayers returns at most limit players of a (mode, variant) pair, best first.
// Classic is ordered by total score and death by highest streak; ties go to the lower user id.
func (s *Service) TopPlayers(ctx context.Context, mode models.GameMode, variant models.Variant, limit int) ([]TopPlayer, error) {
	if err := validation.GameMode(mode); err != nil {
		return nil, err
	}
	if err := validation.Variant(variant); err != nil {
		return nil, err
	}
	if err := validation.Limit(limit); err != nil {
		return nil, err
	}

	rows, err := s.achievements.Top(ctx, mode, variant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s/%s leaderboard: %w", mode, variant, err)
	}
	metrics.RecordLeaderboardRequest(string(mode), string(variant))

	values := make([]int64, len(rows))
	players := make([]TopPlayer, 0, len(rows))
	for i, row := range rows {
		player := TopPlayer{
			UserID:            row.UserID,
			Username:          row.Username,
			AvatarURL:         row.AvatarURL,
			SpecialBadge:      row.SpecialBadge,
			SpecialBadgeColor: row.SpecialBadgeColor,
			GameMode:          mode,
			Variant:           variant,
			TotalScore:        row.TotalScore,
			GamesPlayed:       row.GamesPlayed,
			HighestStreak:     row.HighestStreak,
			HighestScore:      row.HighestScore,
			LastPlayed:        row.LastPlayed,
		}
		// Death has no points figure.
		if variant == models.VariantDeath {
			player.TotalScore = 0
			player.HighestScore = 0
		}

		values[i] = ranking.Metric(models.UserAchievement{
			Variant:       variant,
			TotalScore:    row.TotalScore,
			HighestStreak: row.HighestStreak,
		})
		players = append(players, player)
	}

	// Everyone strictly ahead of an entry is on the page before it, so page ranks are
	// the partition ranks.
	for i, rank := range ranking.CompetitionRanks(values) {
		players[i].Rank = rank
	}

	s.log.Debug().
		Str("game_mode", string(mode)).
		Str("variant", string(variant)).
		Int("limit", limit).
		Int("entries", len(players)).
		Msg("Built leaderboard")

	return players, nil
}
