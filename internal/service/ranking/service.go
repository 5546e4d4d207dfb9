// Package ranking computes competition ranks of users within a partition and variant.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/validation"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// AchievementCounter counts users with a strictly better metric than the subject.
type AchievementCounter interface {
	CountAhead(ctx context.Context, userID int, partition models.Partition, variant models.Variant) (int64, error)
}

// Service answers rank queries against the achievement rollup.
type Service struct {
	repo AchievementCounter
	log  *logger.Logger
}

// NewService creates a new ranking service.
func NewService(repo *repository.AchievementRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// NewServiceWithInterfaces creates a new ranking service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo AchievementCounter, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Rank returns the 1-based competition rank of userID. A user without games in the
// partition is ranked as if their metric were 0.
func (s *Service) Rank(ctx context.Context, userID int, partition models.Partition, variant models.Variant) (int, error) {
	if !partition.IsGlobal() {
		if err := validation.GameMode(partition.Mode); err != nil {
			return 0, err
		}
	}
	if err := validation.Variant(variant); err != nil {
		return 0, err
	}

	start := time.Now()
	ahead, err := s.repo.CountAhead(ctx, userID, partition, variant)
	if err != nil {
		metrics.RecordRankQuery(partition.String(), string(variant), "error", time.Since(start).Seconds())
		return 0, fmt.Errorf("failed to rank user %d in %s/%s: %w", userID, partition, variant, err)
	}
	metrics.RecordRankQuery(partition.String(), string(variant), "success", time.Since(start).Seconds())

	return int(ahead) + 1, nil
}

// Metric returns the value a variant is ranked by for a single achievement row.
func Metric(row models.UserAchievement) int64 {
	if row.Variant == models.VariantDeath {
		return int64(row.HighestStreak)
	}
	return row.TotalScore
}

// CompetitionRanks ranks values so that each gets 1 plus the number of strictly greater
// values. Equal values share a rank and the next distinct value skips accordingly.
// The result is aligned with values, which are not reordered.
func CompetitionRanks(values []int64) []int {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	ranks := make([]int, len(values))
	for i, v := range values {
		// First index whose value is not greater than v.
		ranks[i] = sort.Search(len(sorted), func(k int) bool { return sorted[k] <= v }) + 1
	}
	return ranks
}
