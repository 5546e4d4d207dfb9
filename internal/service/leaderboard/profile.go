package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/validation"
)

// RankPair holds the classic and death ranks of one partition.
type RankPair struct {
	Classic int `json:"classic"`
	Death   int `json:"death"`
}

// UserWithStats is a user profile: identity, every played (mode, variant) rollup,
// the global ranks and the ranks in every mode.
type UserWithStats struct {
	models.User
	Achievements []models.UserAchievement    `json:"achievements"`
	GlobalRank   RankPair                    `json:"global_rank"`
	ModeRanks    map[models.GameMode]RankPair `json:"mode_ranks"`
}

func profileCacheKey(userID int) string {
	return fmt.Sprintf("profile:%d", userID)
}

// profileVersionKey is bumped on every invalidation. A profile is cached only if the
// version it was assembled under is still current.
func profileVersionKey(userID int) string {
	return fmt.Sprintf("profile:ver:%d", userID)
}

// GetProfile assembles the profile of userID. It returns nil, nil when the user does not exist.
//
// The rank reads run concurrently and are not a single snapshot: a game recorded while the
// profile is assembled may be reflected in some ranks and not others.
func (s *Service) GetProfile(ctx context.Context, userID int) (*UserWithStats, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}

	if cached := s.cachedProfile(ctx, userID); cached != nil {
		return cached, nil
	}
	version, versioned := s.profileVersion(ctx, userID)

	start := time.Now()

	user, err := s.users.GetByBanchoID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, nil
	}

	profile, err := s.assemble(ctx, user)
	if err != nil {
		return nil, err
	}
	metrics.ObserveProfileAssembly(time.Since(start).Seconds())

	if versioned {
		s.storeProfile(ctx, profile, version)
	}

	return profile, nil
}

func (s *Service) assemble(ctx context.Context, user *models.User) (*UserWithStats, error) {
	var (
		achievements []models.UserAchievement
		global       [2]int
		perMode      = make([][2]int, len(models.GameModes))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.achievements.ListByUser(gctx, user.BanchoID)
		if err != nil {
			return fmt.Errorf("failed to get achievements: %w", err)
		}
		achievements = rows
		return nil
	})

	// Every goroutine owns exactly one slot, so no locking is needed.
	rankInto := func(slot *int, partition models.Partition, variant models.Variant) {
		g.Go(func() error {
			rank, err := s.ranker.Rank(gctx, user.BanchoID, partition, variant)
			if err != nil {
				return err
			}
			*slot = rank
			return nil
		})
	}

	for vi, variant := range models.Variants {
		rankInto(&global[vi], models.GlobalPartition, variant)
		for mi, mode := range models.GameModes {
			rankInto(&perMode[mi][vi], models.ModePartition(mode), variant)
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble profile for user %d: %w", user.BanchoID, err)
	}

	profile := &UserWithStats{
		User:         *user,
		Achievements: achievements,
		GlobalRank:   RankPair{Classic: global[0], Death: global[1]},
		ModeRanks:    make(map[models.GameMode]RankPair, len(models.GameModes)),
	}
	for mi, mode := range models.GameModes {
		profile.ModeRanks[mode] = RankPair{Classic: perMode[mi][0], Death: perMode[mi][1]}
	}

	return profile, nil
}

func (s *Service) cachingEnabled() bool {
	return s.cache != nil && s.profileTTL > 0
}

// cachedProfile returns the cached profile or nil. Cache failures degrade to a miss.
func (s *Service) cachedProfile(ctx context.Context, userID int) *UserWithStats {
	if !s.cachingEnabled() {
		return nil
	}

	raw, err := s.cache.Get(ctx, profileCacheKey(userID))
	if err != nil {
		metrics.RecordProfileCache("error")
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Failed to read cached profile")
		return nil
	}
	if raw == "" {
		metrics.RecordProfileCache("miss")
		return nil
	}

	var profile UserWithStats
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		metrics.RecordProfileCache("error")
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Discarding unreadable cached profile")
		return nil
	}

	metrics.RecordProfileCache("hit")
	return &profile
}

// profileVersion reads the invalidation counter of userID. It reports false when the
// counter cannot be read, in which case the assembled profile must not be cached.
func (s *Service) profileVersion(ctx context.Context, userID int) (string, bool) {
	if !s.cachingEnabled() {
		return "", false
	}
	version, err := s.cache.Get(ctx, profileVersionKey(userID))
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", userID).Msg("Failed to read profile version")
		return "", false
	}
	return version, true
}

// storeProfile caches profile unless it was invalidated after version was read.
func (s *Service) storeProfile(ctx context.Context, profile *UserWithStats, version string) {
	raw, err := json.Marshal(profile)
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", profile.BanchoID).Msg("Failed to encode profile for cache")
		return
	}
	stored, err := s.cache.SetIfUnchanged(ctx, profileVersionKey(profile.BanchoID), version,
		profileCacheKey(profile.BanchoID), raw, s.profileTTL)
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", profile.BanchoID).Msg("Failed to cache profile")
		return
	}
	if !stored {
		s.log.Debug().Int("user_id", profile.BanchoID).Msg("Profile invalidated during assembly, not cached")
	}
}

// InvalidateProfile drops the cached profile of userID, if any, and keeps profiles
// assembled before the call from being cached afterwards.
func (s *Service) InvalidateProfile(ctx context.Context, userID int) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.cache.Incr(ctx, profileVersionKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate profile of user %d: %w", userID, err)
	}
	if err := s.cache.Del(ctx, profileCacheKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate profile of user %d: %w", userID, err)
	}
	return nil
}
