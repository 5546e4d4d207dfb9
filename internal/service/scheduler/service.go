// Package scheduler runs the background jobs: achievement verification and the daily leaderboard digest.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/osu-guessr/guessr-stats/internal/config"
	"github.com/osu-guessr/guessr-stats/internal/mattermost"
	prommetrics "github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/service/aggregator"
	"github.com/osu-guessr/guessr-stats/internal/service/leaderboard"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// Job names used in logs and metrics.
const (
	JobVerify = "verify_achievements"
	JobDigest = "leaderboard_digest"
)

// Verifier checks and repairs the achievement rollup.
type Verifier interface {
	Verify(ctx context.Context) (*aggregator.Report, error)
	Rebuild(ctx context.Context) (int, error)
}

// Leaderboard provides the top players of a (mode, variant) pair.
type Leaderboard interface {
	TopPlayers(ctx context.Context, mode models.GameMode, variant models.Variant, limit int) ([]leaderboard.TopPlayer, error)
}

// Notifier delivers the digest.
type Notifier interface {
	SendLeaderboardDigest(ctx context.Context, sections []mattermost.DigestSection) error
}

// Service handles background job scheduling.
type Service struct {
	config      *config.SchedulerConfig
	verifier    Verifier
	leaderboard Leaderboard
	notifier    Notifier
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.Config,
	aggregatorService *aggregator.Service,
	leaderboardService *leaderboard.Service,
	mattermostClient *mattermost.Client,
	log *logger.Logger,
) *Service {
	var notifier Notifier
	if mattermostClient != nil && mattermostClient.Enabled() {
		notifier = mattermostClient
	}
	return NewServiceWithInterfaces(&cfg.Scheduler, aggregatorService, leaderboardService, notifier, log)
}

// NewServiceWithInterfaces creates a new scheduler service with interface dependencies (useful for testing).
// A nil notifier disables the digest.
func NewServiceWithInterfaces(
	cfg *config.SchedulerConfig,
	verifier Verifier,
	lb Leaderboard,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		verifier:    verifier,
		leaderboard: lb,
		notifier:    notifier,
		log:         log.Component("scheduler"),
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if s.config.VerifySchedule != "" {
		if _, err := s.cron.AddFunc(s.config.VerifySchedule, func() {
			s.runVerification(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register verification job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.VerifySchedule).
			Bool("auto_repair", s.config.AutoRepair).
			Msg("Achievement verification job registered")
	}

	if s.config.DigestTime != "" && s.notifier != nil {
		cronExpr, err := s.buildCronExpression()
		if err != nil {
			return fmt.Errorf("failed to build cron expression: %w", err)
		}
		if _, err := s.cron.AddFunc(cronExpr, func() {
			s.runDigest(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register digest job: %w", err)
		}
		s.log.Info().
			Str("schedule", cronExpr).
			Str("time", s.config.DigestTime).
			Bool("skip_weekends", s.config.SkipWeekends).
			Msg("Leaderboard digest job registered")
	}

	s.cron.Start()

	nextRun := ""
	if entries := s.cron.Entries(); len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("timezone", s.config.Timezone).
		Int("jobs", len(s.cron.Entries())).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates the digest cron expression from config.
func (s *Service) buildCronExpression() (string, error) {
	// Parse time string (format: "HH:MM")
	parts := strings.Split(s.config.DigestTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.DigestTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	if s.config.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runVerification compares the rollup with the game log and rebuilds it on drift when auto repair is on.
func (s *Service) runVerification(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Running achievement verification job")

	report, err := s.verifier.Verify(ctx)
	if err != nil {
		s.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Achievement verification failed")
		prommetrics.RecordSchedulerJobRun(JobVerify, "error")
		return
	}

	if report.Consistent() {
		prommetrics.RecordSchedulerJobRun(JobVerify, "success")
		return
	}

	if !s.config.AutoRepair {
		s.log.Warn().Int("problems", report.Problems()).Msg("Achievement drift detected, auto repair is off")
		prommetrics.RecordSchedulerJobRun(JobVerify, "drift")
		return
	}

	rows, err := s.verifier.Rebuild(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("problems", report.Problems()).Msg("Achievement repair failed")
		prommetrics.RecordSchedulerJobRun(JobVerify, "error")
		return
	}

	prommetrics.RecordSchedulerJobRun(JobVerify, "repaired")
	s.log.Info().
		Int("problems", report.Problems()).
		Int("rows", rows).
		Dur("duration", time.Since(start)).
		Msg("Achievement drift repaired")
}

// runDigest posts the top players of every (mode, variant) pair.
func (s *Service) runDigest(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Running leaderboard digest job")

	sections, err := s.buildDigest(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build leaderboard digest")
		prommetrics.RecordSchedulerJobRun(JobDigest, "error")
		prommetrics.RecordDigestFailed("query_error")
		return
	}

	if err := s.notifier.SendLeaderboardDigest(ctx, sections); err != nil {
		s.log.Error().Err(err).Msg("Failed to send leaderboard digest")
		prommetrics.RecordSchedulerJobRun(JobDigest, "error")
		prommetrics.RecordDigestFailed("mattermost_error")
		return
	}

	prommetrics.RecordSchedulerJobRun(JobDigest, "success")
	s.log.Info().
		Int("sections", len(sections)).
		Dur("duration", time.Since(start)).
		Msg("Leaderboard digest sent")
}

func (s *Service) buildDigest(ctx context.Context) ([]mattermost.DigestSection, error) {
	size := s.config.DigestSize
	if size <= 0 {
		size = 5
	}

	sections := make([]mattermost.DigestSection, 0, len(models.GameModes)*len(models.Variants))
	for _, mode := range models.GameModes {
		for _, variant := range models.Variants {
			players, err := s.leaderboard.TopPlayers(ctx, mode, variant, size)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s/%s leaderboard: %w", mode, variant, err)
			}
			sections = append(sections, digestSection(mode, variant, players))
		}
	}
	return sections, nil
}

func digestSection(mode models.GameMode, variant models.Variant, players []leaderboard.TopPlayer) mattermost.DigestSection {
	section := mattermost.DigestSection{GameMode: mode, Variant: variant}
	for _, p := range players {
		value := p.TotalScore
		if variant == models.VariantDeath {
			value = int64(p.HighestStreak)
		}
		section.Entries = append(section.Entries, mattermost.DigestEntry{
			Rank:     p.Rank,
			Username: p.Username,
			Value:    value,
		})
	}
	return section
}
