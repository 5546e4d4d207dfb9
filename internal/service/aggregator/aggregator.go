// Package aggregator folds the game log into per (user, mode, variant) achievement rows
// and keeps the materialized rollup consistent with the log.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// DefaultBatchSize is how many game results are read per replay batch.
const DefaultBatchSize = 1000

// FromResult returns the achievement row a single result contributes on its own.
// Only classic games count towards total and highest score.
func FromResult(r models.GameResult) models.UserAchievement {
	row := models.UserAchievement{
		UserID:        r.UserID,
		GameMode:      r.GameMode,
		Variant:       r.Variant,
		GamesPlayed:   1,
		HighestStreak: r.Streak,
		LastPlayed:    r.EndedAt,
	}
	if r.Variant == models.VariantClassic {
		row.TotalScore = int64(r.Points)
		row.HighestScore = r.Points
	}
	return row
}

// Apply merges r into row. The caller must make sure r belongs to row's key.
func Apply(row *models.UserAchievement, r models.GameResult) {
	delta := FromResult(r)
	row.TotalScore += delta.TotalScore
	row.GamesPlayed += delta.GamesPlayed
	if delta.HighestStreak > row.HighestStreak {
		row.HighestStreak = delta.HighestStreak
	}
	if delta.HighestScore > row.HighestScore {
		row.HighestScore = delta.HighestScore
	}
	if delta.LastPlayed.After(row.LastPlayed) {
		row.LastPlayed = delta.LastPlayed
	}
}

// Accumulator builds achievement rows incrementally from results in any order.
type Accumulator struct {
	rows map[models.AchievementKey]*models.UserAchievement
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{rows: make(map[models.AchievementKey]*models.UserAchievement)}
}

// Add folds one result into its row.
func (a *Accumulator) Add(r models.GameResult) {
	key := models.AchievementKey{UserID: r.UserID, GameMode: r.GameMode, Variant: r.Variant}
	row, ok := a.rows[key]
	if !ok {
		first := FromResult(r)
		a.rows[key] = &first
		return
	}
	Apply(row, r)
}

// Len returns the number of distinct keys seen.
func (a *Accumulator) Len() int {
	return len(a.rows)
}

// Rows returns the accumulated rows sorted by user, mode and variant.
func (a *Accumulator) Rows() []models.UserAchievement {
	out := make([]models.UserAchievement, 0, len(a.rows))
	for _, row := range a.rows {
		out = append(out, *row)
	}
	sortRows(out)
	return out
}

// Aggregate reduces results into one row per (user, mode, variant).
func Aggregate(results []models.GameResult) []models.UserAchievement {
	acc := NewAccumulator()
	for _, r := range results {
		acc.Add(r)
	}
	return acc.Rows()
}

func sortRows(rows []models.UserAchievement) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UserID != rows[j].UserID {
			return rows[i].UserID < rows[j].UserID
		}
		if rows[i].GameMode != rows[j].GameMode {
			return rows[i].GameMode < rows[j].GameMode
		}
		return rows[i].Variant < rows[j].Variant
	})
}

// GameLog is the read side of the game log needed for replays.
type GameLog interface {
	Replay(ctx context.Context, batchSize int, fn func(batch []models.GameResult) error) error
}

// Store hands out transactional views of the game log and the rollup.
// WithLockedLog must keep games from being recorded until fn returns.
// WithSnapshot must show fn a single point in time.
type Store interface {
	WithLockedLog(ctx context.Context, fn func(tx repository.RollupTx) error) error
	WithSnapshot(ctx context.Context, fn func(tx repository.RollupTx) error) error
}

// Service rebuilds and verifies the achievement rollup.
type Service struct {
	store     Store
	batchSize int
	log       *logger.Logger
}

// NewService creates a new aggregator service.
func NewService(rollupRepo *repository.RollupRepository, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(rollupRepo, log)
}

// NewServiceWithInterfaces creates a new aggregator service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(store Store, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		batchSize: DefaultBatchSize,
		log:       log,
	}
}

// replay reads the whole game log and returns the rows it aggregates to.
func (s *Service) replay(ctx context.Context, games GameLog) ([]models.UserAchievement, error) {
	acc := NewAccumulator()
	var n int
	err := games.Replay(ctx, s.batchSize, func(batch []models.GameResult) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, r := range batch {
			acc.Add(r)
		}
		n += len(batch)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay game log: %w", err)
	}

	s.log.Debug().
		Int("games", n).
		Int("rows", acc.Len()).
		Msg("Replayed game log")

	return acc.Rows(), nil
}

// Rebuild recomputes the rollup from the game log and replaces the stored rows.
// The log is locked for the whole rebuild, so a game recorded meanwhile waits and is
// then merged into the fresh rows. It returns the number of rows written.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()
	s.log.Info().Msg("Starting achievement rebuild")

	var written int
	err := s.store.WithLockedLog(ctx, func(tx repository.RollupTx) error {
		rows, err := s.replay(ctx, tx)
		if err != nil {
			return err
		}
		if err := tx.ReplaceAll(ctx, rows); err != nil {
			return fmt.Errorf("failed to store rebuilt achievements: %w", err)
		}
		written = len(rows)
		return nil
	})
	if err != nil {
		metrics.RecordAchievementRebuild("error", time.Since(start).Seconds())
		return 0, err
	}

	metrics.RecordAchievementRebuild("success", time.Since(start).Seconds())
	metrics.SetAchievementDrift(0)

	s.log.Info().
		Int("rows", written).
		Dur("duration", time.Since(start)).
		Msg("Achievement rebuild completed")

	return written, nil
}

// Report is the outcome of comparing the stored rollup with the game log.
type Report struct {
	Checked int                     `json:"checked"`
	Missing []models.AchievementKey `json:"missing"`
	Extra   []models.AchievementKey `json:"extra"`
	Drifted []models.AchievementKey `json:"drifted"`
}

// Consistent reports whether the stored rollup matches the log exactly.
func (r *Report) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.Drifted) == 0
}

// Problems returns the number of rows that need repair.
func (r *Report) Problems() int {
	return len(r.Missing) + len(r.Extra) + len(r.Drifted)
}

// Verify recomputes the rollup in memory and compares it with the stored rows.
// Both sides are read from one snapshot. Nothing is written.
func (s *Service) Verify(ctx context.Context) (*Report, error) {
	var expected, stored []models.UserAchievement
	err := s.store.WithSnapshot(ctx, func(tx repository.RollupTx) error {
		var err error
		if expected, err = s.replay(ctx, tx); err != nil {
			return err
		}
		if stored, err = tx.All(ctx); err != nil {
			return fmt.Errorf("failed to load stored achievements: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := Compare(expected, stored)
	metrics.SetAchievementDrift(report.Problems())

	event := s.log.Info()
	if !report.Consistent() {
		event = s.log.Warn()
	}
	event.
		Int("checked", report.Checked).
		Int("missing", len(report.Missing)).
		Int("extra", len(report.Extra)).
		Int("drifted", len(report.Drifted)).
		Msg("Achievement verification completed")

	return report, nil
}

// Compare diffs expected rows (from the log) against stored rows.
func Compare(expected, stored []models.UserAchievement) *Report {
	byKey := make(map[models.AchievementKey]models.UserAchievement, len(stored))
	for _, row := range stored {
		byKey[row.Key()] = row
	}

	report := &Report{Checked: len(expected)}
	for _, want := range expected {
		key := want.Key()
		got, ok := byKey[key]
		if !ok {
			report.Missing = append(report.Missing, key)
			continue
		}
		delete(byKey, key)
		if !sameRow(want, got) {
			report.Drifted = append(report.Drifted, key)
		}
	}

	for key := range byKey {
		report.Extra = append(report.Extra, key)
	}
	sort.Slice(report.Extra, func(i, j int) bool {
		a, b := report.Extra[i], report.Extra[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.GameMode != b.GameMode {
			return a.GameMode < b.GameMode
		}
		return a.Variant < b.Variant
	})

	return report
}

func sameRow(a, b models.UserAchievement) bool {
	return a.TotalScore == b.TotalScore &&
		a.GamesPlayed == b.GamesPlayed &&
		a.HighestStreak == b.HighestStreak &&
		a.HighestScore == b.HighestScore &&
		a.LastPlayed.Equal(b.LastPlayed)
}
