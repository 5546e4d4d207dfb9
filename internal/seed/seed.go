// Package seed loads YAML fixtures of users and games and applies them through the services,
// so seeded data goes through the same validation and achievement bookkeeping as live traffic.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// Fixture is the on-disk layout of a seed file.
type Fixture struct {
	Users []models.User       `yaml:"users"`
	Games []models.GameResult `yaml:"games"`
}

// UserWriter stores users.
type UserWriter interface {
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	SetSpecialBadge(ctx context.Context, banchoID int, badge, color string) error
}

// GameRecorder records games.
type GameRecorder interface {
	RecordGame(ctx context.Context, result models.GameResult) (*models.GameResult, error)
}

// Result counts what was applied.
type Result struct {
	Users int
	Games int
}

// Parse decodes a fixture. Unknown keys are rejected.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fixture Fixture
	if err := dec.Decode(&fixture); err != nil {
		if errors.Is(err, io.EOF) {
			return &fixture, nil
		}
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	return &fixture, nil
}

// LoadFile reads and parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Apply writes every user, then every game, stopping at the first failure.
func Apply(ctx context.Context, fixture *Fixture, users UserWriter, games GameRecorder, log *logger.Logger) (Result, error) {
	var res Result

	for i := range fixture.Users {
		u := fixture.Users[i]
		if _, err := users.Upsert(ctx, &u); err != nil {
			return res, fmt.Errorf("failed to seed user %d: %w", u.BanchoID, err)
		}
		if u.SpecialBadge != nil {
			color := ""
			if u.SpecialBadgeColor != nil {
				color = *u.SpecialBadgeColor
			}
			if err := users.SetSpecialBadge(ctx, u.BanchoID, *u.SpecialBadge, color); err != nil {
				return res, fmt.Errorf("failed to seed badge of user %d: %w", u.BanchoID, err)
			}
		}
		res.Users++
	}

	for i, g := range fixture.Games {
		if _, err := games.RecordGame(ctx, g); err != nil {
			return res, fmt.Errorf("failed to seed game #%d: %w", i+1, err)
		}
		res.Games++
	}

	log.Info().Int("users", res.Users).Int("games", res.Games).Msg("Seed applied")
	return res, nil
}
