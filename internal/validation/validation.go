// Package validation holds the input rules shared by the services and the HTTP layer.
// Every failure wraps ErrInvalid so callers can branch with errors.Is.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/osu-guessr/guessr-stats/internal/models"
)

// Bounds on caller supplied values.
const (
	MinLimit      = 1
	MaxLimit      = 100
	MinTermLength = 2
	MaxTermLength = 250
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("validation failed")

// Error describes which field was rejected.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrInvalid) hold.
func (e *Error) Unwrap() error {
	return ErrInvalid
}

func invalid(field, format string, args ...interface{}) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Limit rejects values outside [MinLimit, MaxLimit]. Values are never clamped.
func Limit(limit int) error {
	if limit < MinLimit || limit > MaxLimit {
		return invalid("limit", "must be between %d and %d, got %d", MinLimit, MaxLimit, limit)
	}
	return nil
}

// SearchTerm rejects terms whose length in characters is outside [MinTermLength, MaxTermLength].
func SearchTerm(term string) error {
	n := utf8.RuneCountInString(term)
	if n < MinTermLength || n > MaxTermLength {
		return invalid("query", "length must be between %d and %d characters, got %d", MinTermLength, MaxTermLength, n)
	}
	return nil
}

// ParseGameMode maps s onto the closed set of game modes.
// Matching ignores case and surrounding whitespace; the result is always canonical.
func ParseGameMode(s string) (models.GameMode, error) {
	m := models.GameMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", invalid("game_mode", "%q is not one of background, audio, skin", s)
	}
	return m, nil
}

// ParseVariant maps s onto the closed set of variants, ignoring case and surrounding whitespace.
func ParseVariant(s string) (models.Variant, error) {
	v := models.Variant(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", invalid("variant", "%q is not one of classic, death", s)
	}
	return v, nil
}

// GameMode checks an already typed mode.
func GameMode(m models.GameMode) error {
	if !m.Valid() {
		return invalid("game_mode", "%q is not one of background, audio, skin", string(m))
	}
	return nil
}

// Variant checks an already typed variant.
func Variant(v models.Variant) error {
	if !v.Valid() {
		return invalid("variant", "%q is not one of classic, death", string(v))
	}
	return nil
}

// NonNegative rejects negative counters.
func NonNegative(field string, value int) error {
	if value < 0 {
		return invalid(field, "must not be negative, got %d", value)
	}
	return nil
}

// UserID rejects non-positive identities.
func UserID(id int) error {
	if id <= 0 {
		return invalid("user_id", "must be a positive integer, got %d", id)
	}
	return nil
}

// Required rejects blank strings.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}
