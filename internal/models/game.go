package models

import (
	"time"
)

// GameMode is what the player guesses the beatmap from.
type GameMode string

// Variant is the scoring rule set of a game.
type Variant string

// GameMode constants.
const (
	GameModeBackground GameMode = "background"
	GameModeAudio      GameMode = "audio"
	GameModeSkin       GameMode = "skin"
)

// Variant constants.
const (
	VariantClassic Variant = "classic"
	VariantDeath   Variant = "death"
)

// GameModes lists every mode in display order.
var GameModes = []GameMode{GameModeBackground, GameModeAudio, GameModeSkin}

// Variants lists every variant in display order.
var Variants = []Variant{VariantClassic, VariantDeath}

// Valid reports whether m is one of the known modes.
func (m GameMode) Valid() bool {
	switch m {
	case GameModeBackground, GameModeAudio, GameModeSkin:
		return true
	}
	return false
}

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantClassic, VariantDeath:
		return true
	}
	return false
}

// GameResult is one completed game. Rows are append-only.
type GameResult struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"column:user_id;not null;index:idx_game_results_partition,priority:1" json:"user_id" yaml:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;references:BanchoID" json:"-" yaml:"-"`
	GameMode  GameMode  `gorm:"column:game_mode;not null;size:20;index:idx_game_results_partition,priority:2" json:"game_mode" yaml:"game_mode"`
	Variant   Variant   `gorm:"not null;size:20;index:idx_game_results_partition,priority:3" json:"variant" yaml:"variant"`
	Points    int       `gorm:"not null;default:0" json:"points" yaml:"points"`
	Streak    int       `gorm:"not null;default:0" json:"streak" yaml:"streak"`
	EndedAt   time.Time `gorm:"not null;index" json:"ended_at" yaml:"ended_at"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// TableName specifies the table name for GameResult model.
func (GameResult) TableName() string {
	return "game_results"
}

// UserAchievement is the rollup of a user's games for one (mode, variant).
// It is derived from game_results and can always be rebuilt from them.
type UserAchievement struct {
	UserID        int       `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	GameMode      GameMode  `gorm:"column:game_mode;primaryKey;size:20" json:"game_mode"`
	Variant       Variant   `gorm:"primaryKey;size:20" json:"variant"`
	TotalScore    int64     `gorm:"not null;default:0" json:"total_score"`
	GamesPlayed   int64     `gorm:"not null;default:0" json:"games_played"`
	HighestStreak int       `gorm:"not null;default:0" json:"highest_streak"`
	HighestScore  int       `gorm:"not null;default:0" json:"highest_score"`
	LastPlayed    time.Time `gorm:"not null" json:"last_played"`
}

// TableName specifies the table name for UserAchievement model.
func (UserAchievement) TableName() string {
	return "user_achievements"
}

// AchievementKey identifies the partition an achievement row belongs to.
type AchievementKey struct {
	UserID   int
	GameMode GameMode
	Variant  Variant
}

// Key returns the grouping key of the row.
func (a UserAchievement) Key() AchievementKey {
	return AchievementKey{UserID: a.UserID, GameMode: a.GameMode, Variant: a.Variant}
}

// Partition is the scope of a rank: every mode at once (global) or a single mode.
type Partition struct {
	Mode GameMode
}

// GlobalPartition ranks across all modes.
var GlobalPartition = Partition{}

// ModePartition ranks within a single mode.
func ModePartition(m GameMode) Partition {
	return Partition{Mode: m}
}

// IsGlobal reports whether the partition spans all modes.
func (p Partition) IsGlobal() bool {
	return p.Mode == ""
}

func (p Partition) String() string {
	if p.IsGlobal() {
		return "global"
	}
	return string(p.Mode)
}
