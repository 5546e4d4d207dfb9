// Package models defines domain models for the guessing game statistics service.
package models

import (
	"time"
)

// User represents a player identified by their osu! (bancho) account.
type User struct {
	BanchoID          int       `gorm:"column:bancho_id;primaryKey;autoIncrement:false" json:"bancho_id" yaml:"bancho_id"`
	Username          string    `gorm:"not null;size:255;index" json:"username" yaml:"username"`
	AvatarURL         string    `gorm:"column:avatar_url;type:text" json:"avatar_url" yaml:"avatar_url"`
	SpecialBadge      *string   `gorm:"size:100" json:"special_badge,omitempty" yaml:"special_badge,omitempty"`
	SpecialBadgeColor *string   `gorm:"size:20" json:"special_badge_color,omitempty" yaml:"special_badge_color,omitempty"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// APIKey is a credential allowed to call the public API.
// Only the hex SHA-256 of the key is stored.
type APIKey struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"not null;size:100" json:"name"`
	KeyHash   string     `gorm:"column:key_hash;uniqueIndex;not null;size:64" json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// TableName specifies the table name for APIKey model.
func (APIKey) TableName() string {
	return "api_keys"
}

// IsActive reports whether the key has not been revoked.
func (k *APIKey) IsActive() bool {
	return k.RevokedAt == nil
}
