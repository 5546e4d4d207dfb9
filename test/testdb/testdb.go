// Package testdb opens throwaway SQLite databases with the service schema for tests.
package testdb

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/repository"
)

// New returns a migrated in-memory database that is closed when the test ends.
// The pool is pinned to one connection because every SQLite :memory: connection
// is a separate database.
func New(t *testing.T) *repository.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &repository.DB{DB: gormDB}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	return db
}

// CreateUser inserts a user with the given id and name.
func CreateUser(t *testing.T, db *repository.DB, banchoID int, username string) *models.User {
	t.Helper()

	user := &models.User{
		BanchoID:  banchoID,
		Username:  username,
		AvatarURL: "https://a.ppy.sh/" + username,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// Game builds a result ending at a fixed reference time plus offset minutes.
func Game(userID int, mode models.GameMode, variant models.Variant, points, streak, offset int) models.GameResult {
	return models.GameResult{
		UserID:   userID,
		GameMode: mode,
		Variant:  variant,
		Points:   points,
		Streak:   streak,
		EndedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute),
	}
}
