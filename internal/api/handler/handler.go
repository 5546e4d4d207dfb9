// Package handler provides the REST API handlers for search, profiles, leaderboards and games.
// Every response uses the {success, data} / {success:false, error} envelope.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osu-guessr/guessr-stats/internal/config"
	"github.com/osu-guessr/guessr-stats/internal/models"
	"github.com/osu-guessr/guessr-stats/internal/service/games"
	"github.com/osu-guessr/guessr-stats/internal/service/leaderboard"
	"github.com/osu-guessr/guessr-stats/internal/service/users"
	"github.com/osu-guessr/guessr-stats/internal/validation"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// UserService interface for user operations.
type UserService interface {
	SearchUsers(ctx context.Context, term string, limit int) ([]models.User, error)
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, banchoID int) (bool, error)
}

// LeaderboardService interface for leaderboard and profile operations.
type LeaderboardService interface {
	TopPlayers(ctx context.Context, mode models.GameMode, variant models.Variant, limit int) ([]leaderboard.TopPlayer, error)
	GetProfile(ctx context.Context, userID int) (*leaderboard.UserWithStats, error)
}

// GameService interface for game operations.
type GameService interface {
	RecordGame(ctx context.Context, result models.GameResult) (*models.GameResult, error)
	History(ctx context.Context, userID int, filter games.HistoryFilter, limit int) ([]models.GameResult, error)
	Achievements(ctx context.Context, userID int) ([]models.UserAchievement, error)
}

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler handles API requests.
type Handler struct {
	userService        UserService
	leaderboardService LeaderboardService
	gameService        GameService
	limits             config.LeaderboardConfig
	checks             []HealthCheck
	log                *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	userService *users.Service,
	leaderboardService *leaderboard.Service,
	gameService *games.Service,
	limits config.LeaderboardConfig,
	log *logger.Logger,
	checks ...HealthCheck,
) *Handler {
	return NewHandlerWithInterfaces(userService, leaderboardService, gameService, limits, log, checks...)
}

// NewHandlerWithInterfaces creates a new API handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	userService UserService,
	leaderboardService LeaderboardService,
	gameService GameService,
	limits config.LeaderboardConfig,
	log *logger.Logger,
	checks ...HealthCheck,
) *Handler {
	return &Handler{
		userService:        userService,
		leaderboardService: leaderboardService,
		gameService:        gameService,
		limits:             limits,
		checks:             checks,
		log:                log,
	}
}

// SearchUsers searches users by username substring.
// GET /api/v1/users/search?query=ab&limit=20.
func (h *Handler) SearchUsers(c *gin.Context) {
	term := c.Query("query")
	limit, err := h.parseLimit(c, h.limits.DefaultSearchLimit)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	found, err := h.userService.SearchUsers(c.Request.Context(), term, limit)
	if err != nil {
		h.serviceError(c, err, "Failed to search users")
		return
	}

	h.success(c, http.StatusOK, found)
}

// UpsertUser creates or refreshes a user.
// PUT /api/v1/users.
func (h *Handler) UpsertUser(c *gin.Context) {
	var req upsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	user, err := h.userService.Upsert(c.Request.Context(), &models.User{
		BanchoID:  req.BanchoID,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.serviceError(c, err, "Failed to save user")
		return
	}

	h.success(c, http.StatusOK, user)
}

// DeleteUser removes a user and their games.
// DELETE /api/v1/users/:id.
func (h *Handler) DeleteUser(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.userService.Delete(c.Request.Context(), userID)
	if err != nil {
		h.serviceError(c, err, "Failed to delete user")
		return
	}
	if !deleted {
		h.errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	h.success(c, http.StatusOK, gin.H{"bancho_id": userID, "deleted": true})
}

// GetProfile returns a user with achievements and ranks.
// GET /api/v1/users/:id/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.leaderboardService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.serviceError(c, err, "Failed to retrieve profile")
		return
	}
	if profile == nil {
		h.errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	h.success(c, http.StatusOK, profile)
}

// GetAchievements returns a user's per mode and variant rollups.
// GET /api/v1/users/:id/achievements.
func (h *Handler) GetAchievements(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.gameService.Achievements(c.Request.Context(), userID)
	if err != nil {
		h.serviceError(c, err, "Failed to retrieve achievements")
		return
	}

	h.success(c, http.StatusOK, rows)
}

// GetGames returns a user's recent games.
// GET /api/v1/users/:id/games?mode=audio&variant=classic&limit=10.
func (h *Handler) GetGames(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.parseLimit(c, h.limits.DefaultGamesLimit)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var filter games.HistoryFilter
	if mode := c.Query("mode"); mode != "" {
		if filter.GameMode, err = validation.ParseGameMode(mode); err != nil {
			h.errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if variant := c.Query("variant"); variant != "" {
		if filter.Variant, err = validation.ParseVariant(variant); err != nil {
			h.errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	history, err := h.gameService.History(c.Request.Context(), userID, filter, limit)
	if err != nil {
		h.serviceError(c, err, "Failed to retrieve games")
		return
	}

	h.success(c, http.StatusOK, history)
}

// RecordGame appends a finished game.
// POST /api/v1/games.
func (h *Handler) RecordGame(c *gin.Context) {
	var req recordGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	mode, err := validation.ParseGameMode(req.GameMode)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	variant, err := validation.ParseVariant(req.Variant)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result := models.GameResult{
		UserID:   req.UserID,
		GameMode: mode,
		Variant:  variant,
		Points:   req.Points,
		Streak:   req.Streak,
	}
	if req.EndedAt != nil {
		result.EndedAt = req.EndedAt.UTC()
	}

	saved, err := h.gameService.RecordGame(c.Request.Context(), result)
	if err != nil {
		h.serviceError(c, err, "Failed to record game")
		return
	}

	h.success(c, http.StatusCreated, saved)
}

// GetLeaderboard returns the top players of a mode and variant.
// GET /api/v1/leaderboard/:mode/:variant?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	mode, err := validation.ParseGameMode(c.Param("mode"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	variant, err := validation.ParseVariant(c.Param("variant"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.parseLimit(c, h.limits.DefaultLimit)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	players, err := h.leaderboardService.TopPlayers(c.Request.Context(), mode, variant, limit)
	if err != nil {
		h.serviceError(c, err, "Failed to retrieve leaderboard")
		return
	}

	h.success(c, http.StatusOK, players)
}

// Health reports the state of every dependency.
// GET /health.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.log.Warn().Err(err).Str("component", check.Name).Msg("Health check failed")
			components[check.Name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		components[check.Name] = "healthy"
	}

	c.JSON(status, gin.H{
		"success":    status == http.StatusOK,
		"data":       components,
		"checked_at": time.Now().UTC(),
	})
}

// Request bodies

type upsertUserRequest struct {
	BanchoID  int    `json:"bancho_id" binding:"required"`
	Username  string `json:"username" binding:"required"`
	AvatarURL string `json:"avatar_url"`
}

type recordGameRequest struct {
	UserID   int        `json:"user_id" binding:"required"`
	GameMode string     `json:"game_mode" binding:"required"`
	Variant  string     `json:"variant" binding:"required"`
	Points   int        `json:"points"`
	Streak   int        `json:"streak"`
	EndedAt  *time.Time `json:"ended_at"`
}

// Helper functions

// parseUserID extracts and validates the user ID from the URL parameter.
func (h *Handler) parseUserID(c *gin.Context) (int, error) {
	idStr := c.Param("id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user ID: %s", idStr)
	}
	return id, nil
}

// parseLimit extracts the limit query parameter. Range checks happen in the services,
// which reject rather than clamp.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}
	return limit, nil
}

// serviceError maps a service error onto a status code. Internal causes are logged, not returned.
func (h *Handler) serviceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, games.ErrUserNotFound):
		h.errorResponse(c, http.StatusNotFound, "User not found")
	default:
		h.log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Msg(message)
		h.errorResponse(c, http.StatusInternalServerError, message)
	}
}

// success sends a standardized success response.
func (h *Handler) success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}
