// Package api wires the gin engine: middleware chain, public routes and operational endpoints.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osu-guessr/guessr-stats/internal/api/handler"
	"github.com/osu-guessr/guessr-stats/internal/api/middleware"
	"github.com/osu-guessr/guessr-stats/internal/config"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// NewRouter builds the HTTP engine. /health and the metrics path are open; everything
// under /api/v1 requires an API key.
func NewRouter(cfg *config.Config, h *handler.Handler, keys middleware.KeyValidator, log *logger.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(log), middleware.Recovery(log))

	router.GET("/health", h.Health)
	if cfg.Metrics.Prometheus.Enabled {
		router.GET(cfg.Metrics.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1", middleware.APIKey(keys, log))
	{
		api.GET("/users/search", h.SearchUsers)
		api.PUT("/users", h.UpsertUser)
		api.DELETE("/users/:id", h.DeleteUser)
		api.GET("/users/:id/profile", h.GetProfile)
		api.GET("/users/:id/achievements", h.GetAchievements)
		api.GET("/users/:id/games", h.GetGames)
		api.GET("/leaderboard/:mode/:variant", h.GetLeaderboard)
		api.POST("/games", h.RecordGame)
	}

	return router
}
