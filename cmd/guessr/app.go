package main

import (
	"fmt"

	"github.com/osu-guessr/guessr-stats/internal/api/handler"
	"github.com/osu-guessr/guessr-stats/internal/cache"
	"github.com/osu-guessr/guessr-stats/internal/repository"
	"github.com/osu-guessr/guessr-stats/internal/service/aggregator"
	"github.com/osu-guessr/guessr-stats/internal/service/apikeys"
	"github.com/osu-guessr/guessr-stats/internal/service/games"
	"github.com/osu-guessr/guessr-stats/internal/service/leaderboard"
	"github.com/osu-guessr/guessr-stats/internal/service/ranking"
	"github.com/osu-guessr/guessr-stats/internal/service/users"
)

// app holds the wired repositories and services shared by every command.
type app struct {
	db    *repository.DB
	redis *cache.RedisCache

	userRepo        *repository.UserRepository
	gameRepo        *repository.GameRepository
	achievementRepo *repository.AchievementRepository

	ranking     *ranking.Service
	leaderboard *leaderboard.Service
	users       *users.Service
	games       *games.Service
	aggregator  *aggregator.Service
	apiKeys     *apikeys.Service
}

// newApp connects to the database (and Redis when withCache is set and a host is configured)
// and builds the services.
func newApp(withCache bool) (*app, error) {
	if cfg.Database.Postgres.AutoMigrate {
		if err := repository.Migrate(&cfg.Database.Postgres, log); err != nil {
			return nil, err
		}
	}

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		gameRepo:        repository.NewGameRepository(db),
		achievementRepo: repository.NewAchievementRepository(db),
	}

	// Left as a nil interface when Redis is off so the leaderboard sees no cache at all.
	var profileCache cache.Cache
	if withCache && cfg.CacheEnabled() {
		redisCache, err := cache.NewRedisCache(&cfg.Database.Redis, log)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = redisCache
		profileCache = redisCache
	}

	a.ranking = ranking.NewService(a.achievementRepo, log.Component("ranking"))
	a.leaderboard = leaderboard.NewService(a.achievementRepo, a.userRepo, a.ranking, profileCache,
		cfg.Cache.ProfileTTLDuration(), log.Component("leaderboard"))
	a.users = users.NewService(a.userRepo, a.leaderboard, log.Component("users"))
	a.games = games.NewService(a.gameRepo, a.achievementRepo, a.userRepo, a.leaderboard, log.Component("games"))
	a.aggregator = aggregator.NewService(repository.NewRollupRepository(db), log.Component("aggregator"))
	a.apiKeys = apikeys.NewService(repository.NewAPIKeyRepository(db), log.Component("apikeys"))

	return a, nil
}

// healthChecks returns the probes exposed on /health.
func (a *app) healthChecks() []handler.HealthCheck {
	checks := []handler.HealthCheck{{Name: "database", Check: a.db.Health}}
	if a.redis != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: a.redis.Health})
	}
	return checks
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis")
		}
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}
