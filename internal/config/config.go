// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/osu-guessr/guessr-stats/internal/validation"
)

// Config represents the application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Mattermost  MattermostConfig  `mapstructure:"mattermost"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Environment     string `mapstructure:"environment"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// DSN returns the libpq connection string for this configuration.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig contains Redis cache connection and pool settings.
// An empty host disables the cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig controls what is cached and for how long.
type CacheConfig struct {
	ProfileTTL int `mapstructure:"profile_ttl"` // seconds, 0 disables profile caching
}

// ProfileTTLDuration returns the profile TTL as a duration.
func (c *CacheConfig) ProfileTTLDuration() time.Duration {
	return time.Duration(c.ProfileTTL) * time.Second
}

// MattermostConfig contains Mattermost webhook notification settings.
type MattermostConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// SchedulerConfig contains background job settings.
type SchedulerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	DigestTime     string `mapstructure:"digest_time"`     // HH:MM, empty disables the digest
	VerifySchedule string `mapstructure:"verify_schedule"` // cron expression, empty disables verification
	AutoRepair     bool   `mapstructure:"auto_repair"`     // rebuild achievements when verification finds drift
	Timezone       string `mapstructure:"timezone"`
	SkipWeekends   bool   `mapstructure:"skip_weekends"`
	DigestSize     int    `mapstructure:"digest_size"`
}

// MetricsConfig contains metrics exporter settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LeaderboardConfig holds request defaults for the public API.
type LeaderboardConfig struct {
	DefaultLimit       int `mapstructure:"default_limit"`
	DefaultSearchLimit int `mapstructure:"default_search_limit"`
	DefaultGamesLimit  int `mapstructure:"default_games_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.shutdown_timeout", 15)

	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 25)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)

	v.SetDefault("cache.profile_ttl", 30)

	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.digest_size", 5)

	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("leaderboard.default_limit", 10)
	v.SetDefault("leaderboard.default_search_limit", 20)
	v.SetDefault("leaderboard.default_games_limit", 10)
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/guessr/")
	}

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")
	_ = v.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.postgres.auto_migrate", "POSTGRES_AUTO_MIGRATE")

	// Redis configuration
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")
	_ = v.BindEnv("cache.profile_ttl", "CACHE_PROFILE_TTL")

	// Mattermost configuration
	_ = v.BindEnv("mattermost.webhook_url", "MATTERMOST_WEBHOOK_URL")
	_ = v.BindEnv("mattermost.channel", "MATTERMOST_CHANNEL")
	_ = v.BindEnv("mattermost.enabled", "MATTERMOST_ENABLED")

	// Scheduler configuration
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.digest_time", "SCHEDULER_DIGEST_TIME")
	_ = v.BindEnv("scheduler.verify_schedule", "SCHEDULER_VERIFY_SCHEDULE")
	_ = v.BindEnv("scheduler.auto_repair", "SCHEDULER_AUTO_REPAIR")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")
	_ = v.BindEnv("scheduler.skip_weekends", "SCHEDULER_SKIP_WEEKENDS")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when everything comes from the environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Mattermost.Enabled && c.Mattermost.WebhookURL == "" {
		return fmt.Errorf("mattermost.webhook_url is required when mattermost is enabled")
	}
	if c.Cache.ProfileTTL < 0 {
		return fmt.Errorf("cache.profile_ttl cannot be negative")
	}
	if _, err := c.Scheduler.GetLocation(); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}

	// Every size below is handed straight to a limit-checked query.
	limits := []struct {
		key   string
		value int
	}{
		{"scheduler.digest_size", c.Scheduler.DigestSize},
		{"leaderboard.default_limit", c.Leaderboard.DefaultLimit},
		{"leaderboard.default_search_limit", c.Leaderboard.DefaultSearchLimit},
		{"leaderboard.default_games_limit", c.Leaderboard.DefaultGamesLimit},
	}
	for _, l := range limits {
		if err := validation.Limit(l.value); err != nil {
			return fmt.Errorf("%s: %w", l.key, err)
		}
	}
	return nil
}

// CacheEnabled reports whether a Redis host is configured.
func (c *Config) CacheEnabled() bool {
	return c.Database.Redis.Host != ""
}

// GetLocation returns the timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
