// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the stats service.
var (
	// Game log.
	GamesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_games_recorded_total",
			Help: "Total number of game results appended to the log",
		},
		[]string{"game_mode", "variant"},
	)

	// Ranking.
	RankQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_rank_queries_total",
			Help: "Total number of rank computations",
		},
		[]string{"partition", "variant", "status"},
	)

	RankQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guessr_rank_query_duration_seconds",
			Help:    "Time taken by a single rank computation",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"partition"},
	)

	LeaderboardRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_leaderboard_requests_total",
			Help: "Total number of leaderboard builds",
		},
		[]string{"game_mode", "variant"},
	)

	ProfileAssemblyDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guessr_profile_assembly_duration_seconds",
			Help:    "Time taken to assemble a user profile",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
	)

	ProfileCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_profile_cache_total",
			Help: "Profile cache lookups by result",
		},
		[]string{"result"},
	)

	UserSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_user_searches_total",
			Help: "Total number of user searches by outcome",
		},
		[]string{"outcome"},
	)

	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guessr_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIKeyRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_api_key_rejections_total",
			Help: "Requests refused by the API key gate",
		},
		[]string{"reason"},
	)

	// Achievement rollup maintenance.
	AchievementRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_achievement_rebuilds_total",
			Help: "Total rebuilds of the achievement rollup from the game log",
		},
		[]string{"status"},
	)

	AchievementRebuildDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guessr_achievement_rebuild_duration_seconds",
			Help:    "Time taken to replay the game log into the rollup",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
		},
	)

	AchievementDriftRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guessr_achievement_drift_rows",
			Help: "Rollup rows that disagreed with the game log at the last verification",
		},
	)

	// Scheduler.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "guessr_scheduler_last_run_timestamp",
			Help: "Unix timestamp of the last run of each job",
		},
		[]string{"job"},
	)

	DigestsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guessr_digests_failed_total",
			Help: "Leaderboard digests that could not be delivered",
		},
		[]string{"reason"},
	)
)

// RecordGame records an appended game result.
func RecordGame(mode, variant string) {
	GamesRecordedTotal.WithLabelValues(mode, variant).Inc()
}

// RecordRankQuery records a rank computation and its latency.
func RecordRankQuery(partition, variant, status string, seconds float64) {
	RankQueriesTotal.WithLabelValues(partition, variant, status).Inc()
	RankQueryDurationSeconds.WithLabelValues(partition).Observe(seconds)
}

// RecordLeaderboardRequest records a leaderboard build.
func RecordLeaderboardRequest(mode, variant string) {
	LeaderboardRequestsTotal.WithLabelValues(mode, variant).Inc()
}

// ObserveProfileAssembly observes how long a profile took to build.
func ObserveProfileAssembly(seconds float64) {
	ProfileAssemblyDurationSeconds.Observe(seconds)
}

// RecordProfileCache records a cache lookup result: hit, miss or error.
func RecordProfileCache(result string) {
	ProfileCacheTotal.WithLabelValues(result).Inc()
}

// RecordUserSearch records whether a search matched anything.
func RecordUserSearch(matches int) {
	outcome := "match"
	if matches == 0 {
		outcome = "empty"
	}
	UserSearchesTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, route, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

// RecordAPIKeyRejection records a refused request.
func RecordAPIKeyRejection(reason string) {
	APIKeyRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordAchievementRebuild records a rollup rebuild.
func RecordAchievementRebuild(status string, seconds float64) {
	AchievementRebuildsTotal.WithLabelValues(status).Inc()
	AchievementRebuildDurationSeconds.Observe(seconds)
}

// SetAchievementDrift sets the number of drifted rollup rows.
func SetAchievementDrift(rows int) {
	AchievementDriftRows.Set(float64(rows))
}

// RecordSchedulerJobRun records a job execution and stamps its last run time.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// RecordDigestFailed records a digest that could not be delivered.
func RecordDigestFailed(reason string) {
	DigestsFailedTotal.WithLabelValues(reason).Inc()
}
