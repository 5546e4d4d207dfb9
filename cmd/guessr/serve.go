package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/osu-guessr/guessr-stats/internal/api"
	"github.com/osu-guessr/guessr-stats/internal/api/handler"
	"github.com/osu-guessr/guessr-stats/internal/mattermost"
	"github.com/osu-guessr/guessr-stats/internal/service/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	h := handler.NewHandler(a.users, a.leaderboard, a.games, cfg.Leaderboard, log.Component("api"), a.healthChecks()...)
	router := api.NewRouter(cfg, h, a.apiKeys, log.Component("http"))

	mattermostClient := mattermost.NewClient(&cfg.Mattermost, log.Component("mattermost"))
	sched := scheduler.NewService(cfg, a.aggregator, a.leaderboard, mattermostClient, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
