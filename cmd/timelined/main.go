package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/api"
	"github.com/heimdex/heimdex-timeline/internal/config"
	"github.com/heimdex/heimdex-timeline/internal/db"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/project"
	"github.com/heimdex/heimdex-timeline/internal/render"
	"github.com/heimdex/heimdex-timeline/internal/session"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.AssetsDir(), cfg.ExportsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting timeline service", "version", api.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	var client render.Client
	if cfg.RenderURL() != "" {
		client = render.NewHTTPClient(cfg.RenderURL(), cfg.RenderToken(), logger)
		logger.Info("render service enabled", "base_url", cfg.RenderURL())
	} else {
		client = render.NewStubClient(cfg.AssetsDir(), logger)
		logger.Info("no render service configured, using local stub")
	}

	projects := project.NewService(repo, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authToken, err := projects.EnsureAuthToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	if !cfg.Headless() {
		fmt.Println()
		fmt.Println("╔═══════════════════════════════════════════════════════════╗")
		fmt.Printf("║                 HEIMDEX TIMELINE v%-23s ║\n", api.Version)
		fmt.Println("╠═══════════════════════════════════════════════════════════╣")
		fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
		fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
		fmt.Println("╚═══════════════════════════════════════════════════════════╝")
		fmt.Println()
	} else {
		logger.Info("running headless", "token", logging.SanitizeToken(authToken))
	}

	runner := project.NewRunner(repo, client, logger, cfg.RenderPollInterval(), cfg.RenderConcurrency())
	go runner.Start(ctx)

	sessions := session.NewManager(ctx, timeline.Options{
		HistoryCapacity: cfg.HistoryCapacity(),
		MinZoom:         cfg.MinZoom(),
		MaxZoom:         cfg.MaxZoom(),
		DuplicatePolicy: timeline.ParseDuplicatePolicy(cfg.DuplicatePolicy()),
		Duration:        cfg.TimelineDuration(),
		Logger:          logger,
	}, cfg.PlaybackTick(), logger)
	defer sessions.CloseAll()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Projects:   projects,
		Sessions:   sessions,
		Runner:     runner,
		ExportsDir: cfg.ExportsDir(),
		Logger:     logger,
		StartTime:  startTime,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	for _, id := range sessions.IDs() {
		if s, ok := sessions.Get(id); ok && s.Dirty() {
			logger.Warn("closing project with unsaved changes", "project_id", id)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
