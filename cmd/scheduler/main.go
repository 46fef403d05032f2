package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/internal/store"
	vk "github.com/maraichr/slidepilot/internal/store/valkey"
)

func main() {
	_ = godotenv.Load(".env")

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, cfg.Database, false)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer s.Close()

	vkClient, err := vk.NewClient(ctx, cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()

	manager := render.NewManager(s, render.NewValkeyTrigger(vkClient), logger)
	sweeper := render.NewSweeper(s, manager, cfg.Render.StaleAfter, cfg.Render.LostAfter, logger)

	if cfg.Render.LostAfter <= cfg.Render.JobTimeout {
		logger.Warn("lost-job cutoff does not exceed job timeout, running jobs may be failed",
			slog.Duration("lost_after", cfg.Render.LostAfter),
			slog.Duration("job_timeout", cfg.Render.JobTimeout))
	}
	logger.Info("starting scheduler",
		slog.String("schedule", cfg.Render.SweepSchedule),
		slog.Duration("stale_after", cfg.Render.StaleAfter),
		slog.Duration("lost_after", cfg.Render.LostAfter))
	if err := sweeper.Start(cfg.Render.SweepSchedule); err != nil {
		logger.Error("failed to start sweeper", slog.String("error", err.Error()))
		os.Exit(1)
	}

	<-ctx.Done()
	sweeper.Stop()
	logger.Info("scheduler stopped")
}
