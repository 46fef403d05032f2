package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maraichr/slidepilot/internal/app"
	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/internal/store"
	minioclient "github.com/maraichr/slidepilot/internal/store/minio"
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
	logger.Info("connected to database")

	// Valkey
	vkClient, err := vk.NewClient(ctx, cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	// MinIO
	mc, err := minioclient.NewClient(cfg.MinIO)
	if err != nil {
		logger.Error("failed to connect to minio", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to minio")

	completer, err := llm.NewCompleter(ctx, cfg)
	if err != nil {
		logger.Error("failed to init LLM", slog.String("error", err.Error()))
		os.Exit(1)
	}

	renderer := app.NewRenderPipeline(cfg, completer, logger)
	worker := render.NewWorker(s, renderer, mc, s, cfg.Render.TempDir, cfg.Render.JobTimeout, logger)

	consumer := render.NewConsumer(vkClient, cfg.Render.ConsumerID, logger)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Error("failed to ensure consumer group", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("starting render worker, consuming from stream",
		slog.String("stream", render.StreamName),
		slog.String("consumer", cfg.Render.ConsumerID))
	if err := consumer.Consume(ctx, worker); err != nil && ctx.Err() == nil {
		logger.Error("consumer error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// Consume returns after the in-flight job finishes
	logger.Info("worker stopped")
}
