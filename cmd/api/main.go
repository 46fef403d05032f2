package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/slidepilot/internal/api"
	"github.com/maraichr/slidepilot/internal/app"
	"github.com/maraichr/slidepilot/internal/auth"
	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/source"
	"github.com/maraichr/slidepilot/internal/store"
	minioclient "github.com/maraichr/slidepilot/internal/store/minio"
	vk "github.com/maraichr/slidepilot/internal/store/valkey"
)

func main() {
	_ = godotenv.Load(".env") // ignore error if .env missing

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

	s, err := store.Open(ctx, cfg.Database, true)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer s.Close()
	logger.Info("connected to database")

	// MinIO holds uploads, decks and handouts
	mc, err := minioclient.NewClient(cfg.MinIO)
	if err != nil {
		logger.Error("failed to connect to minio", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mc.EnsureBucket(ctx); err != nil {
		logger.Warn("minio ensure bucket failed", slog.String("error", err.Error()))
	}
	logger.Info("connected to minio", slog.String("bucket", mc.Bucket()))

	completer, err := llm.NewCompleter(ctx, cfg)
	if err != nil {
		logger.Error("failed to init LLM", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("LLM configured", slog.String("model", completer.Model()))

	deps := api.RouterDeps{
		Decks:     s,
		Feedback:  s,
		Blobs:     mc,
		JobReader: s,
		DB:        s,
	}
	stores := app.Stores{Decks: s, Blobs: mc}

	// Valkey (optional: the extraction cache and the render stream). Without
	// it render jobs run in-process.
	var (
		cache    source.Cache
		vkClient valkey.Client
	)
	if c, err := vk.NewClient(ctx, cfg.Valkey); err != nil {
		logger.Warn("valkey connection failed, rendering in-process", slog.String("error", err.Error()))
	} else {
		vkClient = c
		defer vkClient.Close()
		cache = source.NewValkeyCache(vkClient, cfg.Valkey.CacheTTL)
		logger.Info("connected to valkey")
	}

	renderJobs, err := app.NewRenderJobs(ctx, cfg.Render, vkClient, app.RenderDeps{
		Store:    s,
		Renderer: app.NewRenderPipeline(cfg, completer, logger),
		Blobs:    mc,
		Decks:    s,
	}, logger)
	if err != nil {
		logger.Error("failed to init render jobs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	deps.Jobs = renderJobs.Manager
	stores.Jobs = renderJobs.Manager
	logger.Info("render jobs configured", slog.String("mode", renderJobs.Mode))

	loader := app.NewLoader(ctx, cfg, mc, cache, logger)
	engine, err := app.NewEngine(cfg, completer, loader, stores, logger)
	if err != nil {
		logger.Error("failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}
	deps.Runner = engine

	// Auth (optional: requires AUTH_ENABLED=true + valid issuer URL)
	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURL == "" {
			logger.Error("AUTH_ENABLED=true but AUTH_ISSUER_URL is empty")
			os.Exit(1)
		}
		verifier, err := auth.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.PublicIssuer, cfg.Auth.Audience)
		if err != nil {
			logger.Error("failed to init OIDC verifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		deps.Auth = auth.RequireAuth(verifier, logger)
		logger.Info("OIDC auth enabled", slog.String("issuer", cfg.Auth.IssuerURL))
	}

	router := api.NewRouter(logger, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	renderJobs.Close()

	logger.Info("server stopped")
}
