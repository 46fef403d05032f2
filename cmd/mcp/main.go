package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/valkey-io/valkey-go"
	sdkauth "github.com/modelcontextprotocol/go-sdk/auth"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/modelcontextprotocol/go-sdk/oauthex"

	"github.com/maraichr/slidepilot/internal/app"
	"github.com/maraichr/slidepilot/internal/auth"
	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/mcp/tools"
	"github.com/maraichr/slidepilot/internal/source"
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

	s, err := store.Open(ctx, cfg.Database, true)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer s.Close()
	logger.Info("connected to database")

	mc, err := minioclient.NewClient(cfg.MinIO)
	if err != nil {
		logger.Error("failed to connect to minio", slog.String("error", err.Error()))
		os.Exit(1)
	}

	completer, err := llm.NewCompleter(ctx, cfg)
	if err != nil {
		logger.Error("failed to init LLM", slog.String("error", err.Error()))
		os.Exit(1)
	}

	stores := app.Stores{Decks: s, Blobs: mc}
	var (
		cache    source.Cache
		vkClient valkey.Client
	)
	// Valkey (optional: extraction cache and render stream)
	if c, err := vk.NewClient(ctx, cfg.Valkey); err != nil {
		logger.Warn("valkey unavailable, rendering in-process", slog.String("error", err.Error()))
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
	stores.Jobs = renderJobs.Manager

	engine, err := app.NewEngine(cfg, completer, app.NewLoader(ctx, cfg, mc, cache, logger), stores, logger)
	if err != nil {
		logger.Error("failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sdkServer := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "slidepilot", Version: "1.0.0"}, nil)
	tools.Register(sdkServer,
		tools.NewGenerateDeckHandler(engine, logger),
		tools.NewListDecksHandler(s, logger),
		tools.NewCreateRenderJobHandler(s, renderJobs.Manager, logger),
		tools.NewGetRenderJobHandler(s, logger))

	// Stateless: each request gets a pre-initialized temporary session.
	sdkHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return sdkServer },
		&sdkmcp.StreamableHTTPOptions{Stateless: true},
	)

	mux := http.NewServeMux()

	var mcpHandler http.Handler
	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURL == "" {
			logger.Error("AUTH_ENABLED=true but AUTH_ISSUER_URL is empty")
			os.Exit(1)
		}
		verifier, err := auth.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.PublicIssuer, cfg.Auth.Audience)
		if err != nil {
			logger.Error("failed to init OIDC verifier for MCP", slog.String("error", err.Error()))
			os.Exit(1)
		}

		resourceMetadataURL := ""
		if cfg.MCP.BaseURL != "" {
			resourceMetadataURL = cfg.MCP.BaseURL + "/.well-known/oauth-protected-resource"

			authServerURL := cfg.Auth.PublicIssuer
			if authServerURL == "" {
				authServerURL = cfg.Auth.IssuerURL
			}

			// RFC 9728 Protected Resource Metadata
			prm := &oauthex.ProtectedResourceMetadata{
				Resource:               cfg.MCP.BaseURL,
				AuthorizationServers:   []string{authServerURL},
				ScopesSupported:        []string{"openid", auth.ScopeRead, auth.ScopeWrite, auth.ScopeRender},
				BearerMethodsSupported: []string{"header"},
				ResourceName:           "SlidePilot MCP Server",
			}
			mux.Handle("/.well-known/oauth-protected-resource", sdkauth.ProtectedResourceMetadataHandler(prm))
			logger.Info("RFC 9728 metadata endpoint enabled", slog.String("url", resourceMetadataURL))
		}

		mcpHandler = sdkauth.RequireBearerToken(auth.NewMCPTokenVerifier(verifier), &sdkauth.RequireBearerTokenOptions{
			ResourceMetadataURL: resourceMetadataURL,
			Scopes:              []string{auth.ScopeRead},
		})(sdkHandler)
		logger.Info("MCP OIDC auth enabled", slog.String("issuer", cfg.Auth.IssuerURL))
	} else {
		mcpHandler = auth.DevModeMiddleware(logger)(sdkHandler)
	}

	mux.Handle("/mcp", mcpHandler)

	// Generation runs the whole pipeline inside one tool call.
	httpServer := &http.Server{Addr: cfg.MCP.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("MCP server listening", slog.String("addr", cfg.MCP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP HTTP server error", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	logger.Info("MCP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("MCP HTTP shutdown", slog.String("error", err.Error()))
	}
	renderJobs.Close()
	logger.Info("MCP server stopped")
}
