package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/maraichr/slidepilot/internal/auth"
	apihandler "github.com/maraichr/slidepilot/internal/api/handler"
	apimw "github.com/maraichr/slidepilot/internal/api/middleware"
)

// RouterDeps holds the collaborators of the HTTP API. Jobs and JobReader
// may be nil when rendering is not configured.
type RouterDeps struct {
	Runner    apihandler.Runner
	Decks     apihandler.DeckReader
	Feedback  apihandler.FeedbackStore
	Blobs     apihandler.BlobStore
	Jobs      apihandler.JobCreator
	JobReader apihandler.JobReader
	DB        apihandler.Pinger
	// Auth authenticates /api/v1. Nil means dev mode.
	Auth func(http.Handler) http.Handler
}

func NewRouter(logger *slog.Logger, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(apimw.CORS)
	r.Use(chimw.Recoverer)

	health := apihandler.NewHealthHandler(deps.DB)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authn := deps.Auth
	if authn == nil {
		authn = auth.DevModeMiddleware(logger)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn)

		decks := apihandler.NewDeckHandler(logger, deps.Runner, deps.Decks)
		feedback := apihandler.NewFeedbackHandler(logger, deps.Decks, deps.Feedback)
		r.Route("/decks", func(r chi.Router) {
			r.With(auth.RequireScope(auth.ScopeRead)).Get("/", decks.List)
			r.With(auth.RequireScope(auth.ScopeWrite)).Post("/", decks.Create)
			r.Route("/{deckID}", func(r chi.Router) {
				r.Use(auth.RequireScope(auth.ScopeRead, auth.ScopeWrite))
				r.Get("/", decks.Get)
				r.Get("/markdown", decks.Markdown)
				r.Get("/feedback", feedback.List)
				r.Post("/feedback", feedback.Create)
			})
		})

		if deps.Blobs != nil {
			uploads := apihandler.NewUploadHandler(logger, deps.Blobs)
			r.Route("/uploads", func(r chi.Router) {
				r.Use(auth.RequireScope(auth.ScopeWrite))
				r.Post("/", uploads.Upload)
				r.Delete("/{name}", uploads.Delete)
			})
		}

		jobs := apihandler.NewRenderJobHandler(logger, deps.Decks, deps.Jobs, deps.JobReader)
		r.Route("/render-jobs", func(r chi.Router) {
			r.With(auth.RequireScope(auth.ScopeRender)).Post("/", jobs.Create)
			r.With(auth.RequireScope(auth.ScopeRead, auth.ScopeRender)).Get("/{jobID}", jobs.Get)
		})
	})

	return r
}
