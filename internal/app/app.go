// Package app assembles the pipeline engine and the render pipeline from
// configuration. The cmd binaries share it so that the API, the MCP server
// and the local CLI run identical stage graphs.
package app

import (
	"context"
	"log/slog"

	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/deck"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/narration"
	"github.com/maraichr/slidepilot/internal/pipeline"
	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/internal/source"
)

// NewLoader routes document locations to local, object store, S3 and HTTP
// fetchers. objects and cache may be nil.
func NewLoader(ctx context.Context, cfg *config.Config, objects source.ObjectGetter, cache source.Cache, logger *slog.Logger) *source.Loader {
	router := &source.Router{
		Local: source.LocalFetcher{},
		HTTP:  source.NewHTTPFetcher(cfg.Search.Timeout),
	}
	if objects != nil {
		router.Object = source.ObjectFetcher{Store: objects}
	}
	if s3f, err := source.NewS3Fetcher(ctx, cfg.S3); err != nil {
		logger.Warn("s3 fetcher unavailable", slog.String("error", err.Error()))
	} else {
		router.S3 = s3f
	}
	return source.NewLoader(router, source.NewExtractor(cfg.Render.TempDir), cache, logger)
}

// NewSearcher returns the Tavily client, or nil without an API key.
func NewSearcher(cfg *config.Config) source.Searcher {
	if cfg.Search.APIKey == "" {
		return nil
	}
	return source.NewTavilyClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.MaxResults, cfg.Search.Timeout)
}

func NewNarrator(cfg *config.Config, c llm.Completer, logger *slog.Logger) *narration.Narrator {
	return narration.NewNarrator(c, cfg.Pipeline.Language, cfg.Pipeline.MaxConcurrency, cfg.LLM.CallTimeout, logger)
}

// NewRenderPipeline builds narrate, synthesize, image and encode.
func NewRenderPipeline(cfg *config.Config, c llm.Completer, logger *slog.Logger) *render.Pipeline {
	tts := narration.NewTTSClient(cfg.TTS.APIKey, cfg.TTS.BaseURL, cfg.TTS.Model, cfg.TTS.Voice, cfg.TTS.Speed, cfg.TTS.Timeout)
	return render.NewPipeline(
		NewNarrator(cfg, c, logger),
		narration.NewSynthesizer(tts, cfg.Pipeline.MaxConcurrency, cfg.TTS.Timeout),
		render.NewChromeImager(cfg.Render.ChromePath, 0),
		render.NewFFmpegEncoder(cfg.Render.FFmpegPath, cfg.Render.FPS, logger),
		logger,
	)
}

// Stores are the persistence collaborators of an engine.
type Stores struct {
	Decks pipeline.DeckStore
	Blobs pipeline.BlobStore
	// Jobs enables enqueue_render when non-nil.
	Jobs pipeline.JobCreator
}

// NewEngine wires every stage. The narrate stage is always available and
// runs only when a request asks for it.
func NewEngine(cfg *config.Config, c llm.Completer, loader pipeline.DocumentLoader, st Stores, logger *slog.Logger) (*pipeline.Engine, error) {
	return pipeline.Build(pipeline.Deps{
		LLM:      c,
		Loader:   loader,
		Searcher: NewSearcher(cfg),
		Decks:    st.Decks,
		Blobs:    st.Blobs,
		Narrator: NewNarrator(cfg, c, logger),
		Jobs:     st.Jobs,
		Handout:  deck.HandoutOptions{FontPath: cfg.Pipeline.HandoutFont},
	}, cfg.Pipeline, logger)
}
