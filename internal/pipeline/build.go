package pipeline

import (
	"log/slog"

	"github.com/maraichr/slidepilot/internal/chunk"
	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/deck"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/internal/quality"
	"github.com/maraichr/slidepilot/internal/source"
)

// Deps are the collaborators of a full engine. Searcher, Narrator and Jobs
// are optional; without Narrator or Jobs the matching stage is left out of
// the graph.
type Deps struct {
	LLM      llm.Completer
	Loader   DocumentLoader
	Searcher source.Searcher
	Decks    DeckStore
	Blobs    BlobStore
	Narrator Narrator
	Jobs     JobCreator
	Handout  deck.HandoutOptions
}

// Build wires every stage with the pipeline settings from cfg.
func Build(d Deps, cfg config.PipelineConfig, logger *slog.Logger) (*Engine, error) {
	mr := chunk.Config{
		MaxChunks:      cfg.MaxChunks,
		PointsPerChunk: cfg.PointsPerChunk,
		Target:         cfg.KeyPointTarget,
		MaxConcurrency: cfg.MaxConcurrency,
		Language:       cfg.Language,
	}

	stages := []Stage{
		NewCollect(d.Loader, d.Searcher, cfg.ChunkSize, cfg.ChunkOverlap, logger),
		NewExtractKeyPoints(d.LLM, mr, logger),
		NewBuildOutline(d.LLM, cfg.Language),
		NewDraft(d.LLM, cfg.Language, cfg.Theme, logger),
		NewEvaluate(d.LLM, cfg.Threshold, logger),
		NewPersist(d.LLM, d.Decks, d.Blobs, d.Handout, logger),
	}
	if d.Narrator != nil {
		stages = append(stages, NewNarrate(d.Narrator))
	}
	if d.Jobs != nil {
		stages = append(stages, NewEnqueueRender(d.Jobs))
	}

	return NewEngine(stages, quality.NewGate(cfg.Threshold, cfg.MaxAttempts), logger)
}
