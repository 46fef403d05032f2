package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maraichr/slidepilot/internal/chunk"
	"github.com/maraichr/slidepilot/internal/source"
)

// DocumentLoader fetches and extracts document text.
type DocumentLoader interface {
	Load(ctx context.Context, src source.Source) (source.Document, error)
}

// Collect resolves the input into source material: document chunks or
// search snippets.
type Collect struct {
	loader    DocumentLoader
	searcher  source.Searcher
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// NewCollect creates the collect stage. searcher may be nil, in which case a
// topic is used on its own.
func NewCollect(loader DocumentLoader, searcher source.Searcher, chunkSize, overlap int, logger *slog.Logger) *Collect {
	return &Collect{loader: loader, searcher: searcher, chunkSize: chunkSize, overlap: overlap, logger: logger}
}

func (s *Collect) Name() string { return StageCollect }

func (s *Collect) Run(ctx context.Context, rc *RunContext) (Update, error) {
	src := rc.Source
	if src.Kind == "" {
		src = source.Detect(rc.Input)
	}

	switch src.Kind {
	case source.KindVideoRef:
		return Update{}, source.ErrVideoNotSupported

	case source.KindDocument:
		if s.loader == nil {
			return Update{}, fmt.Errorf("no document loader configured")
		}
		doc, err := s.loader.Load(ctx, src)
		if err != nil {
			return Update{}, err
		}
		if strings.TrimSpace(doc.Text) == "" {
			return Update{}, ErrEmptySource
		}
		chunks := chunk.Split(doc.Text, s.chunkSize, s.overlap)
		return Update{
			Source:    &src,
			Document:  &doc.Text,
			Chunks:    chunks,
			TitleHint: ptr(src.Stem()),
			Log: []string{fmt.Sprintf("[collect] %s document: %d chars, %d chunks, cached=%v",
				doc.Format, len([]rune(doc.Text)), len(chunks), doc.Cached)},
		}, nil

	default:
		topic := strings.TrimSpace(src.Ref)
		if topic == "" {
			return Update{}, ErrEmptySource
		}
		snippets := []source.Snippet{}
		if s.searcher != nil {
			found, err := s.searcher.Search(ctx, topic)
			if err != nil {
				s.logger.Warn("search failed, using topic alone",
					slog.String("run_id", rc.RunID.String()),
					slog.String("error", err.Error()))
			} else {
				snippets = found
			}
		}
		return Update{
			Source:    &src,
			Snippets:  snippets,
			TitleHint: &topic,
			Log:       []string{fmt.Sprintf("[collect] topic with %d search results", len(snippets))},
		}, nil
	}
}
