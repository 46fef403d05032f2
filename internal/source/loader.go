package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Document is extracted document text.
type Document struct {
	Text   string `json:"-"`
	Format string `json:"format"`
	Cached bool   `json:"cached"`
}

// Loader fetches and extracts documents, consulting the cache first. Cache
// failures are logged and never fail a load.
type Loader struct {
	fetcher   Fetcher
	extractor *Extractor
	cache     Cache
	logger    *slog.Logger
}

func NewLoader(fetcher Fetcher, extractor *Extractor, cache Cache, logger *slog.Logger) *Loader {
	return &Loader{fetcher: fetcher, extractor: extractor, cache: cache, logger: logger}
}

func (l *Loader) Load(ctx context.Context, src Source) (Document, error) {
	if src.Kind != KindDocument {
		return Document{}, fmt.Errorf("load %s: not a document", src.Kind)
	}

	if l.cache != nil {
		text, ok, err := l.cache.Get(ctx, src.Ref)
		switch {
		case err != nil:
			l.logger.Warn("extraction cache read failed",
				slog.String("ref", src.Ref),
				slog.String("error", err.Error()))
		case ok:
			return Document{Text: text, Format: src.Format(), Cached: true}, nil
		}
	}

	data, err := l.fetcher.Fetch(ctx, src.Ref)
	if err != nil {
		return Document{}, err
	}

	hint := src.Format()
	if hint == "" {
		hint = "pdf"
	}
	text, err := l.extractor.Extract(data, hint)
	if err != nil {
		return Document{}, fmt.Errorf("extract %s: %w", src.Ref, err)
	}
	text = strings.TrimSpace(text)

	if l.cache != nil && text != "" {
		if err := l.cache.Set(ctx, src.Ref, text); err != nil {
			l.logger.Warn("extraction cache write failed",
				slog.String("ref", src.Ref),
				slog.String("error", err.Error()))
		}
	}
	return Document{Text: text, Format: hint, Cached: false}, nil
}
