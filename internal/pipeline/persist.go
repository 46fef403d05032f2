package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/deck"
	"github.com/maraichr/slidepilot/internal/llm"
	"github.com/maraichr/slidepilot/pkg/models"
)

// ErrEmptyDraft is the persist failure for a run that produced no markdown.
var ErrEmptyDraft = errors.New("draft is empty")

// DeckStore saves deck rows.
type DeckStore interface {
	CreateDeck(ctx context.Context, d *models.Deck) error
}

// BlobStore saves deck artifacts.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// MarkdownKey is the object key of a deck's markdown.
func MarkdownKey(owner, slug string) string {
	return fmt.Sprintf("decks/%s/%s.md", owner, slug)
}

// HandoutKey is the object key of a deck's handout PDF.
func HandoutKey(owner, slug string) string {
	return fmt.Sprintf("decks/%s/%s.pdf", owner, slug)
}

// Persist writes the markdown and handout to blob storage and records the deck.
// Only the markdown upload is fatal.
type Persist struct {
	llm     llm.Completer
	decks   DeckStore
	blobs   BlobStore
	handout deck.HandoutOptions
	logger  *slog.Logger
}

func NewPersist(c llm.Completer, decks DeckStore, blobs BlobStore, handout deck.HandoutOptions, logger *slog.Logger) *Persist {
	return &Persist{llm: c, decks: decks, blobs: blobs, handout: handout, logger: logger}
}

func (s *Persist) Name() string { return StagePersist }

func (s *Persist) Run(ctx context.Context, rc *RunContext) (Update, error) {
	if strings.TrimSpace(rc.Draft) == "" {
		return Update{}, ErrEmptyDraft
	}

	slug := s.slug(ctx, rc)
	mdKey := MarkdownKey(rc.Owner, slug)
	if err := s.blobs.Put(ctx, mdKey, strings.NewReader(rc.Draft), int64(len(rc.Draft)), "text/markdown; charset=utf-8"); err != nil {
		return Update{}, fmt.Errorf("store markdown: %w", err)
	}

	var handoutKey *string
	if pdf, err := deck.Handout(rc.Draft, s.handout); err != nil {
		s.logger.Warn("handout render failed",
			slog.String("run_id", rc.RunID.String()),
			slog.String("error", err.Error()))
	} else {
		key := HandoutKey(rc.Owner, slug)
		if err := s.blobs.Put(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
			s.logger.Warn("handout upload failed",
				slog.String("run_id", rc.RunID.String()),
				slog.String("error", err.Error()))
		} else {
			handoutKey = &key
		}
	}

	now := time.Now().UTC()
	d := &models.Deck{
		ID:          uuid.New(),
		OwnerID:     rc.Owner,
		Title:       rc.Title,
		Slug:        slug,
		SourceKind:  rc.Source.Kind,
		SourceRef:   rc.Source.Ref,
		Markdown:    rc.Draft,
		MarkdownKey: mdKey,
		HandoutKey:  handoutKey,
		Attempts:    rc.Attempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rc.Evaluation != nil {
		d.Score = rc.Evaluation.Score
		d.Passed = rc.Evaluation.Pass
	}
	// The markdown is already stored; a missing deck row leaves the run
	// successful with no Deck.
	if err := s.decks.CreateDeck(ctx, d); err != nil {
		s.logger.Warn("deck record not saved",
			slog.String("run_id", rc.RunID.String()),
			slog.String("markdown_key", mdKey),
			slog.String("error", err.Error()))
		return Update{
			Log: []string{fmt.Sprintf("[persist] deck record not saved, markdown at %s: %v", mdKey, err)},
		}, nil
	}

	return Update{
		Deck: d,
		Log:  []string{fmt.Sprintf("[persist] deck %s saved as %s", d.ID, mdKey)},
	}, nil
}

// slug asks for an English file name and falls back to the title.
func (s *Persist) slug(ctx context.Context, rc *RunContext) string {
	raw, err := llm.Ask(ctx, s.llm, slugSystem(), slugPrompt(rc.Title))
	if err != nil {
		s.logger.Warn("slug generation failed, using title",
			slog.String("run_id", rc.RunID.String()),
			slog.String("error", err.Error()))
		return deck.Slugify(rc.Title)
	}
	if line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(raw), "\n", 2)[0]); line != "" {
		if slug := deck.Slugify(line); slug != "slide" {
			return slug
		}
	}
	return deck.Slugify(rc.Title)
}
