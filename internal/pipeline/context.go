package pipeline

import (
	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/chunk"
	"github.com/maraichr/slidepilot/internal/quality"
	"github.com/maraichr/slidepilot/internal/source"
	"github.com/maraichr/slidepilot/pkg/models"
)

// RunContext carries state through the stages of one run. Only the engine
// mutates it, through Apply.
type RunContext struct {
	RunID uuid.UUID
	Owner string
	Input string

	// Set by collect
	Source    source.Source
	Document  string
	Chunks    []chunk.Chunk
	Snippets  []source.Snippet
	TitleHint string

	// Regenerated on every attempt
	KeyPoints []string
	Outline   []string
	Title     string
	Draft     string

	Evaluation *quality.Evaluation
	Attempts   int

	// Set by persist and the optional stages
	Deck        *models.Deck
	Narrations  []string
	RenderJobID *uuid.UUID

	Log     []string
	Err     error
	Version int
}

// NewRunContext starts a run for input on behalf of owner.
func NewRunContext(owner, input string) *RunContext {
	return &RunContext{
		RunID: uuid.New(),
		Owner: owner,
		Input: input,
	}
}

// Update is what a stage returns. Nil pointers and nil slices leave the
// field unchanged; a non-nil slice replaces it, even when empty. Log lines
// are appended.
type Update struct {
	Source    *source.Source
	Document  *string
	Chunks    []chunk.Chunk
	Snippets  []source.Snippet
	TitleHint *string

	KeyPoints []string
	Outline   []string
	Title     *string
	Draft     *string

	Evaluation *quality.Evaluation
	Attempts   *int

	Deck        *models.Deck
	Narrations  []string
	RenderJobID *uuid.UUID

	Log []string
}

// Apply merges u into rc and bumps Version.
func (rc *RunContext) Apply(u Update) {
	if u.Source != nil {
		rc.Source = *u.Source
	}
	if u.Document != nil {
		rc.Document = *u.Document
	}
	if u.Chunks != nil {
		rc.Chunks = u.Chunks
	}
	if u.Snippets != nil {
		rc.Snippets = u.Snippets
	}
	if u.TitleHint != nil {
		rc.TitleHint = *u.TitleHint
	}
	if u.KeyPoints != nil {
		rc.KeyPoints = u.KeyPoints
	}
	if u.Outline != nil {
		rc.Outline = u.Outline
	}
	if u.Title != nil {
		rc.Title = *u.Title
	}
	if u.Draft != nil {
		rc.Draft = *u.Draft
	}
	if u.Evaluation != nil {
		ev := *u.Evaluation
		rc.Evaluation = &ev
	}
	if u.Attempts != nil {
		rc.Attempts = *u.Attempts
	}
	if u.Deck != nil {
		rc.Deck = u.Deck
	}
	if u.Narrations != nil {
		rc.Narrations = u.Narrations
	}
	if u.RenderJobID != nil {
		id := *u.RenderJobID
		rc.RenderJobID = &id
	}
	rc.Log = append(rc.Log, u.Log...)
	rc.Version++
}

// retryFeedback is the critique of the previous failing attempt, or "".
func (rc *RunContext) retryFeedback() string {
	ev := rc.Evaluation
	if ev == nil || ev.Pass {
		return ""
	}
	fb := ev.Feedback
	for _, s := range ev.Suggestions {
		fb += "\n- " + s
	}
	return fb
}

func ptr[T any](v T) *T { return &v }
