package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/deck"
	"github.com/maraichr/slidepilot/internal/render"
)

// Narrator writes one narration per slide.
type Narrator interface {
	Narrate(ctx context.Context, slides []string) ([]string, error)
}

// Narrate produces per-slide narration for the persisted draft.
type Narrate struct {
	narrator Narrator
}

func NewNarrate(n Narrator) *Narrate { return &Narrate{narrator: n} }

func (s *Narrate) Name() string { return StageNarrate }

func (s *Narrate) Run(ctx context.Context, rc *RunContext) (Update, error) {
	slides := deck.SplitSlides(rc.Draft)
	narrations, err := s.narrator.Narrate(ctx, slides)
	if err != nil {
		return Update{}, err
	}
	if narrations == nil {
		narrations = []string{}
	}
	return Update{
		Narrations: narrations,
		Log:        []string{fmt.Sprintf("[narrate] %d slides narrated", len(narrations))},
	}, nil
}

// JobCreator creates render jobs.
type JobCreator interface {
	CreateJob(ctx context.Context, owner string, p render.Payload) (uuid.UUID, error)
}

// EnqueueRender creates the video render job for the persisted deck.
type EnqueueRender struct {
	jobs JobCreator
}

func NewEnqueueRender(jobs JobCreator) *EnqueueRender { return &EnqueueRender{jobs: jobs} }

func (s *EnqueueRender) Name() string { return StageEnqueueRender }

func (s *EnqueueRender) Run(ctx context.Context, rc *RunContext) (Update, error) {
	if rc.Deck == nil {
		return Update{Log: []string{"[enqueue_render] skipped: no deck record"}}, nil
	}
	id, err := s.jobs.CreateJob(ctx, rc.Owner, render.Payload{
		DeckID:     rc.Deck.ID,
		Owner:      rc.Owner,
		Title:      rc.Deck.Title,
		Slug:       rc.Deck.Slug,
		SlideMD:    rc.Draft,
		Narrations: rc.Narrations,
	})
	if err != nil {
		return Update{}, fmt.Errorf("create render job: %w", err)
	}
	return Update{
		RenderJobID: &id,
		Log:         []string{fmt.Sprintf("[enqueue_render] job %s", id)},
	}, nil
}
