package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/auth"
	"github.com/maraichr/slidepilot/internal/mcp"
	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/pkg/models"
)

type JobCreator interface {
	CreateJob(ctx context.Context, owner string, p render.Payload) (uuid.UUID, error)
}

type JobReader interface {
	GetJobForOwner(ctx context.Context, id uuid.UUID, owner string) (*models.RenderJob, error)
}

// CreateRenderJobParams are the parameters for the create_render_job tool.
type CreateRenderJobParams struct {
	DeckID string `json:"deck_id" jsonschema:"id of a deck returned by generate_deck or list_decks"`
}

type CreateRenderJobHandler struct {
	decks  DeckReader
	jobs   JobCreator
	logger *slog.Logger
}

func NewCreateRenderJobHandler(decks DeckReader, jobs JobCreator, logger *slog.Logger) *CreateRenderJobHandler {
	return &CreateRenderJobHandler{decks: decks, jobs: jobs, logger: logger}
}

func (h *CreateRenderJobHandler) Handle(ctx context.Context, params CreateRenderJobParams) (string, error) {
	owner, err := requireOwner(ctx, auth.ScopeRender)
	if err != nil {
		return "", err
	}
	deckID, err := uuid.Parse(params.DeckID)
	if err != nil {
		return "", fmt.Errorf("invalid deck_id")
	}
	d, err := h.decks.GetDeck(ctx, deckID, owner)
	if err != nil {
		return "", WrapNotFound("deck", err)
	}

	id, err := h.jobs.CreateJob(ctx, owner, render.Payload{
		DeckID:  d.ID,
		Owner:   owner,
		Title:   d.Title,
		Slug:    d.Slug,
		SlideMD: d.Markdown,
	})
	if err != nil {
		return "", fmt.Errorf("create render job: %w", err)
	}
	return fmt.Sprintf("Render job `%s` is **pending**. Poll it with `get_render_job`.", id), nil
}

// GetRenderJobParams are the parameters for the get_render_job tool.
type GetRenderJobParams struct {
	JobID       string `json:"job_id"`
	WaitSeconds int    `json:"wait_seconds,omitempty" jsonschema:"block up to this many seconds (max 60) for a terminal status"`
}

type GetRenderJobHandler struct {
	jobs     JobReader
	interval time.Duration
	logger   *slog.Logger
}

func NewGetRenderJobHandler(jobs JobReader, logger *slog.Logger) *GetRenderJobHandler {
	return &GetRenderJobHandler{jobs: jobs, interval: 2 * time.Second, logger: logger}
}

const maxWait = 60 * time.Second

func (h *GetRenderJobHandler) Handle(ctx context.Context, params GetRenderJobParams) (string, error) {
	owner, err := requireOwner(ctx, auth.ScopeRead, auth.ScopeRender)
	if err != nil {
		return "", err
	}
	id, err := uuid.Parse(params.JobID)
	if err != nil {
		return "", fmt.Errorf("invalid job_id")
	}

	wait := time.Duration(params.WaitSeconds) * time.Second
	if wait > maxWait {
		wait = maxWait
	}
	deadline := time.Now().Add(wait)

	for {
		job, err := h.jobs.GetJobForOwner(ctx, id, owner)
		if err != nil {
			return "", WrapNotFound("render job", err)
		}
		if job.Status.Terminal() || !time.Now().Before(deadline) {
			return mcp.FormatJob(job), nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(h.interval):
		}
	}
}
