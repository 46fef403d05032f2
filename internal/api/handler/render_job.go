package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/render"
	"github.com/maraichr/slidepilot/pkg/apierr"
	"github.com/maraichr/slidepilot/pkg/models"
)

type JobCreator interface {
	CreateJob(ctx context.Context, owner string, p render.Payload) (uuid.UUID, error)
}

type JobReader interface {
	GetJobForOwner(ctx context.Context, id uuid.UUID, owner string) (*models.RenderJob, error)
}

type RenderJobHandler struct {
	logger *slog.Logger
	decks  DeckReader
	jobs   JobCreator
	reader JobReader
}

func NewRenderJobHandler(logger *slog.Logger, decks DeckReader, jobs JobCreator, reader JobReader) *RenderJobHandler {
	return &RenderJobHandler{logger: logger, decks: decks, jobs: jobs, reader: reader}
}

type createRenderJobRequest struct {
	DeckID string `json:"deck_id" validate:"required,uuid"`
}

// JobView is the status response of a render job.
type JobView struct {
	ID              uuid.UUID        `json:"id"`
	Status          models.JobStatus `json:"status"`
	ResultReference *string          `json:"result_reference"`
	ErrorMessage    *string          `json:"error_message"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
}

func NewJobView(j *models.RenderJob) JobView {
	return JobView{
		ID:              j.ID,
		Status:          j.Status,
		ResultReference: j.ResultRef,
		ErrorMessage:    j.ErrorMessage,
		CreatedAt:       j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       j.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *RenderJobHandler) Create(w http.ResponseWriter, r *http.Request) {
	sub, ok := owner(w, r)
	if !ok {
		return
	}
	if h.jobs == nil {
		writeAPIError(w, h.logger, apierr.RenderUnavailable())
		return
	}
	var req createRenderJobRequest
	if e := decodeAndValidate(r, &req); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	deckID, e := parseID(req.DeckID, "deck")
	if e != nil {
		writeAPIError(w, h.logger, e)
		return
	}

	d, err := h.decks.GetDeck(r.Context(), deckID, sub)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.DeckNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	id, err := h.jobs.CreateJob(r.Context(), sub, render.Payload{
		DeckID:  d.ID,
		Owner:   sub,
		Title:   d.Title,
		Slug:    d.Slug,
		SlideMD: d.Markdown,
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.RenderJobCreateFailed(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": id,
		"status": models.JobPending,
	})
}

func (h *RenderJobHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, ok := owner(w, r)
	if !ok {
		return
	}
	id, e := parseID(chi.URLParam(r, "jobID"), "render job")
	if e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	if h.reader == nil {
		writeAPIError(w, h.logger, apierr.RenderUnavailable())
		return
	}

	job, err := h.reader.GetJobForOwner(r.Context(), id, sub)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.RenderJobNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, NewJobView(job))
}
