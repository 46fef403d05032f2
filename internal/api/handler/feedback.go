package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/pkg/apierr"
	"github.com/maraichr/slidepilot/pkg/models"
)

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	ListFeedback(ctx context.Context, deckID uuid.UUID) ([]models.Feedback, error)
}

type FeedbackHandler struct {
	logger   *slog.Logger
	decks    DeckReader
	feedback FeedbackStore
}

func NewFeedbackHandler(logger *slog.Logger, decks DeckReader, feedback FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{logger: logger, decks: decks, feedback: feedback}
}

type feedbackRequest struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	d, ok := getDeckOr404(w, r, h.logger, h.decks)
	if !ok {
		return
	}
	var req feedbackRequest
	if e := decodeAndValidate(r, &req); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}

	f := &models.Feedback{
		ID:        uuid.New(),
		DeckID:    d.ID,
		OwnerID:   d.OwnerID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.feedback.CreateFeedback(r.Context(), f); err != nil {
		writeAPIError(w, h.logger, apierr.FeedbackSaveFailed(err))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	d, ok := getDeckOr404(w, r, h.logger, h.decks)
	if !ok {
		return
	}
	items, err := h.feedback.ListFeedback(r.Context(), d.ID)
	if err != nil {
		writeAPIError(w, h.logger, apierr.FeedbackListFailed(err))
		return
	}
	if items == nil {
		items = []models.Feedback{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": items})
}
