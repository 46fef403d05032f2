package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/pipeline"
	"github.com/maraichr/slidepilot/internal/source"
	"github.com/maraichr/slidepilot/pkg/apierr"
	"github.com/maraichr/slidepilot/pkg/models"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, rc *pipeline.RunContext, opts pipeline.Options) (pipeline.Result, error)
}

type DeckReader interface {
	GetDeck(ctx context.Context, id uuid.UUID, owner string) (*models.Deck, error)
	ListDecks(ctx context.Context, owner string, limit int) ([]models.Deck, error)
}

type DeckHandler struct {
	logger *slog.Logger
	runner Runner
	decks  DeckReader
}

func NewDeckHandler(logger *slog.Logger, runner Runner, decks DeckReader) *DeckHandler {
	return &DeckHandler{logger: logger, runner: runner, decks: decks}
}

type createDeckRequest struct {
	Input   string `json:"input" validate:"required,max=4096"`
	Narrate bool   `json:"narrate"`
	Render  bool   `json:"render"`
}

// Create runs the pipeline synchronously and returns the run snapshot.
func (h *DeckHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDeckRequest
	if e := decodeAndValidate(r, &req); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	sub, ok := owner(w, r)
	if !ok {
		return
	}

	rc := pipeline.NewRunContext(sub, req.Input)
	res, err := h.runner.Run(r.Context(), rc, pipeline.Options{Narrate: req.Narrate, Render: req.Render})
	if err != nil {
		h.logger.Warn("deck generation failed",
			slog.String("run_id", rc.RunID.String()),
			slog.String("error", err.Error()))
		writeAPIError(w, h.logger, generationError(err, res))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// generationError maps a failed run to the API catalog. Other failures carry
// the failed stage and the run log as details.
func generationError(err error, res pipeline.Result) *apierr.Error {
	switch {
	case errors.Is(err, source.ErrVideoNotSupported):
		return apierr.UnsupportedSource()
	case errors.Is(err, pipeline.ErrEmptySource):
		return apierr.EmptySource()
	}
	e := apierr.GenerationFailed(err)
	var se *pipeline.StageError
	if errors.As(err, &se) {
		e.WithDetails("stage: " + se.Stage)
	}
	return e.WithDetails(res.Log...)
}

func (h *DeckHandler) List(w http.ResponseWriter, r *http.Request) {
	sub, ok := owner(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	decks, err := h.decks.ListDecks(r.Context(), sub, limit)
	if err != nil {
		writeAPIError(w, h.logger, apierr.DeckListFailed(err))
		return
	}
	if decks == nil {
		decks = []models.Deck{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": decks})
}

func (h *DeckHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DeckHandler) Markdown(w http.ResponseWriter, r *http.Request) {
	d, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(d.Markdown))
}

func (h *DeckHandler) lookup(w http.ResponseWriter, r *http.Request) (*models.Deck, bool) {
	return getDeckOr404(w, r, h.logger, h.decks)
}

// getDeckOr404 resolves {deckID} for the caller and writes the error response
// on failure.
func getDeckOr404(w http.ResponseWriter, r *http.Request, logger *slog.Logger, decks DeckReader) (*models.Deck, bool) {
	sub, ok := owner(w, r)
	if !ok {
		return nil, false
	}
	id, e := parseID(chi.URLParam(r, "deckID"), "deck")
	if e != nil {
		writeAPIError(w, logger, e)
		return nil, false
	}
	d, err := decks.GetDeck(r.Context(), id, sub)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, logger, apierr.DeckNotFound())
		} else {
			writeAPIError(w, logger, apierr.InternalError(err))
		}
		return nil, false
	}
	return d, true
}
