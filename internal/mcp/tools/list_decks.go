package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/auth"
	"github.com/maraichr/slidepilot/internal/mcp"
	"github.com/maraichr/slidepilot/pkg/models"
)

type DeckReader interface {
	GetDeck(ctx context.Context, id uuid.UUID, owner string) (*models.Deck, error)
	ListDecks(ctx context.Context, owner string, limit int) ([]models.Deck, error)
}

// ListDecksParams are the parameters for the list_decks tool.
type ListDecksParams struct {
	Limit int `json:"limit,omitempty"`
}

type ListDecksHandler struct {
	decks  DeckReader
	logger *slog.Logger
}

func NewListDecksHandler(decks DeckReader, logger *slog.Logger) *ListDecksHandler {
	return &ListDecksHandler{decks: decks, logger: logger}
}

func (h *ListDecksHandler) Handle(ctx context.Context, params ListDecksParams) (string, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	owner, err := requireOwner(ctx, auth.ScopeRead)
	if err != nil {
		return "", err
	}
	decks, err := h.decks.ListDecks(ctx, owner, params.Limit)
	if err != nil {
		return "", fmt.Errorf("list decks: %w", err)
	}
	return mcp.FormatDecks(decks, 0), nil
}
