package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/maraichr/slidepilot/pkg/models"
)

type DeckStore struct {
	db *DB
}

func NewDeckStore(db *DB) *DeckStore {
	return &DeckStore{db: db}
}

func (s *DeckStore) CreateDeck(ctx context.Context, d *models.Deck) error {
	if err := s.db.Store().Insert(d.ID.String(), d); err != nil {
		return fmt.Errorf("insert deck: %w", err)
	}
	return nil
}

func (s *DeckStore) GetDeck(ctx context.Context, id uuid.UUID, owner string) (*models.Deck, error) {
	var d models.Deck
	if err := s.db.Store().Get(id.String(), &d); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get deck: %w", err)
	}
	if d.OwnerID != owner {
		return nil, models.ErrNotFound
	}
	return &d, nil
}

func (s *DeckStore) ListDecks(ctx context.Context, owner string, limit int) ([]models.Deck, error) {
	var decks []models.Deck
	query := badgerhold.Where("OwnerID").Eq(owner).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&decks, query); err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

func (s *DeckStore) SetDeckVideo(ctx context.Context, id uuid.UUID, videoURL string) error {
	var d models.Deck
	if err := s.db.Store().Get(id.String(), &d); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return models.ErrNotFound
		}
		return fmt.Errorf("get deck: %w", err)
	}
	d.VideoURL = &videoURL
	d.UpdatedAt = time.Now()
	if err := s.db.Store().Update(id.String(), &d); err != nil {
		return fmt.Errorf("update deck: %w", err)
	}
	return nil
}
