package local

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/maraichr/slidepilot/pkg/models"
)

type FeedbackStore struct {
	db *DB
}

func NewFeedbackStore(db *DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

func (s *FeedbackStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	if err := s.db.Store().Insert(f.ID.String(), f); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *FeedbackStore) ListFeedback(ctx context.Context, deckID uuid.UUID) ([]models.Feedback, error) {
	var items []models.Feedback
	if err := s.db.Store().Find(&items, badgerhold.Where("DeckID").Eq(deckID).SortBy("CreatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}
