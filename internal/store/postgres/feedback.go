package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/pkg/models"
)

func (q *Queries) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO deck_feedback (id, deck_id, owner_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.DeckID, f.OwnerID, f.Rating, f.Comment, f.CreatedAt)
	return err
}

func (q *Queries) ListFeedback(ctx context.Context, deckID uuid.UUID) ([]models.Feedback, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, deck_id, owner_id, rating, comment, created_at
		 FROM deck_feedback WHERE deck_id = $1 ORDER BY created_at DESC`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Feedback
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.DeckID, &f.OwnerID, &f.Rating, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
