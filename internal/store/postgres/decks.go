package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/slidepilot/pkg/models"
)

const deckColumns = `id, owner_id, title, slug, source_kind, source_ref, markdown, markdown_key,
	handout_key, video_url, score, passed, attempts, created_at, updated_at`

func scanDeck(row pgx.Row) (*models.Deck, error) {
	var d models.Deck
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.Title, &d.Slug, &d.SourceKind, &d.SourceRef, &d.Markdown, &d.MarkdownKey,
		&d.HandoutKey, &d.VideoURL, &d.Score, &d.Passed, &d.Attempts, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (q *Queries) CreateDeck(ctx context.Context, d *models.Deck) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO decks (`+deckColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.OwnerID, d.Title, d.Slug, d.SourceKind, d.SourceRef, d.Markdown, d.MarkdownKey,
		d.HandoutKey, d.VideoURL, d.Score, d.Passed, d.Attempts, d.CreatedAt, d.UpdatedAt)
	return err
}

// GetDeck returns the deck only when owner matches.
func (q *Queries) GetDeck(ctx context.Context, id uuid.UUID, owner string) (*models.Deck, error) {
	return scanDeck(q.db.QueryRow(ctx,
		`SELECT `+deckColumns+` FROM decks WHERE id = $1 AND owner_id = $2`, id, owner))
}

func (q *Queries) ListDecks(ctx context.Context, owner string, limit int) ([]models.Deck, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+deckColumns+` FROM decks WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`,
		owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	return items, rows.Err()
}

func (q *Queries) SetDeckVideo(ctx context.Context, id uuid.UUID, videoURL string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE decks SET video_url = $2, updated_at = now() WHERE id = $1`, id, videoURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
