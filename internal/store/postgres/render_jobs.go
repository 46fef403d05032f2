package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/slidepilot/pkg/models"
)

const jobColumns = `id, owner_id, deck_id, status, input_payload, result_ref, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (*models.RenderJob, error) {
	var (
		j      models.RenderJob
		deckID *uuid.UUID
	)
	err := row.Scan(&j.ID, &j.OwnerID, &deckID, &j.Status, &j.Payload, &j.ResultRef, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if deckID != nil {
		j.DeckID = *deckID
	}
	return &j, nil
}

func (q *Queries) InsertJob(ctx context.Context, j *models.RenderJob) error {
	var deckID *uuid.UUID
	if j.DeckID != uuid.Nil {
		deckID = &j.DeckID
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO render_jobs (`+jobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.OwnerID, deckID, j.Status, j.Payload, j.ResultRef, j.ErrorMessage, j.CreatedAt, j.UpdatedAt)
	return err
}

func (q *Queries) GetJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	return scanJob(q.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = $1`, id))
}

// UpdateJob moves a job from one status to another only if it is still in
// from. It reports whether a row changed.
func (q *Queries) UpdateJob(ctx context.Context, id uuid.UUID, from, to models.JobStatus, result, errMsg *string) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE render_jobs
		 SET status = $3, result_ref = $4, error_message = $5, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, from, to, result, errMsg)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TouchJob records a re-dispatch so the sweeper measures staleness from it.
func (q *Queries) TouchJob(ctx context.Context, id uuid.UUID, status models.JobStatus) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE render_jobs SET updated_at = now() WHERE id = $1 AND status = $2`,
		id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) ListStale(ctx context.Context, status models.JobStatus, before time.Time, limit int) ([]models.RenderJob, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+jobColumns+` FROM render_jobs
		 WHERE status = $1 AND updated_at < $2
		 ORDER BY updated_at
		 LIMIT $3`,
		status, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.RenderJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *j)
	}
	return items, rows.Err()
}

// GetJobForOwner hides jobs that belong to someone else.
func (q *Queries) GetJobForOwner(ctx context.Context, id uuid.UUID, owner string) (*models.RenderJob, error) {
	return scanJob(q.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM render_jobs WHERE id = $1 AND owner_id = $2`, id, owner))
}
