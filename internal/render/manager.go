package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/pkg/models"
)

// Trigger hands a job id to whatever executes it.
type Trigger interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// Manager creates jobs and answers status queries. It never writes status
// after creation.
type Manager struct {
	store   Store
	trigger Trigger
	logger  *slog.Logger
}

func NewManager(store Store, trigger Trigger, logger *slog.Logger) *Manager {
	return &Manager{store: store, trigger: trigger, logger: logger}
}

// CreateJob inserts a pending job, dispatches it and returns its id. A
// dispatch failure leaves the job pending for the sweeper and is not an error.
func (m *Manager) CreateJob(ctx context.Context, owner string, payload Payload) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now().UTC()
	job := &models.RenderJob{
		ID:        uuid.New(),
		OwnerID:   owner,
		DeckID:    payload.DeckID,
		Status:    models.JobPending,
		Payload:   data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.InsertJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("insert render job: %w", err)
	}
	m.logger.Info("render job created",
		slog.String("job_id", job.ID.String()),
		slog.String("deck_id", payload.DeckID.String()))

	if err := m.trigger.Dispatch(ctx, job.ID); err != nil {
		m.logger.Error("render job dispatch failed, left pending",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
	}
	return job.ID, nil
}

// GetStatus returns the job as stored.
func (m *Manager) GetStatus(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get render job: %w", err)
	}
	return job, nil
}

// Redispatch re-sends a job through the trigger and stamps the dispatch on a
// still-pending job. The worker ignores the message unless the job is pending.
func (m *Manager) Redispatch(ctx context.Context, id uuid.UUID) error {
	if err := m.trigger.Dispatch(ctx, id); err != nil {
		return fmt.Errorf("redispatch %s: %w", id, err)
	}
	if _, err := m.store.TouchJob(ctx, id, models.JobPending); err != nil {
		m.logger.Warn("record redispatch failed",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
	}
	return nil
}

// Wait polls until the job is terminal or ctx ends.
func (m *Manager) Wait(ctx context.Context, id uuid.UUID, interval time.Duration) (*models.RenderJob, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := m.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
