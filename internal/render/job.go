// Package render owns the asynchronous video render job: its lifecycle,
// dispatch, execution and recovery.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/pkg/models"
)

var (
	// ErrJobNotFound wraps models.ErrNotFound so both checks succeed.
	ErrJobNotFound = fmt.Errorf("render job %w", models.ErrNotFound)
	// ErrInvalidTransition is returned for any move the state machine forbids,
	// including a compare-and-set that lost to another writer.
	ErrInvalidTransition = errors.New("invalid render job transition")
)

// MaxErrorMessage is the longest error message stored on a failed job.
const MaxErrorMessage = 500

var transitions = map[models.JobStatus][]models.JobStatus{
	models.JobPending:    {models.JobProcessing},
	models.JobProcessing: {models.JobCompleted, models.JobFailed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to models.JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Payload is the input a render job carries.
type Payload struct {
	DeckID     uuid.UUID `json:"deck_id"`
	Owner      string    `json:"owner"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	SlideMD    string    `json:"slide_md"`
	Narrations []string  `json:"narrations,omitempty"`
}

// Store persists render jobs. UpdateJob is a compare-and-set on from and
// reports false when the job was not in that state. TouchJob bumps
// updated_at under the same condition without changing status.
// ListStale returns jobs in status whose updated_at is before the cutoff,
// oldest first.
type Store interface {
	InsertJob(ctx context.Context, job *models.RenderJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
	UpdateJob(ctx context.Context, id uuid.UUID, from, to models.JobStatus, result, errMsg *string) (bool, error)
	TouchJob(ctx context.Context, id uuid.UUID, status models.JobStatus) (bool, error)
	ListStale(ctx context.Context, status models.JobStatus, before time.Time, limit int) ([]models.RenderJob, error)
}

// Transition validates and applies one state change.
func Transition(ctx context.Context, s Store, id uuid.UUID, from, to models.JobStatus, result, errMsg *string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	ok, err := s.UpdateJob(ctx, id, from, to, result, errMsg)
	if err != nil {
		return fmt.Errorf("update render job: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: job %s is no longer %s", ErrInvalidTransition, id, from)
	}
	return nil
}

func truncate(msg string, n int) string {
	r := []rune(msg)
	if len(r) <= n {
		return msg
	}
	return string(r[:n])
}
