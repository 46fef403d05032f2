package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/maraichr/slidepilot/pkg/models"
)

const sweepBatch = 100

// LostJobMessage is recorded on processing jobs whose worker stopped
// reporting.
const LostJobMessage = "worker lost"

// Redispatcher re-sends a job through its trigger.
type Redispatcher interface {
	Redispatch(ctx context.Context, id uuid.UUID) error
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	Redispatched int
	Lost         int
}

// Sweeper periodically re-dispatches jobs that have sat in pending too long
// since their last dispatch, and fails jobs stuck in processing after their
// worker died. lostAfter must exceed the worker's job timeout; zero disables
// the processing sweep.
type Sweeper struct {
	store      Store
	dispatch   Redispatcher
	staleAfter time.Duration
	lostAfter  time.Duration
	cron       *cron.Cron
	logger     *slog.Logger
}

func NewSweeper(store Store, dispatch Redispatcher, staleAfter, lostAfter time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		dispatch:   dispatch,
		staleAfter: staleAfter,
		lostAfter:  lostAfter,
		cron:       cron.New(),
		logger:     logger,
	}
}

// Start schedules Sweep. schedule is a cron spec or descriptor like "@every 1m".
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = "@every 1m"
	}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("render sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.cron.Start()
	s.logger.Info("render sweeper started", slog.String("schedule", schedule))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("render sweeper stopped")
}

// Sweep runs one pass over pending and processing jobs.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	n, err := s.redispatchPending(ctx)
	if err != nil {
		return stats, err
	}
	stats.Redispatched = n

	if s.lostAfter > 0 {
		n, err := s.failLost(ctx)
		if err != nil {
			return stats, err
		}
		stats.Lost = n
	}
	return stats, nil
}

func (s *Sweeper) redispatchPending(ctx context.Context) (int, error) {
	jobs, err := s.store.ListStale(ctx, models.JobPending, time.Now().Add(-s.staleAfter), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale pending jobs: %w", err)
	}

	sent := 0
	for _, job := range jobs {
		if err := s.dispatch.Redispatch(ctx, job.ID); err != nil {
			s.logger.Warn("redispatch failed",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		sent++
	}
	if sent > 0 {
		s.logger.Info("re-dispatched stale render jobs", slog.Int("count", sent))
	}
	return sent, nil
}

func (s *Sweeper) failLost(ctx context.Context) (int, error) {
	jobs, err := s.store.ListStale(ctx, models.JobProcessing, time.Now().Add(-s.lostAfter), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale processing jobs: %w", err)
	}

	msg := LostJobMessage
	failed := 0
	for _, job := range jobs {
		err := Transition(ctx, s.store, job.ID, models.JobProcessing, models.JobFailed, nil, &msg)
		if errors.Is(err, ErrInvalidTransition) {
			// finished between the list and the update
			continue
		}
		if err != nil {
			s.logger.Warn("fail lost job failed",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		failed++
		s.logger.Warn("render job lost",
			slog.String("job_id", job.ID.String()),
			slog.Time("last_update", job.UpdatedAt))
	}
	return failed, nil
}
