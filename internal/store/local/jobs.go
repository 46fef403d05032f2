package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/maraichr/slidepilot/pkg/models"
)

type JobStore struct {
	db *DB
}

func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) InsertJob(ctx context.Context, j *models.RenderJob) error {
	if err := s.db.Store().Insert(j.ID.String(), j); err != nil {
		return fmt.Errorf("insert render job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	var j models.RenderJob
	if err := s.db.Store().Get(id.String(), &j); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get render job: %w", err)
	}
	return &j, nil
}

func (s *JobStore) GetJobForOwner(ctx context.Context, id uuid.UUID, owner string) (*models.RenderJob, error) {
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.OwnerID != owner {
		return nil, models.ErrNotFound
	}
	return j, nil
}

// UpdateJob performs the status compare-and-set inside one badger transaction.
func (s *JobStore) UpdateJob(ctx context.Context, id uuid.UUID, from, to models.JobStatus, result, errMsg *string) (bool, error) {
	changed := false
	err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		var j models.RenderJob
		if err := s.db.Store().TxGet(tx, id.String(), &j); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return err
		}
		if j.Status != from {
			return nil
		}
		j.Status = to
		j.ResultRef = result
		j.ErrorMessage = errMsg
		j.UpdatedAt = time.Now()
		if err := s.db.Store().TxUpdate(tx, id.String(), &j); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update render job: %w", err)
	}
	return changed, nil
}

func (s *JobStore) TouchJob(ctx context.Context, id uuid.UUID, status models.JobStatus) (bool, error) {
	touched := false
	err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		var j models.RenderJob
		if err := s.db.Store().TxGet(tx, id.String(), &j); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return err
		}
		if j.Status != status {
			return nil
		}
		j.UpdatedAt = time.Now()
		if err := s.db.Store().TxUpdate(tx, id.String(), &j); err != nil {
			return err
		}
		touched = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("touch render job: %w", err)
	}
	return touched, nil
}

func (s *JobStore) ListStale(ctx context.Context, status models.JobStatus, before time.Time, limit int) ([]models.RenderJob, error) {
	var jobs []models.RenderJob
	query := badgerhold.Where("Status").Eq(status).And("UpdatedAt").Lt(before).SortBy("UpdatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return jobs, nil
}
