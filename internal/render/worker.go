package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/internal/deck"
	"github.com/maraichr/slidepilot/pkg/models"
)

// VideoRenderer produces a video file inside workDir and returns its path.
type VideoRenderer interface {
	Render(ctx context.Context, workDir string, p Payload) (string, error)
}

// BlobPutter uploads the finished video.
type BlobPutter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// DeckVideoSetter records the uploaded video on its deck.
type DeckVideoSetter interface {
	SetDeckVideo(ctx context.Context, deckID uuid.UUID, videoURL string) error
}

// VideoKey is the object key of a deck's rendered video.
func VideoKey(owner string, p Payload) string {
	stem := p.Slug
	if stem == "" {
		stem = deck.Slugify(p.Title)
	}
	return fmt.Sprintf("%s/%s_video.mp4", owner, stem)
}

// Worker executes render jobs. It is the only writer of job status after
// creation.
type Worker struct {
	store    Store
	renderer VideoRenderer
	blobs    BlobPutter
	decks    DeckVideoSetter
	tempDir  string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewWorker(store Store, renderer VideoRenderer, blobs BlobPutter, decks DeckVideoSetter, tempDir string, timeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:    store,
		renderer: renderer,
		blobs:    blobs,
		decks:    decks,
		tempDir:  tempDir,
		timeout:  timeout,
		logger:   logger,
	}
}

// Execute drives one pending job to completed or failed. Jobs that are not
// pending are skipped. The returned error is reserved for store failures;
// render failures are recorded on the job.
//
// Once claimed, a job is no longer tied to ctx: cancelling it does not abort
// the render, which runs until it finishes or hits the job timeout. Callers
// drain by waiting for Execute to return.
func (w *Worker) Execute(ctx context.Context, jobID uuid.UUID) error {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			w.logger.Warn("render job not found", slog.String("job_id", jobID.String()))
			return nil
		}
		return fmt.Errorf("load render job: %w", err)
	}
	if job.Status != models.JobPending {
		w.logger.Info("skipping render job",
			slog.String("job_id", jobID.String()),
			slog.String("status", string(job.Status)))
		return nil
	}

	if err := Transition(ctx, w.store, jobID, models.JobPending, models.JobProcessing, nil, nil); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			w.logger.Info("render job claimed elsewhere", slog.String("job_id", jobID.String()))
			return nil
		}
		return err
	}
	w.logger.Info("render job processing", slog.String("job_id", jobID.String()))

	start := time.Now()
	fctx := context.WithoutCancel(ctx)
	ref, runErr := w.run(fctx, job)

	if runErr != nil {
		msg := truncate(runErr.Error(), MaxErrorMessage)
		if err := Transition(fctx, w.store, jobID, models.JobProcessing, models.JobFailed, nil, &msg); err != nil {
			return err
		}
		w.logger.Error("render job failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", msg))
		return nil
	}

	if err := Transition(fctx, w.store, jobID, models.JobProcessing, models.JobCompleted, &ref, nil); err != nil {
		return err
	}
	w.logger.Info("render job completed",
		slog.String("job_id", jobID.String()),
		slog.String("result", ref),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (w *Worker) run(ctx context.Context, job *models.RenderJob) (ref string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	var p Payload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if p.Owner == "" {
		p.Owner = job.OwnerID
	}

	dir, err := os.MkdirTemp(w.tempDir, "render-"+job.ID.String()+"-")
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	video, err := w.renderer.Render(ctx, dir, p)
	if err != nil {
		return "", err
	}

	f, err := os.Open(video)
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat video: %w", err)
	}

	key := VideoKey(p.Owner, p)
	if err := w.blobs.Put(ctx, key, f, info.Size(), "video/mp4"); err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	if w.decks != nil && p.DeckID != uuid.Nil {
		if err := w.decks.SetDeckVideo(ctx, p.DeckID, key); err != nil {
			return "", fmt.Errorf("set deck video: %w", err)
		}
	}
	return key, nil
}
