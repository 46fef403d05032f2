package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/slidepilot/internal/config"
	"github.com/maraichr/slidepilot/internal/render"
)

const (
	RenderModeValkey = "valkey"
	RenderModeLocal  = "local"

	localQueueSize = 16
)

// RenderDeps are the collaborators of an in-process render pool.
type RenderDeps struct {
	Store    render.Store
	Renderer render.VideoRenderer
	Blobs    render.BlobPutter
	Decks    render.DeckVideoSetter
}

// RenderJobs is the job manager together with the trigger behind it.
type RenderJobs struct {
	Manager *render.Manager
	Mode    string

	local   *render.LocalTrigger
	sweeper *render.Sweeper
}

// NewRenderJobs dispatches through the Valkey stream when client is non-nil
// and the mode is not "local". Otherwise jobs run on an in-process pool with
// its own sweeper. Close must be called on shutdown.
func NewRenderJobs(ctx context.Context, cfg config.RenderConfig, client valkey.Client, d RenderDeps, logger *slog.Logger) (*RenderJobs, error) {
	if client != nil && cfg.Mode != RenderModeLocal {
		return &RenderJobs{
			Manager: render.NewManager(d.Store, render.NewValkeyTrigger(client), logger),
			Mode:    RenderModeValkey,
		}, nil
	}

	worker := render.NewWorker(d.Store, d.Renderer, d.Blobs, d.Decks, cfg.TempDir, cfg.JobTimeout, logger)
	trigger := render.NewLocalTrigger(ctx, worker, cfg.LocalWorkers, localQueueSize, logger)
	manager := render.NewManager(d.Store, trigger, logger)

	sweeper := render.NewSweeper(d.Store, manager, cfg.StaleAfter, cfg.LostAfter, logger)
	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		trigger.Close()
		return nil, fmt.Errorf("start local sweeper: %w", err)
	}

	logger.Info("render jobs run in-process", slog.Int("workers", cfg.LocalWorkers))
	return &RenderJobs{Manager: manager, Mode: RenderModeLocal, local: trigger, sweeper: sweeper}, nil
}

// Close stops the local sweeper and waits for in-flight local jobs.
func (r *RenderJobs) Close() {
	if r.sweeper != nil {
		r.sweeper.Stop()
	}
	if r.local != nil {
		r.local.Close()
	}
}
