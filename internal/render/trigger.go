package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const (
	StreamName = "slidepilot:render"
	GroupName  = "slidepilot-render-workers"
)

// ErrQueueFull is returned by LocalTrigger when every slot is taken.
var ErrQueueFull = errors.New("render queue full")

// Message is the stream payload for one dispatch.
type Message struct {
	JobID uuid.UUID `json:"job_id"`
}

// ValkeyTrigger publishes job ids to the render stream for cmd/worker.
type ValkeyTrigger struct {
	client valkey.Client
}

func NewValkeyTrigger(client valkey.Client) *ValkeyTrigger {
	return &ValkeyTrigger{client: client}
}

func (t *ValkeyTrigger) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	data, err := json.Marshal(Message{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	resp := t.client.Do(ctx, t.client.B().Xadd().
		Key(StreamName).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// Executor runs one job to a terminal state.
type Executor interface {
	Execute(ctx context.Context, jobID uuid.UUID) error
}

// LocalTrigger runs jobs in-process on a fixed pool of goroutines.
type LocalTrigger struct {
	exec   Executor
	queue  chan uuid.UUID
	logger *slog.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	stopOnce sync.Once
}

// NewLocalTrigger starts workers goroutines that drain a queue of size queueSize.
// The pool stops when ctx is cancelled or Close is called.
func NewLocalTrigger(ctx context.Context, exec Executor, workers, queueSize int, logger *slog.Logger) *LocalTrigger {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	t := &LocalTrigger{
		exec:   exec,
		queue:  make(chan uuid.UUID, queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		t.wg.Add(1)
		go t.run(ctx)
	}
	return t
}

func (t *LocalTrigger) run(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-t.queue:
			if !ok {
				return
			}
			if err := t.exec.Execute(ctx, id); err != nil {
				t.logger.Error("local render failed",
					slog.String("job_id", id.String()),
					slog.String("error", err.Error()))
			}
		}
	}
}

func (t *LocalTrigger) Dispatch(_ context.Context, jobID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("render trigger closed")
	}
	select {
	case t.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (t *LocalTrigger) Close() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		close(t.queue)
		t.mu.Unlock()
	})
	t.wg.Wait()
}
