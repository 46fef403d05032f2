package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Consumer reads job ids from the render stream and hands them to an Executor.
type Consumer struct {
	client     valkey.Client
	consumerID string
	logger     *slog.Logger
}

func NewConsumer(client valkey.Client, consumerID string, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, consumerID: consumerID, logger: logger}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(StreamName).Group(GroupName).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create: %w", err)
		}
	}
	return nil
}

// Consume blocks reading messages until ctx ends. Messages this consumer
// left unacknowledged before a restart are handled first.
func (c *Consumer) Consume(ctx context.Context, exec Executor) error {
	pending, err := c.read(ctx, "0", 10, 0)
	if err != nil {
		c.logger.Warn("drain pending failed", slog.String("error", err.Error()))
	}
	for _, msg := range pending {
		c.logger.Info("recovering pending render message", slog.String("id", msg.ID))
		c.processMessage(ctx, msg, exec)
	}

	for ctx.Err() == nil {
		msgs, err := c.read(ctx, ">", 1, 5*time.Second)
		if err != nil {
			// block timeout or transient error
			continue
		}
		for _, msg := range msgs {
			c.processMessage(ctx, msg, exec)
		}
	}
	return ctx.Err()
}

// read issues XREADGROUP from id. A zero block returns immediately.
func (c *Consumer) read(ctx context.Context, id string, count int64, block time.Duration) ([]valkey.XRangeEntry, error) {
	cmd := c.client.B().Xreadgroup().Group(GroupName, c.consumerID).Count(count)
	var resp valkey.ValkeyResult
	if block > 0 {
		resp = c.client.Do(ctx, cmd.Block(block.Milliseconds()).Streams().Key(StreamName).Id(id).Build())
	} else {
		resp = c.client.Do(ctx, cmd.Streams().Key(StreamName).Id(id).Build())
	}
	streams, err := resp.AsXRead()
	if err != nil {
		return nil, err
	}
	return streams[StreamName], nil
}

func (c *Consumer) processMessage(ctx context.Context, msg valkey.XRangeEntry, exec Executor) {
	data, ok := msg.FieldValues["data"]
	if !ok {
		c.logger.Warn("message missing data field", slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		c.logger.Error("unmarshal message", slog.String("error", err.Error()), slog.String("id", msg.ID))
		c.ack(ctx, msg.ID)
		return
	}

	// Execute records failures on the job itself; an error here means the
	// job state could not be read or written, so the message stays pending.
	if err := exec.Execute(ctx, m.JobID); err != nil {
		c.logger.Error("execute render job", slog.String("error", err.Error()),
			slog.String("id", msg.ID),
			slog.String("job_id", m.JobID.String()))
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	// a job drained during shutdown is still acknowledged
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(StreamName).Group(GroupName).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}
