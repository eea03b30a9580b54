// Package intake drains the notice stream and feeds batches into the
// reconcile engine, checkpointing the stream cursor after each batch.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainbook/chainbook/internal/cache/redis"
	"github.com/chainbook/chainbook/internal/domain"
)

// Reconciler processes a batch of order notices.
type Reconciler interface {
	Reconcile(ctx context.Context, notices []domain.OrderNotice) ([]domain.ReconcileResult, error)
}

// NoticeSource is the checkpointed stream the consumer drains. Implemented
// by the redis notice stream.
type NoticeSource interface {
	Read(ctx context.Context, lastID string, count int, block time.Duration) ([]redis.NoticeMessage, error)
	Cursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, id string) error
}

// Config controls batch sizing for the stream consumer.
type Config struct {
	// BatchSize is the maximum number of stream entries read per batch.
	BatchSize int

	// BlockTimeout is how long a read blocks waiting for new entries
	// before returning empty.
	BlockTimeout time.Duration
}

// Consumer reads order notices off the redis stream and hands them to the
// engine in batches. The cursor is only advanced after the whole batch has
// been reconciled, so a crash mid-batch replays the batch on restart.
type Consumer struct {
	stream NoticeSource
	engine Reconciler
	cfg    Config
	log    *slog.Logger
}

// NewConsumer creates a Consumer for the given stream and engine.
func NewConsumer(stream NoticeSource, engine Reconciler, cfg Config, log *slog.Logger) *Consumer {
	return &Consumer{
		stream: stream,
		engine: engine,
		cfg:    cfg,
		log:    log.With(slog.String("component", "intake")),
	}
}

// Run consumes the stream until the context is cancelled. Transient read
// errors are logged and retried with a short backoff; reconcile errors
// abort the loop since they indicate the primary store is unavailable.
func (c *Consumer) Run(ctx context.Context) error {
	cursor, err := c.stream.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("intake: load cursor: %w", err)
	}
	c.log.Info("consumer started", slog.String("cursor", cursor))

	for {
		if err := ctx.Err(); err != nil {
			c.log.Info("consumer stopped", slog.String("cursor", cursor))
			return nil
		}

		messages, err := c.stream.Read(ctx, cursor, c.cfg.BatchSize, c.cfg.BlockTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.log.Info("consumer stopped", slog.String("cursor", cursor))
				return nil
			}
			c.log.Error("stream read failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if len(messages) == 0 {
			continue
		}

		notices := make([]domain.OrderNotice, 0, len(messages))
		for _, msg := range messages {
			if !msg.Valid {
				c.log.Warn("dropping malformed notice", slog.String("stream_id", msg.StreamID))
				continue
			}
			notices = append(notices, msg.Notice)
		}

		if len(notices) > 0 {
			if _, err := c.engine.Reconcile(ctx, notices); err != nil {
				return fmt.Errorf("intake: reconcile batch ending at %s: %w", messages[len(messages)-1].StreamID, err)
			}
		}

		cursor = messages[len(messages)-1].StreamID
		if err := c.stream.SetCursor(ctx, cursor); err != nil {
			c.log.Error("cursor checkpoint failed",
				slog.String("cursor", cursor),
				slog.String("error", err.Error()),
			)
		}
	}
}
