package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainbook/chainbook/internal/domain"
)

// streamMaxLen is the approximate maximum length for Redis streams, enforced
// via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// UpdateSink implements domain.ResultSink by appending order updates to a
// Redis stream, from which the downstream websocket notifier and indexer
// consumers read.
type UpdateSink struct {
	rdb    *redis.Client
	stream string
}

// NewUpdateSink creates an UpdateSink publishing to the given stream.
func NewUpdateSink(c *Client, stream string) *UpdateSink {
	return &UpdateSink{rdb: c.Underlying(), stream: stream}
}

// Publish appends one stream entry per order update. Entries are trimmed by
// approximate MAXLEN so a stalled consumer cannot grow the stream unbounded.
func (s *UpdateSink) Publish(ctx context.Context, updates []domain.OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, upd := range updates {
		payload, err := json.Marshal(upd)
		if err != nil {
			return fmt.Errorf("redis: marshal order update %s: %w", upd.ID, err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"payload": payload},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish order updates: %w", err)
	}
	return nil
}

// NoticeMessage pairs a decoded order notice with its stream entry id so the
// consumer can resume after the last processed entry.
type NoticeMessage struct {
	StreamID string
	Notice   domain.OrderNotice
	// Valid is false for entries whose payload could not be decoded.
	Valid bool
}

// NoticeStream reads order-update notices from the ingestion layer's Redis
// stream and checkpoints the consumer's position.
type NoticeStream struct {
	rdb    *redis.Client
	stream string
}

// NewNoticeStream creates a NoticeStream reading from the given stream.
func NewNoticeStream(c *Client, stream string) *NoticeStream {
	return &NoticeStream{rdb: c.Underlying(), stream: stream}
}

// Read blocks up to the given duration for new entries after lastID and
// decodes their payloads. A timeout yields an empty slice, not an error.
// Entries with malformed payloads are skipped; the caller still advances past
// them via the returned stream ids.
func (ns *NoticeStream) Read(ctx context.Context, lastID string, count int, block time.Duration) ([]NoticeMessage, error) {
	results, err := ns.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{ns.stream, lastID},
		Count:   int64(count),
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read notices: %w", err)
	}

	var messages []NoticeMessage
	for _, res := range results {
		for _, msg := range res.Messages {
			payload, ok := msg.Values["payload"].(string)
			if !ok {
				messages = append(messages, NoticeMessage{StreamID: msg.ID})
				continue
			}
			var notice domain.OrderNotice
			if err := json.Unmarshal([]byte(payload), &notice); err != nil {
				messages = append(messages, NoticeMessage{StreamID: msg.ID})
				continue
			}
			messages = append(messages, NoticeMessage{StreamID: msg.ID, Notice: notice, Valid: true})
		}
	}
	return messages, nil
}

func (ns *NoticeStream) cursorKey() string {
	return ns.stream + ":cursor"
}

// Cursor returns the last checkpointed stream id, or "0" when the consumer
// has never run.
func (ns *NoticeStream) Cursor(ctx context.Context) (string, error) {
	id, err := ns.rdb.Get(ctx, ns.cursorKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "0", nil
		}
		return "", fmt.Errorf("redis: read notice cursor: %w", err)
	}
	return id, nil
}

// SetCursor checkpoints the consumer's position after a processed batch.
func (ns *NoticeStream) SetCursor(ctx context.Context, id string) error {
	if err := ns.rdb.Set(ctx, ns.cursorKey(), id, 0).Err(); err != nil {
		return fmt.Errorf("redis: write notice cursor: %w", err)
	}
	return nil
}
