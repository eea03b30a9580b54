package intake

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/cache/redis"
	"github.com/chainbook/chainbook/internal/domain"
)

type scriptedStream struct {
	batches  [][]redis.NoticeMessage
	cursor   string
	setCalls []string
	cancel   context.CancelFunc
}

func (s *scriptedStream) Read(ctx context.Context, _ string, _ int, _ time.Duration) ([]redis.NoticeMessage, error) {
	if len(s.batches) == 0 {
		// Script exhausted; stop the consumer.
		s.cancel()
		return nil, ctx.Err()
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *scriptedStream) Cursor(context.Context) (string, error) { return s.cursor, nil }

func (s *scriptedStream) SetCursor(_ context.Context, id string) error {
	s.setCalls = append(s.setCalls, id)
	return nil
}

type recordingEngine struct {
	batches [][]domain.OrderNotice
}

func (e *recordingEngine) Reconcile(_ context.Context, notices []domain.OrderNotice) ([]domain.ReconcileResult, error) {
	e.batches = append(e.batches, notices)
	return nil, nil
}

func TestConsumerProcessesAndCheckpoints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &scriptedStream{
		cursor: "0",
		cancel: cancel,
		batches: [][]redis.NoticeMessage{
			{
				{StreamID: "1-0", Valid: true, Notice: domain.OrderNotice{Kind: domain.OrderKindSudoswap}},
				{StreamID: "1-1", Valid: true, Notice: domain.OrderNotice{Kind: domain.OrderKindSeaport}},
			},
			{
				{StreamID: "2-0", Valid: true, Notice: domain.OrderNotice{Kind: domain.OrderKindCollectionXyz}},
			},
		},
	}
	eng := &recordingEngine{}
	c := NewConsumer(stream, eng, Config{BatchSize: 10, BlockTimeout: time.Millisecond}, slog.Default())

	err := c.Run(ctx)
	require.NoError(t, err)

	require.Len(t, eng.batches, 2)
	assert.Len(t, eng.batches[0], 2)
	assert.Len(t, eng.batches[1], 1)
	assert.Equal(t, []string{"1-1", "2-0"}, stream.setCalls)
}

func TestConsumerSkipsMalformedEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &scriptedStream{
		cursor: "0",
		cancel: cancel,
		batches: [][]redis.NoticeMessage{
			{
				{StreamID: "1-0", Valid: false},
				{StreamID: "1-1", Valid: true, Notice: domain.OrderNotice{Kind: domain.OrderKindSudoswap}},
			},
		},
	}
	eng := &recordingEngine{}
	c := NewConsumer(stream, eng, Config{BatchSize: 10, BlockTimeout: time.Millisecond}, slog.Default())

	require.NoError(t, c.Run(ctx))

	require.Len(t, eng.batches, 1)
	assert.Len(t, eng.batches[0], 1)
	// The cursor still advances past the malformed entry.
	assert.Equal(t, []string{"1-1"}, stream.setCalls)
}

func TestConsumerAllMalformedStillAdvances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &scriptedStream{
		cursor: "0",
		cancel: cancel,
		batches: [][]redis.NoticeMessage{
			{{StreamID: "5-0", Valid: false}},
		},
	}
	eng := &recordingEngine{}
	c := NewConsumer(stream, eng, Config{BatchSize: 10, BlockTimeout: time.Millisecond}, slog.Default())

	require.NoError(t, c.Run(ctx))

	assert.Empty(t, eng.batches)
	assert.Equal(t, []string{"5-0"}, stream.setCalls)
}
