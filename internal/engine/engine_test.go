package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
)

type stubAdapter struct {
	kind    domain.OrderKind
	process func(notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult)
}

func (a stubAdapter) Kind() domain.OrderKind { return a.kind }

func (a stubAdapter) Process(_ context.Context, notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
	return a.process(notice)
}

type captureStore struct {
	mu       sync.Mutex
	inserted []domain.Order
}

func (s *captureStore) GetSnapshot(context.Context, string) (domain.OrderSnapshot, error) {
	return domain.OrderSnapshot{}, domain.ErrNotFound
}

func (s *captureStore) InsertBatch(_ context.Context, orders []domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, orders...)
	return nil
}

func (s *captureStore) UpdatePricing(context.Context, domain.PricingUpdate, domain.RecheckGuard) (bool, error) {
	return true, nil
}

func (s *captureStore) SetNoBalance(context.Context, string, domain.Provenance, domain.RecheckGuard) (bool, error) {
	return true, nil
}

func (s *captureStore) Delete(context.Context, string) error { return nil }

type captureSink struct {
	mu      sync.Mutex
	updates []domain.OrderUpdate
}

func (s *captureSink) Publish(_ context.Context, updates []domain.OrderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, updates...)
	return nil
}

func successAdapter(kind domain.OrderKind) stubAdapter {
	return stubAdapter{kind: kind, process: func(notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
		id := domain.OrderID(kind, notice.Pool, domain.OrderSideBuy, nil)
		return []domain.Order{{ID: id, Kind: kind}},
			[]domain.ReconcileResult{{
				ID: id, Status: domain.StatusSuccess, TriggerKind: domain.TriggerNewOrder,
				TxTimestamp: notice.Provenance.TxTimestamp,
			}}
	}}
}

func TestReconcileEveryNoticeYieldsAResult(t *testing.T) {
	store := &captureStore{}
	eng := New(store, nil, nil, Config{BatchConcurrency: 4}, slog.Default(),
		successAdapter(domain.OrderKindSudoswap))

	notices := []domain.OrderNotice{
		{Kind: domain.OrderKindSudoswap},
		{Kind: "unknown-kind"},
		{Kind: domain.OrderKindSudoswap},
	}
	results, err := eng.Reconcile(context.Background(), notices)
	require.NoError(t, err)

	require.Len(t, results, 3)
	statuses := map[domain.ReconcileStatus]int{}
	for _, r := range results {
		statuses[r.Status]++
	}
	assert.Equal(t, 2, statuses[domain.StatusSuccess])
	assert.Equal(t, 1, statuses[domain.StatusUnsupportedKind])
	assert.Len(t, store.inserted, 2)
}

func TestReconcilePanicIsolated(t *testing.T) {
	panicking := stubAdapter{kind: domain.OrderKindSeaport, process: func(domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
		panic("adapter blew up")
	}}
	store := &captureStore{}
	eng := New(store, nil, nil, Config{BatchConcurrency: 2}, slog.Default(),
		panicking, successAdapter(domain.OrderKindSudoswap))

	results, err := eng.Reconcile(context.Background(), []domain.OrderNotice{
		{Kind: domain.OrderKindSeaport},
		{Kind: domain.OrderKindSudoswap},
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	statuses := map[domain.ReconcileStatus]int{}
	for _, r := range results {
		statuses[r.Status]++
	}
	assert.Equal(t, 1, statuses[domain.StatusError])
	assert.Equal(t, 1, statuses[domain.StatusSuccess])
	assert.Len(t, store.inserted, 1)
}

func TestReconcileEmptyAdapterOutputFallsBack(t *testing.T) {
	silent := stubAdapter{kind: domain.OrderKindSudoswap, process: func(domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
		return nil, nil
	}}
	eng := New(&captureStore{}, nil, nil, Config{BatchConcurrency: 1}, slog.Default(), silent)

	results, err := eng.Reconcile(context.Background(), []domain.OrderNotice{{Kind: domain.OrderKindSudoswap}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusNotFillable, results[0].Status)
}

func TestReconcilePublishesOnlyPersistedSuccesses(t *testing.T) {
	mixed := stubAdapter{kind: domain.OrderKindSudoswap, process: func(notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
		return nil, []domain.ReconcileResult{
			{ID: "a", Status: domain.StatusSuccess, TriggerKind: domain.TriggerReprice},
			{ID: "b", Status: domain.StatusDelayed},
			{ID: "c", Status: domain.StatusSuccess}, // no trigger, not persisted
		}
	}}
	sink := &captureSink{}
	eng := New(&captureStore{}, sink, nil, Config{BatchConcurrency: 1}, slog.Default(), mixed)

	_, err := eng.Reconcile(context.Background(), []domain.OrderNotice{{Kind: domain.OrderKindSudoswap}})
	require.NoError(t, err)

	require.Len(t, sink.updates, 1)
	assert.Equal(t, "a", sink.updates[0].ID)
	assert.Equal(t, domain.TriggerReprice, sink.updates[0].TriggerKind)
}

func TestReconcileEmptyBatch(t *testing.T) {
	eng := New(&captureStore{}, nil, nil, Config{}, slog.Default())
	results, err := eng.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
