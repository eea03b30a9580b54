// Package engine is the batch coordinator: it fans a batch of order-update
// notices out to the protocol adapters under a bounded worker pool, isolates
// per-item failures, lands all inserts in one conflict-skip batch and hands
// the successes to the downstream notifier.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/chainbook/chainbook/internal/domain"
)

// Adapter reconciles notices of one protocol kind into canonical orders.
// Process must never panic through to the caller's goroutine boundary for
// per-token work; the engine additionally guards the per-notice boundary.
type Adapter interface {
	Kind() domain.OrderKind
	Process(ctx context.Context, notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult)
}

// Config tunes the coordinator.
type Config struct {
	// BatchConcurrency bounds concurrently processed notices.
	BatchConcurrency int
}

// Engine dispatches reconcile batches.
type Engine struct {
	adapters map[domain.OrderKind]Adapter
	orders   domain.OrderStore
	sink     domain.ResultSink
	archiver domain.BatchArchiver

	cfg Config
	log *slog.Logger
}

// New creates an Engine. sink and archiver may be nil, disabling the
// respective handoffs.
func New(orders domain.OrderStore, sink domain.ResultSink, archiver domain.BatchArchiver, cfg Config, log *slog.Logger, adapters ...Adapter) *Engine {
	byKind := make(map[domain.OrderKind]Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	return &Engine{
		adapters: byKind,
		orders:   orders,
		sink:     sink,
		archiver: archiver,
		cfg:      cfg,
		log:      log.With("component", "engine"),
	}
}

type noticeOutcome struct {
	orders  []domain.Order
	results []domain.ReconcileResult
}

// Reconcile processes one batch of notices and returns at least one result
// per notice. Only total infrastructure failure (the insert batch itself
// failing) aborts the call; every per-item failure is converted into a
// status.
func (e *Engine) Reconcile(ctx context.Context, notices []domain.OrderNotice) ([]domain.ReconcileResult, error) {
	if len(notices) == 0 {
		return nil, nil
	}

	outcomes := make([]noticeOutcome, len(notices))
	sem := semaphore.NewWeighted(int64(e.cfg.BatchConcurrency))

	var wg sync.WaitGroup
	for i, notice := range notices {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("engine: acquire worker: %w", err)
		}
		wg.Add(1)
		go func(i int, notice domain.OrderNotice) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = e.processNotice(ctx, notice)
		}(i, notice)
	}
	wg.Wait()

	var inserts []domain.Order
	var results []domain.ReconcileResult
	for _, o := range outcomes {
		inserts = append(inserts, o.orders...)
		results = append(results, o.results...)
	}

	if err := e.orders.InsertBatch(ctx, inserts); err != nil {
		return nil, fmt.Errorf("engine: insert batch: %w", err)
	}

	e.publish(ctx, results)
	e.archive(ctx, results)

	e.log.Info("batch reconciled",
		"notices", len(notices), "results", len(results), "inserts", len(inserts))
	return results, nil
}

// processNotice runs one notice inside its isolating boundary: a missing
// adapter, a panic, or an adapter yielding nothing all degrade into a
// status, never into a batch failure.
func (e *Engine) processNotice(ctx context.Context, notice domain.OrderNotice) (out noticeOutcome) {
	fallback := func(status domain.ReconcileStatus) noticeOutcome {
		return noticeOutcome{results: []domain.ReconcileResult{{
			TxHash:      notice.Provenance.TxHash,
			TxTimestamp: notice.Provenance.TxTimestamp,
			Status:      status,
		}}}
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("notice reconciliation panic",
				"kind", string(notice.Kind), "pool", notice.Pool.Hex(), "panic", r)
			out = fallback(domain.StatusError)
		}
	}()

	adapter, ok := e.adapters[notice.Kind]
	if !ok {
		e.log.Warn("no adapter for notice", "kind", string(notice.Kind))
		return fallback(domain.StatusUnsupportedKind)
	}

	orders, results := adapter.Process(ctx, notice)
	if len(results) == 0 {
		// Every notice owes the downstream consumer a result.
		return fallback(domain.StatusNotFillable)
	}
	return noticeOutcome{orders: orders, results: results}
}

func (e *Engine) publish(ctx context.Context, results []domain.ReconcileResult) {
	if e.sink == nil {
		return
	}

	var updates []domain.OrderUpdate
	for _, r := range results {
		if r.Status != domain.StatusSuccess || r.TriggerKind == "" {
			continue
		}
		updates = append(updates, domain.OrderUpdate{
			ID:          r.ID,
			TxHash:      r.TxHash,
			TxTimestamp: r.TxTimestamp,
			TriggerKind: r.TriggerKind,
		})
	}
	if len(updates) == 0 {
		return
	}

	if err := e.sink.Publish(ctx, updates); err != nil {
		e.log.Error("order update publish failed", "count", len(updates), "error", err)
	}
}

func (e *Engine) archive(ctx context.Context, results []domain.ReconcileResult) {
	if e.archiver == nil || len(results) == 0 {
		return
	}

	batchID := uuid.NewString()
	if err := e.archiver.ArchiveBatch(ctx, batchID, results); err != nil {
		e.log.Warn("batch archive failed", "batch", batchID, "error", err)
	}
}
