// Package pricing samples bonding curves into discrete price points and
// normalizes amounts across payment currencies.
package pricing

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Quoter returns the cumulative amount for filling depth tokens against a
// pool, fees included. An error marks the depth unquotable.
type Quoter func(ctx context.Context, depth int) (*big.Int, error)

// Validator accepts or rejects a quoted cumulative total, e.g. rejecting bid
// totals beyond the pool's payable balance. A nil Validator accepts
// everything.
type Validator func(total *big.Int) bool

// Sampler probes a pool's bonding curve at depths 1..maxPoints.
type Sampler struct {
	maxPoints   int
	concurrency int64
}

// NewSampler creates a Sampler quoting up to maxPoints depths with at most
// concurrency probes in flight.
func NewSampler(maxPoints, concurrency int) *Sampler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sampler{maxPoints: maxPoints, concurrency: int64(concurrency)}
}

// Sample quotes all depths concurrently and returns the cumulative totals
// truncated at the first unquotable or rejected depth. Depths beyond the
// first invalid one are discarded even when they quoted successfully, so the
// result is always a contiguous prefix. An empty result is not an error;
// callers decide what an unquotable pool means.
func (s *Sampler) Sample(ctx context.Context, quote Quoter, validate Validator) ([]*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	totals := make([]*big.Int, s.maxPoints)
	sem := semaphore.NewWeighted(s.concurrency)

	var wg sync.WaitGroup
	for depth := 1; depth <= s.maxPoints; depth++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(depth int) {
			defer wg.Done()
			defer sem.Release(1)

			total, err := quote(ctx, depth)
			if err != nil || total == nil {
				return
			}
			if validate != nil && !validate(total) {
				return
			}
			totals[depth-1] = total
		}(depth)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	valid := 0
	for _, total := range totals {
		if total == nil {
			break
		}
		valid++
	}
	return totals[:valid], nil
}

// Deltas converts cumulative totals into per-unit price points, adding
// extraWei to each point. Sweep-pool asks quote exclusive totals, so they
// pass extraWei=1 to round up to the fillable price.
func Deltas(totals []*big.Int, extraWei int64) []*big.Int {
	deltas := make([]*big.Int, len(totals))
	prev := new(big.Int)
	for i, total := range totals {
		delta := new(big.Int).Sub(total, prev)
		if extraWei != 0 {
			delta.Add(delta, big.NewInt(extraWei))
		}
		deltas[i] = delta
		prev = total
	}
	return deltas
}

// ErrNoQuotes is returned by helpers that require at least one price point.
var ErrNoQuotes = errors.New("pricing: no quotable depths")

// TopPrice returns the first price point, the one an immediate fill pays.
func TopPrice(deltas []*big.Int) (*big.Int, error) {
	if len(deltas) == 0 {
		return nil, ErrNoQuotes
	}
	return deltas[0], nil
}
