// Package sudoswap reconciles sweep-protocol AMM pairs into canonical order
// rows. Pairs quote through curve error codes rather than reverts, settle
// only in the native currency for indexing purposes, and carry a flat
// protocol fee instead of a per-pool schedule.
package sudoswap

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"

	"github.com/chainbook/chainbook/internal/chain"
	"github.com/chainbook/chainbook/internal/domain"
	"github.com/chainbook/chainbook/internal/pricing"
	"github.com/chainbook/chainbook/internal/protocol"
	"github.com/chainbook/chainbook/internal/royalty"
	"github.com/chainbook/chainbook/internal/tokenset"
)

// SourceDomain is the marketplace domain registered for pair orders.
const SourceDomain = "sudoswap.xyz"

// protocolFeeBps is the flat marketplace fee every pair pays the protocol.
const protocolFeeBps = 50

// DefaultProtocolFeeRecipient receives the protocol fee on mainnet.
var DefaultProtocolFeeRecipient = common.HexToAddress("0x4e2f98c96e2d595a83afa35888c4af58ac343e44")

// Config holds the adapter's chain-level parameters.
type Config struct {
	ProtocolFeeRecipient common.Address
	TokenConcurrency     int
	Cooldown             time.Duration
}

// Adapter reconciles sweep-pair notices.
type Adapter struct {
	client    *chain.Client
	pools     domain.PoolStore
	poolCache domain.PoolCache
	sets      *tokenset.Manager
	royalties *royalty.Registry
	sampler   *pricing.Sampler
	upserter  *protocol.Upserter
	sources   domain.SourceStore

	cfg Config
	log *slog.Logger

	sourceMu sync.Mutex
	sourceID int64
}

// NewAdapter wires the adapter's collaborators.
func NewAdapter(
	client *chain.Client,
	pools domain.PoolStore,
	poolCache domain.PoolCache,
	sets *tokenset.Manager,
	royalties *royalty.Registry,
	sampler *pricing.Sampler,
	upserter *protocol.Upserter,
	sources domain.SourceStore,
	cfg Config,
	log *slog.Logger,
) *Adapter {
	if cfg.ProtocolFeeRecipient == (common.Address{}) {
		cfg.ProtocolFeeRecipient = DefaultProtocolFeeRecipient
	}
	return &Adapter{
		client:    client,
		pools:     pools,
		poolCache: poolCache,
		sets:      sets,
		royalties: royalties,
		sampler:   sampler,
		upserter:  upserter,
		sources:   sources,
		cfg:       cfg,
		log:       log.With("adapter", "sudoswap"),
	}
}

// Kind returns the protocol kind this adapter serves.
func (a *Adapter) Kind() domain.OrderKind {
	return domain.OrderKindSudoswap
}

// source lazily registers the marketplace domain and caches its id. A
// failed registration is retried on the next call rather than cached.
func (a *Adapter) source(ctx context.Context) int64 {
	a.sourceMu.Lock()
	defer a.sourceMu.Unlock()
	if a.sourceID != 0 {
		return a.sourceID
	}
	src, err := a.sources.GetOrInsert(ctx, SourceDomain)
	if err != nil {
		a.log.Warn("source registration failed", "domain", SourceDomain, "error", err)
		return 0
	}
	a.sourceID = src.ID
	return a.sourceID
}

// Process reconciles one pair notice. ERC-20 pairs abort at pool level as an
// unsupported currency; everything else proceeds per side.
func (a *Adapter) Process(ctx context.Context, notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
	prov := notice.Provenance
	poolResult := func(status domain.ReconcileStatus) []domain.ReconcileResult {
		return []domain.ReconcileResult{{
			ID:          domain.OrderID(domain.OrderKindSudoswap, notice.Pool, domain.OrderSideBuy, nil),
			TxHash:      prov.TxHash,
			TxTimestamp: prov.TxTimestamp,
			Status:      status,
		}}
	}

	pool, err := a.resolvePool(ctx, notice.Pool)
	if err != nil {
		a.log.Warn("pair resolution failed", "pair", notice.Pool.Hex(), "error", err)
		return nil, poolResult(domain.StatusPoolUnavailable)
	}

	if pool.Token != (common.Address{}) {
		return nil, poolResult(domain.StatusUnsupportedCurrency)
	}

	guard := notice.Guard(domain.GuardValidFrom, a.cfg.Cooldown)
	caller := chain.NewSweepPair(a.client, pool.Address)

	var orders []domain.Order
	var results []domain.ReconcileResult

	if pool.QuotesBuySide() {
		o, r := a.processBuySide(ctx, caller, pool, prov, guard)
		orders = append(orders, o...)
		results = append(results, r...)
	}
	if pool.QuotesSellSide() {
		o, r := a.processSellSide(ctx, caller, pool, prov, guard)
		orders = append(orders, o...)
		results = append(results, r...)
	}
	return orders, results
}

func (a *Adapter) resolvePool(ctx context.Context, address common.Address) (domain.Pool, error) {
	if pool, err := a.poolCache.Get(ctx, address); err == nil {
		return pool, nil
	}
	if pool, err := a.pools.Get(ctx, address); err == nil {
		if cacheErr := a.poolCache.Set(ctx, pool); cacheErr != nil {
			a.log.Warn("pool cache write failed", "pair", address.Hex(), "error", cacheErr)
		}
		return pool, nil
	}

	pool, err := chain.NewSweepPair(a.client, address).Metadata(ctx)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("%w: %s", domain.ErrPoolUnavailable, err)
	}

	if err := a.pools.Save(ctx, pool); err != nil {
		return domain.Pool{}, err
	}
	if err := a.poolCache.Set(ctx, pool); err != nil {
		a.log.Warn("pool cache write failed", "pair", address.Hex(), "error", err)
	}
	return pool, nil
}

func (a *Adapter) feeBreakdown() (int, []domain.FeeBreakdownEntry) {
	return protocolFeeBps, []domain.FeeBreakdownEntry{{
		Kind:      domain.FeeKindMarketplace,
		Recipient: a.cfg.ProtocolFeeRecipient,
		Bps:       protocolFeeBps,
	}}
}

// processBuySide reconciles the pair's single bid, priced by the sell-quote
// series bounded by the pair's native balance.
func (a *Adapter) processBuySide(ctx context.Context, caller *chain.SweepPair, pool domain.Pool, prov domain.Provenance, guard domain.RecheckGuard) ([]domain.Order, []domain.ReconcileResult) {
	id := domain.OrderID(domain.OrderKindSudoswap, pool.Address, domain.OrderSideBuy, nil)
	fail := func(status domain.ReconcileStatus) []domain.ReconcileResult {
		return []domain.ReconcileResult{{ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp, Status: status}}
	}

	balance, err := a.client.NativeBalance(ctx, pool.Address)
	if err != nil {
		a.log.Warn("pair balance unavailable", "pair", pool.Address.Hex(), "error", err)
		return nil, fail(domain.StatusPoolUnavailable)
	}

	totals, err := a.sampler.Sample(ctx,
		func(ctx context.Context, depth int) (*big.Int, error) {
			return caller.SellQuote(ctx, depth)
		},
		func(total *big.Int) bool { return total.Cmp(balance) <= 0 },
	)
	if err != nil {
		return nil, fail(domain.StatusError)
	}

	if len(totals) == 0 {
		outcome, err := a.upserter.SetNoBalance(ctx, id, prov, guard)
		if err != nil {
			a.log.Error("no-balance transition failed", "id", id, "error", err)
			return nil, fail(domain.StatusError)
		}
		return nil, []domain.ReconcileResult{outcome.Result}
	}

	set, err := a.sets.EnsureContractWide(ctx, pool.NFT)
	if err != nil {
		a.log.Warn("contract-wide set failed", "id", id, "error", err)
		return nil, fail(domain.StatusInvalidTokenSet)
	}

	prices := pricing.Deltas(totals, 0)
	order, status := a.buildOrder(ctx, pool, orderParams{
		id:         id,
		side:       domain.OrderSideBuy,
		tokenSetID: set.ID,
		schemaHash: set.SchemaHash,
		prices:     prices,
		quantity:   uint64(len(prices)),
		prov:       prov,
	})
	if status != domain.StatusSuccess {
		return nil, fail(status)
	}

	outcome, err := a.upserter.Apply(ctx, order, guard, prov)
	if err != nil {
		a.log.Error("bid upsert failed", "id", id, "error", err)
		return nil, fail(domain.StatusError)
	}

	var inserts []domain.Order
	if outcome.Insert != nil {
		inserts = append(inserts, *outcome.Insert)
	}
	return inserts, []domain.ReconcileResult{outcome.Result}
}

// processSellSide reconciles per-token asks from the pair's held ids. Ask
// deltas gain one wei because the pair's buy quote rounds the marginal price
// down, and a fill below the true price reverts.
func (a *Adapter) processSellSide(ctx context.Context, caller *chain.SweepPair, pool domain.Pool, prov domain.Provenance, guard domain.RecheckGuard) ([]domain.Order, []domain.ReconcileResult) {
	heldIDs, err := caller.HeldIDs(ctx)
	if err != nil {
		a.log.Warn("held ids unavailable", "pair", pool.Address.Hex(), "error", err)
		return nil, []domain.ReconcileResult{{
			ID:     domain.OrderID(domain.OrderKindSudoswap, pool.Address, domain.OrderSideSell, nil),
			TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp,
			Status: domain.StatusPoolUnavailable,
		}}
	}
	if len(heldIDs) == 0 {
		return nil, nil
	}

	totals, err := a.sampler.Sample(ctx,
		func(ctx context.Context, depth int) (*big.Int, error) {
			return caller.BuyQuote(ctx, depth)
		}, nil)
	if err != nil || len(totals) == 0 {
		return nil, nil
	}
	prices := pricing.Deltas(totals, 1)

	concurrency := a.cfg.TokenConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	type tokenOutcome struct {
		orders  []domain.Order
		results []domain.ReconcileResult
	}
	outcomes := make([]tokenOutcome, len(heldIDs))

	var wg sync.WaitGroup
	for i, tokenID := range heldIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, tokenID *big.Int) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i].orders, outcomes[i].results = a.processAsk(ctx, pool, tokenID, prices, prov, guard)
		}(i, tokenID)
	}
	wg.Wait()

	var orders []domain.Order
	var results []domain.ReconcileResult
	for _, o := range outcomes {
		orders = append(orders, o.orders...)
		results = append(results, o.results...)
	}
	return orders, results
}

func (a *Adapter) processAsk(ctx context.Context, pool domain.Pool, tokenID *big.Int, prices []*big.Int, prov domain.Provenance, guard domain.RecheckGuard) (orders []domain.Order, results []domain.ReconcileResult) {
	id := domain.OrderID(domain.OrderKindSudoswap, pool.Address, domain.OrderSideSell, tokenID)

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("ask reconciliation panic", "id", id, "panic", r)
			orders = nil
			results = []domain.ReconcileResult{{
				ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp,
				Status: domain.StatusError,
			}}
		}
	}()

	set, err := a.sets.EnsureSingleToken(ctx, pool.NFT, tokenID)
	if err != nil {
		a.log.Warn("single-token set failed", "id", id, "error", err)
		return nil, []domain.ReconcileResult{{
			ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp,
			Status: domain.StatusInvalidTokenSet,
		}}
	}

	order, status := a.buildOrder(ctx, pool, orderParams{
		id:         id,
		side:       domain.OrderSideSell,
		tokenSetID: set.ID,
		schemaHash: set.SchemaHash,
		prices:     prices,
		quantity:   1,
		tokenID:    tokenID,
		prov:       prov,
	})
	if status != domain.StatusSuccess {
		return nil, []domain.ReconcileResult{{
			ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp, Status: status,
		}}
	}

	outcome, err := a.upserter.Apply(ctx, order, guard, prov)
	if err != nil {
		a.log.Error("ask upsert failed", "id", id, "error", err)
		return nil, []domain.ReconcileResult{{
			ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp,
			Status: domain.StatusError,
		}}
	}
	if outcome.Insert != nil {
		orders = append(orders, *outcome.Insert)
	}
	return orders, []domain.ReconcileResult{outcome.Result}
}

type orderParams struct {
	id         string
	side       domain.OrderSide
	tokenSetID string
	schemaHash common.Hash
	prices     []*big.Int
	quantity   uint64
	tokenID    *big.Int
	prov       domain.Provenance
}

// buildOrder assembles the canonical row for one pair side. Pairs settle in
// native units so pricing needs no conversion; every default royalty is
// missing since pairs pay none.
func (a *Adapter) buildOrder(ctx context.Context, pool domain.Pool, p orderParams) (domain.Order, domain.ReconcileStatus) {
	price := p.prices[0]
	if price.Sign() <= 0 {
		return domain.Order{}, domain.StatusZeroPrice
	}

	defaults, err := a.royalties.Default(ctx, pool.NFT)
	if err != nil {
		a.log.Warn("default royalties unavailable", "id", p.id, "error", err)
		return domain.Order{}, domain.StatusError
	}
	missing := royalty.Missing(price, defaults, 0)

	value := new(big.Int).Set(price)
	normalized := royalty.NormalizeValue(p.side, value, missing)
	feeBps, breakdown := a.feeBreakdown()

	raw := &domain.SweepPoolRawData{Pair: pool.Address}
	if p.tokenID != nil {
		raw.TokenID = p.tokenID.String()
	}
	raw.Extra.SetPrices(p.prices)

	return domain.Order{
		ID:                      p.id,
		Kind:                    domain.OrderKindSudoswap,
		Side:                    p.side,
		FillabilityStatus:       domain.FillabilityFillable,
		ApprovalStatus:          domain.ApprovalApproved,
		TokenSetID:              p.tokenSetID,
		TokenSetSchemaHash:      p.schemaHash,
		Maker:                   pool.Address,
		Contract:                pool.NFT,
		Currency:                common.Address{},
		Price:                   new(big.Int).Set(price),
		Value:                   value,
		NormalizedValue:         normalized,
		CurrencyPrice:           new(big.Int).Set(price),
		CurrencyValue:           new(big.Int).Set(value),
		CurrencyNormalizedValue: new(big.Int).Set(normalized),
		NeedsConversion:         false,
		QuantityRemaining:       p.quantity,
		ValidFrom:               p.prov.Time(),
		SourceID:                a.source(ctx),
		FeeBps:                  feeBps,
		FeeBreakdown:            breakdown,
		MissingRoyalties:        missing,
		RawData:                 domain.RawData{Kind: domain.OrderKindSudoswap, SweepPool: raw},
		BlockNumber:             p.prov.Block,
		LogIndex:                p.prov.LogIndex,
	}, domain.StatusSuccess
}
