// Package collectionxyz reconciles collection-pool AMM state into canonical
// order rows: one buy order per pool side, one sell order per held token.
package collectionxyz

import (
	"context"
	"errors"
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

// SourceDomain is the marketplace domain registered for pool orders.
const SourceDomain = "collection.xyz"

// carryDenominator scales the carry multiplier: carry, once converted to
// basis points, is the share of the trade fee per 1e5 that is forwarded to
// the factory.
const carryDenominator = 100_000

// feeUnitScale converts contract fee units (hundredths of a basis point)
// into basis points.
const feeUnitScale = 100

// Config holds the adapter's chain-level parameters.
type Config struct {
	Factory          common.Address
	TokenConcurrency int
	Cooldown         time.Duration
}

// Adapter reconciles collectionxyz pool notices.
type Adapter struct {
	client    *chain.Client
	factory   *chain.CollectionFactory
	orders    domain.OrderStore
	pools     domain.PoolStore
	poolCache domain.PoolCache
	sets      *tokenset.Manager
	royalties *royalty.Registry
	converter *pricing.Converter
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
	orders domain.OrderStore,
	pools domain.PoolStore,
	poolCache domain.PoolCache,
	sets *tokenset.Manager,
	royalties *royalty.Registry,
	converter *pricing.Converter,
	sampler *pricing.Sampler,
	upserter *protocol.Upserter,
	sources domain.SourceStore,
	cfg Config,
	log *slog.Logger,
) *Adapter {
	return &Adapter{
		client:    client,
		factory:   chain.NewCollectionFactory(client, cfg.Factory),
		orders:    orders,
		pools:     pools,
		poolCache: poolCache,
		sets:      sets,
		royalties: royalties,
		converter: converter,
		sampler:   sampler,
		upserter:  upserter,
		sources:   sources,
		cfg:       cfg,
		log:       log.With("adapter", "collectionxyz"),
	}
}

// Kind returns the protocol kind this adapter serves.
func (a *Adapter) Kind() domain.OrderKind {
	return domain.OrderKindCollectionXyz
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

// poolFacts carries everything a side needs beyond the pool metadata.
type poolFacts struct {
	pool             domain.Pool
	assetRecipient   common.Address
	externalFilter   common.Address
	royaltyFallback  common.Address
	tokenSetID       string
	schemaHash       common.Hash
	feeBps           int
	feeBreakdown     []domain.FeeBreakdownEntry
	royaltyRecipient common.Address
	royaltyBps       int
}

// Process reconciles one notice into zero or more canonical orders. Pool
// level failures produce a single terminal result; per-side and per-token
// failures never cross their isolation boundary.
func (a *Adapter) Process(ctx context.Context, notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
	pool, err := a.resolvePool(ctx, notice.Pool)
	if err != nil {
		a.log.Warn("pool resolution failed", "pool", notice.Pool.Hex(), "error", err)
		status := domain.StatusPoolUnavailable
		if notice.IsModifierEvent && errors.Is(err, domain.ErrNotFound) {
			status = domain.StatusMissingNewPoolInfo
		}
		return nil, []domain.ReconcileResult{poolResult(notice, status)}
	}

	facts, err := a.resolveFacts(ctx, pool, notice)
	if err != nil {
		a.log.Warn("pool facts unavailable", "pool", notice.Pool.Hex(), "error", err)
		return nil, []domain.ReconcileResult{poolResult(notice, factsStatus(err))}
	}

	guard := notice.Guard(domain.GuardProvenance, a.cfg.Cooldown)

	var orders []domain.Order
	var results []domain.ReconcileResult

	if pool.QuotesBuySide() {
		o, r := a.processBuySide(ctx, facts, notice, guard)
		orders = append(orders, o...)
		results = append(results, r...)
	}
	if pool.QuotesSellSide() {
		o, r := a.processSellSide(ctx, facts, notice, guard)
		orders = append(orders, o...)
		results = append(results, r...)
	}

	return orders, results
}

func poolResult(notice domain.OrderNotice, status domain.ReconcileStatus) domain.ReconcileResult {
	return domain.ReconcileResult{
		ID:          domain.OrderID(notice.Kind, notice.Pool, domain.OrderSideBuy, nil),
		TxHash:      notice.Provenance.TxHash,
		TxTimestamp: notice.Provenance.TxTimestamp,
		Status:      status,
	}
}

func factsStatus(err error) domain.ReconcileStatus {
	switch {
	case errors.Is(err, domain.ErrTokenListTooLarge):
		return domain.StatusTokenListTooLarge
	case errors.Is(err, errFilterIDsUnknown):
		return domain.StatusInvalidTokenSet
	case errors.Is(err, errNewPoolInfoMissing):
		return domain.StatusMissingNewPoolInfo
	default:
		return domain.StatusPoolUnavailable
	}
}

var (
	errFilterIDsUnknown   = errors.New("collectionxyz: filtered pool without token ids")
	errNewPoolInfoMissing = errors.New("collectionxyz: new pool accessors unavailable")
)

// resolvePool goes cache, store, chain; a chain-resolved pool is verified
// against the factory before being trusted.
func (a *Adapter) resolvePool(ctx context.Context, address common.Address) (domain.Pool, error) {
	if pool, err := a.poolCache.Get(ctx, address); err == nil {
		return pool, nil
	}
	if pool, err := a.pools.Get(ctx, address); err == nil {
		if cacheErr := a.poolCache.Set(ctx, pool); cacheErr != nil {
			a.log.Warn("pool cache write failed", "pool", address.Hex(), "error", cacheErr)
		}
		return pool, nil
	}

	genuine, err := a.factory.IsPool(ctx, address)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("%w: %s", domain.ErrPoolUnavailable, err)
	}
	if !genuine {
		return domain.Pool{}, fmt.Errorf("%s: %w", address.Hex(), domain.ErrPoolUnavailable)
	}

	pool, err := chain.NewCollectionPool(a.client, address).Metadata(ctx)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("%w: %s", domain.ErrPoolUnavailable, err)
	}

	if err := a.pools.Save(ctx, pool); err != nil {
		return domain.Pool{}, err
	}
	if err := a.poolCache.Set(ctx, pool); err != nil {
		a.log.Warn("pool cache write failed", "pool", address.Hex(), "error", err)
	}
	return pool, nil
}

// resolveFacts gathers the side-independent derived state: pool accessors,
// token set and fee schedule. Values the notice carries win over chain
// reads; fee schedules are reused from the stored row unless the notice
// marked them modified.
func (a *Adapter) resolveFacts(ctx context.Context, pool domain.Pool, notice domain.OrderNotice) (poolFacts, error) {
	caller := chain.NewCollectionPool(a.client, pool.Address)
	facts := poolFacts{pool: pool}

	var err error
	if notice.AssetRecipient != nil {
		facts.assetRecipient = *notice.AssetRecipient
	} else if facts.assetRecipient, err = caller.AssetRecipient(ctx); err != nil {
		return poolFacts{}, fmt.Errorf("%w: %s", errNewPoolInfoMissing, err)
	}
	if notice.ExternalFilter != nil {
		facts.externalFilter = *notice.ExternalFilter
	} else if facts.externalFilter, err = caller.ExternalFilter(ctx); err != nil {
		return poolFacts{}, fmt.Errorf("%w: %s", errNewPoolInfoMissing, err)
	}
	if notice.RoyaltyRecipientFallback != nil {
		facts.royaltyFallback = *notice.RoyaltyRecipientFallback
	} else if facts.royaltyFallback, err = caller.RoyaltyRecipientFallback(ctx); err != nil {
		return poolFacts{}, fmt.Errorf("%w: %s", errNewPoolInfoMissing, err)
	}

	if err := a.resolveTokenSet(ctx, caller, &facts, notice); err != nil {
		return poolFacts{}, err
	}
	if err := a.resolveFees(ctx, caller, &facts, notice); err != nil {
		return poolFacts{}, err
	}
	return facts, nil
}

// resolveTokenSet maps the pool's filter root onto a token set: the zero
// root means every token of the collection is eligible; a non-zero root
// needs the member ids, carried by the triggering event, to rebuild the
// list set.
func (a *Adapter) resolveTokenSet(ctx context.Context, caller *chain.CollectionPool, facts *poolFacts, notice domain.OrderNotice) error {
	root, err := caller.TokenIDFilterRoot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", errNewPoolInfoMissing, err)
	}

	if root == (common.Hash{}) {
		set, err := a.sets.EnsureContractWide(ctx, facts.pool.NFT)
		if err != nil {
			return err
		}
		facts.tokenSetID = set.ID
		facts.schemaHash = set.SchemaHash
		return nil
	}

	if !notice.TokenIDsSet {
		// The filter's membership only travels with the event that set
		// it; without it the stored token set, if any, stays in force.
		snap, err := a.snapshotForPool(ctx, facts.pool.Address)
		if err == nil && snap.TokenSetID != "" {
			facts.tokenSetID = snap.TokenSetID
			facts.schemaHash = snap.TokenSetSchemaHash
			return nil
		}
		return errFilterIDsUnknown
	}

	schema := tokenset.TokenListSchema(facts.pool.NFT, facts.pool.Address, notice.TokenIDs)
	set, err := a.sets.EnsureTokenList(ctx, schema, facts.pool.NFT, notice.TokenIDs, tokenset.SchemeTokenID)
	if err != nil {
		return err
	}
	if set.MerkleRoot != root {
		a.log.Warn("filter root mismatch",
			"pool", facts.pool.Address.Hex(),
			"expected", root.Hex(), "computed", set.MerkleRoot.Hex())
		return errFilterIDsUnknown
	}
	facts.tokenSetID = set.ID
	facts.schemaHash = set.SchemaHash
	return nil
}

func (a *Adapter) snapshotForPool(ctx context.Context, pool common.Address) (domain.OrderSnapshot, error) {
	id := domain.OrderID(domain.OrderKindCollectionXyz, pool, domain.OrderSideBuy, nil)
	return a.orders.GetSnapshot(ctx, id)
}

// resolveFees computes the classified breakdown from the pool's fee
// multipliers, or reuses the stored breakdown when the triggering event did
// not modify fees.
func (a *Adapter) resolveFees(ctx context.Context, caller *chain.CollectionPool, facts *poolFacts, notice domain.OrderNotice) error {
	if !notice.FeesModified {
		if snap, err := a.snapshotForPool(ctx, facts.pool.Address); err == nil && len(snap.FeeBreakdown) > 0 {
			facts.feeBps = snap.FeeBps
			facts.feeBreakdown = snap.FeeBreakdown
			for _, entry := range snap.FeeBreakdown {
				if entry.Kind == domain.FeeKindRoyalty {
					facts.royaltyRecipient = entry.Recipient
					facts.royaltyBps += entry.Bps
				}
			}
			return nil
		}
	}

	fm, err := caller.FeeMultipliers(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", errNewPoolInfoMissing, err)
	}

	recipient, err := a.royalties.ResolveRecipient(ctx, facts.pool.NFT, nil, facts.royaltyFallback, facts.assetRecipient)
	if err != nil {
		return err
	}
	facts.royaltyRecipient = recipient

	schedule := poolFeeSchedule(fm, a.cfg.Factory, facts.pool.Address, recipient)
	facts.feeBreakdown = schedule.breakdown
	facts.feeBps = schedule.feeBps
	facts.royaltyBps = schedule.royaltyBps
	return nil
}

type feeSchedule struct {
	breakdown  []domain.FeeBreakdownEntry
	feeBps     int
	royaltyBps int
}

// poolFeeSchedule splits a pool's raw fee multipliers into the classified
// breakdown. The factory takes the protocol fee plus the carried share of
// the trade fee; the remainder of the trade fee stays with the pool.
// Zero-rate components yield no entry.
func poolFeeSchedule(fm chain.FeeMultipliers, factory, pool, royaltyRecipient common.Address) feeSchedule {
	trade := fm.Trade.Int64()
	protocolFee := fm.Protocol.Int64()
	royaltyNum := fm.RoyaltyNumerator.Int64()
	carry := fm.Carry.Int64()

	factoryBps := roundDiv(protocolFee*feeUnitScale*carryDenominator+trade*carry, feeUnitScale*feeUnitScale*carryDenominator)
	poolBps := roundDiv(trade, feeUnitScale)
	royaltyBps := roundDiv(royaltyNum, feeUnitScale)

	var breakdown []domain.FeeBreakdownEntry
	if factoryBps > 0 {
		breakdown = append(breakdown, domain.FeeBreakdownEntry{
			Kind: domain.FeeKindMarketplace, Recipient: factory, Bps: int(factoryBps),
		})
	}
	if poolBps > 0 {
		breakdown = append(breakdown, domain.FeeBreakdownEntry{
			Kind: domain.FeeKindMarketplace, Recipient: pool, Bps: int(poolBps),
		})
	}
	if royaltyBps > 0 {
		breakdown = append(breakdown, domain.FeeBreakdownEntry{
			Kind: domain.FeeKindRoyalty, Recipient: royaltyRecipient, Bps: int(royaltyBps),
		})
	}

	return feeSchedule{
		breakdown:  breakdown,
		feeBps:     int(roundDiv(royaltyNum+protocolFee+trade, feeUnitScale)),
		royaltyBps: int(royaltyBps),
	}
}

func roundDiv(num, den int64) int64 {
	return (num + den/2) / den
}

// processBuySide reconciles the pool's single bid: the pool pays takers for
// NFTs, priced by the sell-quote series bounded by the pool's payable
// balance.
func (a *Adapter) processBuySide(ctx context.Context, facts poolFacts, notice domain.OrderNotice, guard domain.RecheckGuard) ([]domain.Order, []domain.ReconcileResult) {
	prov := notice.Provenance
	id := domain.OrderID(domain.OrderKindCollectionXyz, facts.pool.Address, domain.OrderSideBuy, nil)
	fail := func(status domain.ReconcileStatus) []domain.ReconcileResult {
		return []domain.ReconcileResult{{ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp, Status: status}}
	}

	// External filters gate fills with off-chain state this engine cannot
	// evaluate, so filtered bids are not indexable.
	if facts.externalFilter != (common.Address{}) {
		return nil, fail(domain.StatusExternalFilteredBids)
	}

	balance, err := a.payableBalance(ctx, facts.pool)
	if err != nil {
		a.log.Warn("pool balance unavailable", "pool", facts.pool.Address.Hex(), "error", err)
		return nil, fail(domain.StatusPoolUnavailable)
	}

	caller := chain.NewCollectionPool(a.client, facts.pool.Address)
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

	prices := pricing.Deltas(totals, 0)
	order, status := a.buildOrder(ctx, facts, buildParams{
		id:       id,
		side:     domain.OrderSideBuy,
		prices:   prices,
		quantity: uint64(len(prices)),
		prov:     prov,
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

// processSellSide reconciles per-token asks: one row per held token id, all
// sharing the buy-quote delta series, fanned out under the inner bound.
func (a *Adapter) processSellSide(ctx context.Context, facts poolFacts, notice domain.OrderNotice, guard domain.RecheckGuard) ([]domain.Order, []domain.ReconcileResult) {
	prov := notice.Provenance
	caller := chain.NewCollectionPool(a.client, facts.pool.Address)

	heldIDs, err := caller.HeldIDs(ctx)
	if err != nil {
		a.log.Warn("held ids unavailable", "pool", facts.pool.Address.Hex(), "error", err)
		return nil, []domain.ReconcileResult{{
			ID:     domain.OrderID(domain.OrderKindCollectionXyz, facts.pool.Address, domain.OrderSideSell, nil),
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
	prices := pricing.Deltas(totals, 0)

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
			outcomes[i].orders, outcomes[i].results = a.processAsk(ctx, facts, tokenID, prices, prov, guard)
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

func (a *Adapter) processAsk(ctx context.Context, facts poolFacts, tokenID *big.Int, prices []*big.Int, prov domain.Provenance, guard domain.RecheckGuard) (orders []domain.Order, results []domain.ReconcileResult) {
	id := domain.OrderID(domain.OrderKindCollectionXyz, facts.pool.Address, domain.OrderSideSell, tokenID)

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

	set, err := a.sets.EnsureSingleToken(ctx, facts.pool.NFT, tokenID)
	if err != nil {
		a.log.Warn("single-token set failed", "id", id, "error", err)
		return nil, []domain.ReconcileResult{{
			ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp,
			Status: domain.StatusInvalidTokenSet,
		}}
	}

	askFacts := facts
	askFacts.tokenSetID = set.ID
	askFacts.schemaHash = set.SchemaHash

	order, status := a.buildOrder(ctx, askFacts, buildParams{
		id:       id,
		side:     domain.OrderSideSell,
		prices:   prices,
		quantity: 1,
		tokenID:  tokenID,
		prov:     prov,
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

type buildParams struct {
	id       string
	side     domain.OrderSide
	prices   []*big.Int
	quantity uint64
	tokenID  *big.Int
	prov     domain.Provenance
}

// buildOrder assembles the canonical row for one side of the pool,
// reconciling royalties and converting pricing into native units.
func (a *Adapter) buildOrder(ctx context.Context, facts poolFacts, p buildParams) (domain.Order, domain.ReconcileStatus) {
	price := p.prices[0]
	if price.Sign() <= 0 {
		return domain.Order{}, domain.StatusZeroPrice
	}

	defaults, err := a.royalties.Default(ctx, facts.pool.NFT)
	if err != nil {
		a.log.Warn("default royalties unavailable", "id", p.id, "error", err)
		return domain.Order{}, domain.StatusError
	}
	missing := royalty.MissingAgainstRecipient(price, defaults, facts.royaltyRecipient, facts.royaltyBps)

	value := new(big.Int).Set(price)
	normalized := royalty.NormalizeValue(p.side, value, missing)

	order := domain.Order{
		ID:                      p.id,
		Kind:                    domain.OrderKindCollectionXyz,
		Side:                    p.side,
		FillabilityStatus:       domain.FillabilityFillable,
		ApprovalStatus:          domain.ApprovalApproved,
		TokenSetID:              facts.tokenSetID,
		TokenSetSchemaHash:      facts.schemaHash,
		Maker:                   facts.pool.Address,
		Contract:                facts.pool.NFT,
		Currency:                facts.pool.Token,
		CurrencyPrice:           price,
		CurrencyValue:           value,
		CurrencyNormalizedValue: normalized,
		NeedsConversion:         a.converter.NeedsConversion(facts.pool.Token),
		QuantityRemaining:       p.quantity,
		ValidFrom:               p.prov.Time(),
		SourceID:                a.source(ctx),
		FeeBps:                  facts.feeBps,
		FeeBreakdown:            facts.feeBreakdown,
		MissingRoyalties:        missing,
		BlockNumber:             p.prov.Block,
		LogIndex:                p.prov.LogIndex,
	}

	// Each amount converts independently so rounding never compounds.
	order.Price, err = a.converter.ToNative(ctx, facts.pool.Token, price, p.prov.TxTimestamp)
	if err == nil {
		order.Value, err = a.converter.ToNative(ctx, facts.pool.Token, value, p.prov.TxTimestamp)
	}
	if err == nil {
		order.NormalizedValue, err = a.converter.ToNative(ctx, facts.pool.Token, normalized, p.prov.TxTimestamp)
	}
	if err != nil {
		a.log.Warn("price conversion failed", "id", p.id, "error", err)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, domain.StatusUnsupportedCurrency
		}
		return domain.Order{}, domain.StatusFailedToConvertPrice
	}

	raw := &domain.CollectionPoolRawData{
		Pool:                     facts.pool.Address,
		ExternalFilter:           facts.externalFilter,
		TokenSetID:               facts.tokenSetID,
		AssetRecipient:           facts.assetRecipient,
		RoyaltyRecipientFallback: facts.royaltyFallback,
	}
	raw.Extra.SetPrices(p.prices)
	order.RawData = domain.RawData{Kind: domain.OrderKindCollectionXyz, CollectionPool: raw}

	return order, domain.StatusSuccess
}

// payableBalance is the pool's spendable balance in its payment asset,
// bounding how deep the bid series may quote.
func (a *Adapter) payableBalance(ctx context.Context, pool domain.Pool) (*big.Int, error) {
	if pool.Token == (common.Address{}) {
		return a.client.NativeBalance(ctx, pool.Address)
	}
	return a.client.TokenBalance(ctx, pool.Token, pool.Address)
}
