// Package seaport reconciles observed signed exchange orders into canonical
// rows. Unlike the pool adapters there is no sampling: the notice already
// carries the order digest, and the work is classification, token-set
// resolution, royalty reconciliation and currency normalization.
package seaport

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/domain"
	"github.com/chainbook/chainbook/internal/pricing"
	"github.com/chainbook/chainbook/internal/protocol"
	"github.com/chainbook/chainbook/internal/royalty"
	"github.com/chainbook/chainbook/internal/tokenset"
)

// FallbackSourceDomain is registered when a notice names no source.
const FallbackSourceDomain = "opensea.io"

// maxFeeBps rejects orders whose built-in fees exceed the full price.
const maxFeeBps = 10000

// FillabilityChecker verifies that the maker can still honor the order. The
// production implementation consults maker balances and approvals; tests
// substitute fixed outcomes.
type FillabilityChecker interface {
	Check(ctx context.Context, info *domain.SeaportOrderInfo) (domain.FillabilityOutcome, error)
}

// AssumeFillable is the permissive checker used when no balance oracle is
// wired; ingestion-layer validation has already rejected dead orders.
type AssumeFillable struct{}

// Check reports every order fillable.
func (AssumeFillable) Check(context.Context, *domain.SeaportOrderInfo) (domain.FillabilityOutcome, error) {
	return domain.OutcomeFillable, nil
}

// Config holds the adapter's parameters.
type Config struct {
	Cooldown time.Duration
}

// Adapter reconciles seaport-style order notices.
type Adapter struct {
	sets        *tokenset.Manager
	royalties   *royalty.Registry
	converter   *pricing.Converter
	upserter    *protocol.Upserter
	sources     domain.SourceStore
	fillability FillabilityChecker
	policy      royalty.ClassifyPolicy

	cfg Config
	log *slog.Logger
}

// NewAdapter wires the adapter's collaborators. fillability may be nil, in
// which case orders are assumed fillable.
func NewAdapter(
	sets *tokenset.Manager,
	royalties *royalty.Registry,
	converter *pricing.Converter,
	upserter *protocol.Upserter,
	sources domain.SourceStore,
	fillability FillabilityChecker,
	policy royalty.ClassifyPolicy,
	cfg Config,
	log *slog.Logger,
) *Adapter {
	if fillability == nil {
		fillability = AssumeFillable{}
	}
	return &Adapter{
		sets:        sets,
		royalties:   royalties,
		converter:   converter,
		upserter:    upserter,
		sources:     sources,
		fillability: fillability,
		policy:      policy,
		cfg:         cfg,
		log:         log.With("adapter", "seaport"),
	}
}

// Kind returns the protocol kind this adapter serves.
func (a *Adapter) Kind() domain.OrderKind {
	return domain.OrderKindSeaport
}

// Process reconciles one signed-order notice into at most one canonical row.
func (a *Adapter) Process(ctx context.Context, notice domain.OrderNotice) ([]domain.Order, []domain.ReconcileResult) {
	prov := notice.Provenance
	info := notice.Seaport
	if info == nil {
		return nil, []domain.ReconcileResult{{
			TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp,
			Status: domain.StatusError,
		}}
	}

	id := strings.ToLower(info.OrderHash.Hex())
	fail := func(status domain.ReconcileStatus) []domain.ReconcileResult {
		return []domain.ReconcileResult{{ID: id, TxHash: prov.TxHash, TxTimestamp: prov.TxTimestamp, Status: status}}
	}

	if info.Price == nil || info.Price.Sign() <= 0 {
		return nil, fail(domain.StatusZeroPrice)
	}
	if info.EndTime != 0 && info.EndTime <= prov.TxTimestamp {
		return nil, fail(domain.StatusExpired)
	}

	set, status := a.resolveTokenSet(ctx, info)
	if status != domain.StatusSuccess {
		return nil, fail(status)
	}

	breakdown, feeBps, status := a.classifyFees(ctx, info)
	if status != domain.StatusSuccess {
		return nil, fail(status)
	}

	outcome, err := a.fillability.Check(ctx, info)
	if err != nil {
		a.log.Warn("fillability check failed", "id", id, "error", err)
		return nil, fail(domain.StatusError)
	}
	if outcome == domain.OutcomeNotFillable {
		return nil, fail(domain.StatusNotFillable)
	}
	fillabilityStatus, approvalStatus := outcome.Statuses()

	order, status := a.buildOrder(ctx, info, set, breakdown, feeBps, fillabilityStatus, approvalStatus, prov)
	if status != domain.StatusSuccess {
		return nil, fail(status)
	}
	order.ID = id

	guard := notice.Guard(domain.GuardProvenance, a.cfg.Cooldown)
	applied, err := a.upserter.Apply(ctx, order, guard, prov)
	if err != nil {
		a.log.Error("order upsert failed", "id", id, "error", err)
		return nil, fail(domain.StatusError)
	}

	var inserts []domain.Order
	if applied.Insert != nil {
		inserts = append(inserts, *applied.Insert)
	}
	return inserts, []domain.ReconcileResult{applied.Result}
}

// resolveTokenSet maps the order's scope onto a token set. Token lists need
// the member ids to persist provable membership; a root alone is not enough.
func (a *Adapter) resolveTokenSet(ctx context.Context, info *domain.SeaportOrderInfo) (domain.TokenSet, domain.ReconcileStatus) {
	switch info.Scope {
	case domain.SeaportScopeSingleToken:
		if info.TokenID == nil {
			return domain.TokenSet{}, domain.StatusInvalidTokenSet
		}
		set, err := a.sets.EnsureSingleToken(ctx, info.Contract, info.TokenID)
		if err != nil {
			return domain.TokenSet{}, domain.StatusInvalidTokenSet
		}
		return set, domain.StatusSuccess

	case domain.SeaportScopeContractWide:
		set, err := a.sets.EnsureContractWide(ctx, info.Contract)
		if err != nil {
			return domain.TokenSet{}, domain.StatusInvalidTokenSet
		}
		return set, domain.StatusSuccess

	case domain.SeaportScopeTokenList:
		if len(info.TokenIDs) == 0 {
			return domain.TokenSet{}, domain.StatusInvalidTokenSet
		}
		schema := tokenset.AdHocListSchema(info.Contract, info.TokenIDs)
		set, err := a.sets.EnsureTokenList(ctx, schema, info.Contract, info.TokenIDs, tokenset.SchemeContractTokenID)
		if err != nil {
			return domain.TokenSet{}, protocol.StatusForError(err)
		}
		if info.MerkleRoot != (common.Hash{}) && set.MerkleRoot != info.MerkleRoot {
			a.log.Warn("token list root mismatch",
				"order", info.OrderHash.Hex(),
				"expected", info.MerkleRoot.Hex(), "computed", set.MerkleRoot.Hex())
			return domain.TokenSet{}, domain.StatusInvalidTokenSet
		}
		return set, domain.StatusSuccess

	default:
		return domain.TokenSet{}, domain.StatusInvalidTokenSet
	}
}

// classifyFees converts the order's absolute fee amounts to bps and tags
// each entry via the classification policy, informed by the collection's
// known royalty recipients.
func (a *Adapter) classifyFees(ctx context.Context, info *domain.SeaportOrderInfo) ([]domain.FeeBreakdownEntry, int, domain.ReconcileStatus) {
	raw := make([]royalty.RawFee, 0, len(info.Fees))
	feeBps := 0
	for _, fee := range info.Fees {
		if fee.Amount == nil || fee.Amount.Sign() <= 0 {
			continue
		}
		bps := new(big.Int).Mul(fee.Amount, big.NewInt(10000))
		bps.Div(bps, info.Price)
		// Reject before narrowing: a fee amount dwarfing the price must not
		// wrap into a small int.
		if bps.Cmp(big.NewInt(maxFeeBps)) > 0 {
			return nil, 0, domain.StatusFeesTooHigh
		}
		raw = append(raw, royalty.RawFee{Recipient: fee.Recipient, Bps: int(bps.Int64())})
		feeBps += int(bps.Int64())
	}
	if feeBps > maxFeeBps {
		return nil, 0, domain.StatusFeesTooHigh
	}

	known, err := a.knownRoyalties(ctx, info)
	if err != nil {
		a.log.Warn("royalty lookup failed", "order", info.OrderHash.Hex(), "error", err)
		return nil, 0, domain.StatusError
	}

	return a.policy.Classify(raw, known), feeBps, domain.StatusSuccess
}

func (a *Adapter) knownRoyalties(ctx context.Context, info *domain.SeaportOrderInfo) ([]domain.Royalty, error) {
	defaults, err := a.royalties.Default(ctx, info.Contract)
	if err != nil {
		return nil, err
	}
	onchain, err := a.royalties.OnChain(ctx, info.Contract, info.TokenID)
	if err != nil {
		return nil, err
	}
	return append(defaults, onchain...), nil
}

func (a *Adapter) buildOrder(
	ctx context.Context,
	info *domain.SeaportOrderInfo,
	set domain.TokenSet,
	breakdown []domain.FeeBreakdownEntry,
	feeBps int,
	fillabilityStatus domain.FillabilityStatus,
	approvalStatus domain.ApprovalStatus,
	prov domain.Provenance,
) (domain.Order, domain.ReconcileStatus) {
	price := info.Price

	// Asks trade at the full price; bids net the maker's fees out of what
	// the taker receives.
	value := new(big.Int).Set(price)
	if info.Side == domain.OrderSideBuy {
		feeAmount := new(big.Int).Mul(price, big.NewInt(int64(feeBps)))
		feeAmount.Div(feeAmount, big.NewInt(10000))
		value.Sub(value, feeAmount)
	}

	defaults, err := a.royalties.Default(ctx, info.Contract)
	if err != nil {
		return domain.Order{}, domain.StatusError
	}
	missing := royalty.Missing(price, defaults, royalty.BuiltInRoyaltyBps(breakdown))
	normalized := royalty.NormalizeValue(info.Side, value, missing)

	quantity := uint64(1)
	if info.Amount != nil && info.Amount.Sign() > 0 {
		quantity = info.Amount.Uint64()
	}

	validFrom := time.Unix(info.StartTime, 0).UTC()
	var validUntil, expiration *time.Time
	if info.EndTime != 0 {
		t := time.Unix(info.EndTime, 0).UTC()
		validUntil = &t
		expiration = &t
	}

	sourceDomain := info.SourceDomain
	if sourceDomain == "" {
		sourceDomain = FallbackSourceDomain
	}
	source, err := a.sources.GetOrInsert(ctx, sourceDomain)
	if err != nil {
		a.log.Warn("source registration failed", "domain", sourceDomain, "error", err)
	}

	order := domain.Order{
		Kind:                    domain.OrderKindSeaport,
		Side:                    info.Side,
		FillabilityStatus:       fillabilityStatus,
		ApprovalStatus:          approvalStatus,
		TokenSetID:              set.ID,
		TokenSetSchemaHash:      set.SchemaHash,
		Maker:                   info.Maker,
		Taker:                   info.Taker,
		Contract:                info.Contract,
		Currency:                info.PaymentToken,
		CurrencyPrice:           new(big.Int).Set(price),
		CurrencyValue:           new(big.Int).Set(value),
		CurrencyNormalizedValue: new(big.Int).Set(normalized),
		NeedsConversion:         a.converter.NeedsConversion(info.PaymentToken),
		QuantityRemaining:       quantity,
		ValidFrom:               validFrom,
		ValidUntil:              validUntil,
		Expiration:              expiration,
		SourceID:                source.ID,
		FeeBps:                  feeBps,
		FeeBreakdown:            breakdown,
		MissingRoyalties:        missing,
		RawData:                 domain.RawData{Kind: domain.OrderKindSeaport, Seaport: info.RawParams},
		BlockNumber:             prov.Block,
		LogIndex:                prov.LogIndex,
	}

	order.Price, err = a.converter.ToNative(ctx, info.PaymentToken, price, prov.TxTimestamp)
	if err == nil {
		order.Value, err = a.converter.ToNative(ctx, info.PaymentToken, value, prov.TxTimestamp)
	}
	if err == nil {
		order.NormalizedValue, err = a.converter.ToNative(ctx, info.PaymentToken, normalized, prov.TxTimestamp)
	}
	if err != nil {
		a.log.Warn("price conversion failed", "order", info.OrderHash.Hex(), "error", err)
		status := protocol.StatusForError(err)
		if status == domain.StatusError {
			status = domain.StatusFailedToConvertPrice
		}
		return domain.Order{}, status
	}

	return order, domain.StatusSuccess
}
