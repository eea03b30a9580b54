package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RecheckGuardKind selects which predicate guards a conditional order update.
type RecheckGuardKind int

const (
	// GuardProvenance only accepts writes carrying strictly newer
	// (block, logIndex) provenance than the stored row.
	GuardProvenance RecheckGuardKind = iota
	// GuardValidFrom only accepts writes when the stored row's validity
	// start predates the incoming fact's timestamp.
	GuardValidFrom
	// GuardCooldown accepts a forced recheck when the stored row has not
	// been updated within the cooldown window.
	GuardCooldown
)

// RecheckGuard is the no-regression condition applied to every conditional
// order update. It is evaluated inside the UPDATE statement, never by
// serializing processing.
type RecheckGuard struct {
	Kind       RecheckGuardKind
	Provenance Provenance
	Cooldown   time.Duration
}

// Guard derives the recheck guard for a notice: forced rechecks fall back to
// the cooldown predicate, everything else uses the given base predicate.
func (n OrderNotice) Guard(base RecheckGuardKind, cooldown time.Duration) RecheckGuard {
	kind := base
	if n.ForceRecheck {
		kind = GuardCooldown
	}
	return RecheckGuard{Kind: kind, Provenance: n.Provenance, Cooldown: cooldown}
}

// OrderSnapshot is the slice of a stored order a protocol adapter needs to
// decide between insert, update and repair.
type OrderSnapshot struct {
	ID                 string
	TokenSetID         string
	TokenSetSchemaHash common.Hash
	FeeBps             int
	FeeBreakdown       []FeeBreakdownEntry
	RawData            RawData
}

// Incomplete reports whether the row was created by a partial writer and
// must be deleted before re-insertion.
func (s OrderSnapshot) Incomplete() bool {
	return s.TokenSetID == ""
}

// PricingUpdate carries every column a reprice rewrites on an existing row.
type PricingUpdate struct {
	ID                      string
	FillabilityStatus       FillabilityStatus
	ApprovalStatus          ApprovalStatus
	Price                   *big.Int
	Value                   *big.Int
	NormalizedValue         *big.Int
	CurrencyPrice           *big.Int
	CurrencyValue           *big.Int
	CurrencyNormalizedValue *big.Int
	QuantityRemaining       uint64
	ValidFrom               time.Time
	ValidUntil              *time.Time
	Expiration              *time.Time
	FeeBps                  int
	FeeBreakdown            []FeeBreakdownEntry
	MissingRoyalties        []MissingRoyalty
	RawData                 RawData
	TokenSetID              string // empty means keep stored value
	Provenance              Provenance
}

// OrderStore persists canonical order rows. Inserts are idempotent
// (conflict-skip on id); updates are single-row and guarded by a
// RecheckGuard.
type OrderStore interface {
	// GetSnapshot returns ErrNotFound when no row exists for id.
	GetSnapshot(ctx context.Context, id string) (OrderSnapshot, error)
	// InsertBatch inserts rows with ON CONFLICT DO NOTHING semantics.
	InsertBatch(ctx context.Context, orders []Order) error
	// UpdatePricing applies a guarded reprice; it reports whether the
	// guard admitted the write.
	UpdatePricing(ctx context.Context, upd PricingUpdate, guard RecheckGuard) (bool, error)
	// SetNoBalance transitions an order to no-balance with the observation
	// time as expiration, guarded like any other update.
	SetNoBalance(ctx context.Context, id string, prov Provenance, guard RecheckGuard) (bool, error)
	// Delete removes a row outright; used only to clean up incomplete
	// placeholder rows.
	Delete(ctx context.Context, id string) error
}

// TokenSetStore persists token sets and their membership data. Saves are
// idempotent: re-saving an existing set is a no-op.
type TokenSetStore interface {
	Save(ctx context.Context, set TokenSet) error
	Exists(ctx context.Context, id string) (bool, error)
}

// PoolStore persists resolved pool metadata.
type PoolStore interface {
	Get(ctx context.Context, address common.Address) (Pool, error)
	Save(ctx context.Context, pool Pool) error
}

// RoyaltyStore reads registered royalty schedules.
type RoyaltyStore interface {
	ByContract(ctx context.Context, contract common.Address, spec RoyaltySpec) ([]Royalty, error)
}

// CurrencyStore reads payment-token metadata.
type CurrencyStore interface {
	Get(ctx context.Context, contract common.Address) (Currency, error)
}

// USDPriceStore persists day-granular USD quotes.
type USDPriceStore interface {
	// Latest returns the newest stored price at or before ts, or
	// ErrNotFound.
	Latest(ctx context.Context, currency common.Address, ts int64) (USDPrice, error)
	// Insert stores a quote with ON CONFLICT DO NOTHING semantics.
	Insert(ctx context.Context, price USDPrice) error
}

// SourceStore registers and resolves order sources.
type SourceStore interface {
	GetOrInsert(ctx context.Context, domainName string) (Source, error)
}

// PoolCache is the read-through cache in front of PoolStore. Entries are
// written once and never invalidated since pool metadata is immutable.
type PoolCache interface {
	Get(ctx context.Context, address common.Address) (Pool, error)
	Set(ctx context.Context, pool Pool) error
}

// PriceCache is the day-bucketed memory tier in front of USDPriceStore.
type PriceCache interface {
	Get(ctx context.Context, currency common.Address, day int64) (USDPrice, error)
	Set(ctx context.Context, price USDPrice) error
}

// ResultSink receives the order-update handoff for every persisted success.
type ResultSink interface {
	Publish(ctx context.Context, updates []OrderUpdate) error
}

// BatchArchiver persists a full reconcile batch's results for offline audit.
type BatchArchiver interface {
	ArchiveBatch(ctx context.Context, batchID string, results []ReconcileResult) error
}
