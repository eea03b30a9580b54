package domain

import (
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// OrderKind identifies the protocol an order was normalized from.
type OrderKind string

const (
	OrderKindCollectionXyz OrderKind = "collectionxyz"
	OrderKindSudoswap      OrderKind = "sudoswap"
	OrderKindSeaport       OrderKind = "seaport"
)

// OrderSide indicates whether the maker is buying or selling NFTs.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// FillabilityStatus tracks whether an order can currently be filled on-chain.
type FillabilityStatus string

const (
	FillabilityFillable  FillabilityStatus = "fillable"
	FillabilityNoBalance FillabilityStatus = "no-balance"
	FillabilityCancelled FillabilityStatus = "cancelled"
	FillabilityFilled    FillabilityStatus = "filled"
	FillabilityExpired   FillabilityStatus = "expired"
)

// ApprovalStatus tracks whether the maker's asset approval is in place.
type ApprovalStatus string

const (
	ApprovalApproved   ApprovalStatus = "approved"
	ApprovalNoApproval ApprovalStatus = "no-approval"
)

// FeeKind classifies a built-in fee as a marketplace fee or a royalty.
type FeeKind string

const (
	FeeKindMarketplace FeeKind = "marketplace"
	FeeKindRoyalty     FeeKind = "royalty"
)

// FeeBreakdownEntry is one component of an order's built-in fee schedule.
type FeeBreakdownEntry struct {
	Kind      FeeKind        `json:"kind"`
	Recipient common.Address `json:"recipient"`
	Bps       int            `json:"bps"`
}

// MissingRoyalty is the shortfall owed to one default-royalty recipient on
// top of the order's built-in royalties.
type MissingRoyalty struct {
	Recipient common.Address `json:"recipient"`
	Bps       int            `json:"bps"`
	Amount    *big.Int       `json:"amount"`
}

// Order is the canonical order-book row: one row per fillable position,
// normalized across all indexed protocols.
type Order struct {
	ID                 string
	Kind               OrderKind
	Side               OrderSide
	FillabilityStatus  FillabilityStatus
	ApprovalStatus     ApprovalStatus
	TokenSetID         string
	TokenSetSchemaHash common.Hash
	Maker              common.Address
	Taker              common.Address // zero address means public order
	Contract           common.Address

	// Pricing in the chain's native unit.
	Price           *big.Int
	Value           *big.Int
	NormalizedValue *big.Int
	// Pricing in the order's own payment currency.
	Currency                common.Address
	CurrencyPrice           *big.Int
	CurrencyValue           *big.Int
	CurrencyNormalizedValue *big.Int
	NeedsConversion         bool

	QuantityRemaining uint64
	ValidFrom         time.Time
	ValidUntil        *time.Time // nil means open-ended
	Expiration        *time.Time // nil means never

	SourceID         int64
	FeeBps           int
	FeeBreakdown     []FeeBreakdownEntry
	MissingRoyalties []MissingRoyalty
	RawData          RawData

	// Provenance of the last accepted on-chain fact; the monotonic
	// ordering key for conflict resolution.
	BlockNumber int64
	LogIndex    int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderID deterministically derives the canonical order id for a pool-sourced
// order. Buy orders have a single id per pool; sell orders have one id per
// held token id. The derivation is a keccak over the tightly packed
// (kind, pool, side[, tokenId]) tuple, matching the ids the execution layer
// derives when building fill calldata.
func OrderID(kind OrderKind, pool common.Address, side OrderSide, tokenID *big.Int) string {
	packed := make([]byte, 0, 64)
	packed = append(packed, []byte(kind)...)
	packed = append(packed, pool.Bytes()...)
	packed = append(packed, []byte(side)...)
	if tokenID != nil {
		packed = append(packed, math.U256Bytes(new(big.Int).Set(tokenID))...)
	}
	return "0x" + hex.EncodeToString(crypto.Keccak256(packed))
}
