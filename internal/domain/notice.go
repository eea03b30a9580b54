package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Provenance pins an observed on-chain fact to its position in the chain.
// (Block, LogIndex) is the sole ordering key used for conflict resolution.
type Provenance struct {
	TxHash      common.Hash `json:"txHash"`
	TxTimestamp int64       `json:"txTimestamp"`
	Block       int64       `json:"txBlock"`
	LogIndex    int         `json:"logIndex"`
}

// Time returns the transaction timestamp as a time.Time.
func (p Provenance) Time() time.Time {
	return time.Unix(p.TxTimestamp, 0).UTC()
}

// OrderNotice is one incoming order-update notice from the event-ingestion
// layer. Pool-family notices carry the pool address plus any pool parameters
// the triggering event set or modified; exchange-family notices carry the
// observed signed order instead.
type OrderNotice struct {
	Kind OrderKind      `json:"kind"`
	Pool common.Address `json:"pool"` // pool or maker address

	// collectionxyz-family fields. Pointers are nil when the triggering
	// event did not set or modify the value.
	TokenIDs                 []*big.Int      `json:"tokenIds,omitempty"`
	TokenIDsSet              bool            `json:"tokenIdsSet,omitempty"`
	IsModifierEvent          bool            `json:"isModifierEvent,omitempty"`
	FeesModified             bool            `json:"feesModified,omitempty"`
	RoyaltyRecipientFallback *common.Address `json:"royaltyRecipientFallback,omitempty"`
	AssetRecipient           *common.Address `json:"assetRecipient,omitempty"`
	ExternalFilter           *common.Address `json:"externalFilter,omitempty"`

	// seaport-family payload.
	Seaport *SeaportOrderInfo `json:"seaport,omitempty"`

	Provenance   Provenance `json:"provenance"`
	ForceRecheck bool       `json:"forceRecheck,omitempty"`
}

// TriggerKind distinguishes a first-sight insert from a reprice of an
// existing row; only persisted successes carry one.
type TriggerKind string

const (
	TriggerNewOrder TriggerKind = "new-order"
	TriggerReprice  TriggerKind = "reprice"
)

// ReconcileStatus is the per-item outcome of a reconcile run. These are typed
// statuses, never matched error strings.
type ReconcileStatus string

const (
	StatusSuccess              ReconcileStatus = "success"
	StatusDelayed              ReconcileStatus = "delayed"
	StatusMissingNewPoolInfo   ReconcileStatus = "missing-necessary-new-pool-info"
	StatusTokenListTooLarge    ReconcileStatus = "token-list-too-large"
	StatusFailedToConvertPrice ReconcileStatus = "failed-to-convert-price"
	StatusExternalFilteredBids ReconcileStatus = "external-filtered-bids-not-supported"
	StatusInvalidTokenSet      ReconcileStatus = "invalid-token-set"
	StatusZeroPrice            ReconcileStatus = "zero-price"
	StatusFeesTooHigh          ReconcileStatus = "fees-too-high"
	StatusNotFillable          ReconcileStatus = "not-fillable"
	StatusExpired              ReconcileStatus = "expired"
	StatusUnsupportedCurrency  ReconcileStatus = "unsupported-currency"
	StatusUnsupportedKind      ReconcileStatus = "unsupported-kind"
	StatusPoolUnavailable      ReconcileStatus = "pool-unavailable"
	StatusError                ReconcileStatus = "error"
)

// ReconcileResult is the outcome the engine reports for one processed order
// id. Successes additionally name the trigger so downstream listeners can
// distinguish inserts from reprices.
type ReconcileResult struct {
	ID          string          `json:"id"`
	TxHash      common.Hash     `json:"txHash"`
	TxTimestamp int64           `json:"txTimestamp"`
	Status      ReconcileStatus `json:"status"`
	TriggerKind TriggerKind     `json:"triggerKind,omitempty"`
}

// OrderUpdate is the handoff shape published to the downstream order-update
// notifier for every persisted success.
type OrderUpdate struct {
	ID          string      `json:"id"`
	TxHash      common.Hash `json:"txHash"`
	TxTimestamp int64       `json:"txTimestamp"`
	TriggerKind TriggerKind `json:"triggerKind"`
}
