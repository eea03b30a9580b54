package domain

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SeaportScope names the token scope encoded in a seaport-style order.
type SeaportScope string

const (
	SeaportScopeSingleToken  SeaportScope = "single-token"
	SeaportScopeContractWide SeaportScope = "contract-wide"
	SeaportScopeTokenList    SeaportScope = "token-list"
)

// SeaportFee is one built-in consideration fee of a seaport-style order,
// before classification.
type SeaportFee struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

// SeaportOrderInfo is the digest of a signed seaport-style order as produced
// by the ingestion layer. Order construction and signature checking are the
// SDK's concern; by the time a notice reaches the engine the order hash and
// the digest fields below have already been derived, and RawParams carries
// the untouched signed payload for the execution layer.
type SeaportOrderInfo struct {
	OrderHash common.Hash    `json:"orderHash"`
	Side      OrderSide      `json:"side"`
	Maker     common.Address `json:"maker"`
	Taker     common.Address `json:"taker"`
	Contract  common.Address `json:"contract"`
	Scope     SeaportScope   `json:"scope"`

	// TokenID is set for single-token scope; MerkleRoot and TokenIDs for
	// token-list scope (TokenIDs may be empty when only the root was
	// observed).
	TokenID    *big.Int    `json:"tokenId,omitempty"`
	MerkleRoot common.Hash `json:"merkleRoot,omitempty"`
	TokenIDs   []*big.Int  `json:"tokenIds,omitempty"`

	PaymentToken common.Address `json:"paymentToken"`
	// Price is the matching price for a single item; Amount the number of
	// identical items covered by the order.
	Price  *big.Int     `json:"price"`
	Amount *big.Int     `json:"amount"`
	Fees   []SeaportFee `json:"fees"`

	SourceDomain string `json:"sourceDomain,omitempty"`

	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"` // zero means open-ended

	RawParams json.RawMessage `json:"rawParams"`
}

// FillabilityOutcome is the tagged result of the off-chain fillability check
// for exchange orders: explicit states instead of matched error messages.
type FillabilityOutcome int

const (
	OutcomeFillable FillabilityOutcome = iota
	OutcomeNoBalance
	OutcomeNoApproval
	OutcomeNoBalanceNoApproval
	OutcomeNotFillable
)

// Statuses maps a fillability outcome onto the canonical order statuses.
func (o FillabilityOutcome) Statuses() (FillabilityStatus, ApprovalStatus) {
	switch o {
	case OutcomeNoBalance:
		return FillabilityNoBalance, ApprovalApproved
	case OutcomeNoApproval:
		return FillabilityFillable, ApprovalNoApproval
	case OutcomeNoBalanceNoApproval:
		return FillabilityNoBalance, ApprovalNoApproval
	default:
		return FillabilityFillable, ApprovalApproved
	}
}
