package domain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceExtra is the shared envelope carried by every pool-sourced raw-data
// payload: the discrete per-unit price series the execution layer sums to
// reconstruct any partial-fill price.
type PriceExtra struct {
	Prices []string `json:"prices"`
}

// SetPrices replaces the delta series with the decimal encodings of prices.
func (e *PriceExtra) SetPrices(prices []*big.Int) {
	encoded := make([]string, len(prices))
	for i, p := range prices {
		encoded[i] = p.String()
	}
	e.Prices = encoded
}

// CollectionPoolRawData is the payload needed to build fill calldata against
// a collectionxyz-style pool.
type CollectionPoolRawData struct {
	Pool                     common.Address `json:"pool"`
	ExternalFilter           common.Address `json:"externalFilter"`
	TokenSetID               string         `json:"tokenSetId,omitempty"`
	AssetRecipient           common.Address `json:"assetRecipient"`
	RoyaltyRecipientFallback common.Address `json:"royaltyRecipientFallback"`
	Extra                    PriceExtra     `json:"extra"`
}

// SweepPoolRawData is the payload needed to build fill calldata against a
// sudoswap-style pair.
type SweepPoolRawData struct {
	Pair    common.Address `json:"pair"`
	TokenID string         `json:"tokenId,omitempty"`
	Extra   PriceExtra     `json:"extra"`
}

// RawData is the protocol-specific payload stored on a canonical order. It is
// a tagged union keyed by order kind; the reconciler only ever touches the
// shared envelope (the price series), never payload internals.
type RawData struct {
	Kind           OrderKind
	CollectionPool *CollectionPoolRawData
	SweepPool      *SweepPoolRawData
	// Seaport orders arrive fully formed from the ingestion layer, so their
	// payload stays opaque.
	Seaport json.RawMessage
}

type rawDataEnvelope struct {
	Kind    OrderKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the union as {"kind": ..., "payload": ...}.
func (r RawData) MarshalJSON() ([]byte, error) {
	var payload any
	switch r.Kind {
	case OrderKindCollectionXyz:
		payload = r.CollectionPool
	case OrderKindSudoswap:
		payload = r.SweepPool
	case OrderKindSeaport:
		payload = r.Seaport
	default:
		return nil, fmt.Errorf("domain: marshal raw data: unknown kind %q", r.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("domain: marshal raw data payload: %w", err)
	}
	return json.Marshal(rawDataEnvelope{Kind: r.Kind, Payload: raw})
}

// UnmarshalJSON decodes the tagged union, leaving unknown kinds as an error
// rather than silently dropping the payload.
func (r *RawData) UnmarshalJSON(data []byte) error {
	var env rawDataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("domain: unmarshal raw data: %w", err)
	}

	r.Kind = env.Kind
	switch env.Kind {
	case OrderKindCollectionXyz:
		r.CollectionPool = &CollectionPoolRawData{}
		return json.Unmarshal(env.Payload, r.CollectionPool)
	case OrderKindSudoswap:
		r.SweepPool = &SweepPoolRawData{}
		return json.Unmarshal(env.Payload, r.SweepPool)
	case OrderKindSeaport:
		r.Seaport = append(json.RawMessage(nil), env.Payload...)
		return nil
	default:
		return fmt.Errorf("domain: unmarshal raw data: unknown kind %q", env.Kind)
	}
}
