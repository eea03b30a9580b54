package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenSetKind names the scope variant of a token set.
type TokenSetKind string

const (
	TokenSetSingleToken  TokenSetKind = "single-token"
	TokenSetContractWide TokenSetKind = "contract-wide"
	TokenSetTokenList    TokenSetKind = "token-list"
)

// TokenSet is the canonical identifier for the scope of NFTs an order can
// settle against. Sets are content-addressed and never mutated; membership
// changes produce a new set with a new id.
type TokenSet struct {
	ID         string
	SchemaHash common.Hash
	Kind       TokenSetKind
	Contract   common.Address
	TokenID    *big.Int    // single-token only
	MerkleRoot common.Hash // token-list only
	TokenIDs   []*big.Int  // token-list members, when known
}

// SingleTokenSetID builds the deterministic id for a one-token set.
func SingleTokenSetID(contract common.Address, tokenID *big.Int) string {
	return strings.ToLower(fmt.Sprintf("token:%s:%s", contract.Hex(), tokenID.String()))
}

// ContractWideSetID builds the deterministic id for a whole-contract set.
func ContractWideSetID(contract common.Address) string {
	return strings.ToLower(fmt.Sprintf("contract:%s", contract.Hex()))
}

// TokenListSetID builds the deterministic id for a merkle-rooted token list.
func TokenListSetID(contract common.Address, root common.Hash) string {
	return strings.ToLower(fmt.Sprintf("list:%s:%s", contract.Hex(), root.Hex()))
}

// Royalty is one recipient of a collection's royalty policy.
type Royalty struct {
	Recipient common.Address `json:"recipient"`
	Bps       int            `json:"bps"`
}

// RoyaltySpec names which royalty schedule a lookup targets.
type RoyaltySpec string

const (
	RoyaltySpecDefault RoyaltySpec = "default"
	RoyaltySpecOnChain RoyaltySpec = "onchain"
)

// Currency is the metadata needed to price a payment token.
type Currency struct {
	Contract    common.Address
	Symbol      string
	Decimals    uint8
	CoingeckoID string
}

// USDPrice is a point-in-time USD quote for a currency, day-granular, with a
// 6-decimal fixed-point value.
type USDPrice struct {
	Currency  common.Address `json:"currency"`
	Timestamp int64          `json:"timestamp"`
	Value     *big.Int       `json:"value"`
}

// Source is a registered order source (marketplace frontend domain).
type Source struct {
	ID     int64
	Domain string
}
