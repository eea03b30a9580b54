package domain

import "github.com/ethereum/go-ethereum/common"

// PoolType describes which sides of a pool hold liquidity.
type PoolType uint8

const (
	PoolTypeToken PoolType = iota // holds payment tokens, bids only
	PoolTypeNFT                   // holds NFTs, asks only
	PoolTypeTrade                 // holds both, quotes both sides
)

// Pool is the immutable metadata of a bonding-curve pool, resolved once from
// the pool's constant accessors and cached indefinitely.
type Pool struct {
	Kind         OrderKind      `json:"kind"`
	Address      common.Address `json:"address"`
	NFT          common.Address `json:"nft"`
	Token        common.Address `json:"token"` // zero address means native currency
	BondingCurve common.Address `json:"bondingCurve"`
	PoolType     PoolType       `json:"poolType"`
	PoolVariant  uint8          `json:"poolVariant"`
}

// QuotesBuySide reports whether the pool can quote bids (buy NFTs from
// takers).
func (p Pool) QuotesBuySide() bool {
	return p.PoolType == PoolTypeToken || p.PoolType == PoolTypeTrade
}

// QuotesSellSide reports whether the pool can quote asks (sell NFTs to
// takers).
func (p Pool) QuotesSellSide() bool {
	return p.PoolType == PoolTypeNFT || p.PoolType == PoolTypeTrade
}
