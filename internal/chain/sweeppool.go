package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/domain"
)

var sweepPairABI = mustABI(`[
	{"name": "nft", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "token", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "bondingCurve", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "poolType", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "uint8"}]},
	{"name": "pairVariant", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "uint8"}]},
	{"name": "getAssetRecipient", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "getAllHeldIds", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "uint256[]"}]},
	{"name": "getBuyNFTQuote", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "numNFTs", "type": "uint256"}],
	 "outputs": [
		{"name": "error", "type": "uint8"},
		{"name": "newSpotPrice", "type": "uint256"},
		{"name": "newDelta", "type": "uint256"},
		{"name": "inputAmount", "type": "uint256"},
		{"name": "protocolFee", "type": "uint256"}]},
	{"name": "getSellNFTQuote", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "numNFTs", "type": "uint256"}],
	 "outputs": [
		{"name": "error", "type": "uint8"},
		{"name": "newSpotPrice", "type": "uint256"},
		{"name": "newDelta", "type": "uint256"},
		{"name": "outputAmount", "type": "uint256"},
		{"name": "protocolFee", "type": "uint256"}]}
]`)

// pairVariant values 0 and 1 are ERC-721/native pairs; 2 and 3 settle in an
// ERC-20 token.
const pairVariantERC20Threshold = 2

// SweepPair reads a sweep-protocol AMM pair contract. Pair quote methods
// return a curve error code instead of reverting; a non-zero code marks the
// quote invalid.
type SweepPair struct {
	client  *Client
	address common.Address
}

// NewSweepPair creates a caller bound to one pair address.
func NewSweepPair(client *Client, address common.Address) *SweepPair {
	return &SweepPair{client: client, address: address}
}

// Address returns the bound pair address.
func (p *SweepPair) Address() common.Address {
	return p.address
}

func (p *SweepPair) callAddress(ctx context.Context, method string) (common.Address, error) {
	out, err := p.client.Call(ctx, p.address, sweepPairABI, method)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: %s on %s: unexpected output type", method, p.address.Hex())
	}
	return a, nil
}

func (p *SweepPair) callUint8(ctx context.Context, method string) (uint8, error) {
	out, err := p.client.Call(ctx, p.address, sweepPairABI, method)
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: %s on %s: unexpected output type", method, p.address.Hex())
	}
	return v, nil
}

// Metadata resolves the pair's immutable parameters. Native-settling pair
// variants have no token() accessor, so the payment token is only read for
// ERC-20 variants.
func (p *SweepPair) Metadata(ctx context.Context) (domain.Pool, error) {
	pool := domain.Pool{Kind: domain.OrderKindSudoswap, Address: p.address}

	var err error
	if pool.NFT, err = p.callAddress(ctx, "nft"); err != nil {
		return domain.Pool{}, err
	}
	if pool.BondingCurve, err = p.callAddress(ctx, "bondingCurve"); err != nil {
		return domain.Pool{}, err
	}

	poolType, err := p.callUint8(ctx, "poolType")
	if err != nil {
		return domain.Pool{}, err
	}
	pool.PoolType = domain.PoolType(poolType)

	variant, err := p.callUint8(ctx, "pairVariant")
	if err != nil {
		return domain.Pool{}, err
	}
	pool.PoolVariant = variant

	if variant >= pairVariantERC20Threshold {
		if pool.Token, err = p.callAddress(ctx, "token"); err != nil {
			return domain.Pool{}, err
		}
	}

	return pool, nil
}

func (p *SweepPair) quote(ctx context.Context, method string, numNFTs int) (*big.Int, error) {
	out, err := p.client.Call(ctx, p.address, sweepPairABI, method, big.NewInt(int64(numNFTs)))
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("chain: %s on %s: got %d outputs", method, p.address.Hex(), len(out))
	}

	code, ok := out[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("chain: %s on %s: unexpected error-code type", method, p.address.Hex())
	}
	if code != 0 {
		return nil, fmt.Errorf("chain: %s on %s: curve error %d: %w", method, p.address.Hex(), code, domain.ErrNoPriceAvailable)
	}

	amount, ok := out[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s on %s: unexpected amount type", method, p.address.Hex())
	}
	return amount, nil
}

// BuyQuote returns the total input amount to buy numNFTs from the pair, or
// an error wrapping domain.ErrNoPriceAvailable when the curve reports an
// error code.
func (p *SweepPair) BuyQuote(ctx context.Context, numNFTs int) (*big.Int, error) {
	return p.quote(ctx, "getBuyNFTQuote", numNFTs)
}

// SellQuote returns the total output amount for selling numNFTs into the
// pair, subject to the same curve error handling as BuyQuote.
func (p *SweepPair) SellQuote(ctx context.Context, numNFTs int) (*big.Int, error) {
	return p.quote(ctx, "getSellNFTQuote", numNFTs)
}

// AssetRecipient returns the address receiving the pair's proceeds.
func (p *SweepPair) AssetRecipient(ctx context.Context) (common.Address, error) {
	return p.callAddress(ctx, "getAssetRecipient")
}

// HeldIDs returns the token ids currently held by the pair.
func (p *SweepPair) HeldIDs(ctx context.Context) ([]*big.Int, error) {
	out, err := p.client.Call(ctx, p.address, sweepPairABI, "getAllHeldIds")
	if err != nil {
		return nil, err
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: getAllHeldIds on %s: unexpected output type", p.address.Hex())
	}
	return ids, nil
}
