package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/domain"
)

var collectionPoolABI = mustABI(`[
	{"name": "nft", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "token", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "bondingCurve", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "poolType", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "uint8"}]},
	{"name": "poolVariant", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "uint8"}]},
	{"name": "getAssetRecipient", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "externalFilter", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "royaltyRecipientFallback", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "address"}]},
	{"name": "tokenIDFilterRoot", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "bytes32"}]},
	{"name": "getAllHeldIds", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "uint256[]"}]},
	{"name": "feeMultipliers", "type": "function", "stateMutability": "view",
	 "inputs": [], "outputs": [
		{"name": "trade", "type": "uint24"},
		{"name": "protocol", "type": "uint24"},
		{"name": "royaltyNumerator", "type": "uint24"},
		{"name": "carry", "type": "uint24"}]},
	{"name": "getBuyNFTQuote", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "numNFTs", "type": "uint256"}],
	 "outputs": [{"name": "inputAmount", "type": "uint256"}]},
	{"name": "getSellNFTQuote", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "numNFTs", "type": "uint256"}],
	 "outputs": [{"name": "outputAmount", "type": "uint256"}]}
]`)

var collectionFactoryABI = mustABI(`[
	{"name": "isPool", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "pool", "type": "address"}],
	 "outputs": [{"name": "", "type": "bool"}]}
]`)

// FeeMultipliers holds a collection pool's fee configuration in contract
// units: hundredths of a basis point for trade/protocol/royalty, and
// hundredths of a part per 1e5 of the trade fee for carry.
type FeeMultipliers struct {
	Trade            *big.Int
	Protocol         *big.Int
	RoyaltyNumerator *big.Int
	Carry            *big.Int
}

// CollectionPool reads a collection-scoped bonding-curve pool contract.
type CollectionPool struct {
	client  *Client
	address common.Address
}

// NewCollectionPool creates a caller bound to one pool address.
func NewCollectionPool(client *Client, address common.Address) *CollectionPool {
	return &CollectionPool{client: client, address: address}
}

// Address returns the bound pool address.
func (p *CollectionPool) Address() common.Address {
	return p.address
}

func (p *CollectionPool) callAddress(ctx context.Context, method string) (common.Address, error) {
	out, err := p.client.Call(ctx, p.address, collectionPoolABI, method)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: %s on %s: unexpected output type", method, p.address.Hex())
	}
	return a, nil
}

// Metadata resolves the pool's immutable parameters from its constant
// accessors.
func (p *CollectionPool) Metadata(ctx context.Context) (domain.Pool, error) {
	pool := domain.Pool{Kind: domain.OrderKindCollectionXyz, Address: p.address}

	var err error
	if pool.NFT, err = p.callAddress(ctx, "nft"); err != nil {
		return domain.Pool{}, err
	}
	if pool.Token, err = p.callAddress(ctx, "token"); err != nil {
		return domain.Pool{}, err
	}
	if pool.BondingCurve, err = p.callAddress(ctx, "bondingCurve"); err != nil {
		return domain.Pool{}, err
	}

	out, err := p.client.Call(ctx, p.address, collectionPoolABI, "poolType")
	if err != nil {
		return domain.Pool{}, err
	}
	poolType, ok := out[0].(uint8)
	if !ok {
		return domain.Pool{}, fmt.Errorf("chain: poolType on %s: unexpected output type", p.address.Hex())
	}
	pool.PoolType = domain.PoolType(poolType)

	out, err = p.client.Call(ctx, p.address, collectionPoolABI, "poolVariant")
	if err != nil {
		return domain.Pool{}, err
	}
	variant, ok := out[0].(uint8)
	if !ok {
		return domain.Pool{}, fmt.Errorf("chain: poolVariant on %s: unexpected output type", p.address.Hex())
	}
	pool.PoolVariant = variant

	return pool, nil
}

// FeeMultipliers reads the pool's current fee configuration.
func (p *CollectionPool) FeeMultipliers(ctx context.Context) (FeeMultipliers, error) {
	out, err := p.client.Call(ctx, p.address, collectionPoolABI, "feeMultipliers")
	if err != nil {
		return FeeMultipliers{}, err
	}
	if len(out) != 4 {
		return FeeMultipliers{}, fmt.Errorf("chain: feeMultipliers on %s: got %d outputs", p.address.Hex(), len(out))
	}

	fm := FeeMultipliers{}
	for i, dst := range []**big.Int{&fm.Trade, &fm.Protocol, &fm.RoyaltyNumerator, &fm.Carry} {
		v, ok := out[i].(*big.Int)
		if !ok {
			return FeeMultipliers{}, fmt.Errorf("chain: feeMultipliers on %s: unexpected output type", p.address.Hex())
		}
		*dst = v
	}
	return fm, nil
}

// BuyQuote returns the total input amount, fees included, to buy numNFTs
// from the pool.
func (p *CollectionPool) BuyQuote(ctx context.Context, numNFTs int) (*big.Int, error) {
	out, err := p.client.Call(ctx, p.address, collectionPoolABI, "getBuyNFTQuote", big.NewInt(int64(numNFTs)))
	if err != nil {
		return nil, err
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: getBuyNFTQuote on %s: unexpected output type", p.address.Hex())
	}
	return amount, nil
}

// SellQuote returns the total output amount, fees deducted, for selling
// numNFTs into the pool.
func (p *CollectionPool) SellQuote(ctx context.Context, numNFTs int) (*big.Int, error) {
	out, err := p.client.Call(ctx, p.address, collectionPoolABI, "getSellNFTQuote", big.NewInt(int64(numNFTs)))
	if err != nil {
		return nil, err
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: getSellNFTQuote on %s: unexpected output type", p.address.Hex())
	}
	return amount, nil
}

// AssetRecipient returns the address that receives the pool's proceeds.
func (p *CollectionPool) AssetRecipient(ctx context.Context) (common.Address, error) {
	return p.callAddress(ctx, "getAssetRecipient")
}

// ExternalFilter returns the pool's external filter contract, or the zero
// address when none is set.
func (p *CollectionPool) ExternalFilter(ctx context.Context) (common.Address, error) {
	return p.callAddress(ctx, "externalFilter")
}

// RoyaltyRecipientFallback returns the address royalties fall back to when
// the collection resolves no recipient of its own.
func (p *CollectionPool) RoyaltyRecipientFallback(ctx context.Context) (common.Address, error) {
	return p.callAddress(ctx, "royaltyRecipientFallback")
}

// TokenIDFilterRoot returns the merkle root of the pool's token id filter,
// or the zero hash for unfiltered pools.
func (p *CollectionPool) TokenIDFilterRoot(ctx context.Context) (common.Hash, error) {
	out, err := p.client.Call(ctx, p.address, collectionPoolABI, "tokenIDFilterRoot")
	if err != nil {
		return common.Hash{}, err
	}
	root, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("chain: tokenIDFilterRoot on %s: unexpected output type", p.address.Hex())
	}
	return common.Hash(root), nil
}

// HeldIDs returns the token ids currently held by the pool.
func (p *CollectionPool) HeldIDs(ctx context.Context) ([]*big.Int, error) {
	out, err := p.client.Call(ctx, p.address, collectionPoolABI, "getAllHeldIds")
	if err != nil {
		return nil, err
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: getAllHeldIds on %s: unexpected output type", p.address.Hex())
	}
	return ids, nil
}

// CollectionFactory reads the pool factory used to verify that an address is
// a genuine pool before trusting its accessors.
type CollectionFactory struct {
	client  *Client
	address common.Address
}

// NewCollectionFactory creates a caller bound to the factory address.
func NewCollectionFactory(client *Client, address common.Address) *CollectionFactory {
	return &CollectionFactory{client: client, address: address}
}

// IsPool reports whether the factory deployed the given address.
func (f *CollectionFactory) IsPool(ctx context.Context, pool common.Address) (bool, error) {
	out, err := f.client.Call(ctx, f.address, collectionFactoryABI, "isPool", pool)
	if err != nil {
		return false, err
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("chain: isPool on %s: unexpected output type", f.address.Hex())
	}
	return ok, nil
}
