package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/domain"
)

var erc2981ABI = mustABI(`[
	{"name": "royaltyInfo", "type": "function", "stateMutability": "view",
	 "inputs": [
		{"name": "tokenId", "type": "uint256"},
		{"name": "salePrice", "type": "uint256"}],
	 "outputs": [
		{"name": "receiver", "type": "address"},
		{"name": "royaltyAmount", "type": "uint256"}]}
]`)

// royaltyProbePrice is the reference sale price used to derive a bps rate
// from ERC-2981's absolute amounts.
var royaltyProbePrice = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// RoyaltyReader resolves on-chain ERC-2981 royalties.
type RoyaltyReader struct {
	client *Client
}

// NewRoyaltyReader creates a RoyaltyReader on the given client.
func NewRoyaltyReader(client *Client) *RoyaltyReader {
	return &RoyaltyReader{client: client}
}

// RoyaltyInfo calls royaltyInfo on the collection for one token at the probe
// price and converts the absolute amount to basis points. Collections that
// do not implement ERC-2981 surface as call errors.
func (r *RoyaltyReader) RoyaltyInfo(ctx context.Context, contract common.Address, tokenID *big.Int) (domain.Royalty, error) {
	id := tokenID
	if id == nil {
		id = big.NewInt(0)
	}

	out, err := r.client.Call(ctx, contract, erc2981ABI, "royaltyInfo", id, royaltyProbePrice)
	if err != nil {
		return domain.Royalty{}, err
	}
	if len(out) != 2 {
		return domain.Royalty{}, fmt.Errorf("chain: royaltyInfo on %s: got %d outputs", contract.Hex(), len(out))
	}

	receiver, ok := out[0].(common.Address)
	if !ok {
		return domain.Royalty{}, fmt.Errorf("chain: royaltyInfo on %s: unexpected receiver type", contract.Hex())
	}
	amount, ok := out[1].(*big.Int)
	if !ok {
		return domain.Royalty{}, fmt.Errorf("chain: royaltyInfo on %s: unexpected amount type", contract.Hex())
	}

	bps := new(big.Int).Mul(amount, big.NewInt(10000))
	bps.Div(bps, royaltyProbePrice)

	return domain.Royalty{Recipient: receiver, Bps: int(bps.Int64())}, nil
}
