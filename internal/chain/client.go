// Package chain provides read-only access to the pool and exchange contracts
// the reconciliation engine samples.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient connection with packed-call helpers.
type Client struct {
	ec *ethclient.Client
}

// Dial connects to the given JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return &Client{ec: ec}, nil
}

// NewClient wraps an existing ethclient connection.
func NewClient(ec *ethclient.Client) *Client {
	return &Client{ec: ec}
}

// Close shuts down the underlying connection.
func (c *Client) Close() {
	c.ec.Close()
}

// Call packs a read-only contract call, executes it against the latest
// block, and unpacks the outputs.
func (c *Client) Call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	raw, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, to.Hex(), err)
	}

	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return out, nil
}

// NativeBalance returns the native-currency balance of an account at the
// latest block.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.ec.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

// TokenBalance returns the ERC-20 balance of holder in the given token.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	out, err := c.Call(ctx, token, erc20ABI, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: balanceOf on %s: unexpected output type", token.Hex())
	}
	return balance, nil
}

// mustABI parses an ABI definition at package init.
func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}

var erc20ABI = mustABI(`[
	{"name": "balanceOf", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "account", "type": "address"}],
	 "outputs": [{"name": "", "type": "uint256"}]}
]`)
