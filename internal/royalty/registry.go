// Package royalty resolves royalty schedules and reconciles an order's
// built-in fees against them.
package royalty

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/chain"
	"github.com/chainbook/chainbook/internal/domain"
)

// Registry looks up royalty schedules, preferring the registered store rows
// and falling back to an ERC-2981 probe for the on-chain spec.
type Registry struct {
	store  domain.RoyaltyStore
	reader *chain.RoyaltyReader
	log    *slog.Logger
}

// NewRegistry creates a Registry. reader may be nil when no RPC endpoint is
// available, in which case on-chain lookups are store-only.
func NewRegistry(store domain.RoyaltyStore, reader *chain.RoyaltyReader, log *slog.Logger) *Registry {
	return &Registry{store: store, reader: reader, log: log.With("component", "royalty")}
}

// Default returns the collection's default royalty schedule. Unregistered
// collections yield an empty schedule.
func (r *Registry) Default(ctx context.Context, contract common.Address) ([]domain.Royalty, error) {
	return r.store.ByContract(ctx, contract, domain.RoyaltySpecDefault)
}

// OnChain returns the collection's on-chain royalty schedule. When nothing
// is registered it probes ERC-2981 directly; collections without the
// interface yield an empty schedule rather than an error.
func (r *Registry) OnChain(ctx context.Context, contract common.Address, tokenID *big.Int) ([]domain.Royalty, error) {
	royalties, err := r.store.ByContract(ctx, contract, domain.RoyaltySpecOnChain)
	if err != nil {
		return nil, err
	}
	if len(royalties) > 0 || r.reader == nil {
		return royalties, nil
	}

	probed, err := r.reader.RoyaltyInfo(ctx, contract, tokenID)
	if err != nil {
		r.log.Debug("erc2981 probe failed", "contract", contract.Hex(), "error", err)
		return nil, nil
	}
	if probed.Bps <= 0 || probed.Recipient == (common.Address{}) {
		return nil, nil
	}
	return []domain.Royalty{probed}, nil
}

// ResolveRecipient picks the royalty payout address for a pool order: the
// single on-chain recipient when the schedule has exactly one entry, the
// pool's configured fallback otherwise, and finally the pool's asset
// recipient.
func (r *Registry) ResolveRecipient(ctx context.Context, contract common.Address, tokenID *big.Int, fallback, assetRecipient common.Address) (common.Address, error) {
	onchain, err := r.OnChain(ctx, contract, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	if len(onchain) == 1 && onchain[0].Recipient != (common.Address{}) {
		return onchain[0].Recipient, nil
	}
	if fallback != (common.Address{}) {
		return fallback, nil
	}
	return assetRecipient, nil
}
