package tokenset

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/domain"
)

// LeafScheme selects how token-list members are hashed into merkle leaves.
type LeafScheme int

const (
	// SchemeTokenID hashes the bare token id, matching pool filter
	// verifiers.
	SchemeTokenID LeafScheme = iota
	// SchemeContractTokenID hashes (contract, tokenId), matching exchange
	// order commitments.
	SchemeContractTokenID
)

// Manager materializes token sets on first sight. Sets are content-addressed
// and immutable, so re-ensuring an existing set writes nothing.
type Manager struct {
	store       domain.TokenSetStore
	maxListSize int
	log         *slog.Logger
}

// NewManager creates a Manager persisting through store. maxListSize caps
// token-list membership; lists over the cap are rejected outright, never
// truncated.
func NewManager(store domain.TokenSetStore, maxListSize int, log *slog.Logger) *Manager {
	return &Manager{
		store:       store,
		maxListSize: maxListSize,
		log:         log.With("component", "tokenset"),
	}
}

func (m *Manager) ensure(ctx context.Context, set domain.TokenSet) (domain.TokenSet, error) {
	exists, err := m.store.Exists(ctx, set.ID)
	if err != nil {
		return domain.TokenSet{}, err
	}
	if exists {
		return set, nil
	}

	if err := m.store.Save(ctx, set); err != nil {
		return domain.TokenSet{}, err
	}
	m.log.Debug("token set created", "id", set.ID, "kind", string(set.Kind))
	return set, nil
}

// EnsureSingleToken materializes the set covering exactly one token.
func (m *Manager) EnsureSingleToken(ctx context.Context, contract common.Address, tokenID *big.Int) (domain.TokenSet, error) {
	schemaHash, err := SingleTokenSchema(contract, tokenID).Hash()
	if err != nil {
		return domain.TokenSet{}, err
	}

	return m.ensure(ctx, domain.TokenSet{
		ID:         domain.SingleTokenSetID(contract, tokenID),
		SchemaHash: schemaHash,
		Kind:       domain.TokenSetSingleToken,
		Contract:   contract,
		TokenID:    new(big.Int).Set(tokenID),
	})
}

// EnsureContractWide materializes the set covering every token of a
// contract.
func (m *Manager) EnsureContractWide(ctx context.Context, contract common.Address) (domain.TokenSet, error) {
	schemaHash, err := ContractWideSchema(contract).Hash()
	if err != nil {
		return domain.TokenSet{}, err
	}

	return m.ensure(ctx, domain.TokenSet{
		ID:         domain.ContractWideSetID(contract),
		SchemaHash: schemaHash,
		Kind:       domain.TokenSetContractWide,
		Contract:   contract,
	})
}

// EnsureTokenList materializes a merkle-rooted list set. The id depends only
// on the membership (via the root), so equal lists converge on one set
// regardless of input order.
func (m *Manager) EnsureTokenList(ctx context.Context, schema Schema, contract common.Address, tokenIDs []*big.Int, scheme LeafScheme) (domain.TokenSet, error) {
	if len(tokenIDs) == 0 {
		return domain.TokenSet{}, domain.ErrEmptyTokenList
	}
	if m.maxListSize > 0 && len(tokenIDs) > m.maxListSize {
		return domain.TokenSet{}, fmt.Errorf("tokenset: %d tokens: %w", len(tokenIDs), domain.ErrTokenListTooLarge)
	}

	leaves := make([]common.Hash, len(tokenIDs))
	for i, id := range tokenIDs {
		switch scheme {
		case SchemeContractTokenID:
			leaves[i] = LeafContractTokenID(contract, id)
		default:
			leaves[i] = LeafTokenID(id)
		}
	}
	root := Root(leaves)

	schemaHash, err := schema.Hash()
	if err != nil {
		return domain.TokenSet{}, err
	}

	ids := make([]*big.Int, len(tokenIDs))
	for i, id := range tokenIDs {
		ids[i] = new(big.Int).Set(id)
	}

	return m.ensure(ctx, domain.TokenSet{
		ID:         domain.TokenListSetID(contract, root),
		SchemaHash: schemaHash,
		Kind:       domain.TokenSetTokenList,
		Contract:   contract,
		MerkleRoot: root,
		TokenIDs:   ids,
	})
}
