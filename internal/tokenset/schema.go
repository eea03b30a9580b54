package tokenset

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Schema describes how a token set's membership is defined, independent of
// the membership itself. Two orders share a set id exactly when they share a
// schema hash and contents.
type Schema struct {
	Kind     string   `json:"kind"`
	Contract string   `json:"contract"`
	TokenID  string   `json:"tokenId,omitempty"`
	TokenIDs []string `json:"tokenIds,omitempty"`
	// Pool scopes a filtered-pool list to its pool, so two pools with the
	// same filter keep distinct schemas.
	Pool string `json:"pool,omitempty"`
	// Salt makes an ad-hoc list schema unique when no natural scope
	// exists.
	Salt string `json:"salt,omitempty"`
}

// Hash returns the keccak-256 of the schema's canonical JSON encoding. Field
// order is fixed by the struct, addresses are lowercased and token ids
// sorted by the constructors, so equal schemas hash equally.
func (s Schema) Hash() (common.Hash, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("tokenset: encode schema: %w", err)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return common.BytesToHash(h.Sum(nil)), nil
}

// SingleTokenSchema builds the schema for a one-token set.
func SingleTokenSchema(contract common.Address, tokenID *big.Int) Schema {
	return Schema{
		Kind:     "single-token",
		Contract: strings.ToLower(contract.Hex()),
		TokenID:  tokenID.String(),
	}
}

// ContractWideSchema builds the schema for a whole-contract set.
func ContractWideSchema(contract common.Address) Schema {
	return Schema{
		Kind:     "contract-wide",
		Contract: strings.ToLower(contract.Hex()),
	}
}

// TokenListSchema builds the schema for a filtered-pool token list, scoped to
// the pool address.
func TokenListSchema(contract, pool common.Address, tokenIDs []*big.Int) Schema {
	return Schema{
		Kind:     "token-list",
		Contract: strings.ToLower(contract.Hex()),
		TokenIDs: sortedIDStrings(tokenIDs),
		Pool:     strings.ToLower(pool.Hex()),
	}
}

// AdHocListSchema builds a salted schema for a token list with no natural
// owning scope.
func AdHocListSchema(contract common.Address, tokenIDs []*big.Int) Schema {
	return Schema{
		Kind:     "token-list",
		Contract: strings.ToLower(contract.Hex()),
		TokenIDs: sortedIDStrings(tokenIDs),
		Salt:     uuid.NewString(),
	}
}

func sortedIDStrings(tokenIDs []*big.Int) []string {
	sorted := make([]*big.Int, len(tokenIDs))
	copy(sorted, tokenIDs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})

	out := make([]string, len(sorted))
	for i, id := range sorted {
		out[i] = id.String()
	}
	return out
}
