// Package tokenset builds and persists the content-addressed token sets
// orders settle against.
package tokenset

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// LeafTokenID hashes a bare token id into a merkle leaf. This is the scheme
// used by pool token-id filters, whose on-chain verifiers hash the id alone.
func LeafTokenID(tokenID *big.Int) common.Hash {
	return common.BytesToHash(crypto.Keccak256(math.U256Bytes(new(big.Int).Set(tokenID))))
}

// LeafContractTokenID hashes a (contract, tokenId) pair into a merkle leaf,
// the scheme exchange-order token lists commit to.
func LeafContractTokenID(contract common.Address, tokenID *big.Int) common.Hash {
	packed := make([]byte, 0, 52)
	packed = append(packed, contract.Bytes()...)
	packed = append(packed, math.U256Bytes(new(big.Int).Set(tokenID))...)
	return common.BytesToHash(crypto.Keccak256(packed))
}

// hashPair combines two nodes with the smaller one first, so proofs need no
// position bits.
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return common.BytesToHash(crypto.Keccak256(a[:], b[:]))
}

func sortLeaves(leaves []common.Hash) []common.Hash {
	sorted := make([]common.Hash, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}

// Root computes the merkle root over the given leaves. Leaves are sorted
// before building, so the root is independent of input order. An odd node at
// any level is promoted unchanged. The root of no leaves is the zero hash.
func Root(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}

	level := sortLeaves(leaves)
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}

// Proof returns the sibling path for target, from leaf level to the root.
// The second return is false when target is not among the leaves.
func Proof(leaves []common.Hash, target common.Hash) ([]common.Hash, bool) {
	if len(leaves) == 0 {
		return nil, false
	}

	level := sortLeaves(leaves)
	idx := -1
	for i, leaf := range level {
		if leaf == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	var path []common.Hash
	for len(level) > 1 {
		sibling := idx ^ 1
		if sibling < len(level) {
			path = append(path, level[sibling])
		}

		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
		idx /= 2
	}
	return path, true
}

// Verify checks a sibling path from leaf up against root.
func Verify(root common.Hash, leaf common.Hash, path []common.Hash) bool {
	node := leaf
	for _, sibling := range path {
		node = hashPair(node, sibling)
	}
	return node == root
}
