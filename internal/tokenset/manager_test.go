package tokenset

import (
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
)

type fakeSetStore struct {
	sets  map[string]domain.TokenSet
	saves int
}

func newFakeSetStore() *fakeSetStore {
	return &fakeSetStore{sets: make(map[string]domain.TokenSet)}
}

func (s *fakeSetStore) Save(_ context.Context, set domain.TokenSet) error {
	s.saves++
	s.sets[set.ID] = set
	return nil
}

func (s *fakeSetStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.sets[id]
	return ok, nil
}

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestEnsureSingleTokenIdempotent(t *testing.T) {
	store := newFakeSetStore()
	m := NewManager(store, 100, slog.Default())

	first, err := m.EnsureSingleToken(context.Background(), testContract, big.NewInt(7))
	require.NoError(t, err)
	second, err := m.EnsureSingleToken(context.Background(), testContract, big.NewInt(7))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, domain.TokenSetSingleToken, first.Kind)
}

func TestEnsureContractWideID(t *testing.T) {
	store := newFakeSetStore()
	m := NewManager(store, 100, slog.Default())

	set, err := m.EnsureContractWide(context.Background(), testContract)
	require.NoError(t, err)
	assert.Equal(t, domain.ContractWideSetID(testContract), set.ID)
	assert.NotEqual(t, common.Hash{}, set.SchemaHash)
}

func TestEnsureTokenListConvergesAcrossOrder(t *testing.T) {
	store := newFakeSetStore()
	m := NewManager(store, 100, slog.Default())
	pool := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	idsAsc := []*big.Int{big.NewInt(5), big.NewInt(9), big.NewInt(42)}
	idsShuffled := []*big.Int{big.NewInt(42), big.NewInt(5), big.NewInt(9)}

	a, err := m.EnsureTokenList(context.Background(),
		TokenListSchema(testContract, pool, idsAsc), testContract, idsAsc, SchemeTokenID)
	require.NoError(t, err)

	b, err := m.EnsureTokenList(context.Background(),
		TokenListSchema(testContract, pool, idsShuffled), testContract, idsShuffled, SchemeTokenID)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.MerkleRoot, b.MerkleRoot)
	assert.Equal(t, 1, store.saves)
}

func TestEnsureTokenListSchemeChangesID(t *testing.T) {
	store := newFakeSetStore()
	m := NewManager(store, 100, slog.Default())
	ids := []*big.Int{big.NewInt(1), big.NewInt(2)}
	schema := TokenListSchema(testContract, common.HexToAddress("0x00000000000000000000000000000000000000cc"), ids)

	a, err := m.EnsureTokenList(context.Background(), schema, testContract, ids, SchemeTokenID)
	require.NoError(t, err)
	b, err := m.EnsureTokenList(context.Background(), schema, testContract, ids, SchemeContractTokenID)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestEnsureTokenListRejectsEmpty(t *testing.T) {
	m := NewManager(newFakeSetStore(), 100, slog.Default())
	schema := TokenListSchema(testContract, common.Address{}, nil)

	_, err := m.EnsureTokenList(context.Background(), schema, testContract, nil, SchemeTokenID)
	assert.ErrorIs(t, err, domain.ErrEmptyTokenList)
}

func TestEnsureTokenListRejectsOversized(t *testing.T) {
	m := NewManager(newFakeSetStore(), 2, slog.Default())
	ids := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	schema := TokenListSchema(testContract, common.Address{}, ids)

	_, err := m.EnsureTokenList(context.Background(), schema, testContract, ids, SchemeTokenID)
	assert.ErrorIs(t, err, domain.ErrTokenListTooLarge)
}

func TestAdHocListSchemaSalted(t *testing.T) {
	ids := []*big.Int{big.NewInt(1)}
	a := AdHocListSchema(testContract, ids)
	b := AdHocListSchema(testContract, ids)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
