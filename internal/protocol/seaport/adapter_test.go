package seaport

import (
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
	"github.com/chainbook/chainbook/internal/royalty"
	"github.com/chainbook/chainbook/internal/tokenset"
)

type memorySetStore struct {
	sets map[string]domain.TokenSet
}

func (s *memorySetStore) Save(_ context.Context, set domain.TokenSet) error {
	s.sets[set.ID] = set
	return nil
}

func (s *memorySetStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.sets[id]
	return ok, nil
}

func newTestAdapter() *Adapter {
	sets := tokenset.NewManager(&memorySetStore{sets: map[string]domain.TokenSet{}}, 100, slog.Default())
	return NewAdapter(sets, nil, nil, nil, nil, nil, royalty.NewClassifyPolicy(nil), Config{}, slog.Default())
}

var (
	orderHash = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000e1")
	nftAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e2")
)

func TestProcessNilPayload(t *testing.T) {
	a := newTestAdapter()
	notice := domain.OrderNotice{Kind: domain.OrderKindSeaport}

	orders, results := a.Process(context.Background(), notice)
	assert.Empty(t, orders)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusError, results[0].Status)
	assert.Empty(t, results[0].ID)
}

func TestProcessZeroPrice(t *testing.T) {
	a := newTestAdapter()
	notice := domain.OrderNotice{
		Kind: domain.OrderKindSeaport,
		Seaport: &domain.SeaportOrderInfo{
			OrderHash: orderHash,
			Price:     big.NewInt(0),
		},
	}

	_, results := a.Process(context.Background(), notice)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusZeroPrice, results[0].Status)
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000000e1", results[0].ID)
}

func TestProcessExpired(t *testing.T) {
	a := newTestAdapter()
	notice := domain.OrderNotice{
		Kind:       domain.OrderKindSeaport,
		Provenance: domain.Provenance{TxTimestamp: 1700000000},
		Seaport: &domain.SeaportOrderInfo{
			OrderHash: orderHash,
			Price:     big.NewInt(1000),
			EndTime:   1699999999,
		},
	}

	_, results := a.Process(context.Background(), notice)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusExpired, results[0].Status)
}

func TestResolveTokenSetSingleToken(t *testing.T) {
	a := newTestAdapter()
	info := &domain.SeaportOrderInfo{
		Scope:    domain.SeaportScopeSingleToken,
		Contract: nftAddr,
		TokenID:  big.NewInt(7),
	}

	set, status := a.resolveTokenSet(context.Background(), info)
	require.Equal(t, domain.StatusSuccess, status)
	assert.Equal(t, domain.SingleTokenSetID(nftAddr, big.NewInt(7)), set.ID)
}

func TestResolveTokenSetMissingTokenID(t *testing.T) {
	a := newTestAdapter()
	info := &domain.SeaportOrderInfo{
		Scope:    domain.SeaportScopeSingleToken,
		Contract: nftAddr,
	}

	_, status := a.resolveTokenSet(context.Background(), info)
	assert.Equal(t, domain.StatusInvalidTokenSet, status)
}

func TestResolveTokenSetListRootMismatch(t *testing.T) {
	a := newTestAdapter()
	info := &domain.SeaportOrderInfo{
		Scope:      domain.SeaportScopeTokenList,
		Contract:   nftAddr,
		TokenIDs:   []*big.Int{big.NewInt(1), big.NewInt(2)},
		MerkleRoot: common.HexToHash("0xdead000000000000000000000000000000000000000000000000000000000000"),
	}

	dropped, status := a.resolveTokenSet(context.Background(), info)
	assert.Equal(t, domain.StatusInvalidTokenSet, status)
	assert.Empty(t, dropped.ID)
}

func TestResolveTokenSetListMatchingRoot(t *testing.T) {
	a := newTestAdapter()
	ids := []*big.Int{big.NewInt(1), big.NewInt(2)}

	leaves := []common.Hash{
		tokenset.LeafContractTokenID(nftAddr, ids[0]),
		tokenset.LeafContractTokenID(nftAddr, ids[1]),
	}
	info := &domain.SeaportOrderInfo{
		Scope:      domain.SeaportScopeTokenList,
		Contract:   nftAddr,
		TokenIDs:   ids,
		MerkleRoot: tokenset.Root(leaves),
	}

	set, status := a.resolveTokenSet(context.Background(), info)
	require.Equal(t, domain.StatusSuccess, status)
	assert.Equal(t, domain.TokenListSetID(nftAddr, info.MerkleRoot), set.ID)
}

func TestResolveTokenSetListWithoutMembers(t *testing.T) {
	a := newTestAdapter()
	info := &domain.SeaportOrderInfo{
		Scope:      domain.SeaportScopeTokenList,
		Contract:   nftAddr,
		MerkleRoot: common.HexToHash("0x01"),
	}

	_, status := a.resolveTokenSet(context.Background(), info)
	assert.Equal(t, domain.StatusInvalidTokenSet, status)
}

func TestClassifyFeesOversizedFeeAmount(t *testing.T) {
	a := newTestAdapter()

	// The quotient overflows int64 before the cap; the order must be
	// rejected rather than narrowed into a small bps value.
	huge := new(big.Int).Lsh(big.NewInt(1), 80)
	info := &domain.SeaportOrderInfo{
		Price: big.NewInt(1),
		Fees:  []domain.SeaportFee{{Recipient: nftAddr, Amount: huge}},
	}

	breakdown, feeBps, status := a.classifyFees(context.Background(), info)
	assert.Equal(t, domain.StatusFeesTooHigh, status)
	assert.Nil(t, breakdown)
	assert.Zero(t, feeBps)
}
