package sudoswap

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
)

type stubPoolCache struct {
	pools map[common.Address]domain.Pool
}

func (c *stubPoolCache) Get(_ context.Context, address common.Address) (domain.Pool, error) {
	p, ok := c.pools[address]
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	return p, nil
}

func (c *stubPoolCache) Set(_ context.Context, pool domain.Pool) error {
	c.pools[pool.Address] = pool
	return nil
}

type failingPoolStore struct{}

func (failingPoolStore) Get(context.Context, common.Address) (domain.Pool, error) {
	return domain.Pool{}, domain.ErrNotFound
}

func (failingPoolStore) Save(context.Context, domain.Pool) error { return nil }

var (
	pairAddr  = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000000d02")
)

func TestNewAdapterDefaultsProtocolFeeRecipient(t *testing.T) {
	a := NewAdapter(nil, nil, nil, nil, nil, nil, nil, nil, Config{}, slog.Default())
	assert.Equal(t, DefaultProtocolFeeRecipient, a.cfg.ProtocolFeeRecipient)
	assert.Equal(t, domain.OrderKindSudoswap, a.Kind())
}

func TestFeeBreakdownFlatProtocolFee(t *testing.T) {
	a := NewAdapter(nil, nil, nil, nil, nil, nil, nil, nil, Config{}, slog.Default())

	feeBps, breakdown := a.feeBreakdown()
	assert.Equal(t, 50, feeBps)
	require.Len(t, breakdown, 1)
	assert.Equal(t, domain.FeeKindMarketplace, breakdown[0].Kind)
	assert.Equal(t, DefaultProtocolFeeRecipient, breakdown[0].Recipient)
	assert.Equal(t, 50, breakdown[0].Bps)
}

type flakySourceStore struct {
	calls int
}

func (s *flakySourceStore) GetOrInsert(context.Context, string) (domain.Source, error) {
	s.calls++
	if s.calls == 1 {
		return domain.Source{}, errors.New("store offline")
	}
	return domain.Source{ID: 7, Domain: SourceDomain}, nil
}

func TestSourceRegistrationRetriesAfterFailure(t *testing.T) {
	store := &flakySourceStore{}
	a := NewAdapter(nil, nil, nil, nil, nil, nil, nil, store, Config{}, slog.Default())

	ctx := context.Background()
	assert.Equal(t, int64(0), a.source(ctx))
	assert.Equal(t, int64(7), a.source(ctx))
	assert.Equal(t, int64(7), a.source(ctx))
	assert.Equal(t, 2, store.calls)
}

func TestProcessERC20PairUnsupported(t *testing.T) {
	cache := &stubPoolCache{pools: map[common.Address]domain.Pool{
		pairAddr: {
			Kind:    domain.OrderKindSudoswap,
			Address: pairAddr,
			Token:   tokenAddr,
		},
	}}
	a := NewAdapter(nil, failingPoolStore{}, cache, nil, nil, nil, nil, nil, Config{}, slog.Default())

	notice := domain.OrderNotice{Kind: domain.OrderKindSudoswap, Pool: pairAddr}
	orders, results := a.Process(context.Background(), notice)

	assert.Empty(t, orders)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusUnsupportedCurrency, results[0].Status)
	assert.Equal(t, domain.OrderID(domain.OrderKindSudoswap, pairAddr, domain.OrderSideBuy, nil), results[0].ID)
}
