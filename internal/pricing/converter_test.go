package pricing

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

var (
	wrappedNative = common.HexToAddress("0x0000000000000000000000000000000000000111")
	usdcAddr      = common.HexToAddress("0x0000000000000000000000000000000000000222")
)

type fakeCurrencyStore struct {
	currencies map[common.Address]domain.Currency
}

func (s *fakeCurrencyStore) Get(_ context.Context, contract common.Address) (domain.Currency, error) {
	c, ok := s.currencies[contract]
	if !ok {
		return domain.Currency{}, domain.ErrNotFound
	}
	return c, nil
}

type fakePriceCache struct {
	prices map[common.Address]domain.USDPrice
}

func (c *fakePriceCache) Get(_ context.Context, currency common.Address, _ int64) (domain.USDPrice, error) {
	p, ok := c.prices[currency]
	if !ok {
		return domain.USDPrice{}, domain.ErrNotFound
	}
	return p, nil
}

func (c *fakePriceCache) Set(_ context.Context, price domain.USDPrice) error {
	c.prices[price.Currency] = price
	return nil
}

type fakeQuoteStore struct {
	prices map[common.Address]domain.USDPrice
}

func (s *fakeQuoteStore) Latest(_ context.Context, currency common.Address, _ int64) (domain.USDPrice, error) {
	p, ok := s.prices[currency]
	if !ok {
		return domain.USDPrice{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakeQuoteStore) Insert(_ context.Context, price domain.USDPrice) error {
	s.prices[price.Currency] = price
	return nil
}

func newTestConverter(quotes map[common.Address]*big.Int) *Converter {
	currencies := &fakeCurrencyStore{currencies: map[common.Address]domain.Currency{
		{}:       {Contract: common.Address{}, Symbol: "ETH", Decimals: 18, CoingeckoID: "ethereum"},
		usdcAddr: {Contract: usdcAddr, Symbol: "USDC", Decimals: 6, CoingeckoID: "usd-coin"},
	}}

	cached := make(map[common.Address]domain.USDPrice, len(quotes))
	for addr, value := range quotes {
		cached[addr] = domain.USDPrice{Currency: addr, Value: value}
	}

	oracle := NewOracle(
		&fakePriceCache{prices: cached},
		&fakeQuoteStore{prices: map[common.Address]domain.USDPrice{}},
		OracleConfig{BaseURL: "http://invalid.localhost"},
		slog.Default(),
	)
	return NewConverter(currencies, oracle, wrappedNative)
}

func TestNeedsConversion(t *testing.T) {
	c := newTestConverter(nil)

	assert.False(t, c.NeedsConversion(common.Address{}))
	assert.False(t, c.NeedsConversion(wrappedNative))
	assert.True(t, c.NeedsConversion(usdcAddr))
}

func TestToNativeIdentity(t *testing.T) {
	c := newTestConverter(nil)
	amount := big.NewInt(123456)

	got, err := c.ToNative(context.Background(), common.Address{}, amount, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, amount, got)
	assert.NotSame(t, amount, got)

	got, err = c.ToNative(context.Background(), wrappedNative, amount, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, amount, got)
}

func TestToNativeNilAmount(t *testing.T) {
	c := newTestConverter(nil)
	got, err := c.ToNative(context.Background(), usdcAddr, nil, 1700000000)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestToNativeConverts(t *testing.T) {
	// ETH at $2000, USDC at $1. 100 USDC (1e8 base units at 6 decimals)
	// should convert to 0.05 ETH.
	c := newTestConverter(map[common.Address]*big.Int{
		{}:       big.NewInt(2000_000_000),
		usdcAddr: big.NewInt(1_000_000),
	})

	got, err := c.ToNative(context.Background(), usdcAddr, big.NewInt(100_000_000), 1700000000)
	require.NoError(t, err)

	want, _ := new(big.Int).SetString("50000000000000000", 10) // 0.05e18
	assert.Equal(t, want, got)
}

func TestToNativeUnknownCurrencyFailsClosed(t *testing.T) {
	c := newTestConverter(map[common.Address]*big.Int{
		{}: big.NewInt(2000_000_000),
	})
	unknown := common.HexToAddress("0x0000000000000000000000000000000000000999")

	_, err := c.ToNative(context.Background(), unknown, big.NewInt(1), 1700000000)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDayBucket(t *testing.T) {
	// 2023-11-14T22:13:20Z and 2023-11-14T01:00:00Z share a bucket.
	a := DayBucket(1700000000)
	b := DayBucket(1699923600)
	assert.Equal(t, a, b)

	assert.Equal(t, int64(0), a%86400)
	assert.NotEqual(t, a, DayBucket(1700000000+86400))
}

func TestStablecoinQuotedAtOneUSD(t *testing.T) {
	oracle := NewOracle(
		&fakePriceCache{prices: map[common.Address]domain.USDPrice{}},
		&fakeQuoteStore{prices: map[common.Address]domain.USDPrice{}},
		OracleConfig{BaseURL: "http://invalid.localhost", Stablecoins: []common.Address{usdcAddr}},
		slog.Default(),
	)

	price, err := oracle.USDPrice(context.Background(), domain.Currency{Contract: usdcAddr, Symbol: "USDC"}, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), price.Value.Int64())
}

func TestOracleFallsBackToStore(t *testing.T) {
	store := &fakeQuoteStore{prices: map[common.Address]domain.USDPrice{
		usdcAddr: {Currency: usdcAddr, Timestamp: DayBucket(1699000000), Value: big.NewInt(999_000)},
	}}
	cache := &fakePriceCache{prices: map[common.Address]domain.USDPrice{}}
	oracle := NewOracle(cache, store, OracleConfig{BaseURL: "http://invalid.localhost"}, slog.Default())

	price, err := oracle.USDPrice(context.Background(), domain.Currency{Contract: usdcAddr, CoingeckoID: "usd-coin"}, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(999_000), price.Value.Int64())

	// The stale store hit is promoted into the cache.
	assert.Contains(t, cache.prices, usdcAddr)
}
