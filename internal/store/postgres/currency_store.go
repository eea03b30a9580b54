package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainbook/chainbook/internal/domain"
)

// CurrencyStore implements domain.CurrencyStore using PostgreSQL.
type CurrencyStore struct {
	pool *pgxpool.Pool
}

// NewCurrencyStore creates a new CurrencyStore backed by the given pool.
func NewCurrencyStore(pool *pgxpool.Pool) *CurrencyStore {
	return &CurrencyStore{pool: pool}
}

// Get returns the metadata for a payment token, or ErrNotFound when the
// currency is unknown.
func (s *CurrencyStore) Get(ctx context.Context, contract common.Address) (domain.Currency, error) {
	const query = `
		SELECT contract, symbol, decimals, COALESCE(coingecko_id, '')
		FROM currencies WHERE contract = $1`

	var c domain.Currency
	var contractStr string
	var decimals int16
	err := s.pool.QueryRow(ctx, query, addr(contract)).Scan(
		&contractStr, &c.Symbol, &decimals, &c.CoingeckoID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Currency{}, domain.ErrNotFound
		}
		return domain.Currency{}, fmt.Errorf("postgres: get currency %s: %w", addr(contract), err)
	}

	c.Contract = common.HexToAddress(contractStr)
	c.Decimals = uint8(decimals)
	return c, nil
}

// USDPriceStore implements domain.USDPriceStore using PostgreSQL. Quotes are
// day-granular: the primary key is (currency, timestamp) with timestamps
// truncated to the start of day by the caller.
type USDPriceStore struct {
	pool *pgxpool.Pool
}

// NewUSDPriceStore creates a new USDPriceStore backed by the given pool.
func NewUSDPriceStore(pool *pgxpool.Pool) *USDPriceStore {
	return &USDPriceStore{pool: pool}
}

// Latest returns the newest stored USD quote at or before ts.
func (s *USDPriceStore) Latest(ctx context.Context, currency common.Address, ts int64) (domain.USDPrice, error) {
	const query = `
		SELECT currency, timestamp, value FROM usd_prices
		WHERE currency = $1 AND timestamp <= $2
		ORDER BY timestamp DESC LIMIT 1`

	var p domain.USDPrice
	var contractStr, valueStr string
	err := s.pool.QueryRow(ctx, query, addr(currency), ts).Scan(
		&contractStr, &p.Timestamp, &valueStr,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.USDPrice{}, domain.ErrNotFound
		}
		return domain.USDPrice{}, fmt.Errorf("postgres: usd price for %s: %w", addr(currency), err)
	}

	p.Currency = common.HexToAddress(contractStr)
	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		return domain.USDPrice{}, fmt.Errorf("postgres: usd price for %s: bad value %q", addr(currency), valueStr)
	}
	p.Value = value
	return p, nil
}

// Insert stores a quote; an existing (currency, timestamp) row wins.
func (s *USDPriceStore) Insert(ctx context.Context, price domain.USDPrice) error {
	const query = `
		INSERT INTO usd_prices (currency, timestamp, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (currency, timestamp) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		addr(price.Currency), price.Timestamp, price.Value.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert usd price for %s: %w", addr(price.Currency), err)
	}
	return nil
}
