package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/chainbook/chainbook/internal/domain"
)

// usdDecimals is the fixed-point precision of stored USD quotes.
const usdDecimals = 6

// oneUSD is 1.00 in stored fixed-point units.
var oneUSD = big.NewInt(1_000_000)

// DayBucket truncates a unix timestamp to the start of its UTC day, the
// granularity at which quotes are cached and persisted.
func DayBucket(ts int64) int64 {
	return time.Unix(ts, 0).UTC().Truncate(24 * time.Hour).Unix()
}

// OracleConfig tunes the USD price oracle.
type OracleConfig struct {
	BaseURL string
	Timeout time.Duration
	// Stablecoins are quoted 1:1 with USD without an upstream lookup.
	Stablecoins []common.Address
}

// Oracle resolves day-granular USD quotes through three tiers: the Redis
// cache, the persisted quote store, and finally the upstream market data
// API. Upstream results are persisted and cached so reconciliations of the
// same day hit the network once.
type Oracle struct {
	cache   domain.PriceCache
	store   domain.USDPriceStore
	http    *resty.Client
	stables map[common.Address]struct{}
	log     *slog.Logger
}

// NewOracle creates an Oracle.
func NewOracle(cache domain.PriceCache, store domain.USDPriceStore, cfg OracleConfig, log *slog.Logger) *Oracle {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	stables := make(map[common.Address]struct{}, len(cfg.Stablecoins))
	for _, a := range cfg.Stablecoins {
		stables[a] = struct{}{}
	}

	return &Oracle{
		cache: cache,
		store: store,
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(timeout).
			SetRetryCount(2),
		stables: stables,
		log:     log.With("component", "oracle"),
	}
}

type historyResponse struct {
	MarketData struct {
		CurrentPrice struct {
			USD decimal.Decimal `json:"usd"`
		} `json:"current_price"`
	} `json:"market_data"`
}

// USDPrice returns the USD quote for a currency on the day containing ts.
// Currencies without a market-data id and days the upstream cannot price
// yield an error wrapping domain.ErrNoPriceAvailable.
func (o *Oracle) USDPrice(ctx context.Context, currency domain.Currency, ts int64) (domain.USDPrice, error) {
	day := DayBucket(ts)

	if _, ok := o.stables[currency.Contract]; ok {
		return domain.USDPrice{
			Currency:  currency.Contract,
			Timestamp: day,
			Value:     new(big.Int).Set(oneUSD),
		}, nil
	}

	if price, err := o.cache.Get(ctx, currency.Contract, day); err == nil {
		return price, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		o.log.Warn("price cache read failed", "currency", currency.Symbol, "error", err)
	}

	// Any stored quote at or before the requested day serves; staleness is
	// acceptable for normalization, absence is not.
	if price, err := o.store.Latest(ctx, currency.Contract, day); err == nil {
		o.cacheQuote(ctx, price, day)
		return price, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.USDPrice{}, err
	}

	price, err := o.fetchUpstream(ctx, currency, day)
	if err != nil {
		return domain.USDPrice{}, err
	}

	if err := o.store.Insert(ctx, price); err != nil {
		o.log.Warn("persist quote failed", "currency", currency.Symbol, "error", err)
	}
	o.cacheQuote(ctx, price, day)
	return price, nil
}

func (o *Oracle) cacheQuote(ctx context.Context, price domain.USDPrice, day int64) {
	cached := price
	cached.Timestamp = day
	if err := o.cache.Set(ctx, cached); err != nil {
		o.log.Warn("price cache write failed", "currency", cached.Currency.Hex(), "error", err)
	}
}

func (o *Oracle) fetchUpstream(ctx context.Context, currency domain.Currency, day int64) (domain.USDPrice, error) {
	if currency.CoingeckoID == "" {
		return domain.USDPrice{}, fmt.Errorf("pricing: %s has no market data id: %w", currency.Symbol, domain.ErrNoPriceAvailable)
	}

	var out historyResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetPathParam("id", currency.CoingeckoID).
		SetQueryParam("date", time.Unix(day, 0).UTC().Format("02-01-2006")).
		SetQueryParam("localization", "false").
		SetResult(&out).
		Get("/coins/{id}/history")
	if err != nil {
		return domain.USDPrice{}, fmt.Errorf("pricing: fetch %s: %w", currency.CoingeckoID, err)
	}
	if resp.IsError() {
		return domain.USDPrice{}, fmt.Errorf("pricing: fetch %s: status %d: %w",
			currency.CoingeckoID, resp.StatusCode(), domain.ErrNoPriceAvailable)
	}

	usd := out.MarketData.CurrentPrice.USD
	if usd.IsZero() || usd.IsNegative() {
		return domain.USDPrice{}, fmt.Errorf("pricing: no usd quote for %s: %w", currency.CoingeckoID, domain.ErrNoPriceAvailable)
	}

	value := usd.Shift(usdDecimals).Truncate(0).BigInt()
	return domain.USDPrice{
		Currency:  currency.Contract,
		Timestamp: day,
		Value:     value,
	}, nil
}
