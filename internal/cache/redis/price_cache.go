package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/chainbook/chainbook/internal/domain"
)

const priceTTL = 24 * time.Hour

// PriceCache implements domain.PriceCache using Redis strings keyed by
// currency and day bucket.
//
// Key schema:
//
//	usdprice:{currency}:{day} - JSON-encoded domain.USDPrice
//
// day is the unix timestamp of the start of day, matching the granularity of
// the persisted quotes.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(currency common.Address, day int64) string {
	return fmt.Sprintf("usdprice:%s:%d", strings.ToLower(currency.Hex()), day)
}

// Get retrieves a cached USD quote for the given currency and day bucket.
// It returns domain.ErrNotFound when no quote is cached.
func (pc *PriceCache) Get(ctx context.Context, currency common.Address, day int64) (domain.USDPrice, error) {
	data, err := pc.rdb.Get(ctx, priceKey(currency, day)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.USDPrice{}, domain.ErrNotFound
		}
		return domain.USDPrice{}, fmt.Errorf("redis: get usd price %s: %w", currency.Hex(), err)
	}

	var price domain.USDPrice
	if err := json.Unmarshal(data, &price); err != nil {
		return domain.USDPrice{}, fmt.Errorf("redis: unmarshal usd price %s: %w", currency.Hex(), err)
	}
	return price, nil
}

// Set caches a USD quote in its day bucket with a 24-hour TTL.
func (pc *PriceCache) Set(ctx context.Context, price domain.USDPrice) error {
	data, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("redis: marshal usd price %s: %w", price.Currency.Hex(), err)
	}
	key := priceKey(price.Currency, price.Timestamp)
	if err := pc.rdb.Set(ctx, key, data, priceTTL).Err(); err != nil {
		return fmt.Errorf("redis: set usd price %s: %w", price.Currency.Hex(), err)
	}
	return nil
}
