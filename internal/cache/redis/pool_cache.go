package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/chainbook/chainbook/internal/domain"
)

// PoolCache implements domain.PoolCache using Redis strings with
// JSON-serialized pool metadata.
//
// Key schema:
//
//	pool:{address} - JSON-encoded domain.Pool
//
// Pool metadata is immutable so entries carry no TTL and are never
// invalidated.
type PoolCache struct {
	rdb *redis.Client
}

// NewPoolCache creates a PoolCache backed by the given Client.
func NewPoolCache(c *Client) *PoolCache {
	return &PoolCache{rdb: c.Underlying()}
}

func poolKey(address common.Address) string {
	return "pool:" + strings.ToLower(address.Hex())
}

// Get retrieves pool metadata by address. It returns domain.ErrNotFound when
// the key does not exist.
func (pc *PoolCache) Get(ctx context.Context, address common.Address) (domain.Pool, error) {
	data, err := pc.rdb.Get(ctx, poolKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Pool{}, domain.ErrNotFound
		}
		return domain.Pool{}, fmt.Errorf("redis: get pool %s: %w", address.Hex(), err)
	}

	var pool domain.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return domain.Pool{}, fmt.Errorf("redis: unmarshal pool %s: %w", address.Hex(), err)
	}
	return pool, nil
}

// Set stores pool metadata without expiry.
func (pc *PoolCache) Set(ctx context.Context, pool domain.Pool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("redis: marshal pool %s: %w", pool.Address.Hex(), err)
	}
	if err := pc.rdb.Set(ctx, poolKey(pool.Address), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set pool %s: %w", pool.Address.Hex(), err)
	}
	return nil
}
