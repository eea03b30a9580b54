package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainbook/chainbook/internal/domain"
)

// PoolStore implements domain.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Get returns the resolved metadata for a pool address, or ErrNotFound.
func (s *PoolStore) Get(ctx context.Context, address common.Address) (domain.Pool, error) {
	const query = `
		SELECT kind, address, nft, token, bonding_curve, pool_type, pool_variant
		FROM pools WHERE address = $1`

	var (
		p                          domain.Pool
		kind, a, nft, token, curve string
		poolType, poolVariant      int16
	)
	err := s.pool.QueryRow(ctx, query, addr(address)).Scan(
		&kind, &a, &nft, &token, &curve, &poolType, &poolVariant,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pool{}, domain.ErrNotFound
		}
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", addr(address), err)
	}

	p.Kind = domain.OrderKind(kind)
	p.Address = common.HexToAddress(a)
	p.NFT = common.HexToAddress(nft)
	p.Token = common.HexToAddress(token)
	p.BondingCurve = common.HexToAddress(curve)
	p.PoolType = domain.PoolType(poolType)
	p.PoolVariant = uint8(poolVariant)
	return p, nil
}

// Save persists pool metadata. Pools are immutable so conflicts are skipped.
func (s *PoolStore) Save(ctx context.Context, p domain.Pool) error {
	const query = `
		INSERT INTO pools (kind, address, nft, token, bonding_curve, pool_type, pool_variant, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (address) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		string(p.Kind), addr(p.Address), addr(p.NFT), addr(p.Token),
		addr(p.BondingCurve), int16(p.PoolType), int16(p.PoolVariant),
	)
	if err != nil {
		return fmt.Errorf("postgres: save pool %s: %w", addr(p.Address), err)
	}
	return nil
}
