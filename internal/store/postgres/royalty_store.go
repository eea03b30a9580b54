package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainbook/chainbook/internal/domain"
)

// RoyaltyStore implements domain.RoyaltyStore using PostgreSQL. Royalty
// schedules are written by the collection-metadata pipeline; this side only
// reads them.
type RoyaltyStore struct {
	pool *pgxpool.Pool
}

// NewRoyaltyStore creates a new RoyaltyStore backed by the given pool.
func NewRoyaltyStore(pool *pgxpool.Pool) *RoyaltyStore {
	return &RoyaltyStore{pool: pool}
}

// ByContract returns the royalty schedule registered for a collection under
// the given spec. An unregistered collection yields an empty slice.
func (s *RoyaltyStore) ByContract(ctx context.Context, contract common.Address, spec domain.RoyaltySpec) ([]domain.Royalty, error) {
	const query = `
		SELECT recipient, bps FROM collection_royalties
		WHERE contract = $1 AND spec = $2
		ORDER BY bps DESC`

	rows, err := s.pool.Query(ctx, query, addr(contract), string(spec))
	if err != nil {
		return nil, fmt.Errorf("postgres: royalties for %s: %w", addr(contract), err)
	}
	defer rows.Close()

	var royalties []domain.Royalty
	for rows.Next() {
		var recipient string
		var bps int
		if err := rows.Scan(&recipient, &bps); err != nil {
			return nil, fmt.Errorf("postgres: scan royalty for %s: %w", addr(contract), err)
		}
		royalties = append(royalties, domain.Royalty{
			Recipient: common.HexToAddress(recipient),
			Bps:       bps,
		})
	}
	return royalties, rows.Err()
}
