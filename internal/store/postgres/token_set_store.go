package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainbook/chainbook/internal/domain"
)

// TokenSetStore implements domain.TokenSetStore using PostgreSQL.
type TokenSetStore struct {
	pool *pgxpool.Pool
}

// NewTokenSetStore creates a new TokenSetStore backed by the given pool.
func NewTokenSetStore(pool *pgxpool.Pool) *TokenSetStore {
	return &TokenSetStore{pool: pool}
}

// Save persists a token set and, for token lists, its membership rows. Sets
// are content-addressed so conflicts are skipped rather than updated.
func (s *TokenSetStore) Save(ctx context.Context, set domain.TokenSet) error {
	var tokenID *string
	if set.TokenID != nil {
		v := set.TokenID.String()
		tokenID = &v
	}
	var root *string
	if set.Kind == domain.TokenSetTokenList {
		v := strings.ToLower(set.MerkleRoot.Hex())
		root = &v
	}

	const insertSet = `
		INSERT INTO token_sets (id, schema_hash, kind, contract, token_id, merkle_root, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	batch.Queue(insertSet,
		set.ID, strings.ToLower(set.SchemaHash.Hex()), string(set.Kind),
		addr(set.Contract), tokenID, root,
	)

	const insertMember = `
		INSERT INTO token_set_tokens (token_set_id, contract, token_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	for _, id := range set.TokenIDs {
		batch.Queue(insertMember, set.ID, addr(set.Contract), id.String())
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < 1+len(set.TokenIDs); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: save token set %s: %w", set.ID, err)
		}
	}
	return nil
}

// Exists reports whether a token set with the given id is already stored.
func (s *TokenSetStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM token_sets WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check token set %s: %w", id, err)
	}
	return exists, nil
}
