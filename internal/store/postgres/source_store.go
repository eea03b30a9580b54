package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainbook/chainbook/internal/domain"
)

// SourceStore implements domain.SourceStore using PostgreSQL.
type SourceStore struct {
	pool *pgxpool.Pool
}

// NewSourceStore creates a new SourceStore backed by the given pool.
func NewSourceStore(pool *pgxpool.Pool) *SourceStore {
	return &SourceStore{pool: pool}
}

// GetOrInsert resolves a source by domain name, registering it on first
// sight. Concurrent first-sight registrations converge on the same row.
func (s *SourceStore) GetOrInsert(ctx context.Context, domainName string) (domain.Source, error) {
	const insert = `
		INSERT INTO sources (domain, created_at) VALUES ($1, NOW())
		ON CONFLICT (domain) DO NOTHING
		RETURNING id`

	var src domain.Source
	src.Domain = domainName

	err := s.pool.QueryRow(ctx, insert, domainName).Scan(&src.ID)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("postgres: register source %s: %w", domainName, err)
	}

	// Conflict: the row already existed, read it back.
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM sources WHERE domain = $1`, domainName,
	).Scan(&src.ID)
	if err != nil {
		return domain.Source{}, fmt.Errorf("postgres: resolve source %s: %w", domainName, err)
	}
	return src, nil
}
