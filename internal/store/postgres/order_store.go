package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainbook/chainbook/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// bigStr renders a big integer for a numeric column; nil maps to SQL NULL.
func bigStr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseBig(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

func jsonOrNull(v any) ([]byte, error) {
	switch x := v.(type) {
	case []domain.FeeBreakdownEntry:
		if len(x) == 0 {
			return nil, nil
		}
	case []domain.MissingRoyalty:
		if len(x) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func addr(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// recheckPredicate builds the SQL guard fragment for a conditional order
// update. argIdx is the placeholder index of the first guard argument. The
// fragment references block_number/log_index, valid_from or updated_at on the
// stored row; the returned args line up with the placeholders it emits.
func recheckPredicate(guard domain.RecheckGuard, argIdx int) (string, []any) {
	switch guard.Kind {
	case domain.GuardValidFrom:
		return fmt.Sprintf("valid_from < to_timestamp($%d)", argIdx),
			[]any{guard.Provenance.TxTimestamp}
	case domain.GuardCooldown:
		cutoff := guard.Provenance.TxTimestamp - int64(guard.Cooldown/time.Second)
		return fmt.Sprintf("updated_at < to_timestamp($%d)", argIdx),
			[]any{cutoff}
	default:
		return fmt.Sprintf("(block_number, log_index) < ($%d, $%d)", argIdx, argIdx+1),
			[]any{guard.Provenance.Block, guard.Provenance.LogIndex}
	}
}

// GetSnapshot returns the stored slice of an order that adapters consult
// before deciding between insert, reprice and repair.
func (s *OrderStore) GetSnapshot(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	const query = `
		SELECT id, COALESCE(token_set_id, ''), COALESCE(token_set_schema_hash, ''),
		       COALESCE(fee_bps, 0), fee_breakdown, raw_data
		FROM orders WHERE id = $1`

	var (
		snap         domain.OrderSnapshot
		schemaHash   string
		feeBreakdown []byte
		rawData      []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&snap.ID, &snap.TokenSetID, &schemaHash, &snap.FeeBps, &feeBreakdown, &rawData,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderSnapshot{}, fmt.Errorf("postgres: get order snapshot %s: %w", id, err)
	}

	if schemaHash != "" {
		snap.TokenSetSchemaHash = common.HexToHash(schemaHash)
	}
	if len(feeBreakdown) > 0 {
		if err := json.Unmarshal(feeBreakdown, &snap.FeeBreakdown); err != nil {
			return domain.OrderSnapshot{}, fmt.Errorf("postgres: decode fee breakdown %s: %w", id, err)
		}
	}
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &snap.RawData); err != nil {
			return domain.OrderSnapshot{}, fmt.Errorf("postgres: decode raw data %s: %w", id, err)
		}
	}
	return snap, nil
}

const orderInsertQuery = `
	INSERT INTO orders (
		id, kind, side, fillability_status, approval_status,
		token_set_id, token_set_schema_hash, maker, taker, contract,
		price, value, normalized_value,
		currency, currency_price, currency_value, currency_normalized_value,
		needs_conversion, quantity_remaining,
		valid_from, valid_until, expiration,
		source_id, fee_bps, fee_breakdown, missing_royalties, raw_data,
		block_number, log_index, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, $13,
		$14, $15, $16, $17,
		$18, $19,
		$20, $21, $22,
		$23, $24, $25, $26, $27,
		$28, $29, NOW(), NOW()
	)
	ON CONFLICT (id) DO NOTHING`

func orderInsertArgs(o domain.Order) ([]any, error) {
	feeBreakdown, err := jsonOrNull(o.FeeBreakdown)
	if err != nil {
		return nil, fmt.Errorf("encode fee breakdown: %w", err)
	}
	missingRoyalties, err := jsonOrNull(o.MissingRoyalties)
	if err != nil {
		return nil, fmt.Errorf("encode missing royalties: %w", err)
	}
	rawData, err := json.Marshal(o.RawData)
	if err != nil {
		return nil, fmt.Errorf("encode raw data: %w", err)
	}

	return []any{
		o.ID, string(o.Kind), string(o.Side),
		string(o.FillabilityStatus), string(o.ApprovalStatus),
		o.TokenSetID, strings.ToLower(o.TokenSetSchemaHash.Hex()),
		addr(o.Maker), addr(o.Taker), addr(o.Contract),
		bigStr(o.Price), bigStr(o.Value), bigStr(o.NormalizedValue),
		addr(o.Currency),
		bigStr(o.CurrencyPrice), bigStr(o.CurrencyValue), bigStr(o.CurrencyNormalizedValue),
		o.NeedsConversion, int64(o.QuantityRemaining),
		o.ValidFrom, o.ValidUntil, o.Expiration,
		o.SourceID, o.FeeBps, feeBreakdown, missingRoyalties, rawData,
		o.BlockNumber, o.LogIndex,
	}, nil
}

// InsertBatch inserts orders in one round trip with conflict-skip on id.
// Re-delivered notices therefore land as no-ops instead of duplicates.
func (s *OrderStore) InsertBatch(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range orders {
		args, err := orderInsertArgs(o)
		if err != nil {
			return fmt.Errorf("postgres: insert order %s: %w", o.ID, err)
		}
		batch.Queue(orderInsertQuery, args...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, o := range orders {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert order %s: %w", o.ID, err)
		}
	}
	return nil
}

// UpdatePricing applies a guarded reprice to an existing row. The guard is
// evaluated inside the UPDATE so concurrent writers never regress a row to
// stale pricing; the return value reports whether the write was admitted.
func (s *OrderStore) UpdatePricing(ctx context.Context, upd domain.PricingUpdate, guard domain.RecheckGuard) (bool, error) {
	feeBreakdown, err := jsonOrNull(upd.FeeBreakdown)
	if err != nil {
		return false, fmt.Errorf("postgres: update order %s: encode fee breakdown: %w", upd.ID, err)
	}
	missingRoyalties, err := jsonOrNull(upd.MissingRoyalties)
	if err != nil {
		return false, fmt.Errorf("postgres: update order %s: encode missing royalties: %w", upd.ID, err)
	}
	rawData, err := json.Marshal(upd.RawData)
	if err != nil {
		return false, fmt.Errorf("postgres: update order %s: encode raw data: %w", upd.ID, err)
	}

	args := []any{
		upd.ID,
		string(upd.FillabilityStatus), string(upd.ApprovalStatus),
		bigStr(upd.Price), bigStr(upd.Value), bigStr(upd.NormalizedValue),
		bigStr(upd.CurrencyPrice), bigStr(upd.CurrencyValue), bigStr(upd.CurrencyNormalizedValue),
		int64(upd.QuantityRemaining),
		upd.ValidFrom, upd.ValidUntil, upd.Expiration,
		upd.FeeBps, feeBreakdown, missingRoyalties, rawData,
		upd.Provenance.Block, upd.Provenance.LogIndex,
	}

	query := `
		UPDATE orders SET
			fillability_status = $2, approval_status = $3,
			price = $4, value = $5, normalized_value = $6,
			currency_price = $7, currency_value = $8, currency_normalized_value = $9,
			quantity_remaining = $10,
			valid_from = $11, valid_until = $12, expiration = $13,
			fee_bps = $14, fee_breakdown = $15, missing_royalties = $16, raw_data = $17,
			block_number = $18, log_index = $19, updated_at = NOW()`

	argIdx := 20
	if upd.TokenSetID != "" {
		query += fmt.Sprintf(", token_set_id = $%d", argIdx)
		args = append(args, upd.TokenSetID)
		argIdx++
	}

	predicate, guardArgs := recheckPredicate(guard, argIdx)
	query += " WHERE id = $1 AND " + predicate
	args = append(args, guardArgs...)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("postgres: update order %s: %w", upd.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetNoBalance marks an order unfillable for lack of maker balance, using
// the observation time as the expiration, under the same guard as a reprice.
func (s *OrderStore) SetNoBalance(ctx context.Context, id string, prov domain.Provenance, guard domain.RecheckGuard) (bool, error) {
	args := []any{
		id, string(domain.FillabilityNoBalance), prov.Time(),
		prov.Block, prov.LogIndex,
	}
	predicate, guardArgs := recheckPredicate(guard, len(args)+1)
	args = append(args, guardArgs...)

	query := `
		UPDATE orders SET
			fillability_status = $2, expiration = $3,
			block_number = $4, log_index = $5, updated_at = NOW()
		WHERE id = $1 AND ` + predicate

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("postgres: set no-balance %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an order row. Only used to clear incomplete placeholder
// rows before re-insertion.
func (s *OrderStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete order %s: %w", id, err)
	}
	return nil
}
