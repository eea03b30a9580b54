// Package protocol holds the adapter-shared order reconciliation machinery:
// the insert-or-reprice state machine and the status taxonomy mapping.
package protocol

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chainbook/chainbook/internal/domain"
)

// Upserter applies one reconciled order to the store, deciding between a
// fresh insert, a guarded reprice of the existing row, and the repair path
// for incomplete placeholder rows.
type Upserter struct {
	orders domain.OrderStore
	log    *slog.Logger
}

// NewUpserter creates an Upserter writing through orders.
func NewUpserter(orders domain.OrderStore, log *slog.Logger) *Upserter {
	return &Upserter{orders: orders, log: log}
}

// Outcome reports what Apply decided for one order id.
type Outcome struct {
	Result domain.ReconcileResult
	// Insert is non-nil when the order must be bulk-inserted by the
	// caller's batch.
	Insert *domain.Order
}

// Apply runs the per-id state machine:
//
//	absent            -> insert (new-order)
//	incomplete row    -> delete, then insert (new-order)
//	complete row      -> guarded reprice; guard rejection is "delayed"
//
// Inserts are returned to the caller instead of written here so a batch of
// sibling orders lands in one conflict-skip statement.
func (u *Upserter) Apply(ctx context.Context, order domain.Order, guard domain.RecheckGuard, prov domain.Provenance) (Outcome, error) {
	result := domain.ReconcileResult{
		ID:          order.ID,
		TxHash:      prov.TxHash,
		TxTimestamp: prov.TxTimestamp,
	}

	snap, err := u.orders.GetSnapshot(ctx, order.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		result.Status = domain.StatusSuccess
		result.TriggerKind = domain.TriggerNewOrder
		return Outcome{Result: result, Insert: &order}, nil

	case err != nil:
		return Outcome{}, err

	case snap.Incomplete():
		// A placeholder row from a partial writer is never patched in
		// place.
		if err := u.orders.Delete(ctx, order.ID); err != nil {
			return Outcome{}, err
		}
		u.log.Debug("replaced incomplete order row", "id", order.ID)
		result.Status = domain.StatusSuccess
		result.TriggerKind = domain.TriggerNewOrder
		return Outcome{Result: result, Insert: &order}, nil
	}

	upd := domain.PricingUpdate{
		ID:                      order.ID,
		FillabilityStatus:       order.FillabilityStatus,
		ApprovalStatus:          order.ApprovalStatus,
		Price:                   order.Price,
		Value:                   order.Value,
		NormalizedValue:         order.NormalizedValue,
		CurrencyPrice:           order.CurrencyPrice,
		CurrencyValue:           order.CurrencyValue,
		CurrencyNormalizedValue: order.CurrencyNormalizedValue,
		QuantityRemaining:       order.QuantityRemaining,
		ValidFrom:               order.ValidFrom,
		ValidUntil:              order.ValidUntil,
		Expiration:              order.Expiration,
		FeeBps:                  order.FeeBps,
		FeeBreakdown:            order.FeeBreakdown,
		MissingRoyalties:        order.MissingRoyalties,
		RawData:                 order.RawData,
		Provenance:              prov,
	}
	if order.TokenSetID != snap.TokenSetID {
		upd.TokenSetID = order.TokenSetID
	}

	applied, err := u.orders.UpdatePricing(ctx, upd, guard)
	if err != nil {
		return Outcome{}, err
	}
	if !applied {
		result.Status = domain.StatusDelayed
		return Outcome{Result: result}, nil
	}

	result.Status = domain.StatusSuccess
	result.TriggerKind = domain.TriggerReprice
	return Outcome{Result: result}, nil
}

// SetNoBalance transitions an id to no-balance under the same guard as a
// reprice, reporting "delayed" when the guard rejects the write and success
// with a reprice trigger when it lands.
func (u *Upserter) SetNoBalance(ctx context.Context, id string, prov domain.Provenance, guard domain.RecheckGuard) (Outcome, error) {
	result := domain.ReconcileResult{
		ID:          id,
		TxHash:      prov.TxHash,
		TxTimestamp: prov.TxTimestamp,
	}

	applied, err := u.orders.SetNoBalance(ctx, id, prov, guard)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			result.Status = domain.StatusNotFillable
			return Outcome{Result: result}, nil
		}
		return Outcome{}, err
	}
	if !applied {
		result.Status = domain.StatusDelayed
		return Outcome{Result: result}, nil
	}

	result.Status = domain.StatusSuccess
	result.TriggerKind = domain.TriggerReprice
	return Outcome{Result: result}, nil
}

// StatusForError maps the shared error taxonomy onto per-item statuses.
// Unrecognized errors map to the generic error status.
func StatusForError(err error) domain.ReconcileStatus {
	switch {
	case errors.Is(err, domain.ErrTokenListTooLarge):
		return domain.StatusTokenListTooLarge
	case errors.Is(err, domain.ErrEmptyTokenList):
		return domain.StatusInvalidTokenSet
	case errors.Is(err, domain.ErrNoPriceAvailable):
		return domain.StatusFailedToConvertPrice
	case errors.Is(err, domain.ErrNotFound):
		return domain.StatusUnsupportedCurrency
	case errors.Is(err, domain.ErrPoolUnavailable):
		return domain.StatusPoolUnavailable
	default:
		return domain.StatusError
	}
}
