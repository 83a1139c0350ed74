// Package inventory implements the stock reservation state machine and its ledger.
package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/erazemk/tailore/internal/lock"
	"github.com/erazemk/tailore/internal/metrics"
	"github.com/erazemk/tailore/internal/model"
	"github.com/erazemk/tailore/internal/store"
)

// DefaultAdjustReason is recorded when an adjustment carries no reason.
const DefaultAdjustReason = "Manual adjustment"

// Ledger reasons for reservation flows.
const (
	reserveReason = "Stock reserved for order"
	releaseReason = "Stock released from reservation"
	commitReason  = "Stock committed - sale finalized"
)

// Records reads and writes inventory counters.
type Records interface {
	Get(ctx context.Context, productID string) (*model.InventoryRecord, error)
	Update(ctx context.Context, productID string, upd store.InventoryUpdate) error
}

// Ledger stores stock history.
type Ledger interface {
	Append(ctx context.Context, entry *model.StockHistoryEntry) error
	List(ctx context.Context, productID string, limit int) ([]model.StockHistoryEntry, error)
}

// Service applies stock mutations. Mutations of one product are serialized
// through the locker; the ledger write is best effort and never fails an
// operation whose record update succeeded.
type Service struct {
	records Records
	ledger  Ledger
	locker  lock.Locker
	metrics *metrics.InventoryMetrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the default in-process locker.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithMetrics records operation metrics.
func WithMetrics(m *metrics.InventoryMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(records Records, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		records: records,
		ledger:  ledger,
		locker:  lock.NewLocal(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AdjustResult describes a manual stock correction.
type AdjustResult struct {
	ProductID         string `json:"product_id"`
	PreviousQuantity  int    `json:"previous_quantity"`
	QuantityChange    int    `json:"quantity_change"`
	NewQuantity       int    `json:"new_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}

// ReserveResult describes a reservation.
type ReserveResult struct {
	ProductID         string `json:"product_id"`
	ReservedQuantity  int    `json:"reserved_quantity"`
	NewReservedTotal  int    `json:"new_reserved_total"`
	AvailableQuantity int    `json:"available_quantity"`
}

// ReleaseResult describes a released reservation.
type ReleaseResult struct {
	ProductID         string `json:"product_id"`
	ReleasedQuantity  int    `json:"released_quantity"`
	NewReservedTotal  int    `json:"new_reserved_total"`
	AvailableQuantity int    `json:"available_quantity"`
}

// CommitResult describes a finalized sale.
type CommitResult struct {
	ProductID         string `json:"product_id"`
	CommittedQuantity int    `json:"committed_quantity"`
	NewTotalQuantity  int    `json:"new_total_quantity"`
	NewReserved       int    `json:"new_reserved"`
	AvailableQuantity int    `json:"available_quantity"`
}

// GetStock returns the inventory record of a product.
func (s *Service) GetStock(ctx context.Context, productID string) (*model.InventoryRecord, error) {
	rec, err := s.records.Get(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, storageError("reading inventory", err)
	}
	return rec, nil
}

// ListHistory returns the newest ledger entries of a product.
func (s *Service) ListHistory(ctx context.Context, productID string, limit int) ([]model.StockHistoryEntry, error) {
	if _, err := s.GetStock(ctx, productID); err != nil {
		return nil, err
	}
	entries, err := s.ledger.List(ctx, productID, limit)
	if err != nil {
		return nil, storageError("reading stock history", err)
	}
	return entries, nil
}

// Adjust adds delta to the total quantity. Available is recomputed from the new
// total and the current reservations and may go negative. A zero delta is
// recorded as REDUCE.
func (s *Service) Adjust(ctx context.Context, productID string, delta int, reason, actor string) (*AdjustResult, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultAdjustReason
	}

	var res *AdjustResult
	err := s.apply(ctx, "adjust", productID, func(rec *model.InventoryRecord, now time.Time) (*mutation, error) {
		newQuantity := rec.Quantity + delta
		if newQuantity < 0 {
			return nil, &Error{
				Kind:      KindInvalidQuantity,
				Message:   "Resulting quantity cannot be negative",
				Requested: delta,
				Limit:     rec.Quantity,
			}
		}
		newAvailable := newQuantity - rec.ReservedQuantity

		action := model.ActionReduce
		if delta > 0 {
			action = model.ActionRestock
		}

		res = &AdjustResult{
			ProductID:         productID,
			PreviousQuantity:  rec.Quantity,
			QuantityChange:    delta,
			NewQuantity:       newQuantity,
			AvailableQuantity: newAvailable,
		}
		return &mutation{
			update: store.InventoryUpdate{
				Quantity:          &newQuantity,
				AvailableQuantity: &newAvailable,
				LastRestocked:     &now,
			},
			entry: model.StockHistoryEntry{
				Action:           action,
				QuantityChange:   delta,
				PreviousQuantity: rec.Quantity,
				NewQuantity:      newQuantity,
				Reason:           reason,
				PerformedBy:      actor,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reserve earmarks qty units of available stock.
func (s *Service) Reserve(ctx context.Context, productID string, qty int, actor string) (*ReserveResult, error) {
	if qty <= 0 {
		return nil, invalidQuantity("Valid quantity is required", qty)
	}

	var res *ReserveResult
	err := s.apply(ctx, "reserve", productID, func(rec *model.InventoryRecord, _ time.Time) (*mutation, error) {
		if rec.AvailableQuantity < qty {
			return nil, &Error{
				Kind:      KindInsufficientStock,
				Message:   "Insufficient stock available",
				Requested: qty,
				Limit:     rec.AvailableQuantity,
			}
		}
		newReserved := rec.ReservedQuantity + qty
		newAvailable := rec.AvailableQuantity - qty

		res = &ReserveResult{
			ProductID:         productID,
			ReservedQuantity:  qty,
			NewReservedTotal:  newReserved,
			AvailableQuantity: newAvailable,
		}
		return &mutation{
			update: store.InventoryUpdate{
				ReservedQuantity:  &newReserved,
				AvailableQuantity: &newAvailable,
			},
			entry: model.StockHistoryEntry{
				Action:           model.ActionReserve,
				QuantityChange:   -qty,
				PreviousQuantity: rec.AvailableQuantity,
				NewQuantity:      newAvailable,
				Reason:           reserveReason,
				PerformedBy:      actor,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Release returns qty reserved units to available stock.
func (s *Service) Release(ctx context.Context, productID string, qty int, actor string) (*ReleaseResult, error) {
	if qty <= 0 {
		return nil, invalidQuantity("Valid quantity is required", qty)
	}

	var res *ReleaseResult
	err := s.apply(ctx, "release", productID, func(rec *model.InventoryRecord, _ time.Time) (*mutation, error) {
		if rec.ReservedQuantity < qty {
			return nil, &Error{
				Kind:      KindInvalidRelease,
				Message:   "Cannot release more than reserved quantity",
				Requested: qty,
				Limit:     rec.ReservedQuantity,
			}
		}
		newReserved := rec.ReservedQuantity - qty
		newAvailable := rec.AvailableQuantity + qty

		res = &ReleaseResult{
			ProductID:         productID,
			ReleasedQuantity:  qty,
			NewReservedTotal:  newReserved,
			AvailableQuantity: newAvailable,
		}
		return &mutation{
			update: store.InventoryUpdate{
				ReservedQuantity:  &newReserved,
				AvailableQuantity: &newAvailable,
			},
			entry: model.StockHistoryEntry{
				Action:           model.ActionRelease,
				QuantityChange:   qty,
				PreviousQuantity: rec.AvailableQuantity,
				NewQuantity:      newAvailable,
				Reason:           releaseReason,
				PerformedBy:      actor,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Commit removes qty reserved units from the total. Available is not touched:
// the reservation already took those units out of it.
func (s *Service) Commit(ctx context.Context, productID string, qty int, actor string) (*CommitResult, error) {
	if qty <= 0 {
		return nil, invalidQuantity("Valid quantity is required", qty)
	}

	var res *CommitResult
	err := s.apply(ctx, "commit", productID, func(rec *model.InventoryRecord, _ time.Time) (*mutation, error) {
		if rec.ReservedQuantity < qty {
			return nil, &Error{
				Kind:      KindInvalidCommit,
				Message:   "Cannot commit more than reserved quantity",
				Requested: qty,
				Limit:     rec.ReservedQuantity,
			}
		}
		newReserved := rec.ReservedQuantity - qty
		newTotal := rec.Quantity - qty

		res = &CommitResult{
			ProductID:         productID,
			CommittedQuantity: qty,
			NewTotalQuantity:  newTotal,
			NewReserved:       newReserved,
			AvailableQuantity: rec.AvailableQuantity,
		}
		return &mutation{
			update: store.InventoryUpdate{
				Quantity:         &newTotal,
				ReservedQuantity: &newReserved,
			},
			entry: model.StockHistoryEntry{
				Action:           model.ActionCommit,
				QuantityChange:   -qty,
				PreviousQuantity: rec.Quantity,
				NewQuantity:      newTotal,
				Reason:           commitReason,
				PerformedBy:      actor,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// mutation is the outcome of a transition: the fields to write and the ledger row.
type mutation struct {
	update store.InventoryUpdate
	entry  model.StockHistoryEntry
}

type planFunc func(rec *model.InventoryRecord, now time.Time) (*mutation, error)

// apply runs read, plan, write and ledger append under the product lock.
func (s *Service) apply(ctx context.Context, op, productID string, plan planFunc) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.Observe(op, outcome(err), time.Since(start))
	}()

	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return storageError("locking inventory", err)
	}
	defer unlock()

	rec, err := s.records.Get(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return notFound()
	}
	if err != nil {
		return storageError("reading inventory", err)
	}

	now := s.now().UTC()
	m, err := plan(rec, now)
	if err != nil {
		return err
	}

	m.update.UpdatedAt = now
	if err := s.records.Update(ctx, productID, m.update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound()
		}
		return storageError("updating inventory", err)
	}

	m.entry.ProductID = productID
	m.entry.CreatedAt = now
	if err := s.ledger.Append(ctx, &m.entry); err != nil {
		s.metrics.IncLedgerFailure(op)
		zerolog.Ctx(ctx).Error().Err(err).
			Str("product_id", productID).
			Str("action", string(m.entry.Action)).
			Msg("recording stock history")
	}

	zerolog.Ctx(ctx).Debug().
		Str("product_id", productID).
		Str("action", string(m.entry.Action)).
		Int("quantity_change", m.entry.QuantityChange).
		Str("performed_by", m.entry.PerformedBy).
		Msg("stock updated")
	return nil
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var ie *Error
	if errors.As(err, &ie) && (ie.Validation() || ie.Kind == KindNotFound) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
