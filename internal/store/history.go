package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/tailore/internal/model"
)

// History listing bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// HistoryStore is the append-only stock ledger.
type HistoryStore struct {
	DB *sqlx.DB
}

// Append writes a ledger entry and fills in its ID. CreatedAt defaults to now.
func (s *HistoryStore) Append(ctx context.Context, entry *model.StockHistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := s.DB.ExecContext(ctx,
		`INSERT INTO stock_history
		 (product_id, action, quantity_change, previous_quantity, new_quantity, reason, performed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ProductID, entry.Action, entry.QuantityChange, entry.PreviousQuantity,
		entry.NewQuantity, entry.Reason, entry.PerformedBy, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending stock history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting stock history id: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns the most recent entries for a product, newest first.
// A non-positive limit selects DefaultHistoryLimit; larger ones are capped.
func (s *HistoryStore) List(ctx context.Context, productID string, limit int) ([]model.StockHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	entries := []model.StockHistoryEntry{}
	err := s.DB.SelectContext(ctx, &entries,
		`SELECT id, product_id, action, quantity_change, previous_quantity, new_quantity,
		        reason, performed_by, created_at
		 FROM stock_history
		 WHERE product_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock history: %w", err)
	}
	return entries, nil
}
