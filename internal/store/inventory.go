package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/tailore/internal/model"
)

const inventoryColumns = `product_id, quantity, reserved_quantity, available_quantity,
	warehouse_location, last_restocked, updated_at`

const stockLevelColumns = `i.product_id, i.quantity, i.reserved_quantity, i.available_quantity,
	i.warehouse_location, i.last_restocked, i.updated_at,
	p.name, p.brand, p.category, p.size, p.color`

// InventoryStore persists per-product stock counters. DB may be a
// transaction so the record can be created alongside its product.
type InventoryStore struct {
	DB sqlx.ExtContext
}

// InventoryUpdate lists the fields to replace. Nil fields are left untouched.
// UpdatedAt defaults to the current time.
type InventoryUpdate struct {
	Quantity          *int
	ReservedQuantity  *int
	AvailableQuantity *int
	WarehouseLocation *string
	LastRestocked     *time.Time
	UpdatedAt         time.Time
}

// Get returns the inventory record for a product.
func (s *InventoryStore) Get(ctx context.Context, productID string) (*model.InventoryRecord, error) {
	return getInventory(ctx, s.DB, productID)
}

// Create inserts a record with the given initial quantity and nothing reserved.
// It returns ErrConflict if the product already has a record.
func (s *InventoryStore) Create(ctx context.Context, productID string, initialQuantity int) (*model.InventoryRecord, error) {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO inventory (product_id, quantity, reserved_quantity, available_quantity, updated_at)
		 VALUES (?, ?, 0, ?, ?)`,
		productID, initialQuantity, initialQuantity, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("creating inventory: %w", err)
	}
	return getInventory(ctx, s.DB, productID)
}

// Update replaces the given fields and stamps updated_at.
func (s *InventoryStore) Update(ctx context.Context, productID string, upd InventoryUpdate) error {
	at := upd.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var set updateSet
	if upd.Quantity != nil {
		set.add("quantity", *upd.Quantity)
	}
	if upd.ReservedQuantity != nil {
		set.add("reserved_quantity", *upd.ReservedQuantity)
	}
	if upd.AvailableQuantity != nil {
		set.add("available_quantity", *upd.AvailableQuantity)
	}
	if upd.WarehouseLocation != nil {
		set.add("warehouse_location", *upd.WarehouseLocation)
	}
	if upd.LastRestocked != nil {
		set.add("last_restocked", upd.LastRestocked.UTC())
	}
	set.add("updated_at", at.UTC())

	args := append(set.args, productID)
	result, err := s.DB.ExecContext(ctx,
		`UPDATE inventory SET `+set.clause()+` WHERE product_id = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("updating inventory: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated inventory: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLevel returns a product's inventory record together with its catalog fields.
func (s *InventoryStore) GetLevel(ctx context.Context, productID string) (*model.StockLevel, error) {
	level := &model.StockLevel{}
	err := sqlx.GetContext(ctx, s.DB, level,
		`SELECT `+stockLevelColumns+`
		 FROM inventory i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.product_id = ?`, productID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting stock level: %w", err)
	}
	return level, nil
}

// List returns a page of stock levels, lowest availability first, and the total count.
func (s *InventoryStore) List(ctx context.Context, page, limit int) ([]model.StockLevel, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, s.DB, &total,
		`SELECT COUNT(*) FROM inventory i JOIN products p ON p.id = i.product_id`,
	); err != nil {
		return nil, 0, fmt.Errorf("counting inventory: %w", err)
	}

	levels := []model.StockLevel{}
	err := sqlx.SelectContext(ctx, s.DB, &levels,
		`SELECT `+stockLevelColumns+`
		 FROM inventory i
		 JOIN products p ON p.id = i.product_id
		 ORDER BY i.available_quantity ASC, p.name
		 LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing inventory: %w", err)
	}
	return levels, total, nil
}

// Alerts reports products that are out of stock or at or below threshold.
func (s *InventoryStore) Alerts(ctx context.Context, threshold int) (*model.StockAlerts, error) {
	alerts := &model.StockAlerts{
		OutOfStock: []model.StockAlert{},
		LowStock:   []model.StockAlert{},
	}

	if err := sqlx.GetContext(ctx, s.DB, &alerts.TotalProducts,
		`SELECT COUNT(*) FROM inventory i JOIN products p ON p.id = i.product_id`,
	); err != nil {
		return nil, fmt.Errorf("counting inventory: %w", err)
	}

	if err := sqlx.SelectContext(ctx, s.DB, &alerts.OutOfStock,
		`SELECT i.product_id, p.name, p.brand, p.category, i.quantity, i.available_quantity
		 FROM inventory i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.available_quantity = 0
		 ORDER BY p.name`,
	); err != nil {
		return nil, fmt.Errorf("listing out of stock: %w", err)
	}

	if err := sqlx.SelectContext(ctx, s.DB, &alerts.LowStock,
		`SELECT i.product_id, p.name, p.brand, p.category, i.quantity, i.available_quantity
		 FROM inventory i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.available_quantity > 0 AND i.available_quantity <= ?
		 ORDER BY i.available_quantity ASC, p.name`, threshold,
	); err != nil {
		return nil, fmt.Errorf("listing low stock: %w", err)
	}

	return alerts, nil
}

func getInventory(ctx context.Context, q sqlx.QueryerContext, productID string) (*model.InventoryRecord, error) {
	rec := &model.InventoryRecord{}
	err := sqlx.GetContext(ctx, q, rec,
		`SELECT `+inventoryColumns+` FROM inventory WHERE product_id = ?`, productID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting inventory: %w", err)
	}
	return rec, nil
}
