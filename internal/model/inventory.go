package model

import "time"

// InventoryRecord holds the stock counters of a single product.
//
// AvailableQuantity is stored, not derived. It normally equals
// Quantity - ReservedQuantity, but commits leave it untouched.
type InventoryRecord struct {
	ProductID         string     `json:"product_id" db:"product_id"`
	Quantity          int        `json:"quantity" db:"quantity"`
	ReservedQuantity  int        `json:"reserved_quantity" db:"reserved_quantity"`
	AvailableQuantity int        `json:"available_quantity" db:"available_quantity"`
	WarehouseLocation *string    `json:"warehouse_location,omitempty" db:"warehouse_location"`
	LastRestocked     *time.Time `json:"last_restocked,omitempty" db:"last_restocked"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// StockLevel is an inventory record joined with catalog fields for listings.
type StockLevel struct {
	InventoryRecord
	Name     string `json:"name" db:"name"`
	Brand    string `json:"brand,omitempty" db:"brand"`
	Category string `json:"category,omitempty" db:"category"`
	Size     string `json:"size,omitempty" db:"size"`
	Color    string `json:"color,omitempty" db:"color"`
}

// StockAlert is a compact row used by low and out of stock reports.
type StockAlert struct {
	ProductID         string `json:"id" db:"product_id"`
	Name              string `json:"name" db:"name"`
	Brand             string `json:"brand,omitempty" db:"brand"`
	Category          string `json:"category,omitempty" db:"category"`
	Quantity          int    `json:"quantity" db:"quantity"`
	AvailableQuantity int    `json:"available_quantity" db:"available_quantity"`
}

// StockAlerts groups the alert report.
type StockAlerts struct {
	TotalProducts int          `json:"total_products"`
	OutOfStock    []StockAlert `json:"out_of_stock"`
	LowStock      []StockAlert `json:"low_stock"`
}

// StockAction labels a ledger entry.
type StockAction string

// Stock actions.
const (
	ActionRestock StockAction = "RESTOCK"
	ActionReduce  StockAction = "REDUCE"
	ActionReserve StockAction = "RESERVE"
	ActionRelease StockAction = "RELEASE"
	ActionCommit  StockAction = "COMMIT"
)

// StockHistoryEntry is one immutable row of the stock ledger.
//
// PreviousQuantity and NewQuantity track the counter the action touched:
// quantity for RESTOCK, REDUCE and COMMIT, available for RESERVE and RELEASE.
type StockHistoryEntry struct {
	ID               int64       `json:"id" db:"id"`
	ProductID        string      `json:"product_id" db:"product_id"`
	Action           StockAction `json:"action" db:"action"`
	QuantityChange   int         `json:"quantity_change" db:"quantity_change"`
	PreviousQuantity int         `json:"previous_quantity" db:"previous_quantity"`
	NewQuantity      int         `json:"new_quantity" db:"new_quantity"`
	Reason           string      `json:"reason" db:"reason"`
	PerformedBy      string      `json:"performed_by" db:"performed_by"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}
