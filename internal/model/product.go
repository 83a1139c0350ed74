package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. IDs are assigned by the catalog owner, not generated.
type Product struct {
	ID            string              `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Description   string              `json:"description,omitempty" db:"description"`
	Brand         string              `json:"brand,omitempty" db:"brand"`
	Category      string              `json:"category,omitempty" db:"category"`
	RetailPrice   decimal.Decimal     `json:"retail_price" db:"retail_price"`
	PricePerWeek  decimal.NullDecimal `json:"price_per_week" db:"price_per_week"`
	PricePerMonth decimal.NullDecimal `json:"price_per_month" db:"price_per_month"`
	Color         string              `json:"color,omitempty" db:"color"`
	Size          string              `json:"size,omitempty" db:"size"`
	Material      string              `json:"material,omitempty" db:"material"`
	Gender        string              `json:"gender,omitempty" db:"gender"`
	Occasion      string              `json:"occasion,omitempty" db:"occasion"`
	Season        string              `json:"season,omitempty" db:"season"`
	Length        string              `json:"length,omitempty" db:"length"`
	Details       string              `json:"details,omitempty" db:"details"`
	ImageURL      string              `json:"image_url,omitempty" db:"image_url"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// ProductWithStock is a product joined with its inventory counters.
// Counters are nil for products that have no inventory record.
type ProductWithStock struct {
	Product
	Quantity          *int       `json:"quantity" db:"quantity"`
	AvailableQuantity *int       `json:"available_quantity" db:"available_quantity"`
	ReservedQuantity  *int       `json:"reserved_quantity" db:"reserved_quantity"`
	WarehouseLocation *string    `json:"warehouse_location,omitempty" db:"warehouse_location"`
	LastRestocked     *time.Time `json:"last_restocked,omitempty" db:"last_restocked"`
}

// CatalogFilters lists the distinct non-empty attribute values in the catalog.
type CatalogFilters struct {
	Brands     []string `json:"brands"`
	Categories []string `json:"categories"`
	Colors     []string `json:"colors"`
	Sizes      []string `json:"sizes"`
	Genders    []string `json:"genders"`
}
