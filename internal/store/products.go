package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/tailore/internal/model"
)

const productColumns = `p.id, p.name, p.description, p.brand, p.category, p.retail_price,
	p.price_per_week, p.price_per_month, p.color, p.size, p.material, p.gender,
	p.occasion, p.season, p.length, p.details, p.image_url, p.created_at, p.updated_at`

const stockColumns = `i.quantity, i.available_quantity, i.reserved_quantity,
	i.warehouse_location, i.last_restocked`

// ProductUpdate lists the catalog fields to replace. Nil fields are left untouched.
type ProductUpdate struct {
	Name          *string
	Description   *string
	Brand         *string
	Category      *string
	RetailPrice   *decimal.Decimal
	PricePerWeek  *decimal.Decimal
	PricePerMonth *decimal.Decimal
	Color         *string
	Size          *string
	Material      *string
	Gender        *string
	Occasion      *string
	Season        *string
	Length        *string
	Details       *string
	ImageURL      *string
}

// CreateProduct inserts a product together with its inventory record.
// It returns ErrConflict if the product ID is taken.
func CreateProduct(ctx context.Context, db *sqlx.DB, p *model.Product, initialStock int) (*model.ProductWithStock, error) {
	now := time.Now().UTC()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (
			id, name, description, brand, category, retail_price, price_per_week, price_per_month,
			color, size, material, gender, occasion, season, length, details, image_url,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Brand, p.Category, p.RetailPrice, p.PricePerWeek, p.PricePerMonth,
		p.Color, p.Size, p.Material, p.Gender, p.Occasion, p.Season, p.Length, p.Details, p.ImageURL,
		now, now,
	)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	inventory := &InventoryStore{DB: tx}
	if _, err := inventory.Create(ctx, p.ID, initialStock); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing product creation: %w", err)
	}

	return GetProduct(ctx, db, p.ID)
}

// GetProduct returns a product joined with its stock counters.
func GetProduct(ctx context.Context, db *sqlx.DB, id string) (*model.ProductWithStock, error) {
	p := &model.ProductWithStock{}
	err := db.GetContext(ctx, p,
		`SELECT `+productColumns+`, `+stockColumns+`
		 FROM products p
		 LEFT JOIN inventory i ON i.product_id = p.id
		 WHERE p.id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// ListProducts returns a page of products, newest first, and the total count.
func ListProducts(ctx context.Context, db *sqlx.DB, page, limit int) ([]model.ProductWithStock, int, error) {
	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products`); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	products := []model.ProductWithStock{}
	err := db.SelectContext(ctx, &products,
		`SELECT `+productColumns+`, `+stockColumns+`
		 FROM products p
		 LEFT JOIN inventory i ON i.product_id = p.id
		 ORDER BY p.created_at DESC, p.id
		 LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return products, total, nil
}

// UpdateProduct replaces the given catalog fields and stamps updated_at.
func UpdateProduct(ctx context.Context, db *sqlx.DB, id string, upd ProductUpdate) error {
	var set updateSet
	addString := func(column string, v *string) {
		if v != nil {
			set.add(column, *v)
		}
	}
	addDecimal := func(column string, v *decimal.Decimal) {
		if v != nil {
			set.add(column, *v)
		}
	}

	addString("name", upd.Name)
	addString("description", upd.Description)
	addString("brand", upd.Brand)
	addString("category", upd.Category)
	addDecimal("retail_price", upd.RetailPrice)
	addDecimal("price_per_week", upd.PricePerWeek)
	addDecimal("price_per_month", upd.PricePerMonth)
	addString("color", upd.Color)
	addString("size", upd.Size)
	addString("material", upd.Material)
	addString("gender", upd.Gender)
	addString("occasion", upd.Occasion)
	addString("season", upd.Season)
	addString("length", upd.Length)
	addString("details", upd.Details)
	addString("image_url", upd.ImageURL)

	if set.empty() {
		return ErrNoChanges
	}
	set.add("updated_at", time.Now().UTC())

	args := append(set.args, id)
	result, err := db.ExecContext(ctx,
		`UPDATE products SET `+set.clause()+` WHERE id = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated product: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product. Its inventory record and stock history go with it.
func DeleteProduct(ctx context.Context, db *sqlx.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted product: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCatalogFilters returns the sorted distinct values of the filterable
// product attributes.
func ListCatalogFilters(ctx context.Context, db *sqlx.DB) (*model.CatalogFilters, error) {
	filters := &model.CatalogFilters{}
	for _, f := range []struct {
		column string
		dest   *[]string
	}{
		{"brand", &filters.Brands},
		{"category", &filters.Categories},
		{"color", &filters.Colors},
		{"size", &filters.Sizes},
		{"gender", &filters.Genders},
	} {
		values := []string{}
		if err := db.SelectContext(ctx, &values,
			`SELECT DISTINCT `+f.column+` FROM products WHERE `+f.column+` != '' ORDER BY `+f.column,
		); err != nil {
			return nil, fmt.Errorf("listing %s values: %w", f.column, err)
		}
		*f.dest = values
	}
	return filters, nil
}
