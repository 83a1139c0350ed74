package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"

	"github.com/erazemk/tailore/internal/model"
	"github.com/erazemk/tailore/internal/store"
)

const (
	defaultProductsLimit = 12
	maxPageLimit         = 100
)

// ProductsHandler handles catalog endpoints.
type ProductsHandler struct {
	DB *sqlx.DB
}

type createProductRequest struct {
	ID            string              `json:"id" validate:"required,max=64"`
	Name          string              `json:"name" validate:"required,max=255"`
	Description   string              `json:"description"`
	Brand         string              `json:"brand"`
	Category      string              `json:"category"`
	RetailPrice   *decimal.Decimal    `json:"retail_price" validate:"required"`
	PricePerWeek  decimal.NullDecimal `json:"price_per_week"`
	PricePerMonth decimal.NullDecimal `json:"price_per_month"`
	Color         string              `json:"color"`
	Size          string              `json:"size"`
	Material      string              `json:"material"`
	Gender        string              `json:"gender"`
	Occasion      string              `json:"occasion"`
	Season        string              `json:"season"`
	Length        string              `json:"length"`
	Details       string              `json:"details"`
	ImageURL      string              `json:"image_url"`
	InitialStock  int                 `json:"initial_stock" validate:"gte=0"`
}

type updateProductRequest struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description   *string          `json:"description"`
	Brand         *string          `json:"brand"`
	Category      *string          `json:"category"`
	RetailPrice   *decimal.Decimal `json:"retail_price"`
	PricePerWeek  *decimal.Decimal `json:"price_per_week"`
	PricePerMonth *decimal.Decimal `json:"price_per_month"`
	Color         *string          `json:"color"`
	Size          *string          `json:"size"`
	Material      *string          `json:"material"`
	Gender        *string          `json:"gender"`
	Occasion      *string          `json:"occasion"`
	Season        *string          `json:"season"`
	Length        *string          `json:"length"`
	Details       *string          `json:"details"`
	ImageURL      *string          `json:"image_url"`
}

func negative(values ...*decimal.Decimal) bool {
	for _, v := range values {
		if v != nil && v.IsNegative() {
			return true
		}
	}
	return false
}

func nullPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	return &v.Decimal
}

// List handles GET /api/catalog/products.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1, 0)
	limit := queryInt(r, "limit", defaultProductsLimit, maxPageLimit)

	products, total, err := store.ListProducts(r.Context(), h.DB, page, limit)
	if err != nil {
		internalError(w, r, "listing products", err)
		return
	}

	jsonResponse(w, r, http.StatusOK, envelope{
		Success:    true,
		Data:       products,
		Pagination: newPagination(page, limit, total),
	})
}

// Get handles GET /api/catalog/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := store.GetProduct(r.Context(), h.DB, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, r, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		internalError(w, r, "getting product", err)
		return
	}

	jsonOK(w, r, http.StatusOK, "", product)
}

// Filters handles GET /api/catalog/filters.
func (h *ProductsHandler) Filters(w http.ResponseWriter, r *http.Request) {
	filters, err := store.ListCatalogFilters(r.Context(), h.DB)
	if err != nil {
		internalError(w, r, "listing catalog filters", err)
		return
	}
	jsonOK(w, r, http.StatusOK, "", filters)
}

// Create handles POST /api/catalog/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		jsonError(w, r, http.StatusBadRequest, "Product ID, name, and retail price are required")
		return
	}
	if negative(req.RetailPrice, nullPtr(req.PricePerWeek), nullPtr(req.PricePerMonth)) {
		jsonError(w, r, http.StatusBadRequest, "Prices cannot be negative")
		return
	}

	p := &model.Product{
		ID:            req.ID,
		Name:          req.Name,
		Description:   req.Description,
		Brand:         req.Brand,
		Category:      req.Category,
		RetailPrice:   *req.RetailPrice,
		PricePerWeek:  req.PricePerWeek,
		PricePerMonth: req.PricePerMonth,
		Color:         req.Color,
		Size:          req.Size,
		Material:      req.Material,
		Gender:        req.Gender,
		Occasion:      req.Occasion,
		Season:        req.Season,
		Length:        req.Length,
		Details:       req.Details,
		ImageURL:      req.ImageURL,
	}

	created, err := store.CreateProduct(r.Context(), h.DB, p, req.InitialStock)
	if errors.Is(err, store.ErrConflict) {
		jsonError(w, r, http.StatusConflict, "Product ID already exists")
		return
	}
	if err != nil {
		internalError(w, r, "creating product", err)
		return
	}

	hlog.FromRequest(r).Info().Str("product_id", created.ID).Int("initial_stock", req.InitialStock).Msg("product created")
	jsonOK(w, r, http.StatusCreated, "Product created successfully", created)
}

// Update handles PUT /api/catalog/products/{id}.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if negative(req.RetailPrice, req.PricePerWeek, req.PricePerMonth) {
		jsonError(w, r, http.StatusBadRequest, "Prices cannot be negative")
		return
	}

	id := chi.URLParam(r, "id")
	err := store.UpdateProduct(r.Context(), h.DB, id, store.ProductUpdate{
		Name:          req.Name,
		Description:   req.Description,
		Brand:         req.Brand,
		Category:      req.Category,
		RetailPrice:   req.RetailPrice,
		PricePerWeek:  req.PricePerWeek,
		PricePerMonth: req.PricePerMonth,
		Color:         req.Color,
		Size:          req.Size,
		Material:      req.Material,
		Gender:        req.Gender,
		Occasion:      req.Occasion,
		Season:        req.Season,
		Length:        req.Length,
		Details:       req.Details,
		ImageURL:      req.ImageURL,
	})
	switch {
	case errors.Is(err, store.ErrNoChanges):
		jsonError(w, r, http.StatusBadRequest, "No fields to update")
		return
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, r, http.StatusNotFound, "Product not found")
		return
	case err != nil:
		internalError(w, r, "updating product", err)
		return
	}

	product, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		internalError(w, r, "getting product", err)
		return
	}

	hlog.FromRequest(r).Info().Str("product_id", id).Msg("product updated")
	jsonOK(w, r, http.StatusOK, "Product updated successfully", product)
}

// Delete handles DELETE /api/catalog/products/{id}.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := store.DeleteProduct(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, r, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		internalError(w, r, "deleting product", err)
		return
	}

	hlog.FromRequest(r).Info().Str("product_id", id).Msg("product deleted")
	jsonOK(w, r, http.StatusOK, "Product deleted successfully", nil)
}
