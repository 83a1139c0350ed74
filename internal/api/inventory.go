package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/erazemk/tailore/internal/inventory"
	"github.com/erazemk/tailore/internal/store"
)

const defaultStockLimit = 100

// InventoryHandler handles stock endpoints.
type InventoryHandler struct {
	Service             *inventory.Service
	Records             *store.InventoryStore
	LowStockThreshold   int
	HistoryDefaultLimit int
}

type adjustRequest struct {
	Quantity *int   `json:"quantity" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// List handles GET /api/inventory/stock.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1, 0)
	limit := queryInt(r, "limit", defaultStockLimit, maxPageLimit)

	levels, total, err := h.Records.List(r.Context(), page, limit)
	if err != nil {
		internalError(w, r, "listing inventory", err)
		return
	}

	jsonResponse(w, r, http.StatusOK, envelope{
		Success:    true,
		Data:       levels,
		Pagination: newPagination(page, limit, total),
	})
}

// Get handles GET /api/inventory/stock/{productId}.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	level, err := h.Records.GetLevel(r.Context(), chi.URLParam(r, "productId"))
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, r, http.StatusNotFound, "Inventory not found")
		return
	}
	if err != nil {
		internalError(w, r, "getting stock level", err)
		return
	}
	jsonOK(w, r, http.StatusOK, "", level)
}

// Adjust handles POST /api/inventory/stock/{productId}/adjust.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		var re *requestError
		if errors.As(err, &re) && re.fields["quantity"] != "" {
			jsonError(w, r, http.StatusBadRequest, "Quantity is required")
			return
		}
		badRequest(w, r, err)
		return
	}

	res, err := h.Service.Adjust(r.Context(), chi.URLParam(r, "productId"), *req.Quantity, req.Reason, actor(r.Context()))
	if err != nil {
		inventoryError(w, r, err)
		return
	}
	jsonOK(w, r, http.StatusOK, "Stock adjusted successfully", res)
}

// Reserve handles POST /api/inventory/stock/{productId}/reserve.
func (h *InventoryHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	qty, ok := decodeQuantity(w, r)
	if !ok {
		return
	}
	res, err := h.Service.Reserve(r.Context(), chi.URLParam(r, "productId"), qty, actor(r.Context()))
	if err != nil {
		inventoryError(w, r, err)
		return
	}
	jsonOK(w, r, http.StatusOK, "Stock reserved successfully", res)
}

// Release handles POST /api/inventory/stock/{productId}/release.
func (h *InventoryHandler) Release(w http.ResponseWriter, r *http.Request) {
	qty, ok := decodeQuantity(w, r)
	if !ok {
		return
	}
	res, err := h.Service.Release(r.Context(), chi.URLParam(r, "productId"), qty, actor(r.Context()))
	if err != nil {
		inventoryError(w, r, err)
		return
	}
	jsonOK(w, r, http.StatusOK, "Stock released successfully", res)
}

// Commit handles POST /api/inventory/stock/{productId}/commit.
func (h *InventoryHandler) Commit(w http.ResponseWriter, r *http.Request) {
	qty, ok := decodeQuantity(w, r)
	if !ok {
		return
	}
	res, err := h.Service.Commit(r.Context(), chi.URLParam(r, "productId"), qty, actor(r.Context()))
	if err != nil {
		inventoryError(w, r, err)
		return
	}
	jsonOK(w, r, http.StatusOK, "Stock committed successfully", res)
}

// History handles GET /api/inventory/history/{productId}.
func (h *InventoryHandler) History(w http.ResponseWriter, r *http.Request) {
	def := h.HistoryDefaultLimit
	if def <= 0 {
		def = store.DefaultHistoryLimit
	}
	limit := queryInt(r, "limit", def, store.MaxHistoryLimit)

	entries, err := h.Service.ListHistory(r.Context(), chi.URLParam(r, "productId"), limit)
	if err != nil {
		inventoryError(w, r, err)
		return
	}
	jsonOK(w, r, http.StatusOK, "", entries)
}

// Alerts handles GET /api/inventory/alerts.
func (h *InventoryHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Records.Alerts(r.Context(), h.LowStockThreshold)
	if err != nil {
		internalError(w, r, "building stock alerts", err)
		return
	}
	jsonOK(w, r, http.StatusOK, "", alerts)
}

// decodeQuantity reads {"quantity": n}. Non-positive values are rejected by
// the service so they get the same error as every other caller.
func decodeQuantity(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return 0, false
	}
	return req.Quantity, true
}

// inventoryError maps a service error onto a response.
func inventoryError(w http.ResponseWriter, r *http.Request, err error) {
	var ie *inventory.Error
	if !errors.As(err, &ie) {
		internalError(w, r, "inventory operation", err)
		return
	}

	switch ie.Kind {
	case inventory.KindNotFound:
		jsonError(w, r, http.StatusNotFound, ie.Message)
	case inventory.KindInsufficientStock:
		jsonErrorData(w, r, http.StatusBadRequest, ie.Message, map[string]int{
			"requested": ie.Requested,
			"available": ie.Limit,
		})
	case inventory.KindInvalidRelease, inventory.KindInvalidCommit:
		jsonErrorData(w, r, http.StatusBadRequest, ie.Message, map[string]int{
			"requested": ie.Requested,
			"reserved":  ie.Limit,
		})
	case inventory.KindInvalidQuantity:
		jsonError(w, r, http.StatusBadRequest, ie.Message)
	default:
		hlog.FromRequest(r).Error().Err(err).Str("kind", string(ie.Kind)).Msg("inventory operation failed")
		jsonError(w, r, http.StatusInternalServerError, "Database error")
	}
}
