package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

// Handler exposes HTTP handlers for product management.
type Handler struct {
	Service *Service
}

// List handles GET /api/products with an optional ?search= term.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// Get handles GET /api/products/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	product, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// GetBySKU handles GET /api/products/sku/{sku}.
func (h *Handler) GetBySKU(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	product, err := h.Service.GetBySKU(r.Context(), sku)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Create handles POST /api/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := common.DecodeJSON(r, &input); err != nil {
		common.RespondError(w, err)
		return
	}
	product, err := h.Service.Create(r.Context(), input)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": product})
}

// Update handles PUT /api/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var input ProductInput
	if err := common.DecodeJSON(r, &input); err != nil {
		common.RespondError(w, err)
		return
	}
	product, err := h.Service.Update(r.Context(), id, input)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Delete handles DELETE /api/products/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		common.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return 0, false
	}
	return id, true
}
