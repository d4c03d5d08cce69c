package promo

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

// Handler exposes HTTP handlers for promotion management.
type Handler struct {
	Service *Service
}

// List handles GET /api/promotions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	promos, err := h.Service.List(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promos})
}

// Get handles GET /api/promotions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	promo, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promo})
}

// Create handles POST /api/promotions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input PromotionInput
	if err := common.DecodeJSON(r, &input); err != nil {
		common.RespondError(w, err)
		return
	}
	promo, err := h.Service.Create(r.Context(), input)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": promo})
}

// Update handles PUT /api/promotions/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var input PromotionInput
	if err := common.DecodeJSON(r, &input); err != nil {
		common.RespondError(w, err)
		return
	}
	promo, err := h.Service.Update(r.Context(), id, input)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promo})
}

// Delete handles DELETE /api/promotions/{id}.
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
