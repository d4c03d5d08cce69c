package sale

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

// Handler exposes HTTP handlers for quoting and committing sales.
type Handler struct {
	Service *Service
}

// Quote handles POST /api/sales/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	result, err := h.Service.Quote(r.Context(), req)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Create handles POST /api/sales.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	detail, err := h.Service.Create(r.Context(), userID, req)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": detail})
}

// List handles GET /api/sales with an optional ?today=true filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var (
		sales []Sale
		err   error
	)
	if r.URL.Query().Get("today") == "true" {
		sales, err = h.Service.ListToday(r.Context())
	} else {
		sales, err = h.Service.List(r.Context())
	}
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sales})
}

// Get handles GET /api/sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return
	}
	detail, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}
