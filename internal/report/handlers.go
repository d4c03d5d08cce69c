package report

import (
	"net/http"
	"strconv"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

// Handler exposes HTTP handlers for dashboard reports.
type Handler struct {
	Service *Service
}

// Summary handles GET /api/reports/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// TopProducts handles GET /api/reports/top-products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	products, err := h.Service.TopProducts(r.Context(), limit)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// SalesOverTime handles GET /api/reports/sales-over-time.
func (h *Handler) SalesOverTime(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	series, err := h.Service.SalesOverTime(r.Context(), days)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": series})
}
