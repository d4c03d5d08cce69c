package prescription

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

// Handler exposes HTTP handlers for patients, doctors, and prescriptions.
type Handler struct {
	Service *Service
}

// ListPatients handles GET /api/patients with an optional ?search= term.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.Service.ListPatients(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": patients})
}

// CreatePatient handles POST /api/patients.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var input PatientInput
	if err := common.DecodeJSON(r, &input); err != nil {
		common.RespondError(w, err)
		return
	}
	patient, err := h.Service.CreatePatient(r.Context(), input)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": patient})
}

// ListDoctors handles GET /api/doctors with an optional ?search= term.
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.Service.ListDoctors(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": doctors})
}

// CreateDoctor handles POST /api/doctors.
func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var input DoctorInput
	if err := common.DecodeJSON(r, &input); err != nil {
		common.RespondError(w, err)
		return
	}
	doctor, err := h.Service.CreateDoctor(r.Context(), input)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": doctor})
}

// Intake handles POST /api/prescriptions.
func (h *Handler) Intake(w http.ResponseWriter, r *http.Request) {
	var req IntakeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	detail, err := h.Service.Intake(r.Context(), req)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": detail})
}

// List handles GET /api/prescriptions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.Service.List(r.Context())
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": prescriptions})
}

// Get handles GET /api/prescriptions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	detail, err := h.Service.Get(r.Context(), id)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

// UpdateStatus handles PATCH /api/prescriptions/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	p, err := h.Service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return 0, false
	}
	return id, true
}
