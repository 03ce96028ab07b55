package doctors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hospitalos/patientflow/internal/http/httpx"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// Handler exposes doctor management to staff.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates a doctors HTTP handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /staff/doctors.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list doctors failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"doctors": docs})
}

// Get handles GET /staff/doctors/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}
	doc, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "doctor not found")
		return
	}
	if err != nil {
		h.logger.Error("get doctor failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, doc)
}

// SetAvailability handles PATCH /staff/doctors/{id}/availability.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	var body struct {
		Available *bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Available == nil {
		httpx.WriteError(w, http.StatusBadRequest, "available (boolean) is required")
		return
	}

	err = h.repo.SetAvailability(r.Context(), id, *body.Available)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "doctor not found")
		return
	}
	if err != nil {
		h.logger.Error("set doctor availability failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("doctor availability changed", "doctor_id", id, "available", *body.Available)
	w.WriteHeader(http.StatusNoContent)
}
