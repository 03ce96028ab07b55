package hospital

import (
	"encoding/json"
	"net/http"

	"github.com/hospitalos/patientflow/internal/http/httpx"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// Handler exposes the hospital configuration to staff.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a hospital config HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Get handles GET /staff/hospital-config.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("load hospital config failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cfg)
}

// Update handles PUT /staff/hospital-config.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := cfg.Validate(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.Update(r.Context(), cfg)
	if err != nil {
		h.logger.Error("update hospital config failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("hospital config updated",
		"queue_prefix", updated.QueuePrefix,
		"max_queue_per_day", updated.MaxQueuePerDay,
		"call_interval_minutes", updated.CallIntervalMinutes,
	)
	httpx.WriteJSON(w, http.StatusOK, updated)
}
