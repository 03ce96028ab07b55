package notify

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hospitalos/patientflow/internal/http/httpx"
	"github.com/hospitalos/patientflow/internal/identity"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// Handler exposes the caller's notifications.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a notifications HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.store.ListForUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list notifications failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

// MarkRead handles PATCH /notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	err = h.store.MarkRead(r.Context(), id, userID)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		h.logger.Error("mark notification read failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func callerUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(caller.UserID)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid identity")
		return uuid.Nil, false
	}
	return userID, true
}
