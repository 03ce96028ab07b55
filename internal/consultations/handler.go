package consultations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hospitalos/patientflow/internal/http/httpx"
	"github.com/hospitalos/patientflow/internal/identity"
	"github.com/hospitalos/patientflow/internal/queue"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// QueueAssigner is the slice of the queue the handoff needs.
type QueueAssigner interface {
	Assign(ctx context.Context, req queue.AssignRequest) (*queue.Assignment, error)
}

// Handler exposes consultations over HTTP.
type Handler struct {
	repo     *Repository
	assigner QueueAssigner
	logger   *logging.Logger
}

// NewHandler creates a consultations HTTP handler.
func NewHandler(repo *Repository, assigner QueueAssigner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, assigner: assigner, logger: logger}
}

// Create handles POST /consultations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	patientID, ok := callerPatientID(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.repo.Create(r.Context(), patientID, &req)
	if err != nil {
		h.logger.Error("create consultation failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("consultation opened", "consultation_id", c.ID, "patient_id", patientID)
	httpx.WriteJSON(w, http.StatusCreated, c)
}

// ListMine handles GET /consultations/mine.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	patientID, ok := callerPatientID(w, r)
	if !ok {
		return
	}
	items, err := h.repo.ListForPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("list consultations failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"consultations": items})
}

// Get handles GET /consultations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

type handoffRequest struct {
	DoctorID   string `json:"doctor_id,omitempty"`
	TriageNote string `json:"triage_note,omitempty"`
}

// Handoff handles POST /consultations/{id}/handoff: the doctor decides
// the patient needs a visit, so they join today's queue as a direct
// consultation. Patients may only hand off their own consultations; a
// foreign id reads as not found. The queue's own duplicate guard protects
// against a double handoff racing this check.
func (h *Handler) Handoff(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	var body handoffRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	if c.Status != StatusOpen {
		httpx.WriteError(w, http.StatusConflict, ErrNotOpen.Error())
		return
	}

	doctorID := c.DoctorID
	if body.DoctorID != "" {
		parsed, err := uuid.Parse(body.DoctorID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid doctor_id")
			return
		}
		doctorID = &parsed
	}

	cid := c.ID
	assignment, err := h.assigner.Assign(r.Context(), queue.AssignRequest{
		PatientID:      c.PatientID,
		DoctorID:       doctorID,
		QueueType:      queue.TypeDirectConsultation,
		ConsultationID: &cid,
		Notes:          body.TriageNote,
	})
	if err != nil {
		writeAssignError(w, h.logger, err)
		return
	}

	updated, err := h.repo.MarkQueued(r.Context(), c.ID, assignment.Entry.DoctorID, body.TriageNote)
	if err != nil {
		// The queue entry exists; surface the consultation as-is rather
		// than failing the whole handoff.
		h.logger.Warn("consultation status update failed after handoff", "error", err, "consultation_id", c.ID)
		updated = c
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"consultation": updated,
		"assignment":   assignment,
	})
}

// Close handles POST /consultations/{id}/close. Same ownership rule as
// Handoff: only the owning patient or staff may close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	loaded, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	var body struct {
		TriageNote string `json:"triage_note,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	c, err := h.repo.Close(r.Context(), loaded.ID, StatusClosed, body.TriageNote)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "consultation not found")
		return
	}
	if errors.Is(err, ErrNotOpen) {
		httpx.WriteError(w, http.StatusConflict, ErrNotOpen.Error())
		return
	}
	if err != nil {
		h.logger.Error("close consultation failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*Consultation, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid consultation id")
		return nil, false
	}
	c, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "consultation not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load consultation failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}

	caller, ok := identity.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	if !caller.IsStaff() && caller.PatientID != c.PatientID.String() {
		httpx.WriteError(w, http.StatusNotFound, "consultation not found")
		return nil, false
	}
	return c, true
}

func callerPatientID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	caller, ok := identity.FromContext(r.Context())
	if !ok || caller.PatientID == "" {
		httpx.WriteError(w, http.StatusForbidden, "patient account required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(caller.PatientID)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid patient identity")
		return uuid.Nil, false
	}
	return id, true
}

func writeAssignError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var vErr *queue.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpx.WriteError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, queue.ErrDuplicateActiveQueue),
		errors.Is(err, queue.ErrCapacityExceeded),
		errors.Is(err, queue.ErrDoctorNotFound):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, queue.ErrPatientNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("queue assignment failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
