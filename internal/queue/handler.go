package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hospitalos/patientflow/internal/http/httpx"
	"github.com/hospitalos/patientflow/internal/identity"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// Handler exposes the queue over HTTP.
type Handler struct {
	assigner *Assigner
	tracker  *Tracker
	machine  *StatusMachine
	store    *Store
	logger   *logging.Logger
}

// NewHandler creates a queue HTTP handler.
func NewHandler(assigner *Assigner, tracker *Tracker, machine *StatusMachine, store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{assigner: assigner, tracker: tracker, machine: machine, store: store, logger: logger}
}

type createQueueRequest struct {
	PatientID      string `json:"patient_id,omitempty"` // staff intake only
	QueueType      string `json:"queue_type,omitempty"`
	QueueDate      string `json:"queue_date,omitempty"` // YYYY-MM-DD, defaults to today
	DoctorID       string `json:"doctor_id,omitempty"`
	ConsultationID string `json:"consultation_id,omitempty"`
	AppointmentID  string `json:"appointment_id,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// EntryView is a queue entry enriched with the live position for responses.
type EntryView struct {
	Entry
	CurrentPosition  int `json:"current_position,omitempty"`
	LiveWaitEstimate int `json:"live_wait_estimate_minutes,omitempty"`
}

// Create handles POST /queues.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body createQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := AssignRequest{QueueType: Type(body.QueueType), Notes: body.Notes}

	switch {
	case caller.IsStaff() && body.PatientID != "":
		id, err := uuid.Parse(body.PatientID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid patient_id")
			return
		}
		req.PatientID = id
	case caller.PatientID != "":
		id, err := uuid.Parse(caller.PatientID)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid patient identity")
			return
		}
		req.PatientID = id
	default:
		httpx.WriteError(w, http.StatusForbidden, "patient account required")
		return
	}

	if body.QueueDate != "" {
		day, err := time.ParseInLocation("2006-01-02", body.QueueDate, time.Local)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid queue_date, expected YYYY-MM-DD")
			return
		}
		req.QueueDate = day
	}
	if body.DoctorID != "" {
		id, err := uuid.Parse(body.DoctorID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid doctor_id")
			return
		}
		req.DoctorID = &id
	}
	if body.ConsultationID != "" {
		id, err := uuid.Parse(body.ConsultationID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid consultation_id")
			return
		}
		req.ConsultationID = &id
	}
	if body.AppointmentID != "" {
		id, err := uuid.Parse(body.AppointmentID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid appointment_id")
			return
		}
		req.AppointmentID = &id
	}

	assignment, err := h.assigner.Assign(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, assignment)
}

// Mine handles GET /queues/mine: the caller's active entry for today.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok || caller.PatientID == "" {
		httpx.WriteError(w, http.StatusForbidden, "patient account required")
		return
	}
	patientID, err := uuid.Parse(caller.PatientID)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid patient identity")
		return
	}

	entry, err := h.store.ActiveForPatient(r.Context(), patientID, NormalizeDay(time.Time{}))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.view(r, entry))
}

// Get handles GET /queues/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.view(r, entry))
}

// Cancel handles PATCH /queues/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	updated, err := h.machine.Cancel(r.Context(), entry.ID, body.Reason)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

// CallNext handles POST /staff/queue/call-next.
func (h *Handler) CallNext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DoctorID string `json:"doctor_id,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.DoctorID == "" {
		if caller, ok := identity.FromContext(r.Context()); ok {
			body.DoctorID = caller.DoctorID
		}
	}
	doctorID, err := uuid.Parse(body.DoctorID)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "doctor_id required")
		return
	}

	entry, err := h.machine.CallNext(r.Context(), doctorID)
	if errors.Is(err, ErrEntryNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "no patients waiting")
		return
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}

// Call handles POST /staff/queue/{id}/call.
func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.machine.Call)
}

// Start handles POST /staff/queue/{id}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.machine.Start)
}

// Complete handles POST /staff/queue/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.machine.Complete)
}

// Today handles GET /staff/queue/today.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListForDay(r.Context(), NormalizeDay(time.Time{}))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"queue_date": NormalizeDay(time.Time{}).Format("2006-01-02"),
		"entries":    entries,
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*Entry, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid queue entry id")
		return
	}
	entry, err := fn(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}

// loadAuthorized fetches the entry from the path id and enforces that
// patients only touch their own entries. Staff and doctors see everything.
func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*Entry, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid queue entry id")
		return nil, false
	}
	entry, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return nil, false
	}

	caller, ok := identity.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	if !caller.IsStaff() && caller.PatientID != entry.PatientID.String() {
		httpx.WriteError(w, http.StatusNotFound, "queue entry not found")
		return nil, false
	}
	return entry, true
}

// view augments a WAITING entry with its live rank and refreshed estimate.
func (h *Handler) view(r *http.Request, entry *Entry) EntryView {
	v := EntryView{Entry: *entry}
	if entry.Status != StatusWaiting {
		return v
	}
	pos, err := h.tracker.CurrentPosition(r.Context(), entry.ID)
	if err != nil {
		h.logger.Warn("live position lookup failed", "entry_id", entry.ID, "error", err)
		return v
	}
	v.CurrentPosition = pos
	if wait, err := h.tracker.EstimatedWait(r.Context(), entry.ID); err == nil {
		v.LiveWaitEstimate = wait
	}
	return v
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	var tErr *InvalidTransitionError
	switch {
	case errors.As(err, &vErr):
		httpx.WriteError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, ErrDuplicateActiveQueue), errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrDoctorNotFound):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &tErr):
		httpx.WriteError(w, http.StatusConflict, tErr.Error())
	case errors.Is(err, ErrEntryNotFound):
		httpx.WriteError(w, http.StatusNotFound, "queue entry not found")
	case errors.Is(err, ErrPatientNotFound):
		httpx.WriteError(w, http.StatusNotFound, ErrPatientNotFound.Error())
	default:
		h.logger.Error("queue request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
