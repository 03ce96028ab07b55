package appointments

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
	"github.com/hospitalos/patientflow/internal/queue"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// QueueAssigner is the slice of the queue that check-in needs.
type QueueAssigner interface {
	Assign(ctx context.Context, req queue.AssignRequest) (*queue.Assignment, error)
}

// Handler exposes appointment booking and check-in.
type Handler struct {
	repo     *Repository
	assigner QueueAssigner
	tokens   *TokenIssuer
	logger   *logging.Logger
}

// NewHandler creates an appointments HTTP handler.
func NewHandler(repo *Repository, assigner QueueAssigner, tokens *TokenIssuer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, assigner: assigner, tokens: tokens, logger: logger}
}

type createAppointmentRequest struct {
	DoctorID     string `json:"doctor_id,omitempty"`
	ScheduledFor string `json:"scheduled_for"`
	Kind         string `json:"kind,omitempty"`
}

// Create handles POST /appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	patientID, ok := callerPatientID(w, r)
	if !ok {
		return
	}

	var body createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	scheduled, err := time.Parse(time.RFC3339, body.ScheduledFor)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "scheduled_for must be RFC 3339")
		return
	}
	req := CreateRequest{ScheduledFor: scheduled, Kind: Kind(body.Kind)}
	if body.DoctorID != "" {
		id, err := uuid.Parse(body.DoctorID)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid doctor_id")
			return
		}
		req.DoctorID = &id
	}
	if err := req.Validate(time.Now()); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.repo.Create(r.Context(), patientID, &req)
	if err != nil {
		h.logger.Error("create appointment failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("appointment booked", "appointment_id", a.ID, "kind", a.Kind, "scheduled_for", a.ScheduledFor)
	httpx.WriteJSON(w, http.StatusCreated, a)
}

// ListMine handles GET /appointments/mine.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	patientID, ok := callerPatientID(w, r)
	if !ok {
		return
	}
	items, err := h.repo.ListForPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("list appointments failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	apt, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	a, err := h.repo.Cancel(r.Context(), apt.ID)
	if errors.Is(err, ErrNotBooked) {
		httpx.WriteError(w, http.StatusConflict, ErrNotBooked.Error())
		return
	}
	if err != nil {
		h.logger.Error("cancel appointment failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

// CheckIn handles POST /appointments/{id}/checkin: the patient arrived, so
// the booking converts into today's queue entry.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	apt, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	h.performCheckIn(w, r, apt)
}

// QRToken handles GET /staff/appointments/{id}/qr-token: mints the signed
// token embedded in the QR printed on the booking confirmation.
func (h *Handler) QRToken(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	if _, err := h.repo.Get(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("load appointment failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := h.tokens.Mint(id, time.Now())
	if err != nil {
		h.logger.Error("mint checkin token failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// QRCheckIn handles POST /checkin/qr: the kiosk path. The token itself is
// the proof of identity, so this endpoint is public.
func (h *Handler) QRCheckIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	id, err := h.tokens.Verify(body.Token)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
		return
	}

	apt, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("load appointment failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.performCheckIn(w, r, apt)
}

func (h *Handler) performCheckIn(w http.ResponseWriter, r *http.Request, apt *Appointment) {
	if apt.Status != StatusBooked {
		httpx.WriteError(w, http.StatusConflict, ErrNotBooked.Error())
		return
	}
	if !queue.NormalizeDay(apt.ScheduledFor).Equal(queue.NormalizeDay(time.Time{})) {
		httpx.WriteError(w, http.StatusBadRequest, ErrWrongDay.Error())
		return
	}

	queueType := queue.TypeAppointment
	if apt.Kind == KindOnline {
		queueType = queue.TypeOnlineAppointment
	}

	aid := apt.ID
	assignment, err := h.assigner.Assign(r.Context(), queue.AssignRequest{
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		QueueType:     queueType,
		AppointmentID: &aid,
	})
	if err != nil {
		writeAssignError(w, h.logger, err)
		return
	}

	updated, err := h.repo.MarkCheckedIn(r.Context(), apt.ID)
	if err != nil {
		// Queue entry exists; don't fail the check-in over the flag.
		h.logger.Warn("appointment status update failed after checkin", "error", err, "appointment_id", apt.ID)
		updated = apt
	}

	h.logger.Info("appointment checked in", "appointment_id", apt.ID, "queue_code", assignment.Entry.QueueCode)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"appointment": updated,
		"assignment":  assignment,
	})
}

func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*Appointment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid appointment id")
		return nil, false
	}
	apt, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "appointment not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load appointment failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}

	caller, ok := identity.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	if !caller.IsStaff() && caller.PatientID != apt.PatientID.String() {
		httpx.WriteError(w, http.StatusNotFound, "appointment not found")
		return nil, false
	}
	return apt, true
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
