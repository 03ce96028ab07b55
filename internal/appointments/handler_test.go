package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalos/patientflow/internal/identity"
	"github.com/hospitalos/patientflow/internal/queue"
)

var appointmentRowColumns = []string{"id", "patient_id", "doctor_id", "scheduled_for", "kind", "status", "created_at"}

type fakeAssigner struct {
	got    *queue.AssignRequest
	result *queue.Assignment
	err    error
}

func (f *fakeAssigner) Assign(ctx context.Context, req queue.AssignRequest) (*queue.Assignment, error) {
	f.got = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func appointmentRow(a *Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentRowColumns).
		AddRow(a.ID, a.PatientID, a.DoctorID, a.ScheduledFor, a.Kind, a.Status, a.CreatedAt)
}

// todayAt pins a schedule to today's calendar day regardless of wall clock.
func todayAt(hour int) time.Time {
	return queue.NormalizeDay(time.Time{}).Add(time.Duration(hour) * time.Hour)
}

func sampleAppointment(status Status, scheduledFor time.Time) *Appointment {
	return &Appointment{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		ScheduledFor: scheduledFor,
		Kind:         KindOnsite,
		Status:       status,
		CreatedAt:    time.Now().Add(-24 * time.Hour),
	}
}

func newAppointmentRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/appointments", h.Create)
	r.Get("/appointments/mine", h.ListMine)
	r.Post("/appointments/{id}/checkin", h.CheckIn)
	r.Post("/appointments/{id}/cancel", h.Cancel)
	r.Post("/checkin/qr", h.QRCheckIn)
	r.Get("/staff/appointments/{id}/qr-token", h.QRToken)
	return r
}

func withPatient(r *http.Request, patientID uuid.UUID) *http.Request {
	ctx := identity.WithIdentity(r.Context(), identity.Identity{
		UserID:    uuid.NewString(),
		PatientID: patientID.String(),
		Role:      identity.RolePatient,
	})
	return r.WithContext(ctx)
}

func newAppointmentHandler(mock pgxmock.PgxPoolIface, assigner *fakeAssigner) *Handler {
	return NewHandler(NewRepository(mock), assigner, NewTokenIssuer("test-secret", time.Hour), nil)
}

func TestCreateAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := newAppointmentHandler(mock, &fakeAssigner{})
	patientID := uuid.New()
	scheduled := time.Now().Add(48 * time.Hour).Truncate(time.Second)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(patientID, pgxmock.AnyArg(), pgxmock.AnyArg(), KindOnsite).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))

	payload := fmt.Sprintf(`{"scheduled_for":%q}`, scheduled.Format(time.RFC3339))
	req := withPatient(httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString(payload)), patientID)
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got Appointment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, StatusBooked, got.Status)
	assert.Equal(t, KindOnsite, got.Kind)
}

func TestCreateAppointmentRejectsPastSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := newAppointmentHandler(mock, &fakeAssigner{})
	payload := fmt.Sprintf(`{"scheduled_for":%q}`, time.Now().Add(-time.Hour).Format(time.RFC3339))
	req := withPatient(httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString(payload)), uuid.New())
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "future")
}

func TestCheckInConvertsToQueueEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apt := sampleAppointment(StatusBooked, todayAt(14))
	entry := &queue.Entry{ID: uuid.New(), PatientID: apt.PatientID, QueueCode: "A033", Position: 33, Status: queue.StatusWaiting, QueueType: queue.TypeAppointment}
	assigner := &fakeAssigner{result: &queue.Assignment{Entry: entry}}
	h := newAppointmentHandler(mock, assigner)

	checkedIn := *apt
	checkedIn.Status = StatusCheckedIn

	mock.ExpectQuery("SELECT id").
		WithArgs(apt.ID).
		WillReturnRows(appointmentRow(apt))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apt.ID, StatusCheckedIn, StatusBooked).
		WillReturnRows(appointmentRow(&checkedIn))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/appointments/"+apt.ID.String()+"/checkin", nil), apt.PatientID)
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, assigner.got)
	assert.Equal(t, queue.TypeAppointment, assigner.got.QueueType)
	require.NotNil(t, assigner.got.AppointmentID)
	assert.Equal(t, apt.ID, *assigner.got.AppointmentID)
}

func TestCheckInOnlineAppointmentUsesOnlineType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apt := sampleAppointment(StatusBooked, todayAt(10))
	apt.Kind = KindOnline
	entry := &queue.Entry{ID: uuid.New(), PatientID: apt.PatientID, QueueCode: "A034", Status: queue.StatusWaiting}
	assigner := &fakeAssigner{result: &queue.Assignment{Entry: entry}}
	h := newAppointmentHandler(mock, assigner)

	checkedIn := *apt
	checkedIn.Status = StatusCheckedIn

	mock.ExpectQuery("SELECT id").
		WithArgs(apt.ID).
		WillReturnRows(appointmentRow(apt))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apt.ID, StatusCheckedIn, StatusBooked).
		WillReturnRows(appointmentRow(&checkedIn))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/appointments/"+apt.ID.String()+"/checkin", nil), apt.PatientID)
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, queue.TypeOnlineAppointment, assigner.got.QueueType)
}

func TestCheckInWrongDayRejected(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apt := sampleAppointment(StatusBooked, time.Now().Add(72*time.Hour))
	h := newAppointmentHandler(mock, &fakeAssigner{})

	mock.ExpectQuery("SELECT id").
		WithArgs(apt.ID).
		WillReturnRows(appointmentRow(apt))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/appointments/"+apt.ID.String()+"/checkin", nil), apt.PatientID)
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "today")
}

func TestCheckInAlreadyCheckedInConflicts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apt := sampleAppointment(StatusCheckedIn, todayAt(10))
	h := newAppointmentHandler(mock, &fakeAssigner{})

	mock.ExpectQuery("SELECT id").
		WithArgs(apt.ID).
		WillReturnRows(appointmentRow(apt))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/appointments/"+apt.ID.String()+"/checkin", nil), apt.PatientID)
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestQRCheckInFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apt := sampleAppointment(StatusBooked, todayAt(10))
	entry := &queue.Entry{ID: uuid.New(), PatientID: apt.PatientID, QueueCode: "A040", Status: queue.StatusWaiting}
	assigner := &fakeAssigner{result: &queue.Assignment{Entry: entry}}
	h := newAppointmentHandler(mock, assigner)

	token, err := h.tokens.Mint(apt.ID, time.Now())
	require.NoError(t, err)

	checkedIn := *apt
	checkedIn.Status = StatusCheckedIn

	mock.ExpectQuery("SELECT id").
		WithArgs(apt.ID).
		WillReturnRows(appointmentRow(apt))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apt.ID, StatusCheckedIn, StatusBooked).
		WillReturnRows(appointmentRow(&checkedIn))

	payload := fmt.Sprintf(`{"token":%q}`, token)
	req := httptest.NewRequest(http.MethodPost, "/checkin/qr", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestQRCheckInRejectsForgedToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := newAppointmentHandler(mock, &fakeAssigner{})
	forged, err := NewTokenIssuer("other-secret", time.Hour).Mint(uuid.New(), time.Now())
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"token":%q}`, forged)
	req := httptest.NewRequest(http.MethodPost, "/checkin/qr", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQRTokenMintedForExistingAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apt := sampleAppointment(StatusBooked, todayAt(10))
	h := newAppointmentHandler(mock, &fakeAssigner{})

	mock.ExpectQuery("SELECT id").
		WithArgs(apt.ID).
		WillReturnRows(appointmentRow(apt))

	req := httptest.NewRequest(http.MethodGet, "/staff/appointments/"+apt.ID.String()+"/qr-token", nil)
	rec := httptest.NewRecorder()
	newAppointmentRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	id, err := h.tokens.Verify(got.Token)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, id)
}
