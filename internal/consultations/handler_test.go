package consultations

import (
	"bytes"
	"context"
	"encoding/json"
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

var consultationRowColumns = []string{"id", "patient_id", "doctor_id", "symptoms", "triage_note", "status", "created_at", "updated_at"}

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

func consultationRow(c *Consultation) *pgxmock.Rows {
	return pgxmock.NewRows(consultationRowColumns).
		AddRow(c.ID, c.PatientID, c.DoctorID, c.Symptoms, c.TriageNote, c.Status, c.CreatedAt, c.UpdatedAt)
}

func sampleConsultation(status Status) *Consultation {
	return &Consultation{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Symptoms:  "persistent cough",
		Status:    status,
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
	}
}

func newConsultationRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/consultations", h.Create)
	r.Get("/consultations/mine", h.ListMine)
	r.Get("/consultations/{id}", h.Get)
	r.Post("/consultations/{id}/handoff", h.Handoff)
	r.Post("/consultations/{id}/close", h.Close)
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

func withStaff(r *http.Request) *http.Request {
	ctx := identity.WithIdentity(r.Context(), identity.Identity{
		UserID: uuid.NewString(),
		Role:   identity.RoleStaff,
	})
	return r.WithContext(ctx)
}

func TestCreateConsultation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := NewHandler(NewRepository(mock), &fakeAssigner{}, nil)
	patientID := uuid.New()

	mock.ExpectQuery("INSERT INTO consultations").
		WithArgs(patientID, pgxmock.AnyArg(), "persistent cough").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(uuid.New(), time.Now(), time.Now()))

	body := bytes.NewBufferString(`{"symptoms":"persistent cough"}`)
	req := withPatient(httptest.NewRequest(http.MethodPost, "/consultations", body), patientID)
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got Consultation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, StatusOpen, got.Status)
	assert.Equal(t, patientID, got.PatientID)
}

func TestCreateConsultationRequiresSymptoms(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := NewHandler(NewRepository(mock), &fakeAssigner{}, nil)

	body := bytes.NewBufferString(`{"symptoms":"  "}`)
	req := withPatient(httptest.NewRequest(http.MethodPost, "/consultations", body), uuid.New())
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandoffAssignsDirectConsultation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleConsultation(StatusOpen)
	doctorID := uuid.New()

	entry := &queue.Entry{
		ID:        uuid.New(),
		PatientID: c.PatientID,
		DoctorID:  &doctorID,
		QueueCode: "A021",
		Position:  21,
		Status:    queue.StatusWaiting,
		QueueType: queue.TypeDirectConsultation,
	}
	assigner := &fakeAssigner{result: &queue.Assignment{Entry: entry}}
	h := NewHandler(NewRepository(mock), assigner, nil)

	queued := *c
	queued.Status = StatusQueued
	queued.DoctorID = &doctorID

	mock.ExpectQuery("SELECT id").
		WithArgs(c.ID).
		WillReturnRows(consultationRow(c))
	mock.ExpectQuery("UPDATE consultations").
		WithArgs(c.ID, StatusQueued, &doctorID, "needs in-person exam", StatusOpen).
		WillReturnRows(consultationRow(&queued))

	body := bytes.NewBufferString(`{"triage_note":"needs in-person exam"}`)
	req := withStaff(httptest.NewRequest(http.MethodPost, "/consultations/"+c.ID.String()+"/handoff", body))
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, assigner.got)
	assert.Equal(t, queue.TypeDirectConsultation, assigner.got.QueueType)
	assert.Equal(t, c.PatientID, assigner.got.PatientID)
	require.NotNil(t, assigner.got.ConsultationID)
	assert.Equal(t, c.ID, *assigner.got.ConsultationID)
}

func TestHandoffRejectsNonOpenConsultation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleConsultation(StatusQueued)
	h := NewHandler(NewRepository(mock), &fakeAssigner{}, nil)

	mock.ExpectQuery("SELECT id").
		WithArgs(c.ID).
		WillReturnRows(consultationRow(c))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/consultations/"+c.ID.String()+"/handoff", nil), c.PatientID)
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandoffSurfacesDuplicateQueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleConsultation(StatusOpen)
	h := NewHandler(NewRepository(mock), &fakeAssigner{err: queue.ErrDuplicateActiveQueue}, nil)

	mock.ExpectQuery("SELECT id").
		WithArgs(c.ID).
		WillReturnRows(consultationRow(c))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/consultations/"+c.ID.String()+"/handoff", nil), c.PatientID)
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "active queue entry")
}

func TestGetHidesForeignConsultation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleConsultation(StatusOpen)
	h := NewHandler(NewRepository(mock), &fakeAssigner{}, nil)

	mock.ExpectQuery("SELECT id").
		WithArgs(c.ID).
		WillReturnRows(consultationRow(c))

	req := withPatient(httptest.NewRequest(http.MethodGet, "/consultations/"+c.ID.String(), nil), uuid.New())
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandoffHidesForeignConsultation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleConsultation(StatusOpen)
	assigner := &fakeAssigner{}
	h := NewHandler(NewRepository(mock), assigner, nil)

	mock.ExpectQuery("SELECT id").
		WithArgs(c.ID).
		WillReturnRows(consultationRow(c))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/consultations/"+c.ID.String()+"/handoff", nil), uuid.New())
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, assigner.got, "no queue entry may be created for another patient")
}

func TestCloseHidesForeignConsultation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleConsultation(StatusOpen)
	h := NewHandler(NewRepository(mock), &fakeAssigner{}, nil)

	mock.ExpectQuery("SELECT id").
		WithArgs(c.ID).
		WillReturnRows(consultationRow(c))

	req := withPatient(httptest.NewRequest(http.MethodPost, "/consultations/"+c.ID.String()+"/close", nil), uuid.New())
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseConsultation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleConsultation(StatusOpen)
	closed := *c
	closed.Status = StatusClosed
	closed.TriageNote = "resolved by phone"

	h := NewHandler(NewRepository(mock), &fakeAssigner{}, nil)

	mock.ExpectQuery("SELECT id").
		WithArgs(c.ID).
		WillReturnRows(consultationRow(c))
	mock.ExpectQuery("UPDATE consultations").
		WithArgs(c.ID, StatusClosed, "resolved by phone", StatusOpen).
		WillReturnRows(consultationRow(&closed))

	body := bytes.NewBufferString(`{"triage_note":"resolved by phone"}`)
	req := withPatient(httptest.NewRequest(http.MethodPost, "/consultations/"+c.ID.String()+"/close", body), c.PatientID)
	rec := httptest.NewRecorder()
	newConsultationRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got Consultation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, StatusClosed, got.Status)
}
