package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/hospitalos/patientflow/internal/events"
	"github.com/hospitalos/patientflow/internal/patients"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockPatientLookup struct {
	patient *patients.Patient
	err     error
}

func (m *mockPatientLookup) Get(ctx context.Context, id uuid.UUID) (*patients.Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.patient, nil
}

func assignedEntry(t *testing.T, patientID uuid.UUID) events.OutboxEntry {
	t.Helper()
	payload, err := json.Marshal(events.QueueAssignedV1{
		EventID:              uuid.NewString(),
		EntryID:              uuid.NewString(),
		PatientID:            patientID.String(),
		QueueCode:            "A014",
		Position:             14,
		EstimatedWaitMinutes: 40,
		DoctorName:           "Dr. Sari",
		OccurredAt:           time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return events.OutboxEntry{ID: uuid.New(), Type: events.TypeQueueAssigned, Payload: payload}
}

func TestHandleAssignedPersistsAndEmails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	patientID := uuid.New()
	lookup := &mockPatientLookup{patient: &patients.Patient{
		ID:       patientID,
		UserID:   &userID,
		FullName: "Budi Santoso",
		Email:    "budi@example.com",
	}}
	email := &mockEmailSender{}
	svc := NewService(NewStore(mock), lookup, email, nil)

	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(userID, pgxmock.AnyArg(), pgxmock.AnyArg(), "queue", "normal").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))

	if err := svc.Handle(context.Background(), assignedEntry(t, patientID)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(email.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(email.sent))
	}
	if email.sent[0].To != "budi@example.com" {
		t.Errorf("unexpected recipient: %s", email.sent[0].To)
	}
	if want := "You are in the queue: A014"; email.sent[0].Subject != want {
		t.Errorf("subject = %q, want %q", email.sent[0].Subject, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleWalkInWithoutAccountSkipsInApp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	patientID := uuid.New()
	lookup := &mockPatientLookup{patient: &patients.Patient{
		ID:       patientID,
		FullName: "Walk In",
		Phone:    "+628123456789",
	}}
	email := &mockEmailSender{}
	svc := NewService(NewStore(mock), lookup, email, nil)

	// no INSERT expected: no user account, no email on file
	if err := svc.Handle(context.Background(), assignedEntry(t, patientID)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(email.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(email.sent))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleEmailFailureDoesNotBlockDelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	patientID := uuid.New()
	lookup := &mockPatientLookup{patient: &patients.Patient{
		ID:       patientID,
		FullName: "Budi Santoso",
		Email:    "budi@example.com",
	}}
	email := &mockEmailSender{callErr: errors.New("provider down")}
	svc := NewService(NewStore(mock), lookup, email, nil)

	if err := svc.Handle(context.Background(), assignedEntry(t, patientID)); err != nil {
		t.Fatalf("email failure must not fail the handler: %v", err)
	}
}

func TestHandleUnknownTypeIsIgnored(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	svc := NewService(NewStore(mock), &mockPatientLookup{}, &mockEmailSender{}, nil)
	entry := events.OutboxEntry{ID: uuid.New(), Type: "something.else.v1", Payload: []byte(`{}`)}
	if err := svc.Handle(context.Background(), entry); err != nil {
		t.Fatalf("unknown types must be skipped, got: %v", err)
	}
}

func TestHandleCalledIsHighPriority(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	userID := uuid.New()
	patientID := uuid.New()
	lookup := &mockPatientLookup{patient: &patients.Patient{ID: patientID, UserID: &userID, FullName: "Budi"}}
	svc := NewService(NewStore(mock), lookup, &mockEmailSender{}, nil)

	payload, _ := json.Marshal(events.QueueCalledV1{PatientID: patientID.String(), QueueCode: "A014"})
	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(userID, pgxmock.AnyArg(), pgxmock.AnyArg(), "queue", "high").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))

	entry := events.OutboxEntry{ID: uuid.New(), Type: events.TypeQueueCalled, Payload: payload}
	if err := svc.Handle(context.Background(), entry); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
