package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const appointmentColumns = `id, patient_id, doctor_id, scheduled_for, kind, status, created_at`

// Repository provides persistence for appointments.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by pgx.
func NewRepository(dbh db) *Repository {
	if dbh == nil {
		panic("appointments: db handle required")
	}
	return &Repository{db: dbh}
}

// Create books a slot for the patient.
func (r *Repository) Create(ctx context.Context, patientID uuid.UUID, req *CreateRequest) (*Appointment, error) {
	a := &Appointment{
		PatientID:    patientID,
		DoctorID:     req.DoctorID,
		ScheduledFor: req.ScheduledFor,
		Kind:         req.Kind,
		Status:       StatusBooked,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, scheduled_for, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.PatientID, a.DoctorID, a.ScheduledFor, a.Kind).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointments: create: %w", err)
	}
	return a, nil
}

// Get fetches one appointment.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

// ListForPatient returns the patient's appointments, soonest first.
func (r *Repository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_for`, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledFor, &a.Kind, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkCheckedIn flips a BOOKED appointment to CHECKED_IN. Guarded on status
// so a double scan of the same QR resolves to one winner.
func (r *Repository) MarkCheckedIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+appointmentColumns, id, StatusCheckedIn, StatusBooked)
	a, err := scanAppointment(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotBooked
	}
	return a, err
}

// Cancel releases a BOOKED appointment.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+appointmentColumns, id, StatusCancelled, StatusBooked)
	a, err := scanAppointment(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotBooked
	}
	return a, err
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledFor, &a.Kind, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	return &a, nil
}
