package consultations

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

const consultationColumns = `id, patient_id, doctor_id, symptoms, triage_note, status, created_at, updated_at`

// Repository provides persistence for consultations.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by pgx.
func NewRepository(dbh db) *Repository {
	if dbh == nil {
		panic("consultations: db handle required")
	}
	return &Repository{db: dbh}
}

// Create opens a consultation for the patient.
func (r *Repository) Create(ctx context.Context, patientID uuid.UUID, req *CreateRequest) (*Consultation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c := &Consultation{PatientID: patientID, DoctorID: req.DoctorID, Symptoms: req.Symptoms, Status: StatusOpen}
	err := r.db.QueryRow(ctx, `
		INSERT INTO consultations (patient_id, doctor_id, symptoms)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.PatientID, c.DoctorID, c.Symptoms).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("consultations: create: %w", err)
	}
	return c, nil
}

// Get fetches one consultation.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id)
	return scanConsultation(row)
}

// ListForPatient returns the patient's consultations, newest first.
func (r *Repository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Consultation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+consultationColumns+` FROM consultations
		WHERE patient_id = $1
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("consultations: list: %w", err)
	}
	defer rows.Close()

	out := []Consultation{}
	for rows.Next() {
		var c Consultation
		if err := rows.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Symptoms, &c.TriageNote, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("consultations: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkQueued flips an OPEN consultation to IN_QUEUE, recording the doctor and
// triage note decided at handoff. The status guard makes concurrent handoffs
// resolve to one winner.
func (r *Repository) MarkQueued(ctx context.Context, id uuid.UUID, doctorID *uuid.UUID, triageNote string) (*Consultation, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE consultations
		SET status = $2, doctor_id = COALESCE($3, doctor_id),
		    triage_note = CASE WHEN $4 = '' THEN triage_note ELSE $4 END,
		    updated_at = now()
		WHERE id = $1 AND status = $5
		RETURNING `+consultationColumns, id, StatusQueued, doctorID, triageNote, StatusOpen)
	c, err := scanConsultation(row)
	if errors.Is(err, ErrNotFound) {
		// Row exists but is not OPEN, or does not exist at all.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotOpen
	}
	return c, err
}

// Close resolves an OPEN consultation without a visit.
func (r *Repository) Close(ctx context.Context, id uuid.UUID, status Status, triageNote string) (*Consultation, error) {
	if status != StatusClosed && status != StatusCancelled {
		return nil, fmt.Errorf("consultations: cannot close with status %s", status)
	}
	row := r.db.QueryRow(ctx, `
		UPDATE consultations
		SET status = $2,
		    triage_note = CASE WHEN $3 = '' THEN triage_note ELSE $3 END,
		    updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING `+consultationColumns, id, status, triageNote, StatusOpen)
	c, err := scanConsultation(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotOpen
	}
	return c, err
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Symptoms, &c.TriageNote, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consultations: scan: %w", err)
	}
	return &c, nil
}
