package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const patientColumns = `id, user_id, full_name, phone, email, is_active, created_at`

// Repository provides persistence for patients.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by pgx.
func NewRepository(dbh db) *Repository {
	if dbh == nil {
		panic("patients: db handle required")
	}
	return &Repository{db: dbh}
}

// Register creates a walk-in patient record without a linked user account.
func (r *Repository) Register(ctx context.Context, req *RegisterRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p := &Patient{ID: uuid.New(), FullName: req.FullName, Phone: req.Phone, Email: req.Email, IsActive: true}
	err := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, full_name, phone, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`, p.ID, p.FullName, p.Phone, p.Email).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("patients: register: %w", err)
	}
	return p, nil
}

// Get fetches a patient by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Phone, &p.Email, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patients: get: %w", err)
	}
	return &p, nil
}

// ExistsActiveTx reports whether the patient exists and is active, inside a
// transaction so the queue assigner's guards all see one snapshot.
func (r *Repository) ExistsActiveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND is_active)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("patients: check active: %w", err)
	}
	return exists, nil
}
