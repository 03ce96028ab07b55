package doctors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const doctorColumns = `id, user_id, full_name, specialty, is_available, is_on_duty, created_at`

// Repository provides persistence for doctors.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by pgx.
func NewRepository(dbh db) *Repository {
	if dbh == nil {
		panic("doctors: db handle required")
	}
	return &Repository{db: dbh}
}

// NextAvailableGP returns the oldest-created available general practitioner
// with an active user account who is not currently seeing a patient. FIFO by
// creation keeps repeated auto-assignments fair. Returns (nil, nil) when
// nobody qualifies.
func (r *Repository) NextAvailableGP(ctx context.Context, tx pgx.Tx) (*Doctor, error) {
	row := tx.QueryRow(ctx, `
		SELECT d.id, d.user_id, d.full_name, d.specialty, d.is_available, d.is_on_duty, d.created_at
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		WHERE d.specialty = $1 AND d.is_available AND NOT d.is_on_duty AND u.is_active
		ORDER BY d.created_at
		LIMIT 1`, SpecialtyGeneralPractice)
	doc, err := scanDoctor(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

// GetByIDTx fetches a doctor inside a transaction.
func (r *Repository) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Doctor, error) {
	row := tx.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

// GetByID fetches a doctor.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

// SetOnDutyTx flips the on-duty flag inside a transaction. On-duty means the
// doctor has an IN_PROGRESS queue entry right now.
func (r *Repository) SetOnDutyTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, onDuty bool) error {
	ct, err := tx.Exec(ctx, `UPDATE doctors SET is_on_duty = $2 WHERE id = $1`, id, onDuty)
	if err != nil {
		return fmt.Errorf("doctors: set on duty: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAvailability toggles whether the doctor participates in auto-assignment.
func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	ct, err := r.db.Exec(ctx, `UPDATE doctors SET is_available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("doctors: set availability: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all doctors ordered by creation.
func (r *Repository) List(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `SELECT `+doctorColumns+` FROM doctors ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("doctors: list: %w", err)
	}
	defer rows.Close()

	out := []Doctor{}
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Specialty, &d.IsAvailable, &d.IsOnDuty, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("doctors: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Specialty, &d.IsAvailable, &d.IsOnDuty, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: scan: %w", err)
	}
	return &d, nil
}
