package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the database handle the queue package needs. *pgxpool.Pool satisfies
// it, as does the pgxmock pool used in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entryColumns = `id, patient_id, doctor_id, queue_code, position, status, queue_type,
	queue_date, consultation_id, appointment_id, estimated_wait_minutes, notes,
	checked_in_at, called_at, completed_at`

// Store persists queue entries and the per-day position counters.
type Store struct {
	db DB
}

// NewStore creates a store backed by pgx.
func NewStore(db DB) *Store {
	if db == nil {
		panic("queue: db handle required")
	}
	return &Store{db: db}
}

// Begin opens a transaction on the underlying handle.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.db.Begin(ctx)
}

// ReserveNextPosition atomically claims the next position for the day.
// Concurrent callers serialize on the counter row lock, so no two intakes
// can ever observe the same value.
func (s *Store) ReserveNextPosition(ctx context.Context, tx pgx.Tx, day time.Time) (int, error) {
	var position int
	err := tx.QueryRow(ctx, `
		INSERT INTO queue_counters (queue_date, last_position)
		VALUES ($1, 1)
		ON CONFLICT (queue_date) DO UPDATE
		SET last_position = queue_counters.last_position + 1
		RETURNING last_position`, day).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("queue: reserve position: %w", err)
	}
	return position, nil
}

// ActiveEntryExists reports whether the patient already holds a non-terminal
// entry for the day.
func (s *Store) ActiveEntryExists(ctx context.Context, tx pgx.Tx, patientID uuid.UUID, day time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE patient_id = $1 AND queue_date = $2
			  AND status IN ('WAITING', 'CALLED', 'IN_PROGRESS')
		)`, patientID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("queue: check active entry: %w", err)
	}
	return exists, nil
}

// CountWaiting counts WAITING entries for the day. Works both inside a
// transaction and on the pool.
func (s *Store) CountWaiting(ctx context.Context, q rowQuerier, day time.Time) (int, error) {
	if q == nil {
		q = s.db
	}
	var n int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_entries
		WHERE queue_date = $1 AND status = 'WAITING'`, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue: count waiting: %w", err)
	}
	return n, nil
}

// InsertEntry persists a new entry. A unique violation on the active-patient
// index means another request won the race and maps to ErrDuplicateActiveQueue.
func (s *Store) InsertEntry(ctx context.Context, tx pgx.Tx, e *Entry) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO queue_entries (id, patient_id, doctor_id, queue_code, position, status,
			queue_type, queue_date, consultation_id, appointment_id, estimated_wait_minutes, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING checked_in_at`,
		e.ID, e.PatientID, e.DoctorID, e.QueueCode, e.Position, e.Status,
		e.QueueType, e.QueueDate, e.ConsultationID, e.AppointmentID,
		e.EstimatedWaitMinutes, e.Notes).Scan(&e.CheckedInAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateActiveQueue
		}
		return fmt.Errorf("queue: insert entry: %w", err)
	}
	return nil
}

// GetByID fetches one entry.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, id)
	return scanEntry(row)
}

// ActiveForPatient returns the patient's non-terminal entry for the day,
// or ErrEntryNotFound.
func (s *Store) ActiveForPatient(ctx context.Context, patientID uuid.UUID, day time.Time) (*Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE patient_id = $1 AND queue_date = $2
		  AND status IN ('WAITING', 'CALLED', 'IN_PROGRESS')
		LIMIT 1`, patientID, day)
	return scanEntry(row)
}

// ListForDay returns all entries for the day ordered by position.
func (s *Store) ListForDay(ctx context.Context, day time.Time) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE queue_date = $1 ORDER BY position`, day)
	if err != nil {
		return nil, fmt.Errorf("queue: list for day: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// WaitingAhead counts WAITING entries ahead of the given entry: same day,
// smaller position, and the same doctor when the entry has one assigned.
func (s *Store) WaitingAhead(ctx context.Context, e *Entry) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_entries
		WHERE queue_date = $1 AND status = 'WAITING' AND position < $2
		  AND ($3::uuid IS NULL OR doctor_id = $3)`,
		e.QueueDate, e.Position, e.DoctorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue: count ahead: %w", err)
	}
	return n, nil
}

// CallTx moves a WAITING entry to CALLED. When claim is non-nil the entry is
// simultaneously claimed for that doctor (call-next on an unassigned ticket).
// Returns pgx.ErrNoRows when the entry is absent or not WAITING.
func (s *Store) CallTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, claim *uuid.UUID) (*Entry, error) {
	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'CALLED', called_at = now(), doctor_id = COALESCE($2, doctor_id)
		WHERE id = $1 AND status = 'WAITING'
		RETURNING `+entryColumns, id, claim)
	return scanEntry(row)
}

// StartTx moves a CALLED entry to IN_PROGRESS.
func (s *Store) StartTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Entry, error) {
	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'IN_PROGRESS'
		WHERE id = $1 AND status = 'CALLED'
		RETURNING `+entryColumns, id)
	return scanEntry(row)
}

// CompleteTx moves an IN_PROGRESS entry to COMPLETED.
func (s *Store) CompleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Entry, error) {
	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'COMPLETED', completed_at = now()
		WHERE id = $1 AND status = 'IN_PROGRESS'
		RETURNING `+entryColumns, id)
	return scanEntry(row)
}

// CancelTx cancels a WAITING or CALLED entry, appending the reason to notes.
func (s *Store) CancelTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) (*Entry, error) {
	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'CANCELLED',
		    notes = CASE WHEN $2 = '' THEN notes
		                 ELSE concat_ws(E'\n', NULLIF(notes, ''), 'cancelled: ' || $2) END
		WHERE id = $1 AND status IN ('WAITING', 'CALLED')
		RETURNING `+entryColumns, id, reason)
	return scanEntry(row)
}

// NextWaitingTx locks and returns the lowest-position WAITING entry the
// doctor may call: their own tickets first, then unassigned ones.
func (s *Store) NextWaitingTx(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID, day time.Time) (*Entry, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE queue_date = $1 AND status = 'WAITING'
		  AND (doctor_id = $2 OR doctor_id IS NULL)
		ORDER BY (doctor_id IS NULL), position
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, day, doctorID)
	return scanEntry(row)
}

// StatusTx reads the current status inside a transaction, used to tell
// "missing" apart from "illegal transition" after a guarded update matched
// zero rows.
func (s *Store) StatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Status, error) {
	var st Status
	err := tx.QueryRow(ctx, `SELECT status FROM queue_entries WHERE id = $1`, id).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrEntryNotFound
	}
	if err != nil {
		return "", fmt.Errorf("queue: read status: %w", err)
	}
	return st, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientID, &e.DoctorID, &e.QueueCode, &e.Position,
		&e.Status, &e.QueueType, &e.QueueDate, &e.ConsultationID, &e.AppointmentID,
		&e.EstimatedWaitMinutes, &e.Notes, &e.CheckedInAt, &e.CalledAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue: scan entry: %w", err)
	}
	return &e, nil
}

func scanEntryRow(rows pgx.Rows) (*Entry, error) {
	var e Entry
	err := rows.Scan(&e.ID, &e.PatientID, &e.DoctorID, &e.QueueCode, &e.Position,
		&e.Status, &e.QueueType, &e.QueueDate, &e.ConsultationID, &e.AppointmentID,
		&e.EstimatedWaitMinutes, &e.Notes, &e.CheckedInAt, &e.CalledAt, &e.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("queue: scan entry: %w", err)
	}
	return &e, nil
}
