package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitalos/patientflow/internal/events"
	"github.com/hospitalos/patientflow/internal/observability/metrics"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// StatusMachine drives entries through the queue lifecycle. Every transition
// is a guarded UPDATE keyed on the expected current status, so concurrent
// staff actions resolve to exactly one winner and the loser gets an
// InvalidTransitionError.
type StatusMachine struct {
	store   *Store
	doctors DoctorDirectory
	outbox  EventSink
	metrics *metrics.QueueMetrics
	logger  *logging.Logger
}

// NewStatusMachine creates a status machine.
func NewStatusMachine(store *Store, doctorDir DoctorDirectory, outbox EventSink, m *metrics.QueueMetrics, logger *logging.Logger) *StatusMachine {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusMachine{store: store, doctors: doctorDir, outbox: outbox, metrics: m, logger: logger}
}

// Call moves a WAITING entry to CALLED.
func (sm *StatusMachine) Call(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	return sm.transition(ctx, entryID, "call", func(ctx context.Context, tx pgx.Tx) (*Entry, error) {
		return sm.store.CallTx(ctx, tx, entryID, nil)
	})
}

// Start moves a CALLED entry to IN_PROGRESS and marks its doctor on duty.
func (sm *StatusMachine) Start(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	return sm.transition(ctx, entryID, "start", func(ctx context.Context, tx pgx.Tx) (*Entry, error) {
		entry, err := sm.store.StartTx(ctx, tx, entryID)
		if err != nil {
			return nil, err
		}
		if entry.DoctorID != nil {
			if err := sm.doctors.SetOnDutyTx(ctx, tx, *entry.DoctorID, true); err != nil {
				return nil, err
			}
		}
		return entry, nil
	})
}

// Complete moves an IN_PROGRESS entry to COMPLETED and frees its doctor.
func (sm *StatusMachine) Complete(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	return sm.transition(ctx, entryID, "complete", func(ctx context.Context, tx pgx.Tx) (*Entry, error) {
		entry, err := sm.store.CompleteTx(ctx, tx, entryID)
		if err != nil {
			return nil, err
		}
		if entry.DoctorID != nil {
			if err := sm.doctors.SetOnDutyTx(ctx, tx, *entry.DoctorID, false); err != nil {
				return nil, err
			}
		}
		return entry, nil
	})
}

// Cancel withdraws a WAITING or CALLED entry. Cancelling frees the day's
// active-entry slot, so the patient can queue again.
func (sm *StatusMachine) Cancel(ctx context.Context, entryID uuid.UUID, reason string) (*Entry, error) {
	return sm.transition(ctx, entryID, "cancel", func(ctx context.Context, tx pgx.Tx) (*Entry, error) {
		return sm.store.CancelTx(ctx, tx, entryID, reason)
	})
}

// CallNext picks the longest-waiting entry for today and calls it on behalf
// of the given doctor. Entries already routed to that doctor win over
// unrouted ones; an unrouted entry gets claimed by the caller. Returns
// ErrEntryNotFound when nobody is waiting.
func (sm *StatusMachine) CallNext(ctx context.Context, doctorID uuid.UUID) (*Entry, error) {
	tx, err := sm.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	candidate, err := sm.store.NextWaitingTx(ctx, tx, doctorID, NormalizeDay(time.Time{}))
	if err != nil {
		return nil, err
	}

	var claim *uuid.UUID
	if candidate.DoctorID == nil {
		claim = &doctorID
	}
	entry, err := sm.store.CallTx(ctx, tx, candidate.ID, claim)
	if err != nil {
		return nil, err
	}

	if err := sm.emit(ctx, tx, entry, "call"); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	sm.metrics.ObserveTransition("call")
	sm.logger.Info("queue entry called", "entry_id", entry.ID, "queue_code", entry.QueueCode, "doctor_id", doctorID)
	return entry, nil
}

type transitionFn func(ctx context.Context, tx pgx.Tx) (*Entry, error)

func (sm *StatusMachine) transition(ctx context.Context, entryID uuid.UUID, action string, fn transitionFn) (*Entry, error) {
	tx, err := sm.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := fn(ctx, tx)
	if errors.Is(err, ErrEntryNotFound) {
		// Guarded UPDATE matched nothing: the entry is missing or in the
		// wrong status. Disambiguate for the caller.
		status, stErr := sm.store.StatusTx(ctx, tx, entryID)
		if stErr != nil {
			return nil, stErr
		}
		return nil, &InvalidTransitionError{From: status, Action: action}
	}
	if err != nil {
		return nil, err
	}

	if err := sm.emit(ctx, tx, entry, action); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	sm.metrics.ObserveTransition(action)
	sm.logger.Info("queue entry transitioned", "entry_id", entry.ID, "queue_code", entry.QueueCode, "action", action, "status", entry.Status)
	return entry, nil
}

func (sm *StatusMachine) emit(ctx context.Context, tx pgx.Tx, entry *Entry, action string) error {
	var (
		eventType string
		payload   any
	)
	switch action {
	case "call":
		eventType = events.TypeQueueCalled
		payload = events.QueueCalledV1{
			EventID:    uuid.NewString(),
			EntryID:    entry.ID.String(),
			PatientID:  entry.PatientID.String(),
			QueueCode:  entry.QueueCode,
			DoctorID:   uuidString(entry.DoctorID),
			OccurredAt: time.Now().UTC(),
		}
	case "complete":
		eventType = events.TypeQueueCompleted
		payload = events.QueueCompletedV1{
			EventID:    uuid.NewString(),
			EntryID:    entry.ID.String(),
			PatientID:  entry.PatientID.String(),
			QueueCode:  entry.QueueCode,
			OccurredAt: time.Now().UTC(),
		}
	case "cancel":
		eventType = events.TypeQueueCancelled
		payload = events.QueueCancelledV1{
			EventID:    uuid.NewString(),
			EntryID:    entry.ID.String(),
			PatientID:  entry.PatientID.String(),
			QueueCode:  entry.QueueCode,
			OccurredAt: time.Now().UTC(),
		}
	default:
		// start has no patient-facing notification
		return nil
	}
	_, err := sm.outbox.InsertTx(ctx, tx, eventType, payload)
	return err
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
