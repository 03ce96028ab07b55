package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hospitalos/patientflow/internal/doctors"
	"github.com/hospitalos/patientflow/internal/events"
	"github.com/hospitalos/patientflow/internal/hospital"
	"github.com/hospitalos/patientflow/internal/observability/metrics"
	"github.com/hospitalos/patientflow/pkg/logging"
)

var tracer = otel.Tracer("patientflow.queue")

// ConfigProvider supplies the hospital configuration the assigner reads.
type ConfigProvider interface {
	Get(ctx context.Context) (hospital.Config, error)
}

// DoctorDirectory is the slice of the doctors repository the queue needs.
type DoctorDirectory interface {
	NextAvailableGP(ctx context.Context, tx pgx.Tx) (*doctors.Doctor, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*doctors.Doctor, error)
	SetOnDutyTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, onDuty bool) error
}

// PatientDirectory verifies patients inside the assignment transaction.
type PatientDirectory interface {
	ExistsActiveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// EventSink records events atomically with the caller's transaction.
type EventSink interface {
	InsertTx(ctx context.Context, tx pgx.Tx, eventType string, payload any) (uuid.UUID, error)
}

// Assigner produces queue entries with collision-free codes and positions.
// It is the single numbering authority: every intake path (walk-in, QR
// check-in, consultation hand-off, appointment conversion) goes through it.
type Assigner struct {
	store    *Store
	patients PatientDirectory
	doctors  DoctorDirectory
	config   ConfigProvider
	outbox   EventSink
	metrics  *metrics.QueueMetrics
	logger   *logging.Logger
}

// NewAssigner creates an assigner.
func NewAssigner(store *Store, patientDir PatientDirectory, doctorDir DoctorDirectory, config ConfigProvider, outbox EventSink, m *metrics.QueueMetrics, logger *logging.Logger) *Assigner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Assigner{
		store:    store,
		patients: patientDir,
		doctors:  doctorDir,
		config:   config,
		outbox:   outbox,
		metrics:  m,
		logger:   logger,
	}
}

// Assign runs the guards, reserves the next position, and persists the entry
// and its notification event in one transaction. Guard violations surface as
// typed errors with nothing written; a commit means entry and event both
// exist.
func (a *Assigner) Assign(ctx context.Context, req AssignRequest) (*Assignment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	day := NormalizeDay(req.QueueDate)

	ctx, span := tracer.Start(ctx, "queue.assign")
	defer span.End()
	span.SetAttributes(
		attribute.String("queue.type", string(req.QueueType)),
		attribute.String("queue.date", day.Format("2006-01-02")),
	)

	cfg, err := a.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := a.patients.ExistsActiveTx(ctx, tx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	active, err := a.store.ActiveEntryExists(ctx, tx, req.PatientID, day)
	if err != nil {
		return nil, err
	}
	if active {
		a.metrics.ObserveRejected("duplicate_active_queue")
		return nil, ErrDuplicateActiveQueue
	}

	position, err := a.store.ReserveNextPosition(ctx, tx, day)
	if err != nil {
		return nil, err
	}
	// The rollback on rejection also discards the counter increment, so a
	// full day stays exactly at the cap.
	if position > cfg.MaxQueuePerDay {
		a.metrics.ObserveRejected("capacity_exceeded")
		return nil, ErrCapacityExceeded
	}

	doctor, err := a.resolveDoctor(ctx, tx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	waiting, err := a.store.CountWaiting(ctx, tx, day)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:                   uuid.New(),
		PatientID:            req.PatientID,
		QueueCode:            FormatCode(cfg.QueuePrefix, position),
		Position:             position,
		Status:               StatusWaiting,
		QueueType:            req.QueueType,
		QueueDate:            day,
		ConsultationID:       req.ConsultationID,
		AppointmentID:        req.AppointmentID,
		EstimatedWaitMinutes: waiting * cfg.CallIntervalMinutes,
		Notes:                req.Notes,
	}
	if doctor != nil {
		id := doctor.ID
		entry.DoctorID = &id
	}

	if err := a.store.InsertEntry(ctx, tx, entry); err != nil {
		if errors.Is(err, ErrDuplicateActiveQueue) {
			a.metrics.ObserveRejected("duplicate_active_queue")
		}
		return nil, err
	}

	evt := events.QueueAssignedV1{
		EventID:              uuid.NewString(),
		EntryID:              entry.ID.String(),
		PatientID:            entry.PatientID.String(),
		QueueCode:            entry.QueueCode,
		Position:             entry.Position,
		QueueDate:            day.Format("2006-01-02"),
		QueueType:            string(entry.QueueType),
		EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
		OccurredAt:           time.Now().UTC(),
	}
	if doctor != nil {
		evt.DoctorID = doctor.ID.String()
		evt.DoctorName = doctor.Name
	}
	if _, err := a.outbox.InsertTx(ctx, tx, events.TypeQueueAssigned, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	a.metrics.ObserveAssigned(string(entry.QueueType), entry.EstimatedWaitMinutes)
	a.logger.Info("queue entry assigned",
		"entry_id", entry.ID,
		"queue_code", entry.QueueCode,
		"position", entry.Position,
		"queue_type", entry.QueueType,
		"estimated_wait_minutes", entry.EstimatedWaitMinutes,
	)

	result := &Assignment{Entry: entry}
	if doctor != nil {
		result.Doctor = &DoctorSummary{ID: doctor.ID, Name: doctor.Name, Specialty: doctor.Specialty}
	}
	return result, nil
}

// resolveDoctor uses an explicit doctor verbatim, otherwise picks the next
// available general practitioner. Auto-assignment finding nobody is fine;
// staff assign a doctor later.
func (a *Assigner) resolveDoctor(ctx context.Context, tx pgx.Tx, explicit *uuid.UUID) (*doctors.Doctor, error) {
	if explicit != nil {
		doc, err := a.doctors.GetByIDTx(ctx, tx, *explicit)
		if errors.Is(err, doctors.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return doc, err
	}
	return a.doctors.NextAvailableGP(ctx, tx)
}
