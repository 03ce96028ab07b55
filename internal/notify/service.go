package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hospitalos/patientflow/internal/events"
	"github.com/hospitalos/patientflow/internal/patients"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// PatientLookup resolves the patient a queue event refers to.
type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// Service turns queue events from the outbox into patient notifications:
// an in-app record when the patient has a portal account, an email when a
// contact address is on file.
type Service struct {
	store    *Store
	patients PatientLookup
	email    EmailSender
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(store *Store, patientLookup PatientLookup, email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, patients: patientLookup, email: email, logger: logger}
}

// Handle consumes one outbox entry. A failed in-app insert returns an error
// so the deliverer retries; a failed email only logs, since mail providers
// flake and the in-app record already exists.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var (
		patientID string
		title     string
		message   string
		priority  string
	)

	switch entry.Type {
	case events.TypeQueueAssigned:
		var evt events.QueueAssignedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		patientID = evt.PatientID
		title = fmt.Sprintf("You are in the queue: %s", evt.QueueCode)
		message = fmt.Sprintf("Your queue number is %s (position %d). Estimated wait: %d minutes.",
			evt.QueueCode, evt.Position, evt.EstimatedWaitMinutes)
		if evt.DoctorName != "" {
			message += fmt.Sprintf(" You will be seen by %s.", evt.DoctorName)
		}
		priority = "normal"

	case events.TypeQueueCalled:
		var evt events.QueueCalledV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		patientID = evt.PatientID
		title = fmt.Sprintf("It's your turn: %s", evt.QueueCode)
		message = fmt.Sprintf("Queue number %s has been called. Please proceed to the consultation room.", evt.QueueCode)
		priority = "high"

	case events.TypeQueueCompleted:
		var evt events.QueueCompletedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		patientID = evt.PatientID
		title = "Visit completed"
		message = fmt.Sprintf("Your visit for queue number %s is complete. Get well soon!", evt.QueueCode)
		priority = "normal"

	case events.TypeQueueCancelled:
		var evt events.QueueCancelledV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		patientID = evt.PatientID
		title = "Queue entry cancelled"
		message = fmt.Sprintf("Your queue number %s has been cancelled.", evt.QueueCode)
		priority = "normal"

	default:
		s.logger.Debug("notify: ignoring event type", "type", entry.Type)
		return nil
	}

	pid, err := uuid.Parse(patientID)
	if err != nil {
		return fmt.Errorf("notify: bad patient id in %s: %w", entry.Type, err)
	}
	patient, err := s.patients.Get(ctx, pid)
	if err != nil {
		return fmt.Errorf("notify: lookup patient: %w", err)
	}

	if patient.UserID != nil {
		n := &Notification{UserID: *patient.UserID, Title: title, Message: message, Priority: priority}
		if err := s.store.Insert(ctx, n); err != nil {
			return err
		}
	}

	if patient.Email != "" && s.email != nil {
		msg := EmailMessage{To: patient.Email, ToName: patient.FullName, Subject: title, Body: message}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Warn("notify: email delivery failed", "error", err, "patient_id", patient.ID, "type", entry.Type)
		}
	}

	return nil
}
