package consultations

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a consultation request.
type Status string

const (
	// StatusOpen means the request awaits triage.
	StatusOpen Status = "OPEN"
	// StatusQueued means the patient was handed off to the visit queue.
	StatusQueued Status = "IN_QUEUE"
	// StatusClosed means the consultation was resolved without a visit.
	StatusClosed Status = "CLOSED"
	// StatusCancelled means the patient withdrew the request.
	StatusCancelled Status = "CANCELLED"
)

var (
	// ErrNotFound is returned when a consultation does not exist.
	ErrNotFound = errors.New("consultation not found")

	// ErrNotOpen is returned when an operation requires an OPEN consultation.
	ErrNotOpen = errors.New("consultation is not open")

	// ErrMissingSymptoms is returned when a request has no symptom description.
	ErrMissingSymptoms = errors.New("symptoms description is required")
)

// Consultation is a patient's request to talk to a doctor before (or instead
// of) joining the visit queue.
type Consultation struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	DoctorID   *uuid.UUID `json:"doctor_id,omitempty"`
	Symptoms   string     `json:"symptoms"`
	TriageNote string     `json:"triage_note,omitempty"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CreateRequest is the body for opening a consultation.
type CreateRequest struct {
	Symptoms string     `json:"symptoms"`
	DoctorID *uuid.UUID `json:"doctor_id,omitempty"`
}

// Validate checks the request shape.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Symptoms) == "" {
		return ErrMissingSymptoms
	}
	return nil
}
