package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusCalled     Status = "CALLED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Type records which intake path created the entry. It is informational
// and does not affect numbering.
type Type string

const (
	TypeWalkIn             Type = "WALK_IN"
	TypeAppointment        Type = "APPOINTMENT"
	TypeDirectConsultation Type = "DIRECT_CONSULTATION"
	TypeOnlineAppointment  Type = "ONLINE_APPOINTMENT"
)

var transitions = map[Status][]Status{
	StatusWaiting:    {StatusCalled, StatusCancelled},
	StatusCalled:     {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Entry is one patient's ticket to be seen, for one calendar day.
type Entry struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	DoctorID             *uuid.UUID `json:"doctor_id,omitempty"`
	QueueCode            string     `json:"queue_code"`
	Position             int        `json:"position"`
	Status               Status     `json:"status"`
	QueueType            Type       `json:"queue_type"`
	QueueDate            time.Time  `json:"queue_date"`
	ConsultationID       *uuid.UUID `json:"consultation_id,omitempty"`
	AppointmentID        *uuid.UUID `json:"appointment_id,omitempty"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	Notes                string     `json:"notes,omitempty"`
	CheckedInAt          time.Time  `json:"checked_in_at"`
	CalledAt             *time.Time `json:"called_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// DoctorSummary is the slice of doctor data returned with an assignment
// for immediate display.
type DoctorSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
}

// Assignment is the result of a successful queue assignment.
type Assignment struct {
	Entry  *Entry         `json:"entry"`
	Doctor *DoctorSummary `json:"doctor,omitempty"`
}

// AssignRequest describes one intake.
type AssignRequest struct {
	PatientID      uuid.UUID
	QueueDate      time.Time // zero means today
	DoctorID       *uuid.UUID
	QueueType      Type
	ConsultationID *uuid.UUID
	AppointmentID  *uuid.UUID
	Notes          string
}

// Validate checks the request shape. Existence of the referenced patient
// and doctor is verified inside the assignment transaction.
func (r *AssignRequest) Validate() error {
	if r.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Reason: "required"}
	}
	switch r.QueueType {
	case TypeWalkIn, TypeAppointment, TypeDirectConsultation, TypeOnlineAppointment:
	case "":
		r.QueueType = TypeWalkIn
	default:
		return &ValidationError{Field: "queue_type", Reason: fmt.Sprintf("unknown value %q", r.QueueType)}
	}
	return nil
}

// FormatCode renders the human-readable queue code, e.g. A007.
func FormatCode(prefix string, position int) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = "A"
	}
	return fmt.Sprintf("%s%03d", prefix, position)
}

// NormalizeDay truncates a timestamp to local midnight so all entries for a
// day share the same queue_date and range queries reduce to equality.
func NormalizeDay(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
