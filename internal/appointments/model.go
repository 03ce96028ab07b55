package appointments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes on-site visits from tele-consultation slots.
type Kind string

const (
	KindOnsite Kind = "ONSITE"
	KindOnline Kind = "ONLINE"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	// StatusBooked means the slot is reserved.
	StatusBooked Status = "BOOKED"
	// StatusCheckedIn means the patient arrived and holds a queue entry.
	StatusCheckedIn Status = "CHECKED_IN"
	// StatusCancelled means the slot was released.
	StatusCancelled Status = "CANCELLED"
)

var (
	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointment not found")

	// ErrNotBooked is returned when an operation requires a BOOKED appointment.
	ErrNotBooked = errors.New("appointment is not in booked state")

	// ErrPastSchedule is returned when booking a slot in the past.
	ErrPastSchedule = errors.New("scheduled time must be in the future")

	// ErrWrongDay is returned when checking in on a different day than booked.
	ErrWrongDay = errors.New("appointment is not scheduled for today")
)

// Appointment is a reserved slot with a doctor.
type Appointment struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     *uuid.UUID `json:"doctor_id,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Kind         Kind       `json:"kind"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateRequest is the body for booking an appointment.
type CreateRequest struct {
	DoctorID     *uuid.UUID `json:"doctor_id,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Kind         Kind       `json:"kind,omitempty"`
}

// Validate checks the booking request.
func (r *CreateRequest) Validate(now time.Time) error {
	if r.ScheduledFor.IsZero() || !r.ScheduledFor.After(now) {
		return ErrPastSchedule
	}
	switch r.Kind {
	case KindOnsite, KindOnline:
	case "":
		r.Kind = KindOnsite
	default:
		return errors.New("kind must be ONSITE or ONLINE")
	}
	return nil
}
