package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateActiveQueue is returned when the patient already holds a
	// non-terminal entry for the requested day.
	ErrDuplicateActiveQueue = errors.New("patient already has an active queue entry for this day")

	// ErrCapacityExceeded is returned when the daily cap has been reached.
	ErrCapacityExceeded = errors.New("daily queue capacity exceeded")

	// ErrEntryNotFound is returned when a queue entry does not exist.
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrPatientNotFound is returned when the patient is missing or inactive.
	ErrPatientNotFound = errors.New("patient not found or inactive")

	// ErrDoctorNotFound is returned when an explicitly requested doctor
	// does not exist.
	ErrDoctorNotFound = errors.New("doctor not found")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a lifecycle move the state machine forbids.
type InvalidTransitionError struct {
	From   Status
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a queue entry in status %s", e.Action, e.From)
}
