package events

import "time"

// Event types carried through the outbox.
const (
	TypeQueueAssigned  = "queue.assigned.v1"
	TypeQueueCalled    = "queue.called.v1"
	TypeQueueCompleted = "queue.completed.v1"
	TypeQueueCancelled = "queue.cancelled.v1"
)

type QueueAssignedV1 struct {
	EventID              string    `json:"event_id"`
	EntryID              string    `json:"entry_id"`
	PatientID            string    `json:"patient_id"`
	QueueCode            string    `json:"queue_code"`
	Position             int       `json:"position"`
	QueueDate            string    `json:"queue_date"`
	QueueType            string    `json:"queue_type"`
	DoctorID             string    `json:"doctor_id,omitempty"`
	DoctorName           string    `json:"doctor_name,omitempty"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
	OccurredAt           time.Time `json:"occurred_at"`
}

type QueueCalledV1 struct {
	EventID    string    `json:"event_id"`
	EntryID    string    `json:"entry_id"`
	PatientID  string    `json:"patient_id"`
	QueueCode  string    `json:"queue_code"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type QueueCompletedV1 struct {
	EventID    string    `json:"event_id"`
	EntryID    string    `json:"entry_id"`
	PatientID  string    `json:"patient_id"`
	QueueCode  string    `json:"queue_code"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type QueueCancelledV1 struct {
	EventID    string    `json:"event_id"`
	EntryID    string    `json:"entry_id"`
	PatientID  string    `json:"patient_id"`
	QueueCode  string    `json:"queue_code"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
