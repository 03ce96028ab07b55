package board

import (
	"context"
	"encoding/json"

	"github.com/hospitalos/patientflow/internal/events"
	"github.com/hospitalos/patientflow/pkg/logging"
)

// Relay translates queue events from the outbox into board updates. The board
// is best effort: a display that misses an update catches up on the next one,
// so Handle never fails the outbox delivery.
type Relay struct {
	hub    *Hub
	logger *logging.Logger
}

// NewRelay creates a relay feeding the hub.
func NewRelay(hub *Hub, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{hub: hub, logger: logger}
}

// Handle consumes one outbox entry.
func (rl *Relay) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var evt Event

	switch entry.Type {
	case events.TypeQueueAssigned:
		var e events.QueueAssignedV1
		if err := json.Unmarshal(entry.Payload, &e); err != nil {
			rl.logger.Warn("board: undecodable event", "type", entry.Type, "error", err)
			return nil
		}
		evt = Event{Type: entry.Type, QueueCode: e.QueueCode, Position: e.Position, Status: "WAITING", DoctorID: e.DoctorID, Timestamp: e.OccurredAt}

	case events.TypeQueueCalled:
		var e events.QueueCalledV1
		if err := json.Unmarshal(entry.Payload, &e); err != nil {
			rl.logger.Warn("board: undecodable event", "type", entry.Type, "error", err)
			return nil
		}
		evt = Event{Type: entry.Type, QueueCode: e.QueueCode, Status: "CALLED", DoctorID: e.DoctorID, Timestamp: e.OccurredAt}

	case events.TypeQueueCompleted:
		var e events.QueueCompletedV1
		if err := json.Unmarshal(entry.Payload, &e); err != nil {
			rl.logger.Warn("board: undecodable event", "type", entry.Type, "error", err)
			return nil
		}
		evt = Event{Type: entry.Type, QueueCode: e.QueueCode, Status: "COMPLETED", Timestamp: e.OccurredAt}

	case events.TypeQueueCancelled:
		var e events.QueueCancelledV1
		if err := json.Unmarshal(entry.Payload, &e); err != nil {
			rl.logger.Warn("board: undecodable event", "type", entry.Type, "error", err)
			return nil
		}
		evt = Event{Type: entry.Type, QueueCode: e.QueueCode, Status: "CANCELLED", Timestamp: e.OccurredAt}

	default:
		return nil
	}

	rl.hub.Broadcast(evt)
	return nil
}
