package queue

import (
	"context"

	"github.com/google/uuid"
)

// Tracker answers "where am I in line" queries. Pure reads; a slightly
// stale count is acceptable since this feeds a human-facing estimate, not a
// scheduling decision.
type Tracker struct {
	store  *Store
	config ConfigProvider
}

// NewTracker creates a tracker.
func NewTracker(store *Store, config ConfigProvider) *Tracker {
	return &Tracker{store: store, config: config}
}

// CurrentPosition returns the 1-based rank of the entry among WAITING
// entries for its day (scoped to its doctor when one is assigned). Entries
// ahead that were called or cancelled no longer count.
func (t *Tracker) CurrentPosition(ctx context.Context, entryID uuid.UUID) (int, error) {
	entry, err := t.store.GetByID(ctx, entryID)
	if err != nil {
		return 0, err
	}
	ahead, err := t.store.WaitingAhead(ctx, entry)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// EstimatedWait returns the live wait estimate in minutes.
func (t *Tracker) EstimatedWait(ctx context.Context, entryID uuid.UUID) (int, error) {
	rank, err := t.CurrentPosition(ctx, entryID)
	if err != nil {
		return 0, err
	}
	cfg, err := t.config.Get(ctx)
	if err != nil {
		return 0, err
	}
	return (rank - 1) * cfg.CallIntervalMinutes, nil
}
