package attempt

import (
	"context"
	"encoding/json"
	"time"
)

// Store persists attempts. Mutations are single conditional statements so
// that concurrent writers for the same attempt interleave safely: creation
// relies on the (user_id, instrument_id) uniqueness constraint, shown
// recording is insert-if-absent, answer recording is a keyed upsert, and the
// status flip is guarded on in_progress.
type Store interface {
	Get(ctx context.Context, userID, instrumentID string) (Attempt, error)

	// Create inserts a new attempt. ErrDuplicateAttempt when one already
	// exists for (user_id, instrument_id).
	Create(ctx context.Context, a Attempt) error

	// InsertShown creates the response entry for itemID with shown_at set,
	// unless an entry already exists. Reports whether a row was written.
	InsertShown(ctx context.Context, attemptID, itemID string, at time.Time) (bool, error)

	// UpsertAnswer sets value and answered_at on the entry for itemID,
	// creating it (shown_at = at) when missing. Last write wins while the
	// attempt is in_progress; ErrAttemptCompleted once it is not.
	UpsertAnswer(ctx context.Context, attemptID, itemID string, value json.RawMessage, at time.Time) error

	// MarkCompleted flips status to completed iff it is still in_progress.
	// Reports whether this call performed the transition.
	MarkCompleted(ctx context.Context, attemptID string, at time.Time) (bool, error)
}
