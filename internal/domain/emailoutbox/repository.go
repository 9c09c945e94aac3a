package emailoutbox

import (
	"context"
	"time"
)

// Repository is the outbox's storage contract.
type Repository interface {
	// Enqueue writes a pending row inside the caller's transaction —
	// callers always invoke this from within the same postgres.DB.WithTx
	// as the business event it describes.
	Enqueue(ctx context.Context, in EnqueueInput) (*Entry, error)

	// ClaimPendingBatch selects up to limit oldest pending rows FOR
	// UPDATE SKIP LOCKED, so concurrent dispatch workers don't double-send.
	ClaimPendingBatch(ctx context.Context, limit int) ([]*Entry, error)

	MarkSent(ctx context.Context, id string, sentAt time.Time) error

	// MarkAttemptFailed increments attempts and records lastErr; once
	// attempts reaches max_attempts the row is marked failed instead of
	// left pending for another try.
	MarkAttemptFailed(ctx context.Context, id string, lastErr string) (*Entry, error)
}
