package reservation

import (
	"context"
	"time"
)

// Repository is the reservation manager's storage contract.
// Every method must be called with a transaction already on ctx when it
// participates in a multi-step mutation (postgres.DB.WithTx) — the
// repository itself never opens its own transaction.
type Repository interface {
	// FindActiveHeld returns the held, non-expired reservation for
	// (identity, job_ref, action_code), or a not-found error. Used by
	// reserve's idempotent-return step.
	FindActiveHeld(ctx context.Context, identity, jobRef, actionCode string) (*Reservation, error)

	// LockHeldForClass takes FOR UPDATE on every held, non-expired
	// reservation for (identity, class) and returns them, so the caller
	// can sum their cost under lock before deciding whether to admit a
	// new reservation.
	LockHeldForClass(ctx context.Context, identity string, class string) ([]*Reservation, error)

	// Create inserts a new held reservation.
	Create(ctx context.Context, in CreateInput) (*Reservation, error)

	// LockByID takes FOR UPDATE on a single reservation row, used by
	// finalize and release to serialise on the reservation.
	LockByID(ctx context.Context, id string) (*Reservation, error)

	// MarkFinalized transitions held->finalized, stamping captured_at.
	MarkFinalized(ctx context.Context, id string, capturedAt time.Time) error

	// MarkReleased transitions held->released, stamping released_at and
	// annotating meta with the release reason.
	MarkReleased(ctx context.Context, id string, releasedAt time.Time, reason string) error

	// Reserved sums the cost of every held, non-expired reservation for
	// (identity, class) — the unlocked read used by wallet.reserved.
	Reserved(ctx context.Context, identity string, class string) (int64, error)

	// SweepExpired marks every held reservation whose expires_at is in
	// the past as released with reason "expired", and returns the count.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// FindStaleHeld returns held reservations created before cutoff, used
	// by the reconciliation loop's stale-holds check.
	// The caller filters by linked-job terminal status itself since job
	// state lives outside this repository.
	FindStaleHeld(ctx context.Context, cutoff time.Time, limit int) ([]*Reservation, error)

	// FindFinalizedMissingLedger returns finalized reservations with no
	// matching reservation_finalize ledger entry, bounded by limit. The
	// core has no owned job table to query for unbilled successful jobs
	// directly, so this is the billing-bug signal reconciliation actually
	// checks here: a reservation this core itself marked finalized but
	// never debited.
	FindFinalizedMissingLedger(ctx context.Context, limit int) ([]*Reservation, error)
}
