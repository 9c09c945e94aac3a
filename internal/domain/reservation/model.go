// Package reservation models credit holds placed against in-flight
// jobs. A reservation reduces available credits without debiting the
// ledger; it is converted to a debit on finalize, or discarded on
// release.
package reservation

import (
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// Reservation is one hold. Status follows the absorbing transition graph
// held->finalized, held->released; both terminals are absorbing.
type Reservation struct {
	ID          string                  `db:"id"`
	Identity    string                  `db:"identity_id"`
	ActionCode  string                  `db:"action_code"`
	Cost        int64                   `db:"cost"`
	Class       types.CreditClass       `db:"credit_class"`
	Status      types.ReservationStatus `db:"status"`
	JobRef      string                  `db:"job_ref"`
	CreatedAt   time.Time               `db:"created_at"`
	ExpiresAt   time.Time               `db:"expires_at"`
	CapturedAt  *time.Time              `db:"captured_at"`
	ReleasedAt  *time.Time              `db:"released_at"`
	Meta        types.JSONMap           `db:"meta"`
}

// IsActive reports whether this reservation still holds credits: held and
// not yet past its expiry. Expired-but-not-yet-swept holds are NOT active
// for the purposes of a fresh reserve's available-balance check.
func (r *Reservation) IsActive(now time.Time) bool {
	return r.Status == types.ReservationHeld && r.ExpiresAt.After(now)
}

// CreateInput is the argument set for Repository.Create.
type CreateInput struct {
	Identity   string
	ActionCode string
	Cost       int64
	Class      types.CreditClass
	JobRef     string
	ExpiresAt  time.Time
	Meta       types.JSONMap
}
