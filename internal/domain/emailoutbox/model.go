// Package emailoutbox models the durable email queue written inside the
// same transaction as the business event it describes.
package emailoutbox

import (
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// Entry is one queued email.
type Entry struct {
	ID          string                   `db:"id"`
	To          string                   `db:"to_address"`
	Template    string                   `db:"template"`
	Payload     types.JSONMap            `db:"payload"`
	Status      types.EmailOutboxStatus  `db:"status"`
	Attempts    int                      `db:"attempts"`
	MaxAttempts int                      `db:"max_attempts"`
	LastError   *string                  `db:"last_error"`
	Identity    *string                  `db:"identity_id"`
	Purchase    *string                  `db:"purchase_id"`
	IsAdminAlert bool                    `db:"is_admin_alert"`
	CreatedAt   time.Time                `db:"created_at"`
	SentAt      *time.Time               `db:"sent_at"`
}

// EnqueueInput is the argument set for Repository.Enqueue.
type EnqueueInput struct {
	ID           string
	To           string
	Template     string
	Payload      types.JSONMap
	Identity     *string
	Purchase     *string
	MaxAttempts  int
	IsAdminAlert bool
}
