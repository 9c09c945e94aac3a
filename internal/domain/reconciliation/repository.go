package reconciliation

import (
	"context"
	"time"
)

// Repository is the reconciliation loop's audit storage contract.
type Repository interface {
	CreateRun(ctx context.Context, mode string, startedAt time.Time) (*Run, error)
	CompleteRun(ctx context.Context, runID string, finishedAt time.Time, checksRun, fixesApplied, critical int) error

	// RecordFix inserts a fix row guarded by the unique
	// (provider, payment_id, fix_type) index. If the fix was already
	// recorded, recorded is false and no duplicate repair should be
	// re-applied by the caller.
	RecordFix(ctx context.Context, in FixInput) (recorded bool, err error)

	RecordWalletRepair(ctx context.Context, in WalletRepairInput) error
}
