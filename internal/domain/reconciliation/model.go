// Package reconciliation models the audit trail of the detection-and-
// repair sweep: runs, individual fixes, and wallet-cache
// repairs.
package reconciliation

import "time"

// Run is one sweep execution (detect-only or detect-and-repair).
type Run struct {
	ID          string     `db:"id"`
	Mode        string     `db:"mode"` // "detect" | "repair"
	StartedAt   time.Time  `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	ChecksRun   int        `db:"checks_run"`
	FixesApplied int       `db:"fixes_applied"`
	Critical    int        `db:"critical_findings"`
}

// Fix is one repair or detection applied during a run. The unique index
// on (provider, payment_id, fix_type) prevents a re-run from recording —
// or re-applying — the same fix twice.
type Fix struct {
	ID          string        `db:"id"`
	RunID       string        `db:"run_id"`
	FixType     string        `db:"fix_type"`
	Provider    string        `db:"provider"`
	PaymentID   string        `db:"payment_id"`
	Identity    string        `db:"identity_id"`
	Detail      string        `db:"detail"`
	Applied     bool          `db:"applied"`
	CreatedAt   time.Time     `db:"created_at"`
}

// WalletRepair audits every correction applied to re-align a cached
// wallet balance with its ledger sum.
type WalletRepair struct {
	ID         string    `db:"id"`
	Identity   string    `db:"identity_id"`
	Class      string    `db:"credit_class"`
	OldBalance int64     `db:"old_balance"`
	NewBalance int64     `db:"new_balance"`
	Drift      int64     `db:"drift"`
	Reason     string    `db:"reason"`
	Trigger    string    `db:"trigger"`
	CreatedAt  time.Time `db:"created_at"`
}

// FixInput is the argument set for Repository.RecordFix.
type FixInput struct {
	ID        string
	RunID     string
	FixType   string
	Provider  string
	PaymentID string
	Identity  string
	Detail    string
	Applied   bool
}

// WalletRepairInput is the argument set for Repository.RecordWalletRepair.
type WalletRepairInput struct {
	ID         string
	Identity   string
	Class      string
	OldBalance int64
	NewBalance int64
	Reason     string
	Trigger    string
}
