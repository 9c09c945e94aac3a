// Package jobs is the external generation-job collaborator.
// The core never owns job or asset rows — it references them by id and
// reads status only, except for the placeholder it creates so a
// reservation has something to foreign-key against.
package jobs

import "context"

// Job is the subset of job state the core reads.
type Job struct {
	ID      string
	Status  string
	AssetID string
	Meta    map[string]any
}

// Terminal job statuses the reservation manager and reconciliation loop
// recognise. The generation subsystem may use more granular statuses
// internally; only these three buckets matter to the core.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// IsTerminalFailure reports whether status means the job will never
// produce an asset — used by the reconciliation loop's stale-holds check.
func IsTerminalFailure(status string) bool {
	switch status {
	case StatusFailed, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// IsTerminalSuccess reports whether status means the job completed and
// (should have) produced an asset — used by the missing-history and
// ready-unbilled reconciliation checks.
func IsTerminalSuccess(status string) bool {
	return status == StatusSucceeded
}

// Provider is implemented by the generation subsystem; the core depends
// only on this interface.
type Provider interface {
	// GetJob reads job status and its linked asset, if any. Returns a
	// not-found error if jobID is unknown to the generation subsystem.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// SetJobStatus updates the job row's status field.
	SetJobStatus(ctx context.Context, jobID, status string) error

	// EnsurePlaceholder inserts a queued placeholder row for jobID if one
	// doesn't exist yet, idempotent by jobID.
	EnsurePlaceholder(ctx context.Context, jobID string) error
}
