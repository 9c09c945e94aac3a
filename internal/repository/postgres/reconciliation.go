package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reconciliation"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type reconciliationRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewReconciliationRepository(db *postgres.DB, log *logger.Logger) reconciliation.Repository {
	return &reconciliationRepository{db: db, logger: log}
}

func (r *reconciliationRepository) CreateRun(ctx context.Context, mode string, startedAt time.Time) (*reconciliation.Run, error) {
	q := r.db.Querier(ctx)
	id := types.GenerateUUIDWithPrefix(types.UUIDPrefixReconRun)
	_, err := q.ExecContext(ctx, `
		INSERT INTO billing.reconciliation_runs (id, mode, started_at, checks_run, fixes_applied, critical_findings)
		VALUES ($1, $2, $3, 0, 0, 0)`, id, mode, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciliation run: %w", err)
	}
	return &reconciliation.Run{ID: id, Mode: mode, StartedAt: startedAt}, nil
}

func (r *reconciliationRepository) CompleteRun(ctx context.Context, runID string, finishedAt time.Time, checksRun, fixesApplied, critical int) error {
	q := r.db.Querier(ctx)
	_, err := q.ExecContext(ctx, `
		UPDATE billing.reconciliation_runs
		SET finished_at = $1, checks_run = $2, fixes_applied = $3, critical_findings = $4
		WHERE id = $5`,
		finishedAt, checksRun, fixesApplied, critical, runID)
	if err != nil {
		return fmt.Errorf("failed to complete reconciliation run: %w", err)
	}
	return nil
}

// RecordFix inserts under the unique (provider, payment_id, fix_type)
// index so replaying the same sweep never records — or lets the caller
// re-apply — the same fix twice.
func (r *reconciliationRepository) RecordFix(ctx context.Context, in reconciliation.FixInput) (bool, error) {
	q := r.db.Querier(ctx)
	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixReconFix)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO billing.reconciliation_fixes
			(id, run_id, fix_type, provider, payment_id, identity_id, detail, applied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (provider, payment_id, fix_type) DO NOTHING`,
		id, in.RunID, in.FixType, in.Provider, in.PaymentID, in.Identity, in.Detail, in.Applied,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record reconciliation fix: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reconciliation fix row count: %w", err)
	}
	return n > 0, nil
}

func (r *reconciliationRepository) RecordWalletRepair(ctx context.Context, in reconciliation.WalletRepairInput) error {
	q := r.db.Querier(ctx)
	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixWalletRepair)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO billing.wallet_repairs
			(id, identity_id, credit_class, old_balance, new_balance, drift, reason, trigger, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		id, in.Identity, in.Class, in.OldBalance, in.NewBalance, in.NewBalance-in.OldBalance, in.Reason, in.Trigger,
	)
	if err != nil {
		return fmt.Errorf("failed to record wallet repair: %w", err)
	}
	return nil
}
