package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/purchase"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type purchaseRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPurchaseRepository(db *postgres.DB, log *logger.Logger) purchase.Repository {
	return &purchaseRepository{db: db, logger: log}
}

// Create is the first half of the ingestion double-guard: it
// short-circuits duplicate webhooks via ON CONFLICT DO NOTHING before any
// ledger write is attempted.
func (r *purchaseRepository) Create(ctx context.Context, in purchase.CreateInput) (*purchase.Purchase, bool, error) {
	q := r.db.Querier(ctx)
	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixPurchase)
	}

	row := q.QueryRowContext(ctx, `
		INSERT INTO billing.purchases
			(id, identity_id, plan_code, provider, provider_payment_id, amount_money, currency,
			 credits_granted, credit_class, status, email_status, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (provider, provider_payment_id) DO NOTHING
		RETURNING id, identity_id, plan_code, provider, provider_payment_id, amount_money, currency,
		          credits_granted, credit_class, status, email_status, paid_at, created_at, updated_at`,
		id, in.Identity, in.PlanCode, in.Provider, in.ProviderPaymentID, in.AmountMoney, in.Currency,
		in.CreditsGranted, in.CreditClass, types.PurchaseStatusCompleted, types.EmailOutboxPending, in.PaidAt,
	)

	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, findErr := r.FindByProviderPaymentID(ctx, in.Provider, in.ProviderPaymentID)
			if findErr != nil {
				return nil, false, fmt.Errorf("failed to recover existing purchase after conflict: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert purchase: %w", err)
	}
	return p, true, nil
}

func (r *purchaseRepository) FindByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*purchase.Purchase, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, `
		SELECT id, identity_id, plan_code, provider, provider_payment_id, amount_money, currency,
		       credits_granted, credit_class, status, email_status, paid_at, created_at, updated_at
		FROM billing.purchases WHERE provider = $1 AND provider_payment_id = $2`,
		provider, providerPaymentID,
	)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "PURCHASE_NOT_FOUND", "no purchase for "+provider+"/"+providerPaymentID)
		}
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return p, nil
}

func (r *purchaseRepository) FindByID(ctx context.Context, id string) (*purchase.Purchase, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, `
		SELECT id, identity_id, plan_code, provider, provider_payment_id, amount_money, currency,
		       credits_granted, credit_class, status, email_status, paid_at, created_at, updated_at
		FROM billing.purchases WHERE id = $1`, id,
	)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "PURCHASE_NOT_FOUND", "purchase not found: "+id)
		}
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return p, nil
}

func (r *purchaseRepository) UpdateStatus(ctx context.Context, id string, status types.PurchaseStatus) error {
	q := r.db.Querier(ctx)
	_, err := q.ExecContext(ctx, `UPDATE billing.purchases SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update purchase status: %w", err)
	}
	return nil
}

func (r *purchaseRepository) UpdateEmailStatus(ctx context.Context, id string, status types.EmailOutboxStatus) error {
	q := r.db.Querier(ctx)
	_, err := q.ExecContext(ctx, `UPDATE billing.purchases SET email_status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update purchase email status: %w", err)
	}
	return nil
}

func (r *purchaseRepository) ListCompletedSince(ctx context.Context, since time.Time) ([]*purchase.Purchase, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT id, identity_id, plan_code, provider, provider_payment_id, amount_money, currency,
		       credits_granted, credit_class, status, email_status, paid_at, created_at, updated_at
		FROM billing.purchases WHERE status = $1 AND paid_at >= $2 ORDER BY paid_at ASC`,
		types.PurchaseStatusCompleted, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed purchases: %w", err)
	}
	defer rows.Close()
	return scanPurchaseRows(rows)
}

func (r *purchaseRepository) ListMissingLedgerEntry(ctx context.Context, limit int) ([]*purchase.Purchase, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.identity_id, p.plan_code, p.provider, p.provider_payment_id, p.amount_money, p.currency,
		       p.credits_granted, p.credit_class, p.status, p.email_status, p.paid_at, p.created_at, p.updated_at
		FROM billing.purchases p
		LEFT JOIN billing.ledger_entries l
		       ON l.ref_type = 'purchase' AND l.ref_id = p.id AND l.entry_type = 'purchase_credit'
		WHERE p.status = $1 AND l.id IS NULL
		ORDER BY p.created_at ASC
		LIMIT $2`,
		types.PurchaseStatusCompleted, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases missing ledger: %w", err)
	}
	defer rows.Close()
	return scanPurchaseRows(rows)
}

func scanPurchase(row rowScanner) (*purchase.Purchase, error) {
	var p purchase.Purchase
	err := row.Scan(
		&p.ID, &p.Identity, &p.PlanCode, &p.Provider, &p.ProviderPaymentID, &p.AmountMoney, &p.Currency,
		&p.CreditsGranted, &p.CreditClass, &p.Status, &p.EmailStatus, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPurchaseRows(rows *sql.Rows) ([]*purchase.Purchase, error) {
	var out []*purchase.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
