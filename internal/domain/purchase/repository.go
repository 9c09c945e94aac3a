package purchase

import (
	"context"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// Repository is the purchase ingestor's storage contract.
type Repository interface {
	// Create inserts a completed purchase row, unique on
	// (provider, provider_payment_id). If a row already exists, created
	// is false and the existing row is returned — the caller treats this
	// as a replayed webhook and must not write a second ledger entry.
	Create(ctx context.Context, in CreateInput) (p *Purchase, created bool, err error)

	FindByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*Purchase, error)

	FindByID(ctx context.Context, id string) (*Purchase, error)

	UpdateStatus(ctx context.Context, id string, status types.PurchaseStatus) error

	UpdateEmailStatus(ctx context.Context, id string, status types.EmailOutboxStatus) error

	// ListCompletedSince lists completed purchases paid on/after since, for
	// the reconciliation loop's PSP-comparison pass.
	ListCompletedSince(ctx context.Context, since time.Time) ([]*Purchase, error)

	// ListMissingLedgerEntry returns completed purchases with no matching
	// purchase_credit ledger row, bounded by limit.
	ListMissingLedgerEntry(ctx context.Context, limit int) ([]*Purchase, error)
}
