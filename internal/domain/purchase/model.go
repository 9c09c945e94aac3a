// Package purchase models one-time credit grants ingested from the PSP.
package purchase

import (
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
	"github.com/shopspring/decimal"
)

// Purchase is one one-time payment. (Provider, ProviderPaymentID) is
// globally unique; a completed purchase has exactly one matching
// purchase_credit ledger entry.
type Purchase struct {
	ID                string               `db:"id"`
	Identity          string               `db:"identity_id"`
	PlanCode          string               `db:"plan_code"`
	Provider          string               `db:"provider"`
	ProviderPaymentID string               `db:"provider_payment_id"`
	AmountMoney       decimal.Decimal      `db:"amount_money"`
	Currency          string               `db:"currency"`
	CreditsGranted    int64                `db:"credits_granted"`
	CreditClass       types.CreditClass    `db:"credit_class"`
	Status            types.PurchaseStatus `db:"status"`
	EmailStatus       types.EmailOutboxStatus `db:"email_status"`
	PaidAt            *time.Time           `db:"paid_at"`
	CreatedAt         time.Time            `db:"created_at"`
	UpdatedAt         time.Time            `db:"updated_at"`
}

// CreateInput is the argument set for Repository.Create.
type CreateInput struct {
	ID                string
	Identity          string
	PlanCode          string
	Provider          string
	ProviderPaymentID string
	AmountMoney       decimal.Decimal
	Currency          string
	CreditsGranted    int64
	CreditClass       types.CreditClass
	PaidAt            time.Time
}
