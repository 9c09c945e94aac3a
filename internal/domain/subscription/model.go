// Package subscription models the recurring-plan state machine, its
// period calculator, and the monthly cycle grants.
package subscription

import (
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// Subscription is one recurring plan enrolment. At most one subscription
// per identity may be in an occupying status at a time.
type Subscription struct {
	ID                      string                    `db:"id"`
	Identity                string                    `db:"identity_id"`
	PlanCode                string                    `db:"plan_code"`
	Status                  types.SubscriptionStatus  `db:"status"`
	Provider                string                    `db:"provider"`
	ProviderSubscriptionID  *string                   `db:"provider_subscription_id"`
	ProviderCustomerID      *string                   `db:"provider_customer_id"`
	MandateID               *string                   `db:"mandate_id"`
	FirstPaymentID          *string                   `db:"first_payment_id"`
	CurrentPeriodStart      time.Time                 `db:"current_period_start"`
	CurrentPeriodEnd        time.Time                 `db:"current_period_end"`
	BillingDay              int                       `db:"billing_day"`
	NextCreditDate          time.Time                 `db:"next_credit_date"`
	CreditsRemainingMonths  *int                      `db:"credits_remaining_months"`
	CancelledAt             *time.Time                `db:"cancelled_at"`
	SuspendedAt             *time.Time                `db:"suspended_at"`
	SuspendReason           *string                   `db:"suspend_reason"`
	CreatedAt               time.Time                 `db:"created_at"`
	UpdatedAt               time.Time                 `db:"updated_at"`
}

// Cycle is one granted month, unique per (subscription, period_start).
type Cycle struct {
	ID                string     `db:"id"`
	Subscription      string     `db:"subscription_id"`
	PeriodStart       time.Time  `db:"period_start"`
	PeriodEnd         time.Time  `db:"period_end"`
	CreditsGranted    int64      `db:"credits_granted"`
	GrantedAt         time.Time  `db:"granted_at"`
	ProviderPaymentID *string    `db:"provider_payment_id"`
	PaymentStatus     string     `db:"payment_status"`
}

// CreateInput is the argument set for Repository.Create.
type CreateInput struct {
	ID                 string
	Identity           string
	PlanCode           string
	Status             types.SubscriptionStatus
	Provider           string
	FirstPaymentID     *string
	ProviderCustomerID *string
}

// CreateCycleInput is the argument set for Repository.CreateCycle.
type CreateCycleInput struct {
	ID                string
	Subscription      string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CreditsGranted    int64
	ProviderPaymentID *string
	PaymentStatus     string
}
