package subscription

import (
	"context"
	"time"
)

// Repository is the subscription engine's storage contract.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Subscription, error)
	FindByID(ctx context.Context, id string) (*Subscription, error)
	FindByFirstPaymentID(ctx context.Context, paymentID string) (*Subscription, error)
	FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*Subscription, error)

	// FindOccupying returns the identity's subscription currently in
	// {active, pending_payment, past_due}, or a not-found error. Used to
	// enforce the one-occupying-subscription rule in checkout.
	FindOccupying(ctx context.Context, identity string) (*Subscription, error)

	// FindPendingPayment returns the identity's pending_payment
	// subscription, if any, so start_checkout can expire it first.
	FindPendingPayment(ctx context.Context, identity string) (*Subscription, error)

	// FindCurrent returns the subscription the identity currently has
	// access through: an occupying one, or a cancelled one
	// whose current_period_end is still in the future — soft cancellation
	// keeps access until the period ends. Drives the status
	// endpoint.
	FindCurrent(ctx context.Context, identity string, asOf time.Time) (*Subscription, error)

	// Update persists the full row — used for every state transition
	// (activate, suspend, cancel, expire) since each touches a different
	// subset of columns and locking a single UPDATE per transition keeps
	// the write path simple and auditable.
	Update(ctx context.Context, s *Subscription) error

	// FindDueForCredit returns active subscriptions whose next_credit_date
	// is at or before asOf, excluding suspended ones, bounded by limit —
	// the due-credit sweep's work queue.
	FindDueForCredit(ctx context.Context, asOf time.Time, limit int) ([]*Subscription, error)

	// FindCancelledPastPeriodEnd returns cancelled subscriptions whose
	// current_period_end has passed, for the expire sweep.
	FindCancelledPastPeriodEnd(ctx context.Context, asOf time.Time, limit int) ([]*Subscription, error)

	// CreateCycle inserts a subscription-cycle row, unique on
	// (subscription_id, period_start). If one already exists, created is
	// false and the existing row returned.
	CreateCycle(ctx context.Context, in CreateCycleInput) (c *Cycle, created bool, err error)

	FindCycle(ctx context.Context, subscriptionID string, periodStart time.Time) (*Cycle, error)

	// FindCycleByProviderPaymentID returns the cycle already granted for
	// a PSP payment, if any — the second idempotency guard for recurring
	// webhooks, next to the (subscription_id, period_start) unique.
	FindCycleByProviderPaymentID(ctx context.Context, subscriptionID, providerPaymentID string) (*Cycle, error)

	// ListCyclesBetween returns cycles for subscriptionID with period_start
	// in [from, to), used by the "monthly grants" testable property and by
	// reconciliation's out-of-order webhook repair.
	ListCyclesBetween(ctx context.Context, subscriptionID string, from, to time.Time) ([]*Cycle, error)
}
