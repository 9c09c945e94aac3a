// Package psp is the generic PSP boundary. The payment model here
// (sequence types, mandates) follows the Mollie shape; the interface is
// named generically and is satisfied by internal/psp/stripe, which maps
// the mandate/sequenceType model onto Stripe's SetupIntent/PaymentIntent/
// Subscription primitives.
package psp

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus mirrors types.PSPPaymentStatus; kept as a plain string
// here so this package has no dependency on the domain layer.
type PaymentStatus string

const (
	PaymentOpen        PaymentStatus = "open"
	PaymentPending      PaymentStatus = "pending"
	PaymentPaid         PaymentStatus = "paid"
	PaymentFailed       PaymentStatus = "failed"
	PaymentCanceled     PaymentStatus = "canceled"
	PaymentExpired      PaymentStatus = "expired"
	PaymentRefunded     PaymentStatus = "refunded"
	PaymentChargedBack  PaymentStatus = "charged_back"
)

// PaymentType distinguishes a mandate-establishing first payment from a
// recurring subscription payment and a plain one-off purchase.
type PaymentType string

const (
	PaymentTypeOneOff               PaymentType = "one_off"
	PaymentTypeSubscriptionFirst    PaymentType = "subscription_first"
	PaymentTypeSubscriptionRecurring PaymentType = "subscription_recurring"
)

// Payment is the PSP-side payment object the adapter reads back. Metadata
// carries whatever the creator attached (identity_id, plan_code, ...).
type Payment struct {
	ID               string
	Status           PaymentStatus
	Type             PaymentType
	Amount           decimal.Decimal
	Currency         string
	CustomerID       string
	MandateID        string
	SubscriptionID   string
	Metadata         map[string]string
	PaidAt           *time.Time
	SequenceType     string // "first" | "recurring" | ""
}

// CheckoutResult is returned by the two payment-creation calls.
type CheckoutResult struct {
	PaymentID   string
	CheckoutURL string
}

// Adapter is the pure-IO boundary the core depends on. Calls that create
// or change PSP state are never retried here; the reconciliation loop is
// the retry for them. The Stripe implementation retries its two reads,
// FetchPayment and ListPayments, with a short backoff.
type Adapter interface {
	// CreateOneOffPayment starts a single, non-recurring payment.
	CreateOneOffPayment(ctx context.Context, amount decimal.Decimal, currency, description, redirectURL, webhookURL string, metadata map[string]string) (*CheckoutResult, error)

	// CreateFirstSequencePayment starts a mandate-establishing payment
	// (sequenceType=first) for customerID.
	CreateFirstSequencePayment(ctx context.Context, customerID string, amount decimal.Decimal, currency, redirectURL, webhookURL string, metadata map[string]string) (*CheckoutResult, error)

	// GetOrCreateCustomer returns the PSP customer id for identityID,
	// creating one if none exists. Memoised by the caller in psp_customers
	// so retries never create a duplicate PSP-side customer.
	GetOrCreateCustomer(ctx context.Context, identityID, email string) (customerID string, err error)

	// GetValidMandate returns the mandate id usable for future recurring
	// charges against customerID, or "" if none exists.
	GetValidMandate(ctx context.Context, customerID string) (mandateID string, err error)

	// CreateSubscription creates a recurring subscription on the PSP
	// against the established mandate.
	CreateSubscription(ctx context.Context, customerID, mandateID, interval string, amount decimal.Decimal, currency, webhookURL string, metadata map[string]string) (subscriptionID string, err error)

	CancelSubscription(ctx context.Context, customerID, subscriptionID string) (bool, error)

	// FetchPayment reads the PSP's current view of a payment. Called
	// inside the webhook handler, since the webhook's payment id alone is
	// not trusted input.
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)

	// ListPayments lists payments created at or after since, used only
	// by the reconciliation loop's PSP-comparison pass.
	ListPayments(ctx context.Context, since time.Time) ([]*Payment, error)
}
