package stripe

import (
	"context"
	"time"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// CreateOneOffPayment maps to a plain Stripe PaymentIntent, unconfirmed —
// the checkout page the HTTP layer serves collects the payment method and
// confirms it client-side.
func (a *Adapter) CreateOneOffPayment(ctx context.Context, amount decimal.Decimal, currency, description, redirectURL, webhookURL string, metadata map[string]string) (*psp.CheckoutResult, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(toCents(amount)),
		Currency:    stripe.String(currency),
		Description: stripe.String(description),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := a.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("could not start payment").
			Mark(ierr.ErrPspCreate)
	}

	return &psp.CheckoutResult{
		PaymentID:   pi.ID,
		CheckoutURL: redirectURL + "?payment_intent_client_secret=" + pi.ClientSecret,
	}, nil
}

// CreateFirstSequencePayment establishes the mandate Mollie calls
// "sequenceType=first" via Stripe's setup_future_usage=off_session, so the
// same PaymentIntent both charges the customer and leaves behind a reusable
// payment method for CreateSubscription.
func (a *Adapter) CreateFirstSequencePayment(ctx context.Context, customerID string, amount decimal.Decimal, currency, redirectURL, webhookURL string, metadata map[string]string) (*psp.CheckoutResult, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:           stripe.Int64(toCents(amount)),
		Currency:         stripe.String(currency),
		Customer:         stripe.String(customerID),
		SetupFutureUsage: stripe.String("off_session"),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("sequence_type", "first")

	pi, err := a.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("could not start subscription payment").
			Mark(ierr.ErrPspCreate)
	}

	return &psp.CheckoutResult{
		PaymentID:   pi.ID,
		CheckoutURL: redirectURL + "?payment_intent_client_secret=" + pi.ClientSecret,
	}, nil
}

// GetValidMandate returns the payment method Stripe attached to the
// customer as its invoice default, used as the Mollie "mandate" equivalent
// for recurring charges.
func (a *Adapter) GetValidMandate(ctx context.Context, customerID string) (string, error) {
	cust, err := a.client.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("could not look up payment provider customer").
			Mark(ierr.ErrPspUnavailable)
	}
	if cust.InvoiceSettings == nil || cust.InvoiceSettings.DefaultPaymentMethod == nil {
		return "", nil
	}
	return cust.InvoiceSettings.DefaultPaymentMethod.ID, nil
}

// FetchPayment reads back the PSP's own view of a payment, never the
// webhook payload, before acting on it.
func (a *Adapter) FetchPayment(ctx context.Context, paymentID string) (*psp.Payment, error) {
	var pi *stripe.PaymentIntent
	err := withReadRetry(ctx, func() error {
		var fetchErr error
		pi, fetchErr = a.client.V1PaymentIntents.Retrieve(ctx, paymentID, nil)
		return fetchErr
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("could not fetch payment status").
			Mark(ierr.ErrPspUnavailable)
	}
	return toPSPPayment(pi), nil
}

// ListPayments is used only by the reconciliation sweep's PSP-comparison
// pass. It asks Stripe for payment intents created at or after since
// (CreatedRange) and pages through every result.
func (a *Adapter) ListPayments(ctx context.Context, since time.Time) ([]*psp.Payment, error) {
	params := &stripe.PaymentIntentListParams{}
	params.CreatedRange = &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()}
	params.Limit = stripe.Int64(100)

	var out []*psp.Payment
	err := withReadRetry(ctx, func() error {
		out = out[:0]
		iter := a.client.V1PaymentIntents.List(ctx, params)
		for pi, err := range iter {
			if err != nil {
				return err
			}
			out = append(out, toPSPPayment(pi))
		}
		return nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("could not list payments from payment provider").
			Mark(ierr.ErrPspUnavailable)
	}
	return out, nil
}

func toPSPPayment(pi *stripe.PaymentIntent) *psp.Payment {
	p := &psp.Payment{
		ID:       pi.ID,
		Status:   mapStatus(pi.Status),
		Amount:   fromCents(pi.Amount),
		Currency: string(pi.Currency),
		Metadata: pi.Metadata,
	}
	if pi.Customer != nil {
		p.CustomerID = pi.Customer.ID
	}
	if pi.Metadata["sequence_type"] == "first" {
		p.SequenceType = "first"
		p.Type = psp.PaymentTypeSubscriptionFirst
	} else if pi.Metadata["sequence_type"] == "recurring" {
		p.SequenceType = "recurring"
		p.Type = psp.PaymentTypeSubscriptionRecurring
	} else {
		p.Type = psp.PaymentTypeOneOff
	}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		paidAt := time.Unix(pi.Created, 0).UTC()
		p.PaidAt = &paidAt
	}
	return p
}

func mapStatus(status stripe.PaymentIntentStatus) psp.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return psp.PaymentPaid
	case stripe.PaymentIntentStatusCanceled:
		return psp.PaymentCanceled
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusRequiresConfirmation:
		return psp.PaymentPending
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return psp.PaymentOpen
	default:
		return psp.PaymentFailed
	}
}
