package stripe

import (
	"context"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// CreateSubscription charges the established mandate on the given
// interval; credits are granted on invoice.payment_paid, not
// here, so the call just needs to exist PSP-side.
func (a *Adapter) CreateSubscription(ctx context.Context, customerID, mandateID, interval string, amount decimal.Decimal, currency, webhookURL string, metadata map[string]string) (string, error) {
	params := &stripe.SubscriptionCreateParams{
		Customer:             stripe.String(customerID),
		DefaultPaymentMethod: stripe.String(mandateID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{
				PriceData: &stripe.SubscriptionCreateItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(toCents(amount)),
					Product:    stripe.String(metadata["plan_code"]),
					Recurring: &stripe.SubscriptionCreateItemPriceDataRecurringParams{
						Interval: stripe.String(interval),
					},
				},
			},
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sub, err := a.client.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("could not create subscription with payment provider").
			Mark(ierr.ErrPspCreate)
	}
	return sub.ID, nil
}

// CancelSubscription cancels the Stripe subscription immediately.
// SubscriptionService.Cancel calls it at the moment the user cancels;
// local access still runs until current_period_end.
func (a *Adapter) CancelSubscription(ctx context.Context, customerID, subscriptionID string) (bool, error) {
	_, err := a.client.V1Subscriptions.Cancel(ctx, subscriptionID, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, ierr.WithError(err).
			WithHint("could not cancel subscription with payment provider").
			Mark(ierr.ErrPspUnavailable)
	}
	return true, nil
}

func isNotFound(err error) bool {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return stripeErr.HTTPStatusCode == 404
	}
	return false
}
