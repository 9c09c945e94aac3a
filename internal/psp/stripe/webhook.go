package stripe

import (
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyWebhook checks the signature and decodes the envelope. The HTTP
// handler still treats the event as untrusted and re-fetches the payment
// from FetchPayment before acting on it.
func (a *Adapter) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, a.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("invalid webhook signature").
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}
