package stripe

import (
	"context"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/stripe/stripe-go/v82"
)

// GetOrCreateCustomer resolves identityID to a Stripe customer id, creating
// one on first use and memoising it in psp_customers so a retry never
// creates a second Stripe-side customer for the same identity.
func (a *Adapter) GetOrCreateCustomer(ctx context.Context, identityID, email string) (string, error) {
	existing, err := a.customerRepo.Get(ctx, identityID, providerName)
	if err == nil {
		return existing.CustomerID, nil
	}
	if !ierr.IsNotFound(err) {
		return "", err
	}

	params := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
	}
	params.AddMetadata("identity_id", identityID)

	created, err := a.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("could not create payment provider customer").
			Mark(ierr.ErrPspCreate)
	}

	row, err := a.customerRepo.Upsert(ctx, identityID, providerName, created.ID)
	if err != nil {
		return "", err
	}
	return row.CustomerID, nil
}
