// Package stripe is the Stripe-backed implementation of
// internal/psp.Adapter. The service is single-tenant, so the adapter is
// constructed directly from config.Stripe rather than a per-tenant
// credential store.
package stripe

import (
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/pspcustomer"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// Adapter implements psp.Adapter against the Stripe API.
type Adapter struct {
	client       *stripe.Client
	cfg          config.StripeConfig
	customerRepo pspcustomer.Repository
	logger       *logger.Logger
}

const providerName = "stripe"

// NewAdapter builds a Stripe-backed psp.Adapter. customerRepo memoises the
// identity-to-Stripe-customer mapping.
func NewAdapter(cfg config.StripeConfig, customerRepo pspcustomer.Repository, log *logger.Logger) *Adapter {
	return &Adapter{
		client:       stripe.NewClient(cfg.SecretKey, nil),
		cfg:          cfg,
		customerRepo: customerRepo,
		logger:       log,
	}
}
