package stripe

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withReadRetry wraps the adapter's read-only Stripe calls (FetchPayment,
// ListPayments) in a short exponential backoff. Writes are never retried
// here — the reconciliation loop is the retry for anything that mutates
// state.
func withReadRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
