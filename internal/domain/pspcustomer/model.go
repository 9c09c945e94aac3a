// Package pspcustomer memoises the identity-to-PSP-customer mapping so
// GetOrCreateCustomer doesn't create a duplicate PSP customer on retry.
package pspcustomer

import (
	"context"
	"time"
)

// Customer links one identity to one PSP-side customer record.
type Customer struct {
	IdentityID string    `db:"identity_id"`
	Provider   string    `db:"provider"`
	CustomerID string    `db:"customer_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Repository is the memoisation table's storage contract.
type Repository interface {
	Get(ctx context.Context, identityID, provider string) (*Customer, error)

	// Upsert inserts the mapping if absent; on conflict it leaves the
	// existing row untouched and returns it, so concurrent checkouts for
	// the same identity converge on a single PSP customer id.
	Upsert(ctx context.Context, identityID, provider, customerID string) (*Customer, error)
}
