package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/pspcustomer"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
)

type pspCustomerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPSPCustomerRepository(db *postgres.DB, log *logger.Logger) pspcustomer.Repository {
	return &pspCustomerRepository{db: db, logger: log}
}

func (r *pspCustomerRepository) Get(ctx context.Context, identityID, provider string) (*pspcustomer.Customer, error) {
	q := r.db.Querier(ctx)
	var c pspcustomer.Customer
	err := q.QueryRowContext(ctx, `
		SELECT identity_id, provider, customer_id, created_at
		FROM billing.psp_customers WHERE identity_id = $1 AND provider = $2`,
		identityID, provider,
	).Scan(&c.IdentityID, &c.Provider, &c.CustomerID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "PSP_CUSTOMER_NOT_FOUND", "no psp customer mapping for "+identityID)
		}
		return nil, fmt.Errorf("failed to get psp customer: %w", err)
	}
	return &c, nil
}

// Upsert memoises the identity->PSP-customer mapping so GetOrCreateCustomer
// never creates two PSP customers for the same identity on retry.
func (r *pspCustomerRepository) Upsert(ctx context.Context, identityID, provider, customerID string) (*pspcustomer.Customer, error) {
	q := r.db.Querier(ctx)
	var c pspcustomer.Customer
	err := q.QueryRowContext(ctx, `
		INSERT INTO billing.psp_customers (identity_id, provider, customer_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (identity_id, provider) DO UPDATE SET provider = EXCLUDED.provider
		RETURNING identity_id, provider, customer_id, created_at`,
		identityID, provider, customerID,
	).Scan(&c.IdentityID, &c.Provider, &c.CustomerID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert psp customer: %w", err)
	}
	return &c, nil
}
