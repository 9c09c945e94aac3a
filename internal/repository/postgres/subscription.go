package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/subscription"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: log}
}

const subscriptionColumns = `
	id, identity_id, plan_code, status, provider, provider_subscription_id, provider_customer_id,
	mandate_id, first_payment_id, current_period_start, current_period_end, billing_day,
	next_credit_date, credits_remaining_months, cancelled_at, suspended_at, suspend_reason,
	created_at, updated_at`

func (r *subscriptionRepository) Create(ctx context.Context, in subscription.CreateInput) (*subscription.Subscription, error) {
	q := r.db.Querier(ctx)
	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription)
	}

	row := q.QueryRowContext(ctx, `
		INSERT INTO billing.subscriptions
			(id, identity_id, plan_code, status, provider, provider_customer_id, first_payment_id,
			 current_period_start, current_period_end, billing_day, next_credit_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now(), 1, now(), now(), now())
		RETURNING `+subscriptionColumns,
		id, in.Identity, in.PlanCode, in.Status, in.Provider, in.ProviderCustomerID, in.FirstPaymentID,
	)
	return scanSubscription(row)
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.findOne(ctx, `SELECT `+subscriptionColumns+` FROM billing.subscriptions WHERE id = $1`, id)
}

func (r *subscriptionRepository) FindByFirstPaymentID(ctx context.Context, paymentID string) (*subscription.Subscription, error) {
	return r.findOne(ctx, `SELECT `+subscriptionColumns+` FROM billing.subscriptions WHERE first_payment_id = $1`, paymentID)
}

func (r *subscriptionRepository) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*subscription.Subscription, error) {
	return r.findOne(ctx, `SELECT `+subscriptionColumns+` FROM billing.subscriptions WHERE provider_subscription_id = $1`, providerSubID)
}

func (r *subscriptionRepository) FindOccupying(ctx context.Context, identity string) (*subscription.Subscription, error) {
	return r.findOne(ctx, `
		SELECT `+subscriptionColumns+` FROM billing.subscriptions
		WHERE identity_id = $1 AND status IN ($2, $3, $4)`,
		identity, types.SubscriptionActive, types.SubscriptionPendingPayment, types.SubscriptionPastDue,
	)
}

func (r *subscriptionRepository) FindPendingPayment(ctx context.Context, identity string) (*subscription.Subscription, error) {
	return r.findOne(ctx, `
		SELECT `+subscriptionColumns+` FROM billing.subscriptions
		WHERE identity_id = $1 AND status = $2`,
		identity, types.SubscriptionPendingPayment,
	)
}

func (r *subscriptionRepository) FindCurrent(ctx context.Context, identity string, asOf time.Time) (*subscription.Subscription, error) {
	return r.findOne(ctx, `
		SELECT `+subscriptionColumns+` FROM billing.subscriptions
		WHERE identity_id = $1
		  AND (status IN ($2, $3, $4)
		       OR (status = $5 AND current_period_end > $6))
		ORDER BY created_at DESC
		LIMIT 1`,
		identity, types.SubscriptionActive, types.SubscriptionPendingPayment, types.SubscriptionPastDue,
		types.SubscriptionCancelled, asOf,
	)
}

func (r *subscriptionRepository) findOne(ctx context.Context, query string, args ...any) (*subscription.Subscription, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, query, args...)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "subscription not found")
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return s, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	q := r.db.Querier(ctx)
	_, err := q.ExecContext(ctx, `
		UPDATE billing.subscriptions SET
			status = $1, provider_subscription_id = $2, provider_customer_id = $3, mandate_id = $4,
			current_period_start = $5, current_period_end = $6, billing_day = $7, next_credit_date = $8,
			credits_remaining_months = $9, cancelled_at = $10, suspended_at = $11, suspend_reason = $12,
			updated_at = now()
		WHERE id = $13`,
		s.Status, s.ProviderSubscriptionID, s.ProviderCustomerID, s.MandateID,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.BillingDay, s.NextCreditDate,
		s.CreditsRemainingMonths, s.CancelledAt, s.SuspendedAt, s.SuspendReason, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) FindDueForCredit(ctx context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM billing.subscriptions
		WHERE status = $1 AND suspended_at IS NULL AND next_credit_date <= $2
		ORDER BY next_credit_date ASC
		LIMIT $3`,
		types.SubscriptionActive, asOf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find due-for-credit subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRows(rows)
}

func (r *subscriptionRepository) FindCancelledPastPeriodEnd(ctx context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM billing.subscriptions
		WHERE status = $1 AND current_period_end <= $2
		ORDER BY current_period_end ASC
		LIMIT $3`,
		types.SubscriptionCancelled, asOf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired-cancelled subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRows(rows)
}

func (r *subscriptionRepository) CreateCycle(ctx context.Context, in subscription.CreateCycleInput) (*subscription.Cycle, bool, error) {
	q := r.db.Querier(ctx)
	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscriptionCyc)
	}

	row := q.QueryRowContext(ctx, `
		INSERT INTO billing.subscription_cycles
			(id, subscription_id, period_start, period_end, credits_granted, granted_at, provider_payment_id, payment_status)
		VALUES ($1, $2, $3, $4, $5, now(), $6, $7)
		ON CONFLICT (subscription_id, period_start) DO NOTHING
		RETURNING id, subscription_id, period_start, period_end, credits_granted, granted_at, provider_payment_id, payment_status`,
		id, in.Subscription, in.PeriodStart, in.PeriodEnd, in.CreditsGranted, in.ProviderPaymentID, in.PaymentStatus,
	)
	c, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, findErr := r.FindCycle(ctx, in.Subscription, in.PeriodStart)
			if findErr != nil {
				return nil, false, fmt.Errorf("failed to recover existing cycle after conflict: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert subscription cycle: %w", err)
	}
	return c, true, nil
}

func (r *subscriptionRepository) FindCycle(ctx context.Context, subscriptionID string, periodStart time.Time) (*subscription.Cycle, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, `
		SELECT id, subscription_id, period_start, period_end, credits_granted, granted_at, provider_payment_id, payment_status
		FROM billing.subscription_cycles WHERE subscription_id = $1 AND period_start = $2`,
		subscriptionID, periodStart,
	)
	c, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "CYCLE_NOT_FOUND", "no cycle for that period")
		}
		return nil, fmt.Errorf("failed to find cycle: %w", err)
	}
	return c, nil
}

func (r *subscriptionRepository) FindCycleByProviderPaymentID(ctx context.Context, subscriptionID, providerPaymentID string) (*subscription.Cycle, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, `
		SELECT id, subscription_id, period_start, period_end, credits_granted, granted_at, provider_payment_id, payment_status
		FROM billing.subscription_cycles WHERE subscription_id = $1 AND provider_payment_id = $2`,
		subscriptionID, providerPaymentID,
	)
	c, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "CYCLE_NOT_FOUND", "no cycle for that payment")
		}
		return nil, fmt.Errorf("failed to find cycle by payment: %w", err)
	}
	return c, nil
}

func (r *subscriptionRepository) ListCyclesBetween(ctx context.Context, subscriptionID string, from, to time.Time) ([]*subscription.Cycle, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT id, subscription_id, period_start, period_end, credits_granted, granted_at, provider_payment_id, payment_status
		FROM billing.subscription_cycles
		WHERE subscription_id = $1 AND period_start >= $2 AND period_start < $3
		ORDER BY period_start ASC`,
		subscriptionID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var out []*subscription.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.Identity, &s.PlanCode, &s.Status, &s.Provider, &s.ProviderSubscriptionID, &s.ProviderCustomerID,
		&s.MandateID, &s.FirstPaymentID, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.BillingDay,
		&s.NextCreditDate, &s.CreditsRemainingMonths, &s.CancelledAt, &s.SuspendedAt, &s.SuspendReason,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSubscriptionRows(rows *sql.Rows) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanCycle(row rowScanner) (*subscription.Cycle, error) {
	var c subscription.Cycle
	err := row.Scan(&c.ID, &c.Subscription, &c.PeriodStart, &c.PeriodEnd, &c.CreditsGranted, &c.GrantedAt, &c.ProviderPaymentID, &c.PaymentStatus)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
