package service

import (
	"context"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/subscription"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/email"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/pricing"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CheckoutResult is start_checkout's return shape.
type CheckoutResult struct {
	Subscription *subscription.Subscription
	CheckoutURL  string
}

// SubscriptionService runs the recurring-plan state machine.
type SubscriptionService interface {
	StartCheckout(ctx context.Context, identity, planCode, email string) (*CheckoutResult, error)

	// IngestPayment is the webhook entry point for subscription_first and
	// subscription_recurring payment types.
	IngestPayment(ctx context.Context, paymentID string) error

	Cancel(ctx context.Context, subscriptionID string) (*subscription.Subscription, error)

	// CurrentForIdentity returns the subscription the identity currently
	// has access through: occupying, or cancelled with time left on the
	// paid period.
	CurrentForIdentity(ctx context.Context, identity string) (*subscription.Subscription, error)

	// DueCreditSweep grants cycles for every active subscription whose
	// next_credit_date is due, bounded by limit. Returns the number
	// granted.
	DueCreditSweep(ctx context.Context, limit int) (int, error)

	// ExpireSweep transitions cancelled subscriptions past their
	// current_period_end to expired, bounded by limit.
	ExpireSweep(ctx context.Context, limit int) (int, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func cadenceInterval(cadence types.BillingCadence) string {
	if cadence == types.BillingCadenceYearly {
		return "year"
	}
	return "month"
}

// StartCheckout expires any prior pending checkout, enforces the
// one-occupying-subscription rule, creates the mandate-establishing
// first payment on the PSP, and records the pending subscription.
func (s *subscriptionService) StartCheckout(ctx context.Context, identity, planCode, customerEmail string) (*CheckoutResult, error) {
	plan, err := pricing.SubscriptionPlanByCode(planCode)
	if err != nil {
		return nil, err
	}

	var result *CheckoutResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if pending, findErr := s.SubscriptionRepo.FindPendingPayment(ctx, identity); findErr == nil {
			pending.Status = types.SubscriptionExpired
			if updErr := s.SubscriptionRepo.Update(ctx, pending); updErr != nil {
				return updErr
			}
		} else if !ierr.IsNotFound(findErr) {
			return findErr
		}

		if _, findErr := s.SubscriptionRepo.FindOccupying(ctx, identity); findErr == nil {
			return ierr.NewError("already subscribed").
				WithHint("this identity already has an active subscription").
				Mark(ierr.ErrAlreadySubscribed)
		} else if !ierr.IsNotFound(findErr) {
			return findErr
		}

		customerID, custErr := s.PSP.GetOrCreateCustomer(ctx, identity, customerEmail)
		if custErr != nil {
			return custErr
		}

		amount := decimal.New(plan.PriceCents, -2)
		checkout, payErr := s.PSP.CreateFirstSequencePayment(ctx, customerID,
			amount, "gbp",
			s.Config.Stripe.RedirectURLBase, s.Config.Stripe.WebhookURLBase,
			map[string]string{
				"identity_id": identity,
				"plan_code":   planCode,
				"email":       customerEmail,
			})
		if payErr != nil {
			return payErr
		}

		created, createErr := s.SubscriptionRepo.Create(ctx, subscription.CreateInput{
			ID:                 types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscription),
			Identity:           identity,
			PlanCode:           planCode,
			Status:             types.SubscriptionPendingPayment,
			Provider:           "stripe",
			FirstPaymentID:     lo.ToPtr(checkout.PaymentID),
			ProviderCustomerID: lo.ToPtr(customerID),
		})
		if createErr != nil {
			return createErr
		}

		result = &CheckoutResult{Subscription: created, CheckoutURL: checkout.CheckoutURL}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *subscriptionService) IngestPayment(ctx context.Context, paymentID string) error {
	payment, err := s.PSP.FetchPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	switch payment.Type {
	case psp.PaymentTypeSubscriptionFirst:
		if payment.Status != psp.PaymentPaid {
			return nil
		}
		return s.handleFirstPaymentPaid(ctx, payment)
	case psp.PaymentTypeSubscriptionRecurring:
		switch payment.Status {
		case psp.PaymentPaid:
			return s.handleRecurringPaymentPaid(ctx, payment)
		case psp.PaymentRefunded, psp.PaymentChargedBack:
			return s.suspendForRevocation(ctx, payment)
		}
		return nil
	default:
		return nil
	}
}

// handleFirstPaymentPaid activates a pending subscription once its
// mandate-establishing payment is paid, creates the recurring
// subscription on the PSP, and grants the first monthly cycle.
func (s *subscriptionService) handleFirstPaymentPaid(ctx context.Context, payment *psp.Payment) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.SubscriptionRepo.FindByFirstPaymentID(ctx, payment.ID)
		if err != nil {
			return err
		}
		if sub.Status != types.SubscriptionPendingPayment {
			// Replayed webhook; already activated.
			return nil
		}

		plan, err := pricing.SubscriptionPlanByCode(sub.PlanCode)
		if err != nil {
			return err
		}

		interval := cadenceInterval(plan.Cadence)
		amount := decimal.New(plan.PriceCents, -2)
		providerSubID, err := s.PSP.CreateSubscription(ctx, *sub.ProviderCustomerID, payment.MandateID, interval,
			amount, "gbp", s.Config.Stripe.WebhookURLBase,
			map[string]string{"identity_id": sub.Identity, "plan_code": sub.PlanCode})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		periodEnd := now.AddDate(0, 1, 0)
		if plan.Cadence == types.BillingCadenceYearly {
			periodEnd = now.AddDate(1, 0, 0)
		}

		billingDay := now.Day()

		sub.Status = types.SubscriptionActive
		sub.ProviderSubscriptionID = &providerSubID
		sub.MandateID = lo.ToPtr(payment.MandateID)
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = periodEnd
		sub.BillingDay = billingDay
		sub.NextCreditDate = nextCreditDate(now, billingDay)
		if plan.Cadence == types.BillingCadenceYearly {
			sub.CreditsRemainingMonths = lo.ToPtr(12)
		}

		if updErr := s.SubscriptionRepo.Update(ctx, sub); updErr != nil {
			return updErr
		}

		// The first cycle's boundaries use the canonical billing-day key,
		// so a recurring payment or due sweep landing in the same month
		// dedupes against it.
		return s.grantCycle(ctx, sub, periodStartFor(now, billingDay), sub.NextCreditDate, &payment.ID, payment.Metadata["email"])
	})
}

// handleRecurringPaymentPaid grants the monthly cycle a recurring PSP
// payment funds, resolving the cycle from the paid timestamp.
func (s *subscriptionService) handleRecurringPaymentPaid(ctx context.Context, payment *psp.Payment) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.SubscriptionRepo.FindByProviderSubscriptionID(ctx, payment.SubscriptionID)
		if err != nil {
			return err
		}

		// Second idempotency guard alongside the (subscription,
		// period_start) unique: a replayed webhook for an already-granted
		// payment short-circuits here even if the computed period key were
		// ever to drift.
		if _, findErr := s.SubscriptionRepo.FindCycleByProviderPaymentID(ctx, sub.ID, payment.ID); findErr == nil {
			return nil
		} else if !ierr.IsNotFound(findErr) {
			return findErr
		}

		paidAt := time.Now().UTC()
		if payment.PaidAt != nil {
			paidAt = *payment.PaidAt
		}
		// The period calculator places the payment in its monthly cycle
		// from the paid timestamp, so out-of-order webhooks each land in
		// their own correct month.
		periodStart := periodStartFor(paidAt, sub.BillingDay)
		periodEnd := nextCreditDate(periodStart, sub.BillingDay)

		plan, err := pricing.SubscriptionPlanByCode(sub.PlanCode)
		if err != nil {
			return err
		}
		if plan.Cadence == types.BillingCadenceYearly {
			if sub.CreditsRemainingMonths != nil && *sub.CreditsRemainingMonths <= 0 {
				sub.CreditsRemainingMonths = lo.ToPtr(12)
				if updErr := s.SubscriptionRepo.Update(ctx, sub); updErr != nil {
					return updErr
				}
			}
		}

		if sub.Status == types.SubscriptionPastDue {
			sub.Status = types.SubscriptionActive
			if updErr := s.SubscriptionRepo.Update(ctx, sub); updErr != nil {
				return updErr
			}
		}

		return s.grantCycle(ctx, sub, periodStart, periodEnd, &payment.ID, payment.Metadata["email"])
	})
}

// grantCycle inserts the cycle row, appends the credit grant, advances
// the credit cursor, and queues the delivery email — called from within
// the caller's transaction.
func (s *subscriptionService) grantCycle(ctx context.Context, sub *subscription.Subscription, periodStart, periodEnd time.Time, paymentID *string, customerEmail string) error {
	plan, err := pricing.SubscriptionPlanByCode(sub.PlanCode)
	if err != nil {
		return err
	}

	// A subscriber's first grant may predate any purchase, so the wallet
	// row may not exist yet.
	if _, err := s.WalletRepo.EnsureExists(ctx, sub.Identity); err != nil {
		return err
	}

	cycle, created, err := s.SubscriptionRepo.CreateCycle(ctx, subscription.CreateCycleInput{
		ID:                types.GenerateUUIDWithPrefix(types.UUIDPrefixSubscriptionCyc),
		Subscription:      sub.ID,
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		CreditsGranted:    plan.CreditsPerMonth,
		ProviderPaymentID: paymentID,
		PaymentStatus:     "paid",
	})
	if err != nil {
		return err
	}

	next := nextCreditDate(periodStart, sub.BillingDay)
	if !created {
		// Replayed grant: the cycle row already exists, but the sweep
		// cursor must still move past it or the due-credit sweep would
		// re-select this subscription forever.
		if next.After(sub.NextCreditDate) {
			sub.NextCreditDate = next
			if updErr := s.SubscriptionRepo.Update(ctx, sub); updErr != nil {
				return updErr
			}
		}
		return nil
	}

	meta := types.JSONMap{
		"subscription_id": sub.ID,
		"plan_code":        sub.PlanCode,
		"period_start":     periodStart.Format(time.RFC3339),
		"period_end":       periodEnd.Format(time.RFC3339),
	}
	if paymentID != nil {
		meta["payment_id"] = *paymentID
	}

	_, err = s.LedgerRepo.Append(ctx, ledger.AppendInput{
		Identity:  sub.Identity,
		EntryType: types.LedgerEntrySubscriptionGrant,
		Delta:     plan.CreditsPerMonth,
		Class:     types.CreditClassGeneral,
		RefType:   "subscription_cycle",
		RefID:     cycle.ID,
		Meta:      meta,
	})
	if ierr.IsDuplicateRef(err) {
		return nil
	}
	if err != nil {
		return err
	}

	// Advance forward only: an out-of-order webhook for an earlier month
	// must not drag the cursor back over cycles already granted.
	if next.After(sub.NextCreditDate) {
		sub.NextCreditDate = next
	}
	if plan.Cadence == types.BillingCadenceYearly && sub.CreditsRemainingMonths != nil {
		remaining := *sub.CreditsRemainingMonths - 1
		if remaining < 0 {
			remaining = 0
		}
		sub.CreditsRemainingMonths = lo.ToPtr(remaining)
	}
	if err := s.SubscriptionRepo.Update(ctx, sub); err != nil {
		return err
	}

	if customerEmail != "" {
		if _, err := s.EmailOutboxRepo.Enqueue(ctx, emailoutbox.EnqueueInput{
			ID:          types.GenerateUUIDWithPrefix(types.UUIDPrefixEmailOutbox),
			To:          customerEmail,
			Template:    email.TemplateSubscriptionCreditsDelivered,
			Payload:     types.JSONMap{"plan_code": sub.PlanCode, "credits": plan.CreditsPerMonth, "subscription_id": sub.ID},
			Identity:    &sub.Identity,
			MaxAttempts: 5,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *subscriptionService) suspendForRevocation(ctx context.Context, payment *psp.Payment) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.SubscriptionRepo.FindByProviderSubscriptionID(ctx, payment.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == types.SubscriptionSuspended {
			return nil
		}

		now := time.Now().UTC()
		reason := "revoked: " + string(payment.Status)
		sub.Status = types.SubscriptionSuspended
		sub.SuspendedAt = &now
		sub.SuspendReason = &reason

		if _, err := s.EmailOutboxRepo.Enqueue(ctx, emailoutbox.EnqueueInput{
			ID:           types.GenerateUUIDWithPrefix(types.UUIDPrefixEmailOutbox),
			To:           s.Config.Email.AdminAlertAddress,
			Template:     email.TemplateAdminAlert,
			Payload:      types.JSONMap{"subscription_id": sub.ID, "identity_id": sub.Identity, "reason": reason},
			Identity:     &sub.Identity,
			MaxAttempts:  5,
			IsAdminAlert: true,
		}); err != nil {
			return err
		}

		return s.SubscriptionRepo.Update(ctx, sub)
	})
}

func (s *subscriptionService) CurrentForIdentity(ctx context.Context, identity string) (*subscription.Subscription, error) {
	return s.SubscriptionRepo.FindCurrent(ctx, identity, time.Now().UTC())
}

func (s *subscriptionService) Cancel(ctx context.Context, subscriptionID string) (*subscription.Subscription, error) {
	var result *subscription.Subscription
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err := s.SubscriptionRepo.FindByID(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.Status == types.SubscriptionCancelled || sub.Status == types.SubscriptionExpired {
			result = sub
			return nil
		}

		if sub.ProviderSubscriptionID != nil {
			if _, err := s.PSP.CancelSubscription(ctx, *sub.ProviderCustomerID, *sub.ProviderSubscriptionID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		sub.Status = types.SubscriptionCancelled
		sub.CancelledAt = &now
		if err := s.SubscriptionRepo.Update(ctx, sub); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DueCreditSweep grants the next cycle for every active subscription
// whose next_credit_date has passed.
func (s *subscriptionService) DueCreditSweep(ctx context.Context, limit int) (int, error) {
	now := time.Now().UTC()
	due, err := s.SubscriptionRepo.FindDueForCredit(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	granted := 0
	for _, sub := range due {
		if sub.SuspendedAt != nil {
			continue
		}
		if sub.CreditsRemainingMonths != nil && *sub.CreditsRemainingMonths <= 0 {
			continue
		}

		periodStart := sub.NextCreditDate
		periodEnd := nextCreditDate(periodStart, sub.BillingDay)

		txErr := s.DB.WithTx(ctx, func(ctx context.Context) error {
			locked, findErr := s.SubscriptionRepo.FindByID(ctx, sub.ID)
			if findErr != nil {
				return findErr
			}
			return s.grantCycle(ctx, locked, periodStart, periodEnd, nil, "")
		})
		if txErr != nil {
			s.Logger.Errorw("due-credit sweep grant failed", "subscription_id", sub.ID, "error", txErr)
			continue
		}
		granted++
	}
	return granted, nil
}

// ExpireSweep moves cancelled subscriptions whose paid period has run
// out to expired.
func (s *subscriptionService) ExpireSweep(ctx context.Context, limit int) (int, error) {
	now := time.Now().UTC()
	cancelled, err := s.SubscriptionRepo.FindCancelledPastPeriodEnd(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range cancelled {
		sub.Status = types.SubscriptionExpired
		if err := s.SubscriptionRepo.Update(ctx, sub); err != nil {
			s.Logger.Errorw("expire sweep update failed", "subscription_id", sub.ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}
