package service_test

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/subscription"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/testutil"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc service.SubscriptionService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = service.NewSubscriptionService(s.ServiceParams())
}

// seedActiveSubscription plants an already-activated subscription with a
// pinned billing day, bypassing the checkout flow, so period-calculator
// behaviour can be tested against fixed dates.
func (s *SubscriptionServiceSuite) seedActiveSubscription(planCode string, billingDay int, start time.Time, remainingMonths *int) *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Create(s.GetContext(), subscription.CreateInput{
		ID:                 "sub_seeded",
		Identity:           "user_1",
		PlanCode:           planCode,
		Status:             types.SubscriptionActive,
		Provider:           "stripe",
		ProviderCustomerID: lo.ToPtr("cst_seeded"),
	})
	s.Require().NoError(err)

	sub.Status = types.SubscriptionActive
	sub.ProviderSubscriptionID = lo.ToPtr("psub_seeded")
	sub.BillingDay = billingDay
	sub.CurrentPeriodStart = start
	sub.CurrentPeriodEnd = start.AddDate(1, 0, 0)
	sub.NextCreditDate = start
	sub.CreditsRemainingMonths = remainingMonths
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))
	return sub
}

func (s *SubscriptionServiceSuite) checkoutAndPay(planCode string) *subscription.Subscription {
	result, err := s.svc.StartCheckout(s.GetContext(), "user_1", planCode, "sub@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(result.Subscription.FirstPaymentID)

	s.GetCollaborators().PSP.SetPaymentStatus(*result.Subscription.FirstPaymentID, psp.PaymentPaid, time.Now().UTC())
	s.Require().NoError(s.svc.IngestPayment(s.GetContext(), *result.Subscription.FirstPaymentID))

	sub, err := s.GetStores().SubscriptionRepo.FindByID(s.GetContext(), result.Subscription.ID)
	s.Require().NoError(err)
	return sub
}

func (s *SubscriptionServiceSuite) TestCheckoutCreatesPendingPayment() {
	result, err := s.svc.StartCheckout(s.GetContext(), "user_1", "creator_monthly", "sub@example.com")
	s.NoError(err)
	s.Equal(types.SubscriptionPendingPayment, result.Subscription.Status)
	s.NotEmpty(result.CheckoutURL)
	s.NotNil(result.Subscription.FirstPaymentID)
}

func (s *SubscriptionServiceSuite) TestCheckoutExpiresPriorPendingPayment() {
	first, err := s.svc.StartCheckout(s.GetContext(), "user_1", "creator_monthly", "sub@example.com")
	s.NoError(err)

	second, err := s.svc.StartCheckout(s.GetContext(), "user_1", "studio_monthly", "sub@example.com")
	s.NoError(err)

	stale, err := s.GetStores().SubscriptionRepo.FindByID(s.GetContext(), first.Subscription.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionExpired, stale.Status)
	s.Equal(types.SubscriptionPendingPayment, second.Subscription.Status)
}

func (s *SubscriptionServiceSuite) TestCheckoutRejectsSecondOccupyingSubscription() {
	s.checkoutAndPay("creator_monthly")

	_, err := s.svc.StartCheckout(s.GetContext(), "user_1", "studio_monthly", "sub@example.com")
	s.Error(err)
	s.True(ierr.IsAlreadySubscribed(err))
}

func (s *SubscriptionServiceSuite) TestFirstPaymentActivatesAndGrantsFirstCycle() {
	now := time.Now().UTC()
	sub := s.checkoutAndPay("creator_monthly")

	s.Equal(types.SubscriptionActive, sub.Status)
	s.NotNil(sub.ProviderSubscriptionID)
	s.Equal(now.Day(), sub.BillingDay)
	s.True(sub.NextCreditDate.After(now))
	s.Nil(sub.CreditsRemainingMonths)

	w, err := s.GetStores().WalletRepo.Get(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(int64(300), w.BalanceGeneral)

	cycles, err := s.GetStores().SubscriptionRepo.ListCyclesBetween(
		s.GetContext(), sub.ID, now.AddDate(0, -1, 0), now.AddDate(0, 2, 0))
	s.NoError(err)
	s.Len(cycles, 1)
}

func (s *SubscriptionServiceSuite) TestFirstPaymentWebhookIsIdempotent() {
	sub := s.checkoutAndPay("creator_monthly")

	// Second delivery: subscription no longer pending, nothing changes.
	s.NoError(s.svc.IngestPayment(s.GetContext(), *sub.FirstPaymentID))

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(300), sum)
}

func (s *SubscriptionServiceSuite) TestYearlyFirstPaymentSetsTwelveMonths() {
	sub := s.checkoutAndPay("creator_yearly")

	s.Equal(types.SubscriptionActive, sub.Status)
	s.Require().NotNil(sub.CreditsRemainingMonths)
	// Twelve months funded; the first grant already consumed one.
	s.Equal(11, *sub.CreditsRemainingMonths)
	s.True(sub.CurrentPeriodEnd.After(time.Now().UTC().AddDate(0, 11, 0)))
}

func (s *SubscriptionServiceSuite) TestDueCreditSweepGrantsYearlyPlanTwelveTimesThenStops() {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sub := s.seedActiveSubscription("creator_yearly", 15, start, lo.ToPtr(12))
	s.SeedCredits("user_1", types.CreditClassGeneral, 0)

	totalGranted := 0
	for i := 0; i < 15; i++ {
		granted, err := s.svc.DueCreditSweep(s.GetContext(), 10)
		s.NoError(err)
		totalGranted += granted
	}
	s.Equal(12, totalGranted)

	updated, err := s.GetStores().SubscriptionRepo.FindByID(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Require().NotNil(updated.CreditsRemainingMonths)
	s.Equal(0, *updated.CreditsRemainingMonths)

	// Twelve cycles, strictly increasing unique period starts, all on
	// the 15th.
	cycles, err := s.GetStores().SubscriptionRepo.ListCyclesBetween(
		s.GetContext(), sub.ID, start, start.AddDate(1, 0, 0))
	s.NoError(err)
	s.Require().Len(cycles, 12)
	for i, c := range cycles {
		s.Equal(15, c.PeriodStart.Day())
		if i > 0 {
			s.True(c.PeriodStart.After(cycles[i-1].PeriodStart))
		}
	}

	w, err := s.GetStores().WalletRepo.Get(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(int64(300*12), w.BalanceGeneral)

	// A further sweep grants nothing until the yearly PSP renewal lands.
	granted, err := s.svc.DueCreditSweep(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(0, granted)
}

func (s *SubscriptionServiceSuite) TestYearlyRenewalPaymentResetsRemainingMonths() {
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	sub := s.seedActiveSubscription("creator_yearly", 15, start, lo.ToPtr(0))
	s.SeedCredits("user_1", types.CreditClassGeneral, 0)

	paymentID := s.GetCollaborators().PSP.AddRecurringPayment(
		*sub.ProviderSubscriptionID, "cst_seeded", decimal.New(14999, -2), "gbp",
		psp.PaymentPaid, time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC), map[string]string{"identity_id": "user_1"})

	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	updated, err := s.GetStores().SubscriptionRepo.FindByID(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Require().NotNil(updated.CreditsRemainingMonths)
	// Renewal resets to 12; the renewal month's grant consumed one.
	s.Equal(11, *updated.CreditsRemainingMonths)

	cycle, err := s.GetStores().SubscriptionRepo.FindCycle(s.GetContext(), sub.ID, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(int64(300), cycle.CreditsGranted)
}

func (s *SubscriptionServiceSuite) TestOutOfOrderRecurringWebhooksLandInCorrectMonths() {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sub := s.seedActiveSubscription("creator_monthly", 15, start, nil)
	s.SeedCredits("user_1", types.CreditClassGeneral, 0)

	psp3 := s.GetCollaborators().PSP.AddRecurringPayment(
		*sub.ProviderSubscriptionID, "cst_seeded", decimal.New(1499, -2), "gbp",
		psp.PaymentPaid, time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC), map[string]string{"identity_id": "user_1"})
	psp2 := s.GetCollaborators().PSP.AddRecurringPayment(
		*sub.ProviderSubscriptionID, "cst_seeded", decimal.New(1499, -2), "gbp",
		psp.PaymentPaid, time.Date(2025, 2, 15, 8, 0, 0, 0, time.UTC), map[string]string{"identity_id": "user_1"})

	// Month three's webhook arrives first.
	s.NoError(s.svc.IngestPayment(s.GetContext(), psp3))
	s.NoError(s.svc.IngestPayment(s.GetContext(), psp2))

	cycles, err := s.GetStores().SubscriptionRepo.ListCyclesBetween(
		s.GetContext(), sub.ID, start, start.AddDate(0, 6, 0))
	s.NoError(err)
	s.Require().Len(cycles, 2)
	s.Equal(time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), cycles[0].PeriodStart)
	s.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), cycles[1].PeriodStart)

	// Replaying either webhook changes nothing.
	s.NoError(s.svc.IngestPayment(s.GetContext(), psp3))
	cycles, err = s.GetStores().SubscriptionRepo.ListCyclesBetween(
		s.GetContext(), sub.ID, start, start.AddDate(0, 6, 0))
	s.NoError(err)
	s.Len(cycles, 2)

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(600), sum)
}

func (s *SubscriptionServiceSuite) TestRecurringWebhookAndDueSweepShareOneCycle() {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sub := s.seedActiveSubscription("creator_monthly", 15, start, nil)
	s.SeedCredits("user_1", types.CreditClassGeneral, 0)

	// The due-credit sweep grants January first.
	granted, err := s.svc.DueCreditSweep(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(1, granted)

	// Then January's recurring webhook lands mid-month. Same monthly
	// cycle, so the period key collides and nothing is granted twice.
	paymentID := s.GetCollaborators().PSP.AddRecurringPayment(
		*sub.ProviderSubscriptionID, "cst_seeded", decimal.New(1499, -2), "gbp",
		psp.PaymentPaid, time.Date(2025, 1, 20, 9, 30, 0, 0, time.UTC), map[string]string{"identity_id": "user_1"})
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	cycles, err := s.GetStores().SubscriptionRepo.ListCyclesBetween(
		s.GetContext(), sub.ID, start, start.AddDate(0, 1, 0))
	s.NoError(err)
	s.Len(cycles, 1)

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(300), sum)
}

func (s *SubscriptionServiceSuite) TestRecurringRevocationSuspends() {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sub := s.seedActiveSubscription("creator_monthly", 15, start, nil)

	paymentID := s.GetCollaborators().PSP.AddRecurringPayment(
		*sub.ProviderSubscriptionID, "cst_seeded", decimal.New(1499, -2), "gbp",
		psp.PaymentChargedBack, time.Date(2025, 2, 15, 8, 0, 0, 0, time.UTC), map[string]string{"identity_id": "user_1"})

	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	updated, err := s.GetStores().SubscriptionRepo.FindByID(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionSuspended, updated.Status)
	s.NotNil(updated.SuspendedAt)

	// Suspended subscriptions are skipped by the due-credit sweep.
	granted, err := s.svc.DueCreditSweep(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(0, granted)

	// And the operator got an alert.
	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Require().Len(pending, 1)
	s.True(pending[0].IsAdminAlert)
}

func (s *SubscriptionServiceSuite) TestCancelIsSoftThenExpires() {
	start := time.Now().UTC().AddDate(0, -1, -2)
	sub := s.seedActiveSubscription("creator_monthly", start.Day(), start, nil)
	// Period already over, as for a subscriber cancelling on the last day.
	sub.CurrentPeriodEnd = time.Now().UTC().Add(-time.Hour)
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	cancelled, err := s.svc.Cancel(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionCancelled, cancelled.Status)
	s.NotNil(cancelled.CancelledAt)

	// Cancel is idempotent.
	again, err := s.svc.Cancel(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionCancelled, again.Status)

	expired, err := s.svc.ExpireSweep(s.GetContext(), 10)
	s.NoError(err)
	s.Equal(1, expired)

	final, err := s.GetStores().SubscriptionRepo.FindByID(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionExpired, final.Status)
}

func (s *SubscriptionServiceSuite) TestPastDueRecoversOnPaidRecurring() {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	sub := s.seedActiveSubscription("creator_monthly", 15, start, nil)
	sub.Status = types.SubscriptionPastDue
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))
	s.SeedCredits("user_1", types.CreditClassGeneral, 0)

	paymentID := s.GetCollaborators().PSP.AddRecurringPayment(
		*sub.ProviderSubscriptionID, "cst_seeded", decimal.New(1499, -2), "gbp",
		psp.PaymentPaid, time.Date(2025, 2, 15, 8, 0, 0, 0, time.UTC), map[string]string{"identity_id": "user_1"})

	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	updated, err := s.GetStores().SubscriptionRepo.FindByID(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionActive, updated.Status)
}

func (s *SubscriptionServiceSuite) TestUnknownPlanFailsClosed() {
	_, err := s.svc.StartCheckout(s.GetContext(), "user_1", "gold_plated", "sub@example.com")
	s.True(ierr.IsUnknownPlan(err))
}
