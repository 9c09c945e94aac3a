package service_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/testutil"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type PurchaseServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc service.PurchaseService
}

func TestPurchaseService(t *testing.T) {
	suite.Run(t, new(PurchaseServiceSuite))
}

func (s *PurchaseServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = service.NewPurchaseService(s.ServiceParams())
}

// paidOneOff creates a one-off payment on the fake PSP and marks it
// paid, returning its id — the state a webhook delivery would find.
func (s *PurchaseServiceSuite) paidOneOff(identity, planCode, email string, amount decimal.Decimal) string {
	checkout, err := s.GetCollaborators().PSP.CreateOneOffPayment(
		s.GetContext(), amount, "gbp", "credit pack: "+planCode, "", "",
		map[string]string{"identity_id": identity, "plan_code": planCode, "email": email},
	)
	s.Require().NoError(err)
	s.GetCollaborators().PSP.SetPaymentStatus(checkout.PaymentID, psp.PaymentPaid, s.GetNow())
	return checkout.PaymentID
}

func (s *PurchaseServiceSuite) TestPaidPaymentGrantsCredits() {
	paymentID := s.paidOneOff("user_1", "starter_250", "buyer@example.com", decimal.NewFromFloat(7.99))

	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	w, err := s.GetStores().WalletRepo.Get(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(int64(250), w.BalanceGeneral)

	p, err := s.GetStores().PurchaseRepo.FindByProviderPaymentID(s.GetContext(), "stripe", paymentID)
	s.NoError(err)
	s.Equal(types.PurchaseStatusCompleted, p.Status)
	s.Equal(int64(250), p.CreditsGranted)

	// Exactly one grant entry linked by ref.
	entry, err := s.GetStores().LedgerRepo.FindByRef(s.GetContext(), "purchase", p.ID, string(types.LedgerEntryPurchaseCredit))
	s.NoError(err)
	s.Equal(int64(250), entry.Amount)

	// Receipt queued in the same transaction.
	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("buyer@example.com", pending[0].To)
}

func (s *PurchaseServiceSuite) TestDuplicateWebhookGrantsOnce() {
	paymentID := s.paidOneOff("user_1", "starter_250", "buyer@example.com", decimal.NewFromFloat(7.99))

	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	w, err := s.GetStores().WalletRepo.Get(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(int64(250), w.BalanceGeneral)

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(250), sum)
}

func (s *PurchaseServiceSuite) TestPendingPaymentIsAcknowledgedWithoutEffect() {
	checkout, err := s.GetCollaborators().PSP.CreateOneOffPayment(
		s.GetContext(), decimal.NewFromFloat(7.99), "gbp", "credit pack", "", "",
		map[string]string{"identity_id": "user_1", "plan_code": "starter_250"},
	)
	s.Require().NoError(err)

	s.NoError(s.svc.IngestPayment(s.GetContext(), checkout.PaymentID))

	_, err = s.GetStores().PurchaseRepo.FindByProviderPaymentID(s.GetContext(), "stripe", checkout.PaymentID)
	s.True(ierr.IsNotFound(err))
}

func (s *PurchaseServiceSuite) TestRefundAfterSpendFloorsAtZero() {
	paymentID := s.paidOneOff("user_1", "starter_250", "", decimal.NewFromFloat(7.99))
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	// Spend 220 of the 250 before the refund lands.
	_, err := s.GetStores().LedgerRepo.Append(s.GetContext(), ledger.AppendInput{
		Identity:  "user_1",
		EntryType: types.LedgerEntryCharge,
		Delta:     -220,
		Class:     types.CreditClassGeneral,
		RefType:   "charge",
		RefID:     "user_1:spend:jobs",
	})
	s.Require().NoError(err)

	s.GetCollaborators().PSP.SetPaymentStatus(paymentID, psp.PaymentRefunded, s.GetNow())
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	// Wallet floors at zero; the ledger keeps the true unclamped sum so
	// reconciliation can surface the 220-credit shortfall.
	w, err := s.GetStores().WalletRepo.Get(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(int64(0), w.BalanceGeneral)

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(-220), sum)

	p, err := s.GetStores().PurchaseRepo.FindByProviderPaymentID(s.GetContext(), "stripe", paymentID)
	s.NoError(err)
	s.Equal(types.PurchaseStatusRefunded, p.Status)
}

func (s *PurchaseServiceSuite) TestDoubleRefundRevokesOnce() {
	paymentID := s.paidOneOff("user_1", "starter_250", "", decimal.NewFromFloat(7.99))
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	s.GetCollaborators().PSP.SetPaymentStatus(paymentID, psp.PaymentRefunded, s.GetNow())
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(0), sum)
}

func (s *PurchaseServiceSuite) TestPaidPaymentAttachesEmailWhenFree() {
	paymentID := s.paidOneOff("user_1", "starter_250", "buyer@example.com", decimal.NewFromFloat(7.99))
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	attached, err := s.GetCollaborators().Identity.AttachEmailIfMissing(s.GetContext(), "user_2", "buyer@example.com")
	s.NoError(err)
	// user_1 already took the address during ingestion; the cross-identity
	// guard refuses it for anyone else.
	s.False(attached)
}

func (s *PurchaseServiceSuite) TestPriorityPlanAlertsAdmin() {
	paymentID := s.paidOneOff("user_1", "studio_2200", "buyer@example.com", decimal.NewFromFloat(37.99))
	s.NoError(s.svc.IngestPayment(s.GetContext(), paymentID))

	pending, err := s.GetStores().EmailOutboxRepo.ClaimPendingBatch(s.GetContext(), 10)
	s.NoError(err)
	s.Require().Len(pending, 2)

	var alerts int
	for _, e := range pending {
		if e.IsAdminAlert {
			alerts++
			s.Equal("ops@example.com", e.To)
		}
	}
	s.Equal(1, alerts)
}

func (s *PurchaseServiceSuite) TestStartCheckoutUnknownPlan() {
	_, err := s.svc.StartCheckout(s.GetContext(), "user_1", "no_such_plan", "")
	s.True(ierr.IsUnknownPlan(err))
}

func (s *PurchaseServiceSuite) TestStartCheckoutReturnsPSPCheckout() {
	result, err := s.svc.StartCheckout(s.GetContext(), "user_1", "starter_250", "buyer@example.com")
	s.NoError(err)
	s.NotEmpty(result.CheckoutURL)
	s.NotEmpty(result.PaymentID)

	payment, err := s.GetCollaborators().PSP.FetchPayment(s.GetContext(), result.PaymentID)
	s.NoError(err)
	s.Equal("user_1", payment.Metadata["identity_id"])
	s.Equal("starter_250", payment.Metadata["plan_code"])
	s.True(payment.Amount.Equal(decimal.New(799, -2)))
}
