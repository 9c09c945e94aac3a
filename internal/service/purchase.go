package service

import (
	"context"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/purchase"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/email"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/pricing"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
	"github.com/shopspring/decimal"
)

// PurchaseCheckoutResult is start_checkout's return shape for a one-off purchase.
type PurchaseCheckoutResult struct {
	CheckoutURL string
	PaymentID   string
}

// PurchaseService ingests one-time PSP payments.
type PurchaseService interface {
	// StartCheckout creates a one-off PSP payment for planCode and returns
	// its checkout URL. Unlike subscription checkout, there is no local
	// row to create yet — the purchase row is only written once the
	// webhook reports paid (record_purchase, step 1).
	StartCheckout(ctx context.Context, identity, planCode, customerEmail string) (*PurchaseCheckoutResult, error)

	// IngestPayment is the webhook entry point: it fetches the PSP's
	// current view of paymentID and dispatches on status.
	IngestPayment(ctx context.Context, paymentID string) error
}

type purchaseService struct {
	ServiceParams
}

func NewPurchaseService(params ServiceParams) PurchaseService {
	return &purchaseService{ServiceParams: params}
}

// StartCheckout creates a Stripe PaymentIntent for a one-time credit pack.
// No mandate or customer record is needed for a one-off payment, unlike
// subscription checkout.
func (s *purchaseService) StartCheckout(ctx context.Context, identity, planCode, customerEmail string) (*PurchaseCheckoutResult, error) {
	plan, err := pricing.PurchasePlanByCode(planCode)
	if err != nil {
		return nil, err
	}

	amount := decimal.New(plan.PriceCents, -2)
	checkout, err := s.PSP.CreateOneOffPayment(ctx, amount, "gbp",
		"credit pack: "+planCode,
		s.Config.Stripe.RedirectURLBase, s.Config.Stripe.WebhookURLBase,
		map[string]string{
			"identity_id": identity,
			"plan_code":   planCode,
			"email":       customerEmail,
		})
	if err != nil {
		return nil, err
	}

	return &PurchaseCheckoutResult{CheckoutURL: checkout.CheckoutURL, PaymentID: checkout.PaymentID}, nil
}

func (s *purchaseService) IngestPayment(ctx context.Context, paymentID string) error {
	payment, err := s.PSP.FetchPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	// Only one-off payments are this service's concern; subscription
	// first/recurring payments are dispatched by SubscriptionService.
	if payment.Type != psp.PaymentTypeOneOff {
		return nil
	}

	switch payment.Status {
	case psp.PaymentPending, psp.PaymentOpen:
		return nil
	case psp.PaymentPaid:
		return s.recordPurchase(ctx, payment)
	case psp.PaymentRefunded:
		return s.revokePurchase(ctx, payment, types.LedgerEntryRefund, types.PurchaseStatusRefunded)
	case psp.PaymentChargedBack:
		return s.revokePurchase(ctx, payment, types.LedgerEntryChargeback, types.PurchaseStatusChargedBack)
	default:
		// failed, canceled, expired: acknowledge without further action.
		return nil
	}
}

func (s *purchaseService) recordPurchase(ctx context.Context, payment *psp.Payment) error {
	identity := payment.Metadata["identity_id"]
	planCode := payment.Metadata["plan_code"]
	customerEmail := payment.Metadata["email"]

	plan, err := pricing.PurchasePlanByCode(planCode)
	if err != nil {
		return err
	}

	paidAt := time.Now().UTC()
	if payment.PaidAt != nil {
		paidAt = *payment.PaidAt
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, created, err := s.PurchaseRepo.Create(ctx, purchase.CreateInput{
			ID:                types.GenerateUUIDWithPrefix(types.UUIDPrefixPurchase),
			Identity:           identity,
			PlanCode:           planCode,
			Provider:           "stripe",
			ProviderPaymentID:  payment.ID,
			AmountMoney:        payment.Amount,
			Currency:           payment.Currency,
			CreditsGranted:     plan.Credits,
			CreditClass:        plan.Class,
			PaidAt:             paidAt,
		})
		if err != nil {
			return err
		}
		if !created {
			// Duplicate webhook delivery: step 1's ON CONFLICT guard
			// already short-circuited before any ledger write happened.
			return nil
		}

		if _, err := s.WalletRepo.EnsureExists(ctx, identity); err != nil {
			return err
		}

		_, err = s.LedgerRepo.Append(ctx, ledger.AppendInput{
			Identity:  identity,
			EntryType: types.LedgerEntryPurchaseCredit,
			Delta:     plan.Credits,
			Class:     plan.Class,
			RefType:   "purchase",
			RefID:     p.ID,
		})
		if ierr.IsDuplicateRef(err) {
			// The ledger append lost the race against a concurrent
			// retry of this same webhook; the purchase row above is
			// already the canonical one, nothing further to do.
			return nil
		}
		if err != nil {
			return err
		}

		if customerEmail != "" {
			if _, err := s.Identity.AttachEmailIfMissing(ctx, identity, customerEmail); err != nil {
				return err
			}
		}

		if _, err := s.EmailOutboxRepo.Enqueue(ctx, emailoutbox.EnqueueInput{
			ID:          types.GenerateUUIDWithPrefix(types.UUIDPrefixEmailOutbox),
			To:          customerEmail,
			Template:    emailTemplatePurchaseReceipt,
			Payload:     types.JSONMap{"plan_code": planCode, "credits": plan.Credits, "purchase_id": p.ID},
			Identity:    &identity,
			Purchase:    &p.ID,
			MaxAttempts: 5,
		}); err != nil {
			return err
		}

		if plan.Priority {
			if _, err := s.EmailOutboxRepo.Enqueue(ctx, emailoutbox.EnqueueInput{
				ID:           types.GenerateUUIDWithPrefix(types.UUIDPrefixEmailOutbox),
				To:           s.Config.Email.AdminAlertAddress,
				Template:     emailTemplateAdminPurchaseAlert,
				Payload:      types.JSONMap{"plan_code": planCode, "identity_id": identity, "purchase_id": p.ID},
				Identity:     &identity,
				Purchase:     &p.ID,
				MaxAttempts:  5,
				IsAdminAlert: true,
			}); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *purchaseService) revokePurchase(ctx context.Context, payment *psp.Payment, entryType types.LedgerEntryType, status types.PurchaseStatus) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.PurchaseRepo.FindByProviderPaymentID(ctx, "stripe", payment.ID)
		if err != nil {
			return err
		}

		_, err = s.LedgerRepo.Append(ctx, ledger.AppendInput{
			Identity:  p.Identity,
			EntryType: entryType,
			Delta:     -p.CreditsGranted,
			Class:     p.CreditClass,
			RefType:   "purchase",
			RefID:     p.ID,
		})
		if ierr.IsDuplicateRef(err) {
			// Already revoked once; the partial unique index over
			// (ref_type, ref_id) filtered to refund/chargeback blocked
			// a second write.
			return nil
		}
		if err != nil {
			return err
		}

		return s.PurchaseRepo.UpdateStatus(ctx, p.ID, status)
	})
}

const (
	emailTemplatePurchaseReceipt    = email.TemplatePurchaseReceipt
	emailTemplateAdminPurchaseAlert = email.TemplateAdminPurchaseAlert
)
