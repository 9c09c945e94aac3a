package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api/dto"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/pricing"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
)

// BillingHandler serves reservations, one-off checkout/confirm, and the
// subscription endpoints.
type BillingHandler struct {
	reservationService  service.ReservationService
	purchaseService     service.PurchaseService
	subscriptionService service.SubscriptionService
	psp                 psp.Adapter
	identity            identity.Provider
	logger              *logger.Logger
}

func NewBillingHandler(
	reservationService service.ReservationService,
	purchaseService service.PurchaseService,
	subscriptionService service.SubscriptionService,
	pspAdapter psp.Adapter,
	identityProvider identity.Provider,
	logger *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		reservationService:  reservationService,
		purchaseService:     purchaseService,
		subscriptionService: subscriptionService,
		psp:                 pspAdapter,
		identity:            identityProvider,
		logger:              logger,
	}
}

// Reserve handles POST /api/billing/reserve.
func (h *BillingHandler) Reserve(c *gin.Context) {
	ident, ok := currentIdentity(c, h.identity)
	if !ok {
		return
	}

	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, ierr.WithError(err).
			WithHint("invalid reserve request").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.reservationService.Reserve(c.Request.Context(), ident.ID, req.ActionKey, req.JobID, nil)
	if err != nil {
		if ierr.IsInsufficientFunds(err) {
			respondInsufficientCredits(c, err)
			return
		}
		RespondError(c, err)
		return
	}

	r := result.Reservation
	c.JSON(http.StatusOK, dto.ReserveResponse{
		Reservation: dto.ReservationView{
			ID:          r.ID,
			ActionCode:  r.ActionCode,
			Cost:        r.Cost,
			CreditClass: string(r.Class),
			Status:      string(r.Status),
			JobRef:      r.JobRef,
			ExpiresAt:   r.ExpiresAt,
		},
		Balance:    result.Balance,
		Reserved:   result.Reserved,
		Available:  result.Available,
		Idempotent: result.Replayed,
	})
}

// Checkout handles POST /api/billing/checkout: a one-off credit-pack
// purchase. A supplied email must match the identity's verified email
// case-insensitively.
func (h *BillingHandler) Checkout(c *gin.Context) {
	ident, ok := currentIdentity(c, h.identity)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, ierr.WithError(err).
			WithHint("invalid checkout request").
			Mark(ierr.ErrValidation))
		return
	}

	email := ident.Email
	if req.Email != "" {
		if ident.Email != "" && !strings.EqualFold(req.Email, ident.Email) {
			RespondError(c, ierr.NewError("checkout email does not match identity email").
				WithHint("email does not match the one on your account").
				WithReportableDetails(map[string]any{"email": ident.Email}).
				Mark(ierr.ErrEmailMismatch))
			return
		}
		email = req.Email
	}

	result, err := h.purchaseService.StartCheckout(c.Request.Context(), ident.ID, req.PlanCode, email)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CheckoutResponse{CheckoutURL: result.CheckoutURL, PaymentID: result.PaymentID})
}

// Confirm handles GET /api/billing/confirm?payment_id=...: the
// post-redirect landing read. It replays the payment through the same
// idempotent ingest path the webhook uses, so a user refreshing
// mid-redirect gets credits even when the webhook hasn't landed yet —
// and never gets them twice.
func (h *BillingHandler) Confirm(c *gin.Context) {
	paymentID := c.Query("payment_id")
	if paymentID == "" {
		RespondError(c, ierr.NewError("payment_id is required").
			WithHint("payment_id query parameter is required").
			Mark(ierr.ErrValidation))
		return
	}

	payment, err := h.psp.FetchPayment(c.Request.Context(), paymentID)
	if err != nil {
		RespondError(c, err)
		return
	}

	kind := "purchase"
	var ingestErr error
	switch payment.Type {
	case psp.PaymentTypeOneOff:
		ingestErr = h.purchaseService.IngestPayment(c.Request.Context(), paymentID)
	case psp.PaymentTypeSubscriptionFirst, psp.PaymentTypeSubscriptionRecurring:
		kind = "subscription"
		ingestErr = h.subscriptionService.IngestPayment(c.Request.Context(), paymentID)
	}
	if ingestErr != nil {
		RespondError(c, ingestErr)
		return
	}

	c.JSON(http.StatusOK, dto.ConfirmResponse{
		PaymentID: payment.ID,
		Status:    string(payment.Status),
		Kind:      kind,
	})
}

// SubscriptionCheckout handles POST /api/billing/subscriptions/checkout.
func (h *BillingHandler) SubscriptionCheckout(c *gin.Context) {
	ident, ok := currentIdentity(c, h.identity)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, ierr.WithError(err).
			WithHint("invalid subscription checkout request").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.subscriptionService.StartCheckout(c.Request.Context(), ident.ID, req.PlanCode, ident.Email)
	if err != nil {
		RespondError(c, err)
		return
	}

	paymentID := ""
	if result.Subscription.FirstPaymentID != nil {
		paymentID = *result.Subscription.FirstPaymentID
	}
	c.JSON(http.StatusOK, dto.CheckoutResponse{CheckoutURL: result.CheckoutURL, PaymentID: paymentID})
}

// SubscriptionCancel handles POST /api/billing/subscriptions/cancel:
// soft cancel, access runs to current_period_end.
func (h *BillingHandler) SubscriptionCancel(c *gin.Context) {
	ident, ok := currentIdentity(c, h.identity)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.CurrentForIdentity(c.Request.Context(), ident.ID)
	if err != nil {
		RespondError(c, err)
		return
	}

	cancelled, err := h.subscriptionService.Cancel(c.Request.Context(), sub.ID)
	if err != nil {
		RespondError(c, err)
		return
	}

	resp := dto.CancelSubscriptionResponse{Status: string(cancelled.Status)}
	if cancelled.CancelledAt != nil {
		resp.CancelledAt = *cancelled.CancelledAt
	}
	c.JSON(http.StatusOK, resp)
}

// SubscriptionStatus handles GET /api/billing/subscriptions/status.
func (h *BillingHandler) SubscriptionStatus(c *gin.Context) {
	ident, ok := currentIdentity(c, h.identity)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.CurrentForIdentity(c.Request.Context(), ident.ID)
	if ierr.IsNotFound(err) {
		c.JSON(http.StatusOK, dto.SubscriptionStatusResponse{Subscribed: false})
		return
	}
	if err != nil {
		RespondError(c, err)
		return
	}

	billing := &dto.BillingView{
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		MandateStatus:      "none",
		CancelledAt:        sub.CancelledAt,
	}
	if sub.Status.IsOccupying() {
		periodEnd := sub.CurrentPeriodEnd
		billing.NextPaymentDate = &periodEnd
	}
	if sub.ProviderCustomerID != nil {
		// Mandate validity is PSP state, not local state: the mandate can
		// be revoked provider-side without a webhook this core listens to.
		mandate, mandateErr := h.psp.GetValidMandate(c.Request.Context(), *sub.ProviderCustomerID)
		switch {
		case mandateErr != nil:
			billing.MandateStatus = "unknown"
		case mandate != "":
			billing.MandateStatus = "valid"
		}
	}

	c.JSON(http.StatusOK, dto.SubscriptionStatusResponse{
		Subscribed: true,
		PlanCode:   sub.PlanCode,
		Status:     string(sub.Status),
		Billing:    billing,
		TierPerks:  pricing.TierPerks(sub.PlanCode),
	})
}
