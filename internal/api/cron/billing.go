// Package cron holds scheduler-triggered HTTP handlers: an external
// scheduler (cron, k8s CronJob) POSTs these endpoints on an interval.
// Each sweep is idempotent and bounded, so overlapping triggers are
// safe.
package cron

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
)

// BillingCronHandler runs the periodic billing sweeps: reservation
// expiry, due-credit granting and cancelled-subscription
// expiry, and email outbox dispatch.
type BillingCronHandler struct {
	logger              *logger.Logger
	reservationService  service.ReservationService
	subscriptionService service.SubscriptionService
	emailOutboxService  service.EmailOutboxService
}

func NewBillingCronHandler(
	logger *logger.Logger,
	reservationService service.ReservationService,
	subscriptionService service.SubscriptionService,
	emailOutboxService service.EmailOutboxService,
) *BillingCronHandler {
	return &BillingCronHandler{
		logger:              logger,
		reservationService:  reservationService,
		subscriptionService: subscriptionService,
		emailOutboxService:  emailOutboxService,
	}
}

func limitParam(c *gin.Context, fallback int) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// SweepExpiredReservations releases every held reservation past its
// expiry.
func (h *BillingCronHandler) SweepExpiredReservations(c *gin.Context) {
	released, err := h.reservationService.SweepExpired(c.Request.Context())
	if err != nil {
		h.logger.Errorw("reservation expiry sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Infow("reservation expiry sweep complete", "released", released)
	c.JSON(http.StatusOK, gin.H{"released": released})
}

// GrantDueCredits grants the next monthly cycle for every active
// subscription whose next_credit_date has passed.
func (h *BillingCronHandler) GrantDueCredits(c *gin.Context) {
	limit := limitParam(c, 100)
	granted, err := h.subscriptionService.DueCreditSweep(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorw("due-credit sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Infow("due-credit sweep complete", "granted", granted)
	c.JSON(http.StatusOK, gin.H{"granted": granted})
}

// ExpireSubscriptions transitions cancelled subscriptions past their
// current_period_end to expired.
func (h *BillingCronHandler) ExpireSubscriptions(c *gin.Context) {
	limit := limitParam(c, 100)
	expired, err := h.subscriptionService.ExpireSweep(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorw("subscription expire sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Infow("subscription expire sweep complete", "expired", expired)
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

// DispatchEmailOutbox sends a batch of pending outbox entries.
func (h *BillingCronHandler) DispatchEmailOutbox(c *gin.Context) {
	limit := limitParam(c, 50)
	sent, err := h.emailOutboxService.DispatchBatch(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorw("email outbox dispatch failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Infow("email outbox dispatch complete", "sent", sent)
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}
