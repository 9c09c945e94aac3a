// Package api wires the gin router: the public billing/credits surface,
// the PSP webhook, and the scheduler-triggered cron endpoints.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api/cron"
	v1 "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api/v1"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Health  *v1.HealthHandler
	Wallet  *v1.WalletHandler
	Credits *v1.CreditsHandler
	Billing *v1.BillingHandler
	Webhook *v1.WebhookHandler

	CronBilling        *cron.BillingCronHandler
	CronReconciliation *cron.ReconciliationCronHandler
}

func NewHandlers(
	health *v1.HealthHandler,
	wallet *v1.WalletHandler,
	credits *v1.CreditsHandler,
	billing *v1.BillingHandler,
	webhook *v1.WebhookHandler,
	cronBilling *cron.BillingCronHandler,
	cronReconciliation *cron.ReconciliationCronHandler,
) Handlers {
	return Handlers{
		Health:             health,
		Wallet:             wallet,
		Credits:            credits,
		Billing:            billing,
		Webhook:            webhook,
		CronBilling:        cronBilling,
		CronReconciliation: cronReconciliation,
	}
}

// NewRouter mounts the HTTP surface. Identity resolution
// happens inside each handler via the identity collaborator, not in a
// middleware — the session layer is external to this core.
func NewRouter(handlers Handlers, cfg *config.Configuration, log *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode == types.ModeProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", handlers.Health.Health)

	// The webhook lives outside /api: it is called by the PSP, not by a
	// signed-in user, and authenticates by fetching the payment.
	router.POST("/billing/webhook/:provider", handlers.Webhook.HandlePayment)

	api := router.Group("/api")
	{
		credits := api.Group("/credits")
		{
			credits.GET("/wallet", handlers.Wallet.GetWallet)
			credits.POST("/charge", handlers.Credits.Charge)
		}

		billing := api.Group("/billing")
		{
			billing.POST("/reserve", handlers.Billing.Reserve)
			billing.POST("/checkout", handlers.Billing.Checkout)
			billing.GET("/confirm", handlers.Billing.Confirm)

			subs := billing.Group("/subscriptions")
			{
				subs.POST("/checkout", handlers.Billing.SubscriptionCheckout)
				subs.POST("/cancel", handlers.Billing.SubscriptionCancel)
				subs.GET("/status", handlers.Billing.SubscriptionStatus)
			}
		}
	}

	cronGroup := router.Group("/cron")
	{
		cronGroup.POST("/reservations/sweep-expired", handlers.CronBilling.SweepExpiredReservations)
		cronGroup.POST("/subscriptions/grant-due", handlers.CronBilling.GrantDueCredits)
		cronGroup.POST("/subscriptions/expire", handlers.CronBilling.ExpireSubscriptions)
		cronGroup.POST("/email-outbox/dispatch", handlers.CronBilling.DispatchEmailOutbox)
		cronGroup.POST("/reconciliation/run", handlers.CronReconciliation.Run)
	}

	return router
}
