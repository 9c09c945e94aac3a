package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api/cron"
	v1 "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api/v1"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/pspcustomer"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/email"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/httpclient"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/jobs"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	stripeadapter "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp/stripe"
	pgrepo "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/repository/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/validator"
	"github.com/gin-gonic/gin"
)

func init() {
	// All timestamps in the ledger and period calculator are UTC.
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			validator.NewValidator,
			config.NewConfig,
			logger.NewLogger,

			postgres.NewDB,
			func(db *postgres.DB) postgres.TxRunner { return db },

			pgrepo.NewLedgerRepository,
			pgrepo.NewWalletRepository,
			pgrepo.NewReservationRepository,
			pgrepo.NewPurchaseRepository,
			pgrepo.NewSubscriptionRepository,
			pgrepo.NewEmailOutboxRepository,
			pgrepo.NewReconciliationRepository,
			pgrepo.NewPSPCustomerRepository,

			httpclient.NewDefaultClient,
			newIdentityProvider,
			newJobsProvider,
			newEmailRenderer,
			newEmailSender,
			newPSPAdapter,

			service.NewServiceParams,
			service.NewWalletService,
			service.NewChargeService,
			service.NewReservationService,
			service.NewPurchaseService,
			service.NewSubscriptionService,
			service.NewEmailOutboxService,
			service.NewReconciliationService,

			v1.NewHealthHandler,
			v1.NewWalletHandler,
			v1.NewCreditsHandler,
			v1.NewBillingHandler,
			v1.NewWebhookHandler,
			cron.NewBillingCronHandler,
			cron.NewReconciliationCronHandler,

			api.NewHandlers,
			api.NewRouter,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

func newIdentityProvider(cfg *config.Configuration, client httpclient.Client) identity.Provider {
	return identity.NewHTTPProvider(client, cfg.Identity.BaseURL, cfg.Identity.APIKey)
}

func newJobsProvider(cfg *config.Configuration, client httpclient.Client) jobs.Provider {
	return jobs.NewHTTPProvider(client, cfg.Jobs.BaseURL, cfg.Jobs.APIKey)
}

func newEmailRenderer() email.Renderer {
	return email.NewTemplateRenderer()
}

func newEmailSender(cfg *config.Configuration) email.Sender {
	return email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
}

func newPSPAdapter(cfg *config.Configuration, customerRepo pspcustomer.Repository, log *logger.Logger) psp.Adapter {
	return stripeadapter.NewAdapter(cfg.Stripe, customerRepo, log)
}

func startServer(lc fx.Lifecycle, router *gin.Engine, cfg *config.Configuration, log *logger.Logger) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorw("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping server")
			return srv.Shutdown(ctx)
		},
	})
}
