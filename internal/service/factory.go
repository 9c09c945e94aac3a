// Package service holds the core business logic: reservation hold/
// finalize/release, purchase ingestion, the subscription engine, the
// email outbox dispatcher, and the reconciliation sweep. Every service
// embeds ServiceParams, which hands every collaborator to every service
// without per-service constructor sprawl.
package service

import (
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/pspcustomer"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/purchase"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reconciliation"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reservation"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/subscription"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/wallet"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/email"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/jobs"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// ServiceParams bundles every collaborator the service layer needs.
// Depending on interfaces here (postgres.TxRunner, the domain Repository
// interfaces, psp.Adapter, identity.Provider, jobs.Provider,
// email.Renderer/Sender) rather than concrete types keeps every service
// constructible against internal/testutil's fakes.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.TxRunner

	LedgerRepo         ledger.Repository
	WalletRepo         wallet.Repository
	ReservationRepo    reservation.Repository
	PurchaseRepo       purchase.Repository
	SubscriptionRepo   subscription.Repository
	EmailOutboxRepo    emailoutbox.Repository
	ReconciliationRepo reconciliation.Repository
	PSPCustomerRepo    pspcustomer.Repository

	PSP      psp.Adapter
	Identity identity.Provider
	Jobs     jobs.Provider
	Email    email.Renderer
	Sender   email.Sender
}

// NewServiceParams is the fx.Provide constructor: every argument maps
// one-to-one onto a ServiceParams field.
func NewServiceParams(
	log *logger.Logger,
	cfg *config.Configuration,
	db postgres.TxRunner,
	ledgerRepo ledger.Repository,
	walletRepo wallet.Repository,
	reservationRepo reservation.Repository,
	purchaseRepo purchase.Repository,
	subscriptionRepo subscription.Repository,
	emailOutboxRepo emailoutbox.Repository,
	reconciliationRepo reconciliation.Repository,
	pspCustomerRepo pspcustomer.Repository,
	pspAdapter psp.Adapter,
	identityProvider identity.Provider,
	jobsProvider jobs.Provider,
	emailRenderer email.Renderer,
	emailSender email.Sender,
) ServiceParams {
	return ServiceParams{
		Logger:             log,
		Config:             cfg,
		DB:                 db,
		LedgerRepo:         ledgerRepo,
		WalletRepo:         walletRepo,
		ReservationRepo:    reservationRepo,
		PurchaseRepo:       purchaseRepo,
		SubscriptionRepo:   subscriptionRepo,
		EmailOutboxRepo:    emailOutboxRepo,
		ReconciliationRepo: reconciliationRepo,
		PSPCustomerRepo:    pspCustomerRepo,
		PSP:                pspAdapter,
		Identity:           identityProvider,
		Jobs:               jobsProvider,
		Email:              emailRenderer,
		Sender:             emailSender,
	}
}

// balanceForClass picks the cached balance field matching class, the
// same general/video switch every balance-reading service needs.
func balanceForClass(w *wallet.Wallet, class types.CreditClass) int64 {
	if class == types.CreditClassVideo {
		return w.BalanceVideo
	}
	return w.BalanceGeneral
}
