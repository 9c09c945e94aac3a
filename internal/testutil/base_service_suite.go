package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/pspcustomer"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/purchase"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reconciliation"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reservation"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/subscription"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/wallet"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// Stores bundles every in-memory repository fake, one field per domain
// Repository interface.
type Stores struct {
	LedgerRepo         *InMemoryLedgerStore
	WalletRepo         *InMemoryWalletStore
	ReservationRepo    *InMemoryReservationStore
	PurchaseRepo       *InMemoryPurchaseStore
	SubscriptionRepo   *InMemorySubscriptionStore
	EmailOutboxRepo    *InMemoryEmailOutboxStore
	ReconciliationRepo *InMemoryReconciliationStore
	PSPCustomerRepo    *InMemoryPSPCustomerStore
}

// Collaborators bundles every external-boundary fake (PSP, identity, jobs,
// email) alongside Stores.
type Collaborators struct {
	PSP      *FakePSPAdapter
	Identity *FakeIdentityProvider
	Jobs     *FakeJobsProvider
	Email    *FakeEmailRenderer
	Sender   *FakeEmailSender
}

// BaseServiceTestSuite gives every service test a clean set of wired
// in-memory fakes per test.
type BaseServiceTestSuite struct {
	suite.Suite

	ctx           context.Context
	stores        Stores
	collaborators Collaborators
	db            *FakeTxRunner
	logger        *logger.Logger
	config        *config.Configuration
	now           time.Time
}

func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = &config.Configuration{
		Logging: config.LoggingConfig{Level: types.LogLevelInfo},
		Reservation: config.ReservationConfig{
			HoldTTL: 20 * time.Minute,
		},
		Reconciliation: config.ReconciliationConfig{
			StaleHoldThreshold:  30 * time.Minute,
			MaxFixesPerCategory: 100,
			PSPLookbackDays:     30,
		},
		Email: config.EmailConfig{AdminAlertAddress: "ops@example.com"},
	}
	s.logger = logger.NewTestLogger()
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
}

func (s *BaseServiceTestSuite) setupStores() {
	walletStore := NewInMemoryWalletStore()
	ledgerStore := NewInMemoryLedgerStore(walletStore)
	reservationStore := NewInMemoryReservationStore()
	purchaseStore := NewInMemoryPurchaseStore()

	walletStore.SetLedger(ledgerStore)
	reservationStore.SetLedger(ledgerStore)
	purchaseStore.SetLedger(ledgerStore)

	s.stores = Stores{
		LedgerRepo:         ledgerStore,
		WalletRepo:         walletStore,
		ReservationRepo:    reservationStore,
		PurchaseRepo:       purchaseStore,
		SubscriptionRepo:   NewInMemorySubscriptionStore(),
		EmailOutboxRepo:    NewInMemoryEmailOutboxStore(),
		ReconciliationRepo: NewInMemoryReconciliationStore(),
		PSPCustomerRepo:    NewInMemoryPSPCustomerStore(),
	}

	s.collaborators = Collaborators{
		PSP:      NewFakePSPAdapter(),
		Identity: NewFakeIdentityProvider(),
		Jobs:     NewFakeJobsProvider(),
		Email:    NewFakeEmailRenderer(),
		Sender:   NewFakeEmailSender(),
	}

	s.db = NewFakeTxRunner()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.LedgerRepo.Clear()
	s.stores.WalletRepo.Clear()
	s.stores.ReservationRepo.Clear()
	s.stores.PurchaseRepo.Clear()
	s.stores.SubscriptionRepo.Clear()
	s.stores.EmailOutboxRepo.Clear()
	s.stores.ReconciliationRepo.Clear()
	s.stores.PSPCustomerRepo.Clear()

	s.collaborators.PSP.Clear()
	s.collaborators.Identity.Clear()
	s.collaborators.Jobs.Clear()
	s.collaborators.Sender.Clear()
}

func (s *BaseServiceTestSuite) GetContext() context.Context { return s.ctx }
func (s *BaseServiceTestSuite) GetStores() Stores            { return s.stores }
func (s *BaseServiceTestSuite) GetCollaborators() Collaborators { return s.collaborators }
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger    { return s.logger }
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration { return s.config }
func (s *BaseServiceTestSuite) GetNow() time.Time             { return s.now }

// SeedCredits grants identity an opening balance through the ledger, the
// same way production balances only ever come from ledger appends.
func (s *BaseServiceTestSuite) SeedCredits(identity string, class types.CreditClass, amount int64) {
	_, err := s.stores.WalletRepo.EnsureExists(s.ctx, identity)
	s.Require().NoError(err)
	_, err = s.stores.LedgerRepo.Append(s.ctx, ledger.AppendInput{
		Identity:  identity,
		EntryType: types.LedgerEntrySignupGrant,
		Delta:     amount,
		Class:     class,
		RefType:   "seed",
		RefID:     identity + ":" + string(class),
	})
	s.Require().NoError(err)
}

// ServiceParams builds a service.ServiceParams wired against this suite's
// fakes, for constructing a service under test.
func (s *BaseServiceTestSuite) ServiceParams() service.ServiceParams {
	return service.ServiceParams{
		Logger: s.logger,
		Config: s.config,
		DB:     s.db,

		LedgerRepo:         ledger.Repository(s.stores.LedgerRepo),
		WalletRepo:         wallet.Repository(s.stores.WalletRepo),
		ReservationRepo:    reservation.Repository(s.stores.ReservationRepo),
		PurchaseRepo:       purchase.Repository(s.stores.PurchaseRepo),
		SubscriptionRepo:   subscription.Repository(s.stores.SubscriptionRepo),
		EmailOutboxRepo:    emailoutbox.Repository(s.stores.EmailOutboxRepo),
		ReconciliationRepo: reconciliation.Repository(s.stores.ReconciliationRepo),
		PSPCustomerRepo:    pspcustomer.Repository(s.stores.PSPCustomerRepo),

		PSP:      s.collaborators.PSP,
		Identity: s.collaborators.Identity,
		Jobs:     s.collaborators.Jobs,
		Email:    s.collaborators.Email,
		Sender:   s.collaborators.Sender,
	}
}
