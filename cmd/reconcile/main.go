// Command reconcile runs one reconciliation sweep and exits with the
// codes the surrounding scheduler keys off: 0 clean, 1 repairs applied
// (or critical findings to look at), 2 fatal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/email"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/httpclient"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/jobs"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	stripeadapter "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp/stripe"
	pgrepo "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/repository/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
)

const (
	exitClean    = 0
	exitRepaired = 1
	exitFatal    = 2
)

func init() {
	time.Local = time.UTC
}

func main() {
	os.Exit(run())
}

func run() int {
	mode := flag.String("mode", "repair", `sweep mode: "detect" counts issues, "repair" applies fixes`)
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	if *mode != "detect" && *mode != "repair" {
		fmt.Fprintf(os.Stderr, "invalid mode %q\n", *mode)
		return exitFatal
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitFatal
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return exitFatal
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		log.Errorw("failed to connect to postgres", "error", err)
		return exitFatal
	}
	defer db.Close()

	client := httpclient.NewDefaultClient()
	pspCustomerRepo := pgrepo.NewPSPCustomerRepository(db, log)

	params := service.NewServiceParams(
		log, cfg, db,
		pgrepo.NewLedgerRepository(db, log),
		pgrepo.NewWalletRepository(db, log),
		pgrepo.NewReservationRepository(db, log),
		pgrepo.NewPurchaseRepository(db, log),
		pgrepo.NewSubscriptionRepository(db, log),
		pgrepo.NewEmailOutboxRepository(db, log),
		pgrepo.NewReconciliationRepository(db, log),
		pspCustomerRepo,
		stripeadapter.NewAdapter(cfg.Stripe, pspCustomerRepo, log),
		identity.NewHTTPProvider(client, cfg.Identity.BaseURL, cfg.Identity.APIKey),
		jobs.NewHTTPProvider(client, cfg.Jobs.BaseURL, cfg.Jobs.APIKey),
		email.NewTemplateRenderer(),
		email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := service.NewReconciliationService(params).RunOnce(ctx, *mode)
	if err != nil {
		log.Errorw("reconciliation run failed", "error", err)
		return exitFatal
	}

	log.Infow("reconciliation run complete",
		"mode", summary.Mode,
		"checks_run", summary.ChecksRun,
		"fixes_applied", summary.FixesApplied(),
		"critical_findings", summary.FinalizedMissingLedger,
		"psp_scanned", summary.PSPPaymentsScanned,
		"errors", summary.Errors,
	)

	if len(summary.Errors) > 0 {
		return exitFatal
	}
	if summary.FixesApplied() > 0 || summary.FinalizedMissingLedger > 0 {
		return exitRepaired
	}
	return exitClean
}
