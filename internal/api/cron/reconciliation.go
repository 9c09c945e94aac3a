package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
)

// ReconciliationCronHandler triggers the drift-detection sweep over
// HTTP; cmd/reconcile runs the same service as a one-shot CLI.
type ReconciliationCronHandler struct {
	logger                *logger.Logger
	reconciliationService service.ReconciliationService
}

func NewReconciliationCronHandler(logger *logger.Logger, reconciliationService service.ReconciliationService) *ReconciliationCronHandler {
	return &ReconciliationCronHandler{
		logger:                logger,
		reconciliationService: reconciliationService,
	}
}

// Run executes one reconciliation sweep. ?mode=repair applies fixes;
// the default detect mode only counts them.
func (h *ReconciliationCronHandler) Run(c *gin.Context) {
	mode := c.Query("mode")
	if mode != "repair" {
		mode = "detect"
	}

	summary, err := h.reconciliationService.RunOnce(c.Request.Context(), mode)
	if err != nil {
		h.logger.Errorw("reconciliation run failed", "mode", mode, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":                        summary.Mode,
		"checks_run":                  summary.ChecksRun,
		"purchases_missing_ledger":    summary.PurchasesMissingLedger,
		"wallet_mismatches_fixed":     summary.WalletMismatchesFixed,
		"stale_reservations_released": summary.StaleReservationsReleased,
		"finalized_missing_ledger":    summary.FinalizedMissingLedger,
		"psp_payments_scanned":        summary.PSPPaymentsScanned,
		"psp_payments_reconciled":     summary.PSPPaymentsReconciled,
		"fixes_applied":               summary.FixesApplied(),
		"errors":                      summary.Errors,
	})
}
