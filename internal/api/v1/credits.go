package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api/dto"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
)

// CreditsHandler serves the one-step debit path for actions with no hold
// phase.
type CreditsHandler struct {
	chargeService service.ChargeService
	identity      identity.Provider
	logger        *logger.Logger
}

func NewCreditsHandler(chargeService service.ChargeService, identityProvider identity.Provider, logger *logger.Logger) *CreditsHandler {
	return &CreditsHandler{
		chargeService: chargeService,
		identity:      identityProvider,
		logger:        logger,
	}
}

// Charge handles POST /api/credits/charge. Retried requests land on the
// same (identity, action, job) idempotency slot and come back with
// idempotent=true rather than double-debiting.
func (h *CreditsHandler) Charge(c *gin.Context) {
	ident, ok := currentIdentity(c, h.identity)
	if !ok {
		return
	}

	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, ierr.WithError(err).
			WithHint("invalid charge request").
			Mark(ierr.ErrValidation))
		return
	}

	result, err := h.chargeService.Charge(c.Request.Context(), ident.ID, req.Action, req.JobID, req.UpstreamID, req.Metadata)
	if err != nil {
		if ierr.IsInsufficientFunds(err) {
			respondInsufficientCredits(c, err)
			return
		}
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ChargeResponse{
		NewBalance: result.NewBalance,
		Charged:    result.Charged,
		Idempotent: result.Idempotent,
	})
}
