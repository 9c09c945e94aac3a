package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/api/dto"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// WalletHandler serves the balance-display read path.
type WalletHandler struct {
	walletService service.WalletService
	identity      identity.Provider
	logger        *logger.Logger
}

func NewWalletHandler(walletService service.WalletService, identityProvider identity.Provider, logger *logger.Logger) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		identity:      identityProvider,
		logger:        logger,
	}
}

// GetWallet handles GET /api/credits/wallet: both credit classes'
// balance/reserved/available triples for the calling identity.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	ident, ok := currentIdentity(c, h.identity)
	if !ok {
		return
	}

	general, err := h.walletService.GetBalances(c.Request.Context(), ident.ID, types.CreditClassGeneral)
	if err != nil {
		RespondError(c, err)
		return
	}
	video, err := h.walletService.GetBalances(c.Request.Context(), ident.ID, types.CreditClassVideo)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WalletResponse{
		IdentityID: ident.ID,
		General:    dto.ClassBalance{Balance: general.Balance, Reserved: general.Reserved, Available: general.Available},
		Video:      dto.ClassBalance{Balance: video.Balance, Reserved: video.Reserved, Available: video.Available},
	})
}
