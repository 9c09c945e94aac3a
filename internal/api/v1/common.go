// Package v1 holds the gin handlers for the HTTP surface.
// Handlers bind the request, resolve the calling identity, delegate to
// internal/service, and translate errors through RespondError — no
// business logic lives here.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
)

// currentIdentity resolves the caller via the identity collaborator,
// converting a failed resolution into the 401 the error layer maps
// ErrUnauthenticated to.
func currentIdentity(c *gin.Context, provider identity.Provider) (*identity.Identity, bool) {
	ident, err := provider.CurrentIdentity(c.Request.Context(), c.Request)
	if err != nil || ident == nil {
		b := ierr.NewError("no identity on request")
		if err != nil {
			b = ierr.WithError(err)
		}
		RespondError(c, b.
			WithHint("sign in to continue").
			Mark(ierr.ErrUnauthenticated))
		return nil, false
	}
	return ident, true
}

// respondInsufficientCredits flattens the structured detail payload
// attached by the service layer into the documented 402 body:
// required/balance/available/class at the top level next to the error
// envelope.
func respondInsufficientCredits(c *gin.Context, err error) {
	details := ierr.ReportableDetails(err)
	c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
		"error": gin.H{
			"code":    ierr.Code(err),
			"message": ierr.DisplayMessage(err),
		},
		"required":  details["required"],
		"balance":   details["balance"],
		"reserved":  details["reserved"],
		"available": details["available"],
		"class":     details["class"],
	})
}
