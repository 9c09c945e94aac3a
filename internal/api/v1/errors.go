package v1

import (
	"github.com/gin-gonic/gin"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
)

// RespondError writes err's structured JSON body at the HTTP status
// ierr.HTTPStatusFromErr maps it to.
func RespondError(c *gin.Context, err error) {
	status := ierr.HTTPStatusFromErr(err)
	c.AbortWithStatusJSON(status, ierr.ErrorResponse{
		Success: false,
		Error: ierr.ErrorDetail{
			Code:    ierr.Code(err),
			Message: ierr.DisplayMessage(err),
			Details: ierr.ReportableDetails(err),
		},
	})
}
