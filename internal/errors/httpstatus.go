package errors

import (
	"net/http"

	crdberrors "github.com/cockroachdb/errors"
)

// HTTPStatusFromErr maps a marked error to its HTTP status. Unmatched
// errors are treated as internal failures (500): transient database
// errors must map here so the PSP/webhook caller retries.
func HTTPStatusFromErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case crdberrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case crdberrors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case crdberrors.Is(err, ErrAlreadySubscribed):
		return http.StatusConflict
	case crdberrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case crdberrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case crdberrors.Is(err, ErrEmailMismatch):
		return http.StatusForbidden
	case crdberrors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case crdberrors.Is(err, ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	case crdberrors.Is(err, ErrUnknownAction), crdberrors.Is(err, ErrUnknownPlan):
		return http.StatusUnprocessableEntity
	case crdberrors.Is(err, ErrPspUnavailable), crdberrors.Is(err, ErrPspCreate):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a short machine-readable slug for the JSON error body,
// derived from whichever sentinel the error is marked with.
func Code(err error) string {
	switch {
	case crdberrors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case crdberrors.Is(err, ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case crdberrors.Is(err, ErrAlreadySubscribed):
		return "ALREADY_SUBSCRIBED"
	case crdberrors.Is(err, ErrValidation):
		return "VALIDATION"
	case crdberrors.Is(err, ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case crdberrors.Is(err, ErrEmailMismatch):
		return "EMAIL_MISMATCH"
	case crdberrors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_CREDITS"
	case crdberrors.Is(err, ErrInvalidOperation):
		return "INVALID_OPERATION"
	case crdberrors.Is(err, ErrPspUnavailable):
		return "PSP_UNAVAILABLE"
	case crdberrors.Is(err, ErrPspCreate):
		return "PSP_CREATE_ERROR"
	case crdberrors.Is(err, ErrUnknownAction):
		return "UNKNOWN_ACTION"
	case crdberrors.Is(err, ErrUnknownPlan):
		return "UNKNOWN_PLAN"
	default:
		return "INTERNAL"
	}
}
