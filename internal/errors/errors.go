package errors

import (
	"errors"
	"fmt"

	crdberrors "github.com/cockroachdb/errors"
)

// Sentinel codes the rest of the core matches with errors.Is / IsXxx below.
// These are machine-readable: the HTTP layer maps them to status codes,
// never by matching message text.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrValidation        = errors.New("validation error")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrInsufficientFunds = errors.New("insufficient credits")
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrEmailMismatch     = errors.New("email mismatch")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrPspUnavailable    = errors.New("psp unavailable")
	ErrPspCreate         = errors.New("psp create error")
	ErrDuplicateRef      = errors.New("duplicate ref") // internal only, never escapes a handler
	ErrUnknownAction     = errors.New("unknown action")
	ErrUnknownPlan       = errors.New("unknown plan")
	ErrInternal          = errors.New("internal error")
)

// Machine-readable codes for constructing errors via New/Wrap — kept next
// to the sentinels they're normally paired with.
const (
	CodeUnknownAction = "UNKNOWN_ACTION"
	CodeUnknownPlan   = "UNKNOWN_PLAN"
)

// Error is a structured domain error: a machine code, a human message, the
// logical operation it happened in, and the wrapped cause.
type Error struct {
	Code    string
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match either against another *Error with the same
// Code, or fall through to the wrapped sentinel.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Err, target)
}

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(err error, code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

func WithOp(err error, op string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		e.Op = op
		return e
	}
	return &Error{Message: err.Error(), Op: op, Err: err}
}

func IsNotFound(err error) bool          { return crdberrors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool     { return crdberrors.Is(err, ErrAlreadyExists) }
func IsValidation(err error) bool        { return crdberrors.Is(err, ErrValidation) }
func IsInvalidOperation(err error) bool  { return crdberrors.Is(err, ErrInvalidOperation) }
func IsInsufficientFunds(err error) bool { return crdberrors.Is(err, ErrInsufficientFunds) }
func IsAlreadySubscribed(err error) bool { return crdberrors.Is(err, ErrAlreadySubscribed) }
func IsEmailMismatch(err error) bool     { return crdberrors.Is(err, ErrEmailMismatch) }
func IsPspUnavailable(err error) bool    { return crdberrors.Is(err, ErrPspUnavailable) }
func IsDuplicateRef(err error) bool      { return crdberrors.Is(err, ErrDuplicateRef) }
func IsUnknownAction(err error) bool     { return crdberrors.Is(err, ErrUnknownAction) }
func IsUnknownPlan(err error) bool       { return crdberrors.Is(err, ErrUnknownPlan) }

// As is a thin re-export of the standard library's errors.As so callers
// only need to import this package.
func As(err error, target any) bool { return errors.As(err, target) }
