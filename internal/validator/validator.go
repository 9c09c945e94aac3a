package validator

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func initValidator() {
	once.Do(func() {
		validate = validator.New()
	})
}

func NewValidator() *validator.Validate {
	initValidator()
	return validate
}

func GetValidator() *validator.Validate {
	initValidator()
	return validate
}

// ValidateRequest runs struct-tag validation and, on failure, returns a
// single structured ierr.ErrValidation carrying one detail entry per
// offending field.
func ValidateRequest(req interface{}) error {
	initValidator()

	if err := validate.Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fieldErr := range validateErrs {
				details[fieldErr.Field()] = fieldErr.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ValidateURL requires raw, if set, to be an https:// URL with a host.
func ValidateURL(raw *string) error {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}

	u, err := url.ParseRequestURI(*raw)
	if err != nil {
		return errors.New("url must be a valid URL")
	}
	if u.Scheme != "https" {
		return errors.New("url must start with https://")
	}
	if u.Host == "" {
		return errors.New("url must have a valid host")
	}
	return nil
}
