package errors

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ErrorBuilder is a fluent constructor for errors that carry a user-facing
// hint and structured details on top of an internal message. Mark must be
// the last call in the chain.
type ErrorBuilder struct {
	err error
}

func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.New(msg)}
}

func WithError(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// WithMessage adds internal-only context.
func (b *ErrorBuilder) WithMessage(msg string) *ErrorBuilder {
	b.err = errors.WithMessage(b.err, msg)
	return b
}

// WithHint adds the message shown to the end user / API caller.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.err = errors.WithHintf(b.err, format, args...)
	return b
}

// WithReportableDetails attaches a structured payload (e.g. required/
// balance/available for InsufficientCredits) that the HTTP layer can
// surface verbatim in the JSON error body.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	marshaled, err := json.Marshal(details)
	if err != nil {
		return b
	}
	b.err = errors.WithSafeDetails(b.err, "__json__:%s", errors.Safe(string(marshaled)))
	return b
}

// Mark tags the error with a sentinel so errors.Is(err, sentinel) works
// across the whole chain. Should be the last call.
func (b *ErrorBuilder) Mark(reference error) error {
	b.err = errors.Mark(b.err, reference)
	return b.err
}

func (b *ErrorBuilder) Error() error {
	return b.err
}

// ReportableDetails merges the JSON payloads attached by every
// WithReportableDetails call in the error's chain.
func ReportableDetails(err error) map[string]any {
	details := make(map[string]any)
	const prefix = "__json__:"

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if len(payload) <= len(prefix) || payload[:len(prefix)] != prefix {
				continue
			}
			var jsonDetails map[string]any
			if jsonErr := json.Unmarshal([]byte(payload[len(prefix):]), &jsonDetails); jsonErr == nil {
				for k, v := range jsonDetails {
					details[k] = v
				}
			}
		}
	}
	return details
}

// DisplayMessage returns the first non-empty hint attached to err, or a
// generic fallback if none was set.
func DisplayMessage(err error) string {
	for _, hint := range errors.GetAllHints(err) {
		if hint != "" {
			return hint
		}
	}
	return "an unexpected error occurred"
}
