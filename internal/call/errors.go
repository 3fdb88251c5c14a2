// internal/call/errors.go
package call

import "net/http"

// Kind classifies workflow failures. Enrichment failures are deliberately
// absent: they are absorbed and never surface.
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindConfiguration       Kind = "configuration_error"
	KindCallPlacement       Kind = "call_placement_error"
	KindStorage             Kind = "storage_error"
	KindValidation          Kind = "validation_error"
)

// WorkflowError is a classified failure with a client-safe message and
// structured details. Raw provider error text stays in the logs.
type WorkflowError struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *WorkflowError) Error() string {
	return e.Message
}

func (e *WorkflowError) Unwrap() error {
	return e.cause
}

// HTTPStatus maps a failure kind to the status the API renders.
func (e *WorkflowError) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInsufficientCredits:
		return http.StatusPaymentRequired
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, details map[string]any, cause error) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: message, Details: details, cause: cause}
}
