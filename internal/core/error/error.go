package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "not found"
)

// Sentinels for the failure classes the agent distinguishes. Callers match
// them with errors.Is; the orchestrator maps each class to its own recovery
// policy.
var (
	// ErrSchemaValidation marks a structured model output that does not
	// conform to its declared schema.
	ErrSchemaValidation = errors.New("structured output failed schema validation")

	// ErrModelUnavailable marks a transport or provider failure of the
	// language model (timeout, auth, rate limit). Eligible for bounded retry
	// at the orchestrator boundary only.
	ErrModelUnavailable = errors.New("language model unavailable")

	// ErrClassification marks a classifier result outside the valid
	// category set.
	ErrClassification = errors.New("classification outside valid categories")

	// ErrCollaborator marks a failed external collaborator call
	// (scheduling, booking).
	ErrCollaborator = errors.New("external collaborator call failed")

	// ErrDelivery marks a failed outbound email delivery.
	ErrDelivery = errors.New("email delivery failed")

	// ErrIncompleteWiring marks a handler node registered without a real
	// implementation. Raised during graph build, never at runtime.
	ErrIncompleteWiring = errors.New("handler placeholder not bound to an implementation")

	// ErrNotFound marks a missing persisted record (e.g. no checkpoint yet).
	ErrNotFound = errors.New("record not found")
)

// Error wraps an underlying error with an HTTP-ish status and a message that
// is safe to surface.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Internal wraps err as an internal server error with the generic message.
func Internal(err error) *Error {
	return New(err, http.StatusInternalServerError, SystemErrorMessage)
}
