package leadform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidForm is returned by Submit when a required field fails validation.
	ErrInvalidForm = errors.New("leadform: form has validation errors")

	// ErrSubmissionInFlight is returned by Submit while another submission is pending.
	ErrSubmissionInFlight = errors.New("leadform: submission already in flight")

	errEmptyReceipt = errors.New("intake returned no record")
)

// ValidationError is a field-scoped validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is the set of failures for the current field values, in
// field order.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// For returns the message for field, or "" when the field is valid.
func (v ValidationErrors) For(field string) string {
	for _, e := range v {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

// Has reports whether field currently fails validation.
func (v ValidationErrors) Has(field string) bool {
	return v.For(field) != ""
}

// ConflictError reports that the intake endpoint already holds a record for the email.
type ConflictError struct {
	Email   string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("leadform: contact %q already exists", e.Email)
	}
	return fmt.Sprintf("leadform: conflict for %q: %s", e.Email, e.Message)
}

// TransportError wraps network failures and responses that could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("leadform: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError is any other non-success answer from the intake endpoint.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("leadform: intake rejected request (%d): %s", e.StatusCode, msg)
}

// failureKind names the error class for operator logs.
func failureKind(err error) string {
	var conflict *ConflictError
	var transport *TransportError
	var rejected *RejectedError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &rejected):
		if rejected.StatusCode >= 500 {
			return "server"
		}
		return "rejected"
	default:
		return "unknown"
	}
}
