package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionExpired is returned by every guarded API call whose response
// carried the reserved session-expired status. It is a signal rather than a
// fault: the guard has already forced re-authentication by the time a caller
// sees it.
var ErrSessionExpired = errors.New("session expired")

// ErrInvalidDeviceType matches (via errors.Is) any *ValidationError that
// rejected a device_type value.
var ErrInvalidDeviceType = errors.New("invalid device type")

// ErrCredentialWritten is returned when a second credential write is
// attempted within one lifecycle.
var ErrCredentialWritten = errors.New("session credential already written")

const (
	reasonMissing     = "missing"
	reasonEmpty       = "empty"
	reasonConflicting = "repeated with conflicting values"
	reasonDeviceType  = "must be one of web, cli"
	reasonMismatch    = "does not match the device type that started the sign-in"
	reasonMalformed   = "malformed query string"
)

// FieldProblem describes why a single callback parameter was rejected.
type FieldProblem struct {
	Field  string
	Reason string
}

// ValidationError aggregates every problem found in one set of callback
// parameters. It is terminal and never retried.
type ValidationError struct {
	Problems []FieldProblem
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid callback parameters"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Reason)
	}
	return "invalid callback parameters: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match both the *ValidationError type and, for device type
// problems, ErrInvalidDeviceType.
func (e *ValidationError) Is(target error) bool {
	if target == ErrInvalidDeviceType {
		for _, p := range e.Problems {
			if p.Field == ParamDeviceType && (p.Reason == reasonDeviceType || p.Reason == reasonMismatch) {
				return true
			}
		}
		return false
	}
	_, ok := target.(*ValidationError)
	return ok
}

// HasField reports whether the named parameter was rejected.
func (e *ValidationError) HasField(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

// ExchangeError is a failed token exchange: either the request never
// completed (Err set, StatusCode zero) or the backend answered non-2xx.
type ExchangeError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

// Unwrap returns the underlying transport error, if any.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// InitiationError is a failure to obtain the sign-in redirect target.
type InitiationError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *InitiationError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("sign-in start failed with status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("sign-in start failed with status %d", e.StatusCode)
	default:
		return fmt.Sprintf("sign-in start failed: %v", e.Err)
	}
}

// Unwrap returns the underlying error, if any.
func (e *InitiationError) Unwrap() error {
	return e.Err
}
