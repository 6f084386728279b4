package cli

import (
	"fmt"
)

// AuthRequiredError indicates authentication is needed.
type AuthRequiredError struct {
	// Endpoint is the backend that requires authentication.
	Endpoint string
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf(`Authentication required for %s

To authenticate, run:
  evault auth login

To check current authentication status:
  evault auth status`, e.Endpoint)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthExpiredError indicates the backend reported the session as expired.
type AuthExpiredError struct {
	// Endpoint is the backend whose session has expired.
	Endpoint string
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf(`Session expired for %s

To sign in again, run:
  evault auth login`, e.Endpoint)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthExpiredError) Is(target error) bool {
	_, ok := target.(*AuthExpiredError)
	return ok
}

// AuthFailedError indicates authentication failed.
type AuthFailedError struct {
	// Endpoint is the backend where authentication failed.
	Endpoint string
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed for %s: %v

To retry authentication, run:
  evault auth login`, e.Endpoint, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}
