package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrPollAborted means the backend gave up on a polled session: the user
// denied access, the session id is unknown, or the poll budget ran out.
var ErrPollAborted = errors.New("sign-in aborted by backend")

// ErrInvalidToken means the backend rejected a stored access token.
var ErrInvalidToken = errors.New("access token rejected")

// StatusError is a non-2xx backend response other than session expiry.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsForbidden reports whether err is a 403 from the backend.
func IsForbidden(err error) bool {
	return IsStatus(err, http.StatusForbidden)
}
