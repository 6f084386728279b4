package cli

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"

	"evault/internal/session"
)

// ConnectionErrorType is why the backend could not be reached.
type ConnectionErrorType int

const (
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS: the backend's certificate was not accepted.
	ConnectionErrorTLS
	// ConnectionErrorRefused: nothing answered on the backend address, or the
	// connection was dropped.
	ConnectionErrorRefused
	// ConnectionErrorTimeout: the backend client's timeout (server.timeout)
	// elapsed before a response arrived.
	ConnectionErrorTimeout
	// ConnectionErrorDNS: the backend host name did not resolve.
	ConnectionErrorDNS
)

func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "Untrusted certificate"
	case ConnectionErrorRefused:
		return "Backend unreachable"
	case ConnectionErrorTimeout:
		return "Backend timed out"
	case ConnectionErrorDNS:
		return "Unknown backend host"
	default:
		return "Connection error"
	}
}

// ConnectionError is a backend request that failed below HTTP.
type ConnectionError struct {
	Endpoint string
	Type     ConnectionErrorType
	Reason   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: cannot reach %s: %v", e.Type, e.Endpoint, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

// Is matches any *ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	_, ok := target.(*ConnectionError)
	return ok
}

// Hint returns a suggestion for the failure, or "".
func (e *ConnectionError) Hint() string {
	switch e.Type {
	case ConnectionErrorTLS:
		return "The backend's certificate is not trusted on this machine. Check server.url, or install the issuing CA."
	case ConnectionErrorDNS:
		return "Check server.url in ~/.config/evault/config.yaml, EVAULT_SERVER_URL or --server."
	case ConnectionErrorTimeout:
		return "The backend did not answer within server.timeout (10s by default). Try again or raise it."
	case ConnectionErrorRefused:
		return "Is the evault backend running at server.url?"
	default:
		return ""
	}
}

// IsConnectionFailure reports whether err means the request never got an
// HTTP answer. A session the backend reported as expired (440) did get an
// answer and is not a connection failure, even though http.Client wraps it
// in a *url.Error. Neither is a cancelled command.
func IsConnectionFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, context.Canceled) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ClassifyConnectionError wraps err, which should satisfy
// IsConnectionFailure, in a ConnectionError for endpoint.
func ClassifyConnectionError(err error, endpoint string) *ConnectionError {
	if err == nil {
		return nil
	}
	return &ConnectionError{Endpoint: endpoint, Type: connectionErrorType(err), Reason: err}
}

func connectionErrorType(err error) ConnectionErrorType {
	switch {
	case isCertificateError(err):
		return ConnectionErrorTLS
	case isDNSError(err):
		return ConnectionErrorDNS
	case isTimeout(err):
		return ConnectionErrorTimeout
	case isRefused(err):
		return ConnectionErrorRefused
	default:
		return ConnectionErrorUnknown
	}
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	var record tls.RecordHeaderError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid) ||
		errors.As(err, &record)
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isTimeout covers http.Client.Timeout, which surfaces as a *url.Error
// reporting Timeout, and deadlines set on the command context.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
