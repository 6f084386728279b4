package backend

import (
	"net/http"

	"evault/internal/session"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"
	// CSRFHeader carries the token handed out by the exchange.
	CSRFHeader = "X-CSRF-Token"
)

type requestIDTransport struct {
	base http.RoundTripper
}

func newRequestIDTransport(base http.RoundTripper) *requestIDTransport {
	return &requestIDTransport{base: base}
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set(RequestIDHeader, uuid.NewString())
	return t.base.RoundTrip(r)
}

// csrfTransport adds the CSRF token to state-changing requests.
type csrfTransport struct {
	base  http.RoundTripper
	store *session.CredentialStore
}

func newCSRFTransport(base http.RoundTripper, store *session.CredentialStore) *csrfTransport {
	return &csrfTransport{base: base, store: store}
}

func (t *csrfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return t.base.RoundTrip(req)
	}
	token := t.store.CSRFToken()
	if token == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set(CSRFHeader, token)
	return t.base.RoundTrip(r)
}
