package session

import (
	"fmt"
	"io"
	"net/http"

	"evault/pkg/logging"
)

// StatusSessionExpired is the reserved, non-standard status the backend
// returns when the session credential is no longer valid.
const StatusSessionExpired = 440

// ExpiryPolicy maps a response to an Action. It has no side effects.
type ExpiryPolicy struct{}

// OnResponse returns ActionForceReauth for a session-expired response and
// ActionPassthrough for everything else, including other errors.
func (ExpiryPolicy) OnResponse(resp *http.Response) Action {
	if resp != nil && resp.StatusCode == StatusSessionExpired {
		return ActionForceReauth
	}
	return ActionPassthrough
}

// GuardTransport applies the ExpiryPolicy to every response passing through
// it. Expired responses never reach the caller: their body is drained and
// closed, the credential is marked lapsed, the Effects executor navigates to
// the entry route and the caller gets ErrSessionExpired.
type GuardTransport struct {
	Base        http.RoundTripper
	Policy      ExpiryPolicy
	Effects     *Effects
	Credentials *CredentialStore
}

// NewGuardTransport wraps base. A nil base uses http.DefaultTransport.
func NewGuardTransport(base http.RoundTripper, effects *Effects, credentials *CredentialStore) *GuardTransport {
	return &GuardTransport{Base: base, Effects: effects, Credentials: credentials}
}

// RoundTrip implements http.RoundTripper.
func (t *GuardTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	action := t.Policy.OnResponse(resp)
	if action == ActionPassthrough {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	logging.Debug("Session", "%s %s answered %d", req.Method, req.URL.Path, resp.StatusCode)

	if t.Credentials != nil {
		t.Credentials.MarkLapsed()
	}
	if t.Effects != nil {
		if navErr := t.Effects.Apply(req.Context(), action); navErr != nil {
			logging.Error("Session", navErr, "Failed to navigate after session expiry")
		}
	}
	return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrSessionExpired)
}
