package session

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxCSRFTokenBytes = 4096

// Exchanger completes the handshake by trading the callback parameters for
// a session credential.
type Exchanger interface {
	Exchange(ctx context.Context, params CallbackParams) (Credential, error)
}

// HTTPExchanger calls GET {api}/auth/token with the four callback
// parameters. Cookies set by the backend land in the client's jar.
type HTTPExchanger struct {
	client   *http.Client
	endpoint string
	now      func() time.Time
}

// NewHTTPExchanger returns an exchanger using client against apiBase.
func NewHTTPExchanger(client *http.Client, apiBase string) *HTTPExchanger {
	return &HTTPExchanger{
		client:   client,
		endpoint: strings.TrimSuffix(apiBase, "/") + "/auth/token",
		now:      time.Now,
	}
}

// Exchange performs the exchange. Transport failures and non-2xx responses
// are returned as *ExchangeError.
func (e *HTTPExchanger) Exchange(ctx context.Context, params CallbackParams) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"?"+params.Query().Encode(), nil)
	if err != nil {
		return Credential{}, &ExchangeError{Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Credential{}, &ExchangeError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxCSRFTokenBytes))
		return Credential{}, &ExchangeError{StatusCode: resp.StatusCode}
	}

	cred := Credential{DeviceType: params.DeviceType, IssuedAt: e.now()}
	if params.DeviceType == DeviceTypeWeb {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxCSRFTokenBytes))
		if err != nil {
			return Credential{}, &ExchangeError{StatusCode: resp.StatusCode, Err: err}
		}
		cred.CSRFToken = strings.Trim(strings.TrimSpace(string(body)), `"`)
	}
	return cred, nil
}
