package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"evault/internal/session"
	"evault/pkg/logging"
)

const (
	// DefaultTimeout bounds every backend request.
	DefaultTimeout = 10 * time.Second

	// DefaultAPIPrefix is where the backend mounts its API.
	DefaultAPIPrefix = "/api/github"

	// AccessTokenCookie is the session cookie the backend sets on a
	// successful exchange and expects on every dashboard call.
	AccessTokenCookie = "evault_access_token"

	maxErrorBodyBytes = 2048
	maxJSONBodyBytes  = 1 << 20
)

// Client talks to the evault backend. Every request goes through the
// session expiry guard.
type Client struct {
	baseURL   *url.URL
	apiBase   string
	http      *http.Client
	jar       http.CookieJar
	transport http.RoundTripper
	timeout   time.Duration

	effects     *session.Effects
	credentials *session.CredentialStore
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAPIPrefix overrides DefaultAPIPrefix.
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			c.apiBase = prefix
		}
	}
}

// WithCookieJar sets the jar holding the session cookie. Each lifecycle
// should use its own jar.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithTransport sets the innermost transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithEffects sets the executor that handles forced re-authentication.
func WithEffects(e *session.Effects) Option {
	return func(c *Client) {
		c.effects = e
	}
}

// WithCredentials sets the lifecycle's credential store.
func WithCredentials(store *session.CredentialStore) Option {
	return func(c *Client) {
		c.credentials = store
	}
}

// New returns a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		apiBase: DefaultAPIPrefix,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.jar = jar
	}
	if c.credentials == nil {
		c.credentials = session.NewCredentialStore()
	}
	if c.effects == nil {
		c.effects = session.NewEffects(nil)
	}

	base := c.transport
	if base == nil {
		base = http.DefaultTransport
	}
	chain := newRequestIDTransport(newCSRFTransport(base, c.credentials))

	c.apiBase = u.String() + "/" + strings.Trim(c.apiBase, "/")
	c.http = &http.Client{
		Jar:       c.jar,
		Timeout:   c.timeout,
		Transport: session.NewGuardTransport(chain, c.effects, c.credentials),
	}
	return c, nil
}

// HTTPClient returns the guarded client for components that build their
// own requests, such as the session Initiator and HTTPExchanger.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// APIBase returns the absolute API base URL.
func (c *Client) APIBase() string {
	return c.apiBase
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Credentials returns the lifecycle's credential store.
func (c *Client) Credentials() *session.CredentialStore {
	return c.credentials
}

// Effects returns the lifecycle's effects executor.
func (c *Client) Effects() *session.Effects {
	return c.effects
}

// SessionCookies returns the cookies the jar holds for the backend.
func (c *Client) SessionCookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// UseAccessToken places an access token in the jar as the session cookie.
func (c *Client) UseAccessToken(token string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{Name: AccessTokenCookie, Value: token, Path: "/"}})
}

// AccessToken returns the session cookie value, if present.
func (c *Client) AccessToken() (string, bool) {
	for _, ck := range c.jar.Cookies(c.baseURL) {
		if ck.Name == AccessTokenCookie && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do issues a request and returns the response for 2xx statuses. Other
// statuses become *StatusError; 440 never reaches here.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = redactURLError(err)
		if errors.Is(err, session.ErrSessionExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logging.Debug("Backend", "%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp.Body, out)
}

// redactURLError strips the query string from a transport error so that
// parameters such as passwords never end up in logs.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		return &url.Error{Op: uerr.Op, URL: "", Err: uerr.Err}
	}
	u.RawQuery = ""
	return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
}

// decodeJSON decodes a body into out. The backend sometimes serializes its
// payload twice, sending a JSON string that itself holds JSON; both forms
// are accepted.
func decodeJSON(r io.Reader, out interface{}) error {
	var raw json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r, maxJSONBodyBytes)).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
