package cliauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"evault/internal/backend"
	"evault/internal/session"
	"evault/pkg/logging"

	"golang.org/x/oauth2"
)

// AuthState is the authentication state of the terminal.
type AuthState int

const (
	// AuthStateUnknown means credentials have not been checked yet.
	AuthStateUnknown AuthState = iota

	// AuthStateAuthenticated means a token was stored and the backend
	// accepted it.
	AuthStateAuthenticated

	// AuthStatePendingAuth means there is no usable token and a login is
	// needed or in progress.
	AuthStatePendingAuth

	// AuthStateError means the last check or login failed.
	AuthStateError
)

// String returns the string representation of the auth state.
func (s AuthState) String() string {
	switch s {
	case AuthStateAuthenticated:
		return "authenticated"
	case AuthStatePendingAuth:
		return "pending_auth"
	case AuthStateError:
		return "error"
	default:
		return "unknown"
	}
}

// Backend is the part of the backend client the Manager drives.
type Backend interface {
	PollBackend
	Refresh(ctx context.Context, accessToken string, dt session.DeviceType) error
	User(ctx context.Context) (*session.Identity, error)
	UseAccessToken(token string)
	HTTPClient() *http.Client
	APIBase() string
}

// LoginOptions tunes one Login call.
type LoginOptions struct {
	// NoBrowser skips launching the browser; the URL is only reported.
	NoBrowser bool

	// OnURL receives the sign-in URL before polling starts.
	OnURL func(url string)

	// OnAttempt is called before each poll.
	OnAttempt func(attempt int)
}

// Manager drives the cli device flow against one backend.
type Manager struct {
	mu        sync.RWMutex
	backend   Backend
	store     *TokenStore
	serverURL string
	state     AuthState
	lastError error
	identity  *session.Identity

	pollInterval time.Duration
	pollAttempts int
	open         func(url string) error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPollSchedule overrides the poll interval and attempt budget.
func WithPollSchedule(interval time.Duration, attempts int) ManagerOption {
	return func(m *Manager) {
		m.pollInterval = interval
		m.pollAttempts = attempts
	}
}

// WithBrowserOpener replaces OpenBrowser.
func WithBrowserOpener(open func(url string) error) ManagerOption {
	return func(m *Manager) {
		m.open = open
	}
}

// NewManager returns a Manager in AuthStateUnknown.
func NewManager(b Backend, store *TokenStore, serverURL string, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend:      b,
		store:        store,
		serverURL:    NormalizeServerURL(serverURL),
		state:        AuthStateUnknown,
		pollInterval: DefaultPollInterval,
		pollAttempts: DefaultPollAttempts,
		open:         OpenBrowser,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the error behind AuthStateError.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// StoredToken returns the stored token for the backend, if any.
func (m *Manager) StoredToken() *StoredToken {
	return m.store.GetToken(m.serverURL)
}

func (m *Manager) setState(state AuthState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.lastError = err
}

// CheckCredentials revalidates the stored token with the backend. A missing
// token yields AuthStatePendingAuth without error. An expired session or a
// rejected token removes the stored token.
func (m *Manager) CheckCredentials(ctx context.Context) (AuthState, error) {
	token := m.store.GetToken(m.serverURL)
	if token == nil {
		logging.Debug("CLIAuth", "No stored token for %s", m.serverURL)
		m.setState(AuthStatePendingAuth, nil)
		return AuthStatePendingAuth, nil
	}

	err := m.backend.Refresh(ctx, token.AccessToken, session.DeviceTypeCLI)
	switch {
	case err == nil:
		m.backend.UseAccessToken(token.AccessToken)
		m.setState(AuthStateAuthenticated, nil)
		return AuthStateAuthenticated, nil
	case errors.Is(err, session.ErrSessionExpired):
		logging.Info("CLIAuth", "Stored session for %s has expired", m.serverURL)
		m.dropToken()
		m.setState(AuthStatePendingAuth, err)
		return AuthStatePendingAuth, err
	case errors.Is(err, backend.ErrInvalidToken):
		logging.Info("CLIAuth", "Stored token for %s was rejected", m.serverURL)
		m.dropToken()
		m.setState(AuthStateError, err)
		return AuthStateError, err
	default:
		m.setState(AuthStateError, err)
		return AuthStateError, err
	}
}

// Login runs the cli device flow: start a sign-in, open the browser, poll
// until the web side finishes, then store the token.
func (m *Manager) Login(ctx context.Context, opts LoginOptions) error {
	m.setState(AuthStatePendingAuth, nil)

	initiator, err := session.NewInitiator(m.backend.HTTPClient(), m.backend.APIBase(), "", nil)
	if err != nil {
		m.setState(AuthStateError, err)
		return err
	}
	signInURL, err := initiator.ResolveSignInURL(ctx, session.DeviceTypeCLI)
	if err != nil {
		m.setState(AuthStateError, err)
		return fmt.Errorf("failed to start sign-in: %w", err)
	}
	sessionID := signInURL.Query().Get(session.ParamSessionID)
	if sessionID == "" {
		err := errors.New("sign-in URL carries no session id")
		m.setState(AuthStateError, err)
		return err
	}

	if opts.OnURL != nil {
		opts.OnURL(signInURL.String())
	}
	if !opts.NoBrowser {
		nav := &BrowserNavigator{Open: m.open}
		_ = nav.Navigate(ctx, signInURL.String())
	}

	poller := &Poller{
		Backend:     m.backend,
		Interval:    m.pollInterval,
		MaxAttempts: m.pollAttempts,
		OnAttempt:   opts.OnAttempt,
	}
	accessToken, err := poller.Wait(ctx, sessionID)
	if err != nil {
		m.setState(AuthStateError, err)
		return err
	}

	m.backend.UseAccessToken(accessToken)
	login := ""
	if id, err := m.backend.User(ctx); err == nil {
		login = id.Login
		m.mu.Lock()
		m.identity = id
		m.mu.Unlock()
	} else {
		logging.Debug("CLIAuth", "Could not resolve identity after login: %v", err)
	}

	if err := m.store.StoreToken(m.serverURL, login, &oauth2.Token{AccessToken: accessToken, TokenType: TokenType}); err != nil {
		m.setState(AuthStateError, err)
		return err
	}
	m.setState(AuthStateAuthenticated, nil)
	logging.Info("CLIAuth", "Signed in to %s", m.serverURL)
	return nil
}

// Identity returns the identity resolved during Login, if any.
func (m *Manager) Identity() (*session.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity, m.identity != nil
}

// Logout removes the stored token.
func (m *Manager) Logout() error {
	if err := m.store.DeleteToken(m.serverURL); err != nil {
		return err
	}
	m.setState(AuthStatePendingAuth, nil)
	return nil
}

func (m *Manager) dropToken() {
	if err := m.store.DeleteToken(m.serverURL); err != nil {
		logging.Warn("CLIAuth", "Failed to remove stored token: %v", err)
	}
}
