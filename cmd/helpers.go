package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evault/internal/backend"
	"evault/internal/cli"
	"evault/internal/cliauth"
	"evault/internal/config"
	"evault/internal/session"
	"evault/pkg/logging"
)

// DefaultStatusCheckTimeout bounds the revalidation done by status-style
// commands.
const DefaultStatusCheckTimeout = 15 * time.Second

// loadConfig resolves the configuration directory and applies the --server
// override.
func loadConfig() (config.EvaultConfig, error) {
	dir := configPath
	if dir == "" {
		var err error
		dir, err = config.GetDefaultConfigPath()
		if err != nil {
			return config.EvaultConfig{}, err
		}
	}
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		var fileErr *config.FileError
		if errors.As(err, &fileErr) {
			return config.EvaultConfig{}, fmt.Errorf("%w\n%s", err, fileErr.Hint())
		}
		return config.EvaultConfig{}, err
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	return cfg, nil
}

// cliSession bundles what a terminal command needs to talk to the backend.
type cliSession struct {
	cfg     config.EvaultConfig
	client  *backend.Client
	store   *cliauth.TokenStore
	manager *cliauth.Manager
}

// newSessionFunc is replaced in tests.
var newSessionFunc = newSession

func newSession() (*cliSession, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := cliauth.NewTokenStore(cliauth.TokenStoreConfig{StorageDir: cfg.Auth.TokenDir, FileMode: true})
	if err != nil {
		return nil, err
	}

	// an expired session discards the stored token; the next command asks
	// for a new login
	nav := &cliauth.ExpiredSessionNavigator{Store: store, ServerURL: cfg.Server.URL}
	client, err := backend.New(cfg.Server.URL,
		backend.WithAPIPrefix(cfg.Server.APIPrefix),
		backend.WithTimeout(cfg.Server.Timeout),
		backend.WithEffects(session.NewEffects(nav)),
	)
	if err != nil {
		return nil, err
	}

	manager := cliauth.NewManager(client, store, cfg.Server.URL,
		cliauth.WithPollSchedule(cfg.Auth.PollInterval, cfg.Auth.PollAttempts))

	return &cliSession{cfg: cfg, client: client, store: store, manager: manager}, nil
}

// requireAuth revalidates the stored token and maps the outcome onto the
// typed errors that drive exit codes.
func (s *cliSession) requireAuth(ctx context.Context) error {
	state, err := s.manager.CheckCredentials(ctx)
	endpoint := s.cfg.Server.URL
	switch {
	case state == cliauth.AuthStateAuthenticated:
		return nil
	case errors.Is(err, session.ErrSessionExpired):
		return &cli.AuthExpiredError{Endpoint: endpoint}
	case errors.Is(err, backend.ErrInvalidToken):
		return &cli.AuthRequiredError{Endpoint: endpoint}
	case err != nil:
		return s.wrapError(err)
	default:
		return &cli.AuthRequiredError{Endpoint: endpoint}
	}
}

// wrapError turns transport failures into a classified ConnectionError and
// a mid-command session expiry into AuthExpiredError.
func (s *cliSession) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrSessionExpired) {
		return &cli.AuthExpiredError{Endpoint: s.cfg.Server.URL}
	}
	if cli.IsConnectionFailure(err) {
		connErr := cli.ClassifyConnectionError(err, s.cfg.Server.URL)
		logging.Debug("CLI", "Connection failure: %v", err)
		if hint := connErr.Hint(); hint != "" {
			return fmt.Errorf("%w\n%s", connErr, hint)
		}
		return connErr
	}
	return err
}
