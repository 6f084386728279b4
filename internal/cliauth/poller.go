package cliauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evault/internal/backend"
	"evault/internal/session"
	"evault/pkg/logging"
)

// Defaults of the sign-in poll, matching the backend's attempt budget.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 10
)

// ErrPollTimeout means the handshake did not complete within the attempt
// budget.
var ErrPollTimeout = errors.New("sign-in was not completed in time")

// PollBackend is the part of the backend client the Poller uses.
type PollBackend interface {
	Poll(ctx context.Context, sessionID string) (backend.PollResult, error)
}

// Poller waits for the web side of a CLI sign-in to complete.
type Poller struct {
	Backend     PollBackend
	Interval    time.Duration
	MaxAttempts int

	// OnAttempt, if set, is called before each poll with the 1-based
	// attempt number.
	OnAttempt func(attempt int)
}

// Wait polls until the backend hands out an access token. Aborts, expired
// sessions and cancellation end the wait immediately; transient failures
// use up an attempt.
func (p *Poller) Wait(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if p.OnAttempt != nil {
			p.OnAttempt(attempt)
		}

		result, err := p.Backend.Poll(ctx, sessionID)
		switch {
		case err == nil && result.Status == backend.PollOK:
			return result.AccessToken, nil
		case errors.Is(err, backend.ErrPollAborted), errors.Is(err, session.ErrSessionExpired):
			return "", err
		case ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			logging.Warn("CLIAuth", "Poll attempt %d/%d failed: %v", attempt, attempts, err)
		}

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrPollTimeout, attempts)
}
