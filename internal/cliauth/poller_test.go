package cliauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evault/internal/backend"
	"evault/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPoll struct {
	mu      sync.Mutex
	results []backend.PollResult
	errs    []error
	calls   int
}

func (s *scriptedPoll) Poll(ctx context.Context, sessionID string) (backend.PollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], s.errs[i]
}

func TestPoller_Wait(t *testing.T) {
	tests := []struct {
		name      string
		results   []backend.PollResult
		errs      []error
		wantToken string
		wantErr   error
		wantCalls int
	}{
		{
			name:      "pending then ok",
			results:   []backend.PollResult{{Status: backend.PollPending}, {Status: backend.PollPending}, {Status: backend.PollOK, AccessToken: "tok"}},
			errs:      []error{nil, nil, nil},
			wantToken: "tok",
			wantCalls: 3,
		},
		{
			name:      "aborted",
			results:   []backend.PollResult{{Status: backend.PollPending}, {Status: backend.PollAbort}},
			errs:      []error{nil, backend.ErrPollAborted},
			wantErr:   backend.ErrPollAborted,
			wantCalls: 2,
		},
		{
			name:      "session expired",
			results:   []backend.PollResult{{}},
			errs:      []error{session.ErrSessionExpired},
			wantErr:   session.ErrSessionExpired,
			wantCalls: 1,
		},
		{
			name:      "transient failure then ok",
			results:   []backend.PollResult{{}, {Status: backend.PollOK, AccessToken: "tok"}},
			errs:      []error{errors.New("connection reset"), nil},
			wantToken: "tok",
			wantCalls: 2,
		},
		{
			name:      "budget exhausted",
			results:   []backend.PollResult{{Status: backend.PollPending}},
			errs:      []error{nil},
			wantErr:   ErrPollTimeout,
			wantCalls: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &scriptedPoll{results: tt.results, errs: tt.errs}
			var attempts []int
			p := &Poller{
				Backend:     b,
				Interval:    time.Millisecond,
				MaxAttempts: 4,
				OnAttempt:   func(n int) { attempts = append(attempts, n) },
			}

			tok, err := p.Wait(context.Background(), "sid")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, tok)
			}
			assert.Equal(t, tt.wantCalls, b.calls)
			assert.Len(t, attempts, tt.wantCalls)
		})
	}
}

func TestPoller_Cancelled(t *testing.T) {
	b := &scriptedPoll{results: []backend.PollResult{{Status: backend.PollPending}}, errs: []error{nil}}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		Backend:     b,
		Interval:    time.Hour,
		MaxAttempts: 3,
		OnAttempt: func(n int) {
			if n == 1 {
				go cancel()
			}
		},
	}

	_, err := p.Wait(ctx, "sid")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoller_RequiresSessionID(t *testing.T) {
	_, err := (&Poller{}).Wait(context.Background(), "")
	assert.Error(t, err)
}
