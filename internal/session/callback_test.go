package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchanger struct {
	mu    sync.Mutex
	calls []CallbackParams
	cred  Credential
	err   error
	hook  func()
}

func (f *fakeExchanger) Exchange(_ context.Context, p CallbackParams) (Credential, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()
	if f.hook != nil {
		f.hook()
	}
	return f.cred, f.err
}

func (f *fakeExchanger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const webQuery = "session_id=abc&code=xyz&state=st&device_type=web"

func TestCallbackHandler_MissingFieldsNoExchange(t *testing.T) {
	ex := &fakeExchanger{}
	nav := &RecordingNavigator{}
	h := NewCallbackHandler(ex, nav)

	status := h.Run(context.Background(), "session_id=abc&state=st&device_type=web")

	assert.Equal(t, StatusError, status)
	assert.Equal(t, 0, ex.callCount())
	assert.Empty(t, nav.Targets())
	assert.Equal(t, MessageInvalidParams, h.Message())

	var verr *ValidationError
	require.True(t, errors.As(h.Err(), &verr))
	assert.True(t, verr.HasField(ParamCode))
}

func TestCallbackHandler_WebSuccessNavigatesOnce(t *testing.T) {
	ex := &fakeExchanger{cred: Credential{DeviceType: DeviceTypeWeb, CSRFToken: "csrf"}}
	nav := &RecordingNavigator{}
	store := NewCredentialStore()
	h := NewCallbackHandler(ex, nav, WithCredentialStore(store))

	status := h.Run(context.Background(), webQuery)

	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, []string{RouteDashboard}, nav.Targets())
	assert.Equal(t, 1, ex.callCount())
	assert.Equal(t, "csrf", store.CSRFToken())
	assert.Empty(t, h.Message())

	// Re-running the same lifecycle is a no-op.
	assert.Equal(t, StatusSuccess, h.Run(context.Background(), webQuery))
	assert.Equal(t, 1, ex.callCount())
	assert.Len(t, nav.Targets(), 1)
}

func TestCallbackHandler_CLISuccessStaysPut(t *testing.T) {
	ex := &fakeExchanger{cred: Credential{DeviceType: DeviceTypeCLI}}
	nav := &RecordingNavigator{}
	h := NewCallbackHandler(ex, nav)

	status := h.Run(context.Background(), "session_id=abc&code=xyz&state=st&device_type=cli")

	assert.Equal(t, StatusSuccess, status)
	assert.Empty(t, nav.Targets())
	params, ok := h.Params()
	require.True(t, ok)
	assert.Equal(t, DeviceTypeCLI, params.DeviceType)
}

func TestCallbackHandler_ExchangeFailureNoRetry(t *testing.T) {
	ex := &fakeExchanger{err: &ExchangeError{Err: errors.New("connection refused")}}
	nav := &RecordingNavigator{}
	h := NewCallbackHandler(ex, nav)

	status := h.Run(context.Background(), webQuery)

	assert.Equal(t, StatusError, status)
	assert.Equal(t, 1, h.ExchangeCalls())
	assert.Equal(t, 1, ex.callCount())
	assert.Empty(t, nav.Targets())
	assert.Equal(t, MessageFailed, h.Message())
}

func TestCallbackHandler_NetworkFailureAgainstServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	nav := &RecordingNavigator{}
	h := NewCallbackHandler(NewHTTPExchanger(srv.Client(), srv.URL), nav)

	status := h.Run(context.Background(), webQuery)

	assert.Equal(t, StatusError, status)
	assert.Equal(t, int32(1), hits.Load())
	var exErr *ExchangeError
	require.True(t, errors.As(h.Err(), &exErr))
	assert.Equal(t, http.StatusBadGateway, exErr.StatusCode)
	assert.Empty(t, nav.Targets())
}

func TestCallbackHandler_CancelledDuringExchange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ex := &fakeExchanger{
		cred: Credential{DeviceType: DeviceTypeWeb},
		hook: cancel,
	}
	nav := &RecordingNavigator{}
	store := NewCredentialStore()
	h := NewCallbackHandler(ex, nav, WithCredentialStore(store))

	status := h.Run(ctx, webQuery)

	assert.Equal(t, StatusError, status)
	assert.True(t, errors.Is(h.Err(), context.Canceled))
	assert.Empty(t, nav.Targets())
	_, ok := store.Get()
	assert.False(t, ok, "credential must not be written for an abandoned callback")
}

func TestCallbackHandler_CancelledBeforeExchange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &fakeExchanger{}
	h := NewCallbackHandler(ex, &RecordingNavigator{})

	assert.Equal(t, StatusError, h.Run(ctx, webQuery))
	assert.Equal(t, 0, ex.callCount())
}

func TestCallbackHandler_ExpectedDeviceType(t *testing.T) {
	ex := &fakeExchanger{}
	nav := &RecordingNavigator{}
	h := NewCallbackHandler(ex, nav, WithExpectedDeviceType(DeviceTypeCLI))

	status := h.Run(context.Background(), webQuery)

	assert.Equal(t, StatusError, status)
	assert.Equal(t, 0, ex.callCount())
	assert.True(t, errors.Is(h.Err(), ErrInvalidDeviceType))
	assert.Equal(t, MessageInvalidParams, h.Message())
}

func TestCallbackHandler_ConcurrentRunsExchangeOnce(t *testing.T) {
	ex := &fakeExchanger{cred: Credential{DeviceType: DeviceTypeWeb}}
	nav := &RecordingNavigator{}
	h := NewCallbackHandler(ex, nav)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Run(context.Background(), webQuery)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ex.callCount())
	assert.Equal(t, []string{RouteDashboard}, nav.Targets())
}

func TestAuthStatus_String(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "unknown", AuthStatus(42).String())
}
