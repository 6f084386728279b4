package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"evault/pkg/logging"
)

// User-facing messages. The underlying cause is logged, never shown.
const (
	MessageInvalidParams = "Invalid parameters provided for GitHub authentication."
	MessageFailed        = "Something went wrong."
)

// AuthStatus is the state of one callback handling. It only moves forward:
// pending to success, or pending to error.
type AuthStatus int

const (
	StatusPending AuthStatus = iota
	StatusSuccess
	StatusError
)

// String implements fmt.Stringer.
func (s AuthStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// CallbackHandler drives the callback page: validate, exchange once, then
// navigate or stay. A handler instance belongs to exactly one page
// lifecycle and runs at most once.
type CallbackHandler struct {
	exchanger   Exchanger
	navigator   Navigator
	credentials *CredentialStore
	expected    DeviceType

	once sync.Once

	mu            sync.RWMutex
	status        AuthStatus
	err           error
	params        CallbackParams
	exchangeCalls int
}

// CallbackOption configures a CallbackHandler.
type CallbackOption func(*CallbackHandler)

// WithExpectedDeviceType rejects callbacks whose echoed device_type differs
// from dt. Without it the echoed value is trusted.
func WithExpectedDeviceType(dt DeviceType) CallbackOption {
	return func(h *CallbackHandler) {
		h.expected = dt
	}
}

// WithCredentialStore sets the store the credential is written to.
func WithCredentialStore(store *CredentialStore) CallbackOption {
	return func(h *CallbackHandler) {
		h.credentials = store
	}
}

// NewCallbackHandler returns a pending handler.
func NewCallbackHandler(exchanger Exchanger, navigator Navigator, opts ...CallbackOption) *CallbackHandler {
	h := &CallbackHandler{
		exchanger: exchanger,
		navigator: navigator,
		status:    StatusPending,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run handles the callback query. Only the first call does any work; later
// calls return the settled status.
func (h *CallbackHandler) Run(ctx context.Context, rawQuery string) AuthStatus {
	h.once.Do(func() {
		h.run(ctx, rawQuery)
	})
	return h.Status()
}

func (h *CallbackHandler) run(ctx context.Context, rawQuery string) {
	params, err := ParseCallbackQuery(rawQuery)
	if err == nil && h.expected != "" && params.DeviceType != h.expected {
		err = &ValidationError{Problems: []FieldProblem{{Field: ParamDeviceType, Reason: reasonMismatch}}}
	}
	if err != nil {
		logging.Warn("Session", "Rejected callback parameters: %v", err)
		h.settle(StatusError, err)
		return
	}

	if err := ctx.Err(); err != nil {
		h.settle(StatusError, fmt.Errorf("callback abandoned before exchange: %w", err))
		return
	}

	h.mu.Lock()
	h.params = params
	h.exchangeCalls++
	h.mu.Unlock()

	cred, err := h.exchanger.Exchange(ctx, params)

	// A lifecycle that ended while the exchange was in flight must not act on
	// its result.
	if ctxErr := ctx.Err(); ctxErr != nil {
		logging.Debug("Session", "Discarding exchange result for abandoned callback (session %s)", params.SessionID)
		h.settle(StatusError, fmt.Errorf("callback abandoned during exchange: %w", ctxErr))
		return
	}
	if err != nil {
		logging.Error("Session", err, "Token exchange failed for session %s", params.SessionID)
		h.settle(StatusError, err)
		return
	}

	if h.credentials != nil {
		if err := h.credentials.Set(cred); err != nil {
			logging.Error("Session", err, "Failed to store session credential")
			h.settle(StatusError, err)
			return
		}
	}

	h.settle(StatusSuccess, nil)
	logging.Info("Session", "Sign-in completed for session %s (device type %s)", params.SessionID, params.DeviceType)

	if params.DeviceType == DeviceTypeWeb && h.navigator != nil {
		if err := h.navigator.Navigate(ctx, RouteDashboard); err != nil {
			logging.Error("Session", err, "Failed to navigate to %s", RouteDashboard)
		}
	}
}

func (h *CallbackHandler) settle(status AuthStatus, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusPending {
		return
	}
	h.status = status
	h.err = err
}

// Status returns the current status.
func (h *CallbackHandler) Status() AuthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Err returns the cause of an error status.
func (h *CallbackHandler) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Params returns the validated parameters, if validation succeeded.
func (h *CallbackHandler) Params() (CallbackParams, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.params, h.exchangeCalls > 0
}

// ExchangeCalls returns how many exchange requests were issued.
func (h *CallbackHandler) ExchangeCalls() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exchangeCalls
}

// Message is the text shown to the user for an error status.
func (h *CallbackHandler) Message() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status != StatusError {
		return ""
	}
	var verr *ValidationError
	if errors.As(h.err, &verr) {
		return MessageInvalidParams
	}
	return MessageFailed
}
