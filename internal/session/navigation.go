package session

import (
	"context"
	"sync"
	"sync/atomic"

	"evault/pkg/logging"
)

// Routes the session layer navigates to.
const (
	RouteEntry     = "/"
	RouteDashboard = "/dashboard"
)

// Navigator performs a navigation to an absolute URL or an in-app path.
// Implementations decide what a navigation means in their context: an HTTP
// redirect, opening a browser, or discarding local credentials.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, target string) error

// Navigate calls f(ctx, target).
func (f NavigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// RecordingNavigator remembers navigations instead of performing them. The
// web front uses one per request and turns the last target into a redirect.
type RecordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

// Navigate records target.
func (n *RecordingNavigator) Navigate(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	return nil
}

// Targets returns a copy of every recorded target in order.
func (n *RecordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.targets))
	copy(out, n.targets)
	return out
}

// Last returns the most recent target.
func (n *RecordingNavigator) Last() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.targets) == 0 {
		return "", false
	}
	return n.targets[len(n.targets)-1], true
}

// Action is the decision an ExpiryPolicy makes about one response.
type Action int

const (
	// ActionPassthrough hands the response to the caller untouched.
	ActionPassthrough Action = iota
	// ActionForceReauth discards the response and sends the user back to
	// the entry route.
	ActionForceReauth
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionPassthrough:
		return "passthrough"
	case ActionForceReauth:
		return "force_reauth"
	default:
		return "unknown"
	}
}

// Effects executes policy actions for one lifecycle. However many guarded
// responses come back expired, at most one navigation to the entry route
// is performed.
type Effects struct {
	nav       Navigator
	triggered atomic.Bool
}

// NewEffects returns an executor that navigates with nav. A nil nav is
// allowed; the re-auth is then only recorded.
func NewEffects(nav Navigator) *Effects {
	return &Effects{nav: nav}
}

// Apply executes a. Only the first ActionForceReauth navigates.
func (e *Effects) Apply(ctx context.Context, a Action) error {
	if a != ActionForceReauth {
		return nil
	}
	if !e.triggered.CompareAndSwap(false, true) {
		logging.Debug("Session", "Re-authentication already in progress, skipping navigation")
		return nil
	}
	logging.Info("Session", "Session expired, returning to %s", RouteEntry)
	if e.nav == nil {
		return nil
	}
	return e.nav.Navigate(context.WithoutCancel(ctx), RouteEntry)
}

// ReauthTriggered reports whether a forced re-authentication happened.
func (e *Effects) ReauthTriggered() bool {
	return e.triggered.Load()
}
