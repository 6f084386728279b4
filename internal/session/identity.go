package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type,omitempty"`
}

// DisplayName returns Name, falling back to Login.
func (i *Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Login
}

// IdentityFetcher retrieves the identity from the backend.
type IdentityFetcher interface {
	User(ctx context.Context) (*Identity, error)
}

// IdentityFetcherFunc adapts a function to IdentityFetcher.
type IdentityFetcherFunc func(ctx context.Context) (*Identity, error)

// User calls f(ctx).
func (f IdentityFetcherFunc) User(ctx context.Context) (*Identity, error) {
	return f(ctx)
}

var errNoIdentity = errors.New("backend returned no identity")

// DefaultIdentityTimeout bounds one shared identity fetch.
const DefaultIdentityTimeout = 10 * time.Second

// IdentityCache fetches the identity at most once per lifecycle and shares
// it between every consumer. Concurrent Get calls collapse into one request.
// Failures are not remembered, so a later Get tries again.
//
// Once the lifecycle's credential has lapsed the cache holds no identity:
// Get fails with ErrSessionExpired without a request, and a fetch that
// completes after the lapse is discarded.
type IdentityCache struct {
	fetcher     IdentityFetcher
	credentials *CredentialStore
	timeout     time.Duration
	group       singleflight.Group

	mu       sync.RWMutex
	identity *Identity
}

// IdentityOption configures an IdentityCache.
type IdentityOption func(*IdentityCache)

// WithLapseCheck ties the cache to the lifecycle's credential store.
func WithLapseCheck(store *CredentialStore) IdentityOption {
	return func(c *IdentityCache) {
		c.credentials = store
	}
}

// WithIdentityTimeout overrides DefaultIdentityTimeout.
func WithIdentityTimeout(d time.Duration) IdentityOption {
	return func(c *IdentityCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewIdentityCache returns an empty cache backed by fetcher.
func NewIdentityCache(fetcher IdentityFetcher, opts ...IdentityOption) *IdentityCache {
	c := &IdentityCache{fetcher: fetcher, timeout: DefaultIdentityTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *IdentityCache) lapsed() bool {
	return c.credentials != nil && c.credentials.Lapsed()
}

// Get returns the cached identity, fetching it if needed. The shared fetch
// is detached from any single caller's cancellation; each caller still
// stops waiting when its own ctx is done.
func (c *IdentityCache) Get(ctx context.Context) (*Identity, error) {
	if c.lapsed() {
		return nil, ErrSessionExpired
	}
	if id, ok := c.Peek(); ok {
		return id, nil
	}

	ch := c.group.DoChan("identity", func() (interface{}, error) {
		if id, ok := c.Peek(); ok {
			return id, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		id, err := c.fetcher.User(fetchCtx)
		if err != nil {
			return nil, err
		}
		if id == nil {
			return nil, errNoIdentity
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.lapsed() {
			return nil, ErrSessionExpired
		}
		c.identity = id
		return id, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if c.lapsed() {
			return nil, ErrSessionExpired
		}
		return res.Val.(*Identity), nil
	}
}

// Peek returns the identity without fetching. A false result means "not
// loaded yet" or "session lapsed", never a stale identity.
func (c *IdentityCache) Peek() (*Identity, bool) {
	if c.lapsed() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.identity != nil
}
