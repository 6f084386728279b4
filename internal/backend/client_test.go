package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"evault/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *session.RecordingNavigator) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	nav := &session.RecordingNavigator{}
	opts = append([]Option{WithEffects(session.NewEffects(nav))}, opts...)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c, nav
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("://nope")
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New("http://127.0.0.1:8000/")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000/api/github", c.APIBase())
	assert.Equal(t, DefaultTimeout, c.HTTPClient().Timeout)
	assert.NotNil(t, c.Credentials())
	assert.NotNil(t, c.Effects())

	c, err = New("http://127.0.0.1:8000", WithAPIPrefix("/v2/"), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000/v2", c.APIBase())
	assert.Equal(t, time.Second, c.HTTPClient().Timeout)
}

func TestClient_User(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/github/dashboard/user", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		ck, err := r.Cookie(AccessTokenCookie)
		require.NoError(t, err)
		assert.Equal(t, "tok", ck.Value)
		fmt.Fprint(w, `{"id":42,"login":"octocat","name":"Mona","avatar_url":"https://a/1","type":"User"}`)
	}))
	c.UseAccessToken("tok")

	id, err := c.User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.ID)
	assert.Equal(t, "Mona", id.DisplayName())
}

func TestClient_UserIncomplete(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":""}`)
	}))

	_, err := c.User(context.Background())
	assert.Error(t, err)
}

func TestClient_RepositoriesExpiredSession(t *testing.T) {
	var hits atomic.Int32
	c, nav := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(session.StatusSessionExpired)
		fmt.Fprint(w, `[{"id":1,"full_name":"should/not-be-read"}]`)
	}))

	cache := session.NewIdentityCache(c, session.WithLapseCheck(c.Credentials()))
	repos, err := c.Repositories(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrSessionExpired))
	assert.Nil(t, repos)

	_, err = cache.Get(context.Background())
	assert.True(t, errors.Is(err, session.ErrSessionExpired))
	_, ok := cache.Peek()
	assert.False(t, ok)

	assert.Equal(t, []string{session.RouteEntry}, nav.Targets())
	assert.True(t, c.Credentials().Lapsed())
	assert.Equal(t, int32(1), hits.Load(), "a lapsed session does not ask for the identity")
}

func TestClient_IdentityNotCachedAfterRepositoriesExpire(t *testing.T) {
	var userHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/github/dashboard/user", func(w http.ResponseWriter, r *http.Request) {
		userHits.Add(1)
		fmt.Fprint(w, `{"id":1,"login":"octocat"}`)
	})
	mux.HandleFunc("GET /api/github/dashboard/repositories", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(session.StatusSessionExpired)
	})
	c, nav := newTestClient(t, mux)
	cache := session.NewIdentityCache(c, session.WithLapseCheck(c.Credentials()))

	t.Run("identity requested after the expiry", func(t *testing.T) {
		_, err := c.Repositories(context.Background())
		require.True(t, errors.Is(err, session.ErrSessionExpired))

		id, err := cache.Get(context.Background())
		assert.Nil(t, id)
		assert.True(t, errors.Is(err, session.ErrSessionExpired))
		_, ok := cache.Peek()
		assert.False(t, ok)
		assert.Equal(t, int32(0), userHits.Load())
		assert.Equal(t, []string{session.RouteEntry}, nav.Targets())
	})
}

func TestClient_IdentityDroppedWhenRepositoriesExpireLater(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/github/dashboard/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1,"login":"octocat"}`)
	})
	mux.HandleFunc("GET /api/github/dashboard/repositories", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(session.StatusSessionExpired)
	})
	c, nav := newTestClient(t, mux)
	cache := session.NewIdentityCache(c, session.WithLapseCheck(c.Credentials()))

	id, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", id.Login)

	_, err = c.Repositories(context.Background())
	require.True(t, errors.Is(err, session.ErrSessionExpired))

	_, ok := cache.Peek()
	assert.False(t, ok, "an expired session holds no identity")
	_, err = cache.Get(context.Background())
	assert.True(t, errors.Is(err, session.ErrSessionExpired))
	assert.Equal(t, []string{session.RouteEntry}, nav.Targets())
}

func TestClient_StatusError(t *testing.T) {
	c, nav := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	}))

	_, err := c.Repositories(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "upstream broke", se.Body)
	assert.Equal(t, "repositories", se.Op)
	assert.Empty(t, nav.Targets())
}

func TestClient_Poll(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      PollResult
		wantAbort bool
		wantErr   bool
	}{
		{
			name:   "pending double encoded",
			status: http.StatusOK,
			body:   mustJSONString(t, `{"status": "pending"}`),
			want:   PollResult{Status: PollPending},
		},
		{
			name:   "ok plain json",
			status: http.StatusOK,
			body:   `{"status":"ok","access_token":"abc"}`,
			want:   PollResult{Status: PollOK, AccessToken: "abc"},
		},
		{
			name:      "max attempts",
			status:    http.StatusForbidden,
			body:      mustJSONString(t, `{"status": "abort", "error": "Max attempt exceeded."}`),
			wantAbort: true,
		},
		{
			name:    "ok without token",
			status:  http.StatusOK,
			body:    `{"status":"ok"}`,
			wantErr: true,
		},
		{
			name:    "unknown status",
			status:  http.StatusOK,
			body:    `{"status":"weird"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/github/auth/poll", r.URL.Path)
				assert.Equal(t, "sid", r.URL.Query().Get("session_id"))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			got, err := c.Poll(context.Background(), "sid")
			switch {
			case tt.wantAbort:
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrPollAborted))
				assert.Equal(t, PollAbort, got.Status)
				assert.Equal(t, "Max attempt exceeded.", got.Error)
			case tt.wantErr:
				require.Error(t, err)
				assert.False(t, errors.Is(err, ErrPollAborted))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClient_PollKeepsAttemptCookie(t *testing.T) {
	var seen []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("evault_poll_attempt"); err == nil {
			seen = append(seen, ck.Value)
		}
		http.SetCookie(w, &http.Cookie{Name: "evault_poll_attempt", Value: fmt.Sprint(len(seen) + 1), Path: "/"})
		fmt.Fprint(w, `{"status":"pending"}`)
	}))

	for i := 0; i < 3; i++ {
		_, err := c.Poll(context.Background(), "sid")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"1", "2"}, seen)
}

func TestClient_Refresh(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantInvalid bool
		wantExpired bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "forbidden", status: http.StatusForbidden, wantInvalid: true},
		{name: "expired", status: session.StatusSessionExpired, wantExpired: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, nav := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
				assert.Equal(t, "cli", r.URL.Query().Get("device_type"))
				w.WriteHeader(tt.status)
			}))

			err := c.Refresh(context.Background(), "tok", session.DeviceTypeCLI)
			if !tt.wantInvalid && !tt.wantExpired {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantInvalid, errors.Is(err, ErrInvalidToken))
			assert.Equal(t, tt.wantExpired, errors.Is(err, session.ErrSessionExpired))
			assert.Equal(t, tt.wantExpired, len(nav.Targets()) == 1)
		})
	}
}

func TestClient_RepositoryStatus(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusForbidden} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/github/dashboard/repository/99", r.URL.Path)
				assert.Equal(t, "octocat/hello", r.URL.Query().Get("repo"))
				w.WriteHeader(code)
			}))
			got, err := c.RepositoryStatus(context.Background(), 99, "octocat/hello")
			require.NoError(t, err)
			assert.Equal(t, code, got)
		})
	}

	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.RepositoryStatus(context.Background(), 1, "not a repo")
	assert.Error(t, err)
}

func TestClient_CreateRepository(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/github/dashboard/repository/new", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "7", q.Get("repo_id"))
		assert.Equal(t, "octocat/hello", q.Get("repo_fullname"))
		assert.Equal(t, "hunter2", q.Get("password"))
		assert.Equal(t, "csrf-1", r.Header.Get(CSRFHeader))
		w.WriteHeader(http.StatusCreated)
	}))
	require.NoError(t, c.Credentials().Set(session.Credential{CSRFToken: "csrf-1", DeviceType: session.DeviceTypeWeb}))

	err := c.CreateRepository(context.Background(), NewRepository{ID: 7, FullName: "octocat/hello", Password: "hunter2"})
	require.NoError(t, err)

	err = c.CreateRepository(context.Background(), NewRepository{ID: 7, FullName: "octocat/hello"})
	assert.Error(t, err)
}

func TestClient_TransportErrorRedactsQuery(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base)
	require.NoError(t, err)

	err = c.CreateRepository(context.Background(), NewRepository{ID: 1, FullName: "a/b", Password: "hunter2"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestClient_AuthURL(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("session_id"))
		fmt.Fprint(w, "https://github.com/login/oauth/authorize?state=x")
	}))

	got, err := c.AuthURL(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/login/oauth/authorize?state=x", got)

	_, err = c.AuthURL(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_AccessTokenFromJar(t *testing.T) {
	c, err := New("http://127.0.0.1:8000")
	require.NoError(t, err)

	_, ok := c.AccessToken()
	assert.False(t, ok)

	c.UseAccessToken("t1")
	tok, ok := c.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, "t1", tok)
}

func TestValidRepositoryName(t *testing.T) {
	assert.True(t, ValidRepositoryName("octocat/hello-world"))
	assert.True(t, ValidRepositoryName("a/b.c_d"))
	assert.False(t, ValidRepositoryName("octocat"))
	assert.False(t, ValidRepositoryName("octo cat/x"))
	assert.False(t, ValidRepositoryName("a/b/c"))
	assert.False(t, ValidRepositoryName(strings.Repeat("a", 40)+"/x"))
}

func mustJSONString(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}
