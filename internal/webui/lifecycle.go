package webui

import (
	"net/http"

	"evault/internal/backend"
	"evault/internal/session"
	"evault/pkg/logging"
)

// lifecycle is one page lifecycle: everything the session core needs for
// a single browser request. The request context is its cancellation token
// and a recorded navigation becomes the response redirect.
type lifecycle struct {
	nav      *session.RecordingNavigator
	client   *backend.Client
	identity *session.IdentityCache

	browserToken string
	browserCSRF  string
}

// newLifecycle builds a lifecycle from the browser's cookies. seed controls
// whether the CSRF cookie pre-fills the credential store; the callback page
// must start with an empty store since it is the store's writer.
func (s *Server) newLifecycle(r *http.Request, seed bool) (*lifecycle, error) {
	nav := &session.RecordingNavigator{}
	creds := session.NewCredentialStore()

	lc := &lifecycle{nav: nav}
	if c, err := r.Cookie(CSRFCookie); err == nil && c.Value != "" && seed {
		lc.browserCSRF = c.Value
		_ = creds.Set(session.Credential{CSRFToken: c.Value, DeviceType: session.DeviceTypeWeb})
	}

	client, err := backend.New(s.cfg.BackendURL,
		backend.WithAPIPrefix(s.cfg.APIPrefix),
		backend.WithTimeout(s.cfg.Timeout),
		backend.WithTransport(s.cfg.Transport),
		backend.WithEffects(session.NewEffects(nav)),
		backend.WithCredentials(creds),
	)
	if err != nil {
		return nil, err
	}
	lc.client = client

	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		lc.browserToken = c.Value
		client.UseAccessToken(c.Value)
	}
	lc.identity = session.NewIdentityCache(client,
		session.WithLapseCheck(client.Credentials()),
		session.WithIdentityTimeout(s.cfg.Timeout))
	return lc, nil
}

func (lc *lifecycle) signedIn() bool {
	return lc.browserToken != ""
}

// finish syncs cookies with the browser and, if the lifecycle navigated,
// writes the redirect. It reports whether the response was written.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, lc *lifecycle) bool {
	if lc.client.Effects().ReauthTriggered() {
		s.clearSession(w)
	} else {
		s.relayCookies(w, lc)
	}

	target, ok := lc.nav.Last()
	if !ok {
		return false
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
	return true
}

// relayCookies copies the backend session cookie and the CSRF token to the
// browser when they changed during the request.
func (s *Server) relayCookies(w http.ResponseWriter, lc *lifecycle) {
	if token, ok := lc.client.AccessToken(); ok && token != lc.browserToken {
		http.SetCookie(w, s.cookie(AccessCookie, token))
		logging.Debug("WebUI", "Relayed backend session cookie")
	}
	if csrf := lc.client.Credentials().CSRFToken(); csrf != "" && csrf != lc.browserCSRF {
		http.SetCookie(w, s.cookie(CSRFCookie, csrf))
	}
}

func (s *Server) clearSession(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, CSRFCookie} {
		c := s.cookie(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (s *Server) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
