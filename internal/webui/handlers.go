package webui

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"evault/internal/backend"
	"evault/internal/session"
	"evault/pkg/logging"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, err := r.Cookie(AccessCookie)
	s.renderer.Render(w, http.StatusOK, "index.html", &pageData{
		Title:    "Welcome",
		SignedIn: err == nil,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	lc, ok := s.lifecycle(w, r, false)
	if !ok {
		return
	}
	initiator, err := session.NewInitiator(lc.client.HTTPClient(), lc.client.APIBase(), s.cfg.PublicURL, lc.nav)
	if err != nil {
		s.renderUnavailable(w, err)
		return
	}
	if _, err := initiator.StartSignIn(r.Context(), session.DeviceTypeWeb); err != nil {
		logging.Warn("WebUI", "Could not start sign-in: %v", err)
		s.renderer.Render(w, http.StatusBadGateway, "error.html", &pageData{
			Title:       "Sign-in unavailable",
			Error:       "The sign-in could not be started. Please try again.",
			Breadcrumbs: crumbs(Breadcrumb{Label: "Sign in"}),
		})
		return
	}
	s.finish(w, r, lc)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w)
	http.Redirect(w, r, session.RouteEntry, http.StatusSeeOther)
}

// handleCLIHandoff is where a terminal sign-in sends the browser. The
// backend remembers the provider URL for the session; the browser is sent
// there and comes back through the regular callback page.
func (s *Server) handleCLIHandoff(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(session.ParamSessionID)
	if sessionID == "" {
		s.renderer.Render(w, http.StatusBadRequest, "error.html", &pageData{
			Title: "Sign-in failed",
			Error: session.MessageInvalidParams,
		})
		return
	}

	lc, ok := s.lifecycle(w, r, false)
	if !ok {
		return
	}
	target, err := lc.client.AuthURL(r.Context(), sessionID)
	if err != nil {
		if s.finish(w, r, lc) {
			return
		}
		logging.Warn("WebUI", "Could not resolve provider URL for terminal sign-in: %v", err)
		status := http.StatusBadGateway
		if backend.IsStatus(err, http.StatusNotFound) || backend.IsForbidden(err) {
			status = http.StatusNotFound
		}
		s.renderer.Render(w, status, "error.html", &pageData{
			Title: "Sign-in failed",
			Error: "This sign-in link is no longer valid. Start again from your terminal.",
		})
		return
	}
	_ = lc.nav.Navigate(r.Context(), target)
	s.finish(w, r, lc)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	lc, ok := s.lifecycle(w, r, false)
	if !ok {
		return
	}

	opts := []session.CallbackOption{session.WithCredentialStore(lc.client.Credentials())}
	if s.cfg.StrictDeviceType {
		opts = append(opts, session.WithExpectedDeviceType(session.DeviceTypeWeb))
	}
	handler := session.NewCallbackHandler(
		session.NewHTTPExchanger(lc.client.HTTPClient(), lc.client.APIBase()),
		lc.nav,
		opts...,
	)

	status := handler.Run(r.Context(), r.URL.RawQuery)
	if s.finish(w, r, lc) {
		return
	}
	if r.Context().Err() != nil {
		// the browser left; nobody is listening for the result
		return
	}

	data := &pageData{Title: "Signed in", Breadcrumbs: crumbs(Breadcrumb{Label: "Sign in"})}
	code := http.StatusOK
	if status == session.StatusError {
		data.Title = "Sign-in failed"
		data.Error = handler.Message()
		code = http.StatusBadGateway
		var verr *session.ValidationError
		if errors.As(handler.Err(), &verr) {
			code = http.StatusBadRequest
		}
	}
	s.renderer.Render(w, code, "callback.html", data)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	lc, ok := s.signedInLifecycle(w, r)
	if !ok {
		return
	}

	var repos []backend.Repository
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		_, err := lc.identity.Get(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		repos, err = lc.client.Repositories(ctx)
		return err
	})
	err := g.Wait()

	if s.finish(w, r, lc) {
		return
	}
	if err != nil {
		s.backendFailure(w, r, err)
		return
	}

	id, _ := lc.identity.Peek()
	s.renderer.Render(w, http.StatusOK, "dashboard.html", &pageData{
		Title:        "Dashboard",
		Breadcrumbs:  crumbs(Breadcrumb{Label: "Dashboard"}),
		Identity:     id,
		Repositories: repos,
	})
}

func (s *Server) handleRepository(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	name := r.URL.Query().Get("repo")
	if err != nil || id <= 0 || !backend.ValidRepositoryName(name) {
		s.renderer.Render(w, http.StatusBadRequest, "error.html", &pageData{
			Title:       "Invalid repository",
			Error:       "The repository link is malformed.",
			Breadcrumbs: crumbs(Breadcrumb{Label: "Dashboard", Href: "/dashboard"}, Breadcrumb{Label: "Repository"}),
		})
		return
	}

	lc, ok := s.signedInLifecycle(w, r)
	if !ok {
		return
	}

	var status int
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		_, err := lc.identity.Get(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		status, err = lc.client.RepositoryStatus(ctx, id, name)
		return err
	})
	err = g.Wait()

	if s.finish(w, r, lc) {
		return
	}
	if err != nil {
		s.backendFailure(w, r, err)
		return
	}
	s.renderRepository(w, http.StatusOK, lc, id, name, status, "")
}

func (s *Server) handleCreateRepository(w http.ResponseWriter, r *http.Request) {
	lc, ok := s.signedInLifecycle(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderer.Render(w, http.StatusBadRequest, "error.html", &pageData{Title: "Invalid request", Error: "The form could not be read."})
		return
	}
	form := r.PostForm

	csrf := lc.client.Credentials().CSRFToken()
	if csrf == "" || subtle.ConstantTimeCompare([]byte(form.Get("csrf_token")), []byte(csrf)) != 1 {
		logging.Warn("WebUI", "Rejected vault creation with a missing or wrong CSRF token")
		s.renderer.Render(w, http.StatusForbidden, "error.html", &pageData{
			Title: "Request rejected",
			Error: "Your session could not be verified. Reload the page and try again.",
		})
		return
	}

	id, err := strconv.ParseInt(form.Get("repo_id"), 10, 64)
	name := form.Get("repo_fullname")
	if err != nil || id <= 0 || !backend.ValidRepositoryName(name) {
		s.renderer.Render(w, http.StatusBadRequest, "error.html", &pageData{Title: "Invalid repository", Error: "The repository is malformed."})
		return
	}

	password := form.Get("password")
	switch {
	case password == "":
		s.renderRepository(w, http.StatusUnprocessableEntity, lc, id, name, http.StatusNotFound, "A vault password is required.")
		return
	case password != form.Get("password_confirm"):
		s.renderRepository(w, http.StatusUnprocessableEntity, lc, id, name, http.StatusNotFound, "Passwords do not match.")
		return
	}

	err = lc.client.CreateRepository(r.Context(), backend.NewRepository{ID: id, FullName: name, Password: password})
	if s.finish(w, r, lc) {
		return
	}
	if err != nil {
		if backend.IsForbidden(err) {
			s.renderRepository(w, http.StatusForbidden, lc, id, name, http.StatusForbidden, "")
			return
		}
		logging.Error("WebUI", err, "Vault creation for %s failed", name)
		s.renderRepository(w, http.StatusBadGateway, lc, id, name, http.StatusNotFound, "The vault could not be created. Please try again.")
		return
	}

	logging.Info("WebUI", "Vault created for %s", name)
	http.Redirect(w, r, repositoryPath(id, name), http.StatusSeeOther)
}

// lifecycle builds the request's lifecycle or writes a 500.
func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, seed bool) (*lifecycle, bool) {
	lc, err := s.newLifecycle(r, seed)
	if err != nil {
		s.renderUnavailable(w, err)
		return nil, false
	}
	return lc, true
}

// signedInLifecycle sends visitors without a session to the entry route.
func (s *Server) signedInLifecycle(w http.ResponseWriter, r *http.Request) (*lifecycle, bool) {
	lc, ok := s.lifecycle(w, r, true)
	if !ok {
		return nil, false
	}
	if !lc.signedIn() {
		http.Redirect(w, r, session.RouteEntry, http.StatusSeeOther)
		return nil, false
	}
	return lc, true
}

func (s *Server) renderRepository(w http.ResponseWriter, code int, lc *lifecycle, id int64, name string, status int, msg string) {
	identity, _ := lc.identity.Peek()
	s.renderer.Render(w, code, "repository.html", &pageData{
		Title:       name,
		Breadcrumbs: crumbs(Breadcrumb{Label: "Dashboard", Href: "/dashboard"}, Breadcrumb{Label: name}),
		Identity:    identity,
		CSRFToken:   lc.client.Credentials().CSRFToken(),
		Error:       msg,
		RepoID:      id,
		RepoName:    name,
		RepoStatus:  status,
	})
}

// backendFailure renders a failed backend call. A rejected session cookie
// is treated like an expired one.
func (s *Server) backendFailure(w http.ResponseWriter, r *http.Request, err error) {
	if backend.IsStatus(err, http.StatusUnauthorized) {
		s.clearSession(w)
		http.Redirect(w, r, session.RouteEntry, http.StatusSeeOther)
		return
	}
	logging.Error("WebUI", err, "Backend request failed")
	s.renderer.Render(w, http.StatusBadGateway, "error.html", &pageData{
		Title: "Backend unavailable",
		Error: session.MessageFailed,
	})
}

func (s *Server) renderUnavailable(w http.ResponseWriter, err error) {
	logging.Error("WebUI", err, "Could not prepare backend client")
	s.renderer.Render(w, http.StatusInternalServerError, "error.html", &pageData{
		Title: "Unavailable",
		Error: session.MessageFailed,
	})
}

func repositoryPath(id int64, name string) string {
	return "/dashboard/repository/" + strconv.FormatInt(id, 10) + "?" + url.Values{"repo": {name}}.Encode()
}
