package webui

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"evault/pkg/logging"
)

// Cookies the front sets on its own origin.
const (
	// AccessCookie carries the backend session cookie between requests.
	AccessCookie = "evault_access_token"
	// CSRFCookie carries the CSRF token handed out by the exchange.
	CSRFCookie = "evault_csrf"
)

// Config holds what the web front needs to reach the backend.
type Config struct {
	// BackendURL is the origin of the evault backend.
	BackendURL string
	// APIPrefix is where the backend mounts its API. Empty uses the default.
	APIPrefix string
	// Timeout bounds every backend request. Zero uses the default.
	Timeout time.Duration
	// PublicURL is the address browsers use to reach this front.
	PublicURL string
	// TemplatesDir optionally overrides embedded templates; it is watched.
	TemplatesDir string
	// SecureCookies sets the Secure flag on cookies.
	SecureCookies bool
	// StrictDeviceType makes the callback page accept only the web device type.
	StrictDeviceType bool
	// Transport is the innermost transport for backend calls.
	Transport http.RoundTripper
}

// Server is the local web front.
type Server struct {
	cfg      Config
	renderer *Renderer
	watcher  *TemplateWatcher
}

// New validates cfg and loads the templates.
func New(cfg Config) (*Server, error) {
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", cfg.BackendURL)
	}
	if cfg.PublicURL != "" {
		if _, err := url.Parse(cfg.PublicURL); err != nil {
			return nil, fmt.Errorf("invalid public URL %q: %w", cfg.PublicURL, err)
		}
	}

	renderer, err := NewRenderer(cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		renderer: renderer,
		watcher:  NewTemplateWatcher(renderer, DefaultDebounceInterval),
	}, nil
}

// Start begins watching the template override directory, if any.
func (s *Server) Start() error {
	if err := s.watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch templates: %w", err)
	}
	return nil
}

// Close stops background work.
func (s *Server) Close() {
	s.watcher.Stop()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/", s.handleIndex)
	r.Get("/login", s.handleLogin)
	r.Get("/logout", s.handleLogout)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/", s.handleCLIHandoff)
		r.Get("/github", s.handleCallback)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", s.handleDashboard)
		r.Get("/repository/{id}", s.handleRepository)
		r.Post("/repository/new", s.handleCreateRepository)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderer.Render(w, http.StatusNotFound, "error.html", &pageData{
			Title:       "Not found",
			Error:       "There is nothing at " + r.URL.Path + ".",
			Breadcrumbs: crumbs(Breadcrumb{Label: "Not found"}),
		})
	})

	logging.Debug("WebUI", "Routes registered, backend at %s", s.cfg.BackendURL)
	return r
}

// RequestLogger logs each request with method, path, status and latency.
// middleware.RequestID must run first for the request ID to be present.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logging.Info("HTTP", "%s %s -> %d (%d bytes, %s) request_id=%s remote=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start).Round(time.Millisecond),
			middleware.GetReqID(r.Context()), r.RemoteAddr)
	})
}
