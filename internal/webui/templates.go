package webui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/sprig/v3"

	"evault/internal/backend"
	"evault/internal/session"
	"evault/pkg/logging"
	"evault/pkg/strutil"
)

//go:embed templates/*.html
var templatesFS embed.FS

// funcMap extends sprig with helpers for backend payloads.
var funcMap = template.FuncMap{
	"summary": func(s *string) string {
		return strutil.Summary(strutil.Deref(s), strutil.PageDescriptionLen)
	},
}

// Breadcrumb is one step of the navigation trail shown above a page. A
// crumb without Href is the current page.
type Breadcrumb struct {
	Label string
	Href  string
}

// pageData is the value every page template executes against. It is built
// per request; nothing in it outlives the response.
type pageData struct {
	Title       string
	Breadcrumbs []Breadcrumb
	Identity    *session.Identity
	SignedIn    bool
	CSRFToken   string
	Error       string

	Repositories []backend.Repository

	RepoID     int64
	RepoName   string
	RepoStatus int
}

func crumbs(trail ...Breadcrumb) []Breadcrumb {
	return append([]Breadcrumb{{Label: "Home", Href: "/"}}, trail...)
}

// Renderer executes the page templates. The embedded set is always loaded;
// files in an override directory replace embedded templates of the same
// name and are re-read by Reload.
type Renderer struct {
	base *template.Template
	dir  string

	mu      sync.RWMutex
	current *template.Template
}

// NewRenderer parses the embedded templates and, when dir is set, the
// *.html files in dir on top of them.
func NewRenderer(dir string) (*Renderer, error) {
	base, err := template.New("").Funcs(sprig.FuncMap()).Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	r := &Renderer{base: base, dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the override directory, or "".
func (r *Renderer) Dir() string {
	return r.dir
}

// Reload rebuilds the template set. On failure the previous set stays in use.
func (r *Renderer) Reload() error {
	// the base set is never executed so it can always be cloned
	t, err := r.base.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone templates: %w", err)
	}
	if r.dir != "" {
		matches, err := filepath.Glob(filepath.Join(r.dir, "*.html"))
		if err != nil {
			return fmt.Errorf("failed to list templates in %s: %w", r.dir, err)
		}
		for _, path := range matches {
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read template %s: %w", path, err)
			}
			if _, err := t.New(filepath.Base(path)).Parse(string(content)); err != nil {
				return fmt.Errorf("failed to parse template %s: %w", path, err)
			}
		}
		logging.Debug("WebUI", "Loaded %d template overrides from %s", len(matches), r.dir)
	}

	r.mu.Lock()
	r.current = t
	r.mu.Unlock()
	return nil
}

// Render executes the named page into w with the given status. Output is
// buffered so a failing template never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data *pageData) {
	r.mu.RLock()
	t := r.current
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("WebUI", err, "Failed to render %s", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
