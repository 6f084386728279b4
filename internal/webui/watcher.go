package webui

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"evault/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last change before
// reloading. Editors often write a file in several steps.
const DefaultDebounceInterval = 500 * time.Millisecond

// TemplateWatcher reloads a Renderer when files in its override directory
// change.
type TemplateWatcher struct {
	mu sync.Mutex

	renderer *Renderer
	debounce time.Duration

	// OnReload is called after every reload attempt, mainly for tests.
	OnReload func(error)

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewTemplateWatcher returns a stopped watcher for r.
func NewTemplateWatcher(r *Renderer, debounce time.Duration) *TemplateWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &TemplateWatcher{renderer: r, debounce: debounce}
}

// Start begins watching. It is a no-op when the renderer has no override
// directory.
func (w *TemplateWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running || w.renderer.Dir() == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.renderer.Dir()); err != nil {
		watcher.Close()
		return err
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true

	// capture channels before releasing the lock; Stop closes the watcher
	go w.processEvents(w.stopCh, watcher.Events, watcher.Errors)

	logging.Info("WebUI", "Watching %s for template changes", w.renderer.Dir())
	return nil
}

// Stop stops watching and cancels a pending reload.
func (w *TemplateWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()
}

func (w *TemplateWatcher) processEvents(stopCh <-chan struct{}, eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".html" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			logging.Debug("WebUI", "Template changed: %s", event.Name)
			w.triggerReloadDebounced()

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("WebUI", err, "Template watcher error")
		}
	}
}

func (w *TemplateWatcher) triggerReloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if !running {
			return
		}

		err := w.renderer.Reload()
		if err != nil {
			logging.Warn("WebUI", "Keeping previous templates: %v", err)
		} else {
			logging.Info("WebUI", "Templates reloaded from %s", w.renderer.Dir())
		}
		if w.OnReload != nil {
			w.OnReload(err)
		}
	})
}
