// Package watch re-runs analysis when bundle archives change.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the archives changed since the last call.
// Calls never overlap.
type ChangeCallback func(ctx context.Context, changed []string)

// Watcher watches the proxies directory for archive changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger
	callback ChangeCallback

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	// Debouncing state
	pending    map[string]time.Time
	pendingMu  sync.Mutex
	debounceCh chan struct{}
}

// Config holds watcher configuration.
type Config struct {
	Dir           string
	DebounceDelay time.Duration
	Logger        *slog.Logger
	Callback      ChangeCallback
}

// New creates a new archive watcher.
func New(cfg *Config) (*Watcher, error) {
	if cfg.Callback == nil {
		return nil, errors.New("watch callback is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 2 * time.Second
	}

	return &Watcher{
		dir:        cfg.Dir,
		debounce:   debounce,
		logger:     logger,
		callback:   cfg.Callback,
		pending:    make(map[string]time.Time),
		stopCh:     make(chan struct{}),
		debounceCh: make(chan struct{}, 1),
	}, nil
}

// Start watches until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	w.logger.Info("archive watcher started",
		"path", w.dir,
		"debounce", w.debounce,
	)

	done := make(chan struct{})
	defer func() { <-done }()
	go func() {
		defer close(done)
		w.processDebounced(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
}

// handleEvent records a change to an archive.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if shouldIgnore(event.Name) || event.Op == fsnotify.Chmod {
		return
	}

	w.logger.Debug("archive event",
		"path", event.Name,
		"op", event.Op.String(),
	)

	w.pendingMu.Lock()
	w.pending[event.Name] = time.Now()
	w.pendingMu.Unlock()

	select {
	case w.debounceCh <- struct{}{}:
	default:
	}
}

// processDebounced invokes the callback once changes settle.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case now := <-ticker.C:
			if ready := w.checkPending(now); len(ready) > 0 {
				w.logger.Info("archives changed", "files", ready)
				w.callback(ctx, ready)
			}
		case <-w.debounceCh:
		}
	}
}

// checkPending returns changes older than the debounce period.
// Any pending change younger than that holds back the whole batch.
func (w *Watcher) checkPending(now time.Time) []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	for _, t := range w.pending {
		if now.Sub(t) < w.debounce {
			return nil
		}
	}

	ready := make([]string, 0, len(w.pending))
	for path := range w.pending {
		ready = append(ready, path)
	}
	sort.Strings(ready)
	w.pending = make(map[string]time.Time)
	return ready
}

// shouldIgnore returns true for hidden files and anything that is not a zip archive.
func shouldIgnore(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	return !strings.EqualFold(filepath.Ext(name), ".zip")
}
