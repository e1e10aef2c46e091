package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-imports the seed directory when its contents change.
// Bursts of file events are debounced into one reload.
type Watcher struct {
	loader   *Loader
	dir      string
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

// NewWatcher creates a watcher over the seed directory.
func NewWatcher(loader *Loader, dir string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default().With("component", "policy.source.watcher")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		loader:   loader,
		dir:      dir,
		debounce: debounce,
		logger:   logger,
		watcher:  fsw,
	}, nil
}

// Watch blocks processing file events until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch seed directory %q: %w", w.dir, err)
	}
	w.logger.Info("seed directory watcher started",
		"dir", w.dir,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("seed directory watcher stopped")
			return w.close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !relevantEvent(event) {
				continue
			}
			w.logger.Debug("seed file event", "path", event.Name, "op", event.Op.String())
			w.scheduleReload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Keep watching through transient filesystem errors.
			w.logger.Error("seed directory watch error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		n, err := w.loader.LoadDir(ctx, w.dir)
		if err != nil {
			w.logger.Error("seed reload failed", "error", err)
			return
		}
		w.logger.Info("seed directory reloaded", "imported", n)
	})
}

func (w *Watcher) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	return w.watcher.Close()
}

func relevantEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
