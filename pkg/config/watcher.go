package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period after the last file event
// before a reload is attempted.
const DefaultDebounceInterval = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk and hands
// every successfully validated configuration to a callback. A file that
// fails to load or validate is logged and ignored; the running
// configuration stays in place.
//
// The parent directory is watched rather than the file itself so that
// editors and config-map mounts that replace the file by rename are seen.
type Watcher struct {
	path     string
	optional bool
	interval time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, optional bool, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	return &Watcher{
		path:     abs,
		optional: optional,
		interval: DefaultDebounceInterval,
		logger:   logger.With("component", "config.watcher"),
		watcher:  fw,
	}, nil
}

// SetDebounceInterval overrides the debounce interval. It must be called
// before Watch.
func (w *Watcher) SetDebounceInterval(d time.Duration) {
	w.interval = d
}

// Watch blocks until ctx is cancelled, invoking onReload for every valid
// configuration read after a change. The fsnotify watcher is closed on return.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("config watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("config file event", "op", event.Op.String())
			w.schedule(ctx, onReload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule(ctx context.Context, onReload func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, func() {
		if ctx.Err() != nil {
			return
		}
		cfg, err := ReloadConfig(w.path, w.optional)
		if err != nil {
			w.logger.Error("config reload rejected", "error", err)
			return
		}
		w.logger.Info("configuration reloaded", "path", w.path)
		onReload(cfg)
	})
}
