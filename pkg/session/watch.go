package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a function whenever the identity of a file changes. The
// parent directory is watched so editors that replace the file by rename
// are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher watches path. debounce batches rapid saves.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, debounce: debounce, logger: logger}
}

// Run blocks until ctx is done. onChange is called once at start and then
// after each identity change; an error from onChange is logged, not fatal.
func (w *Watcher) Run(ctx context.Context, onChange func(Identity) error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var last Identity
	check := func() {
		id, err := IdentityOf(abs)
		if err != nil {
			w.logger.Warn("watched file unavailable", "path", abs, "error", err)
			return
		}
		if id == last {
			return
		}
		last = id
		if err := onChange(id); err != nil {
			w.logger.Error("reload failed", "path", abs, "error", err)
		}
	}
	check()

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer = time.After(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		case <-timer:
			timer = nil
			check()
		}
	}
}
