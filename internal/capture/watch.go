package capture

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a reference file must stay unchanged before a
// change is reported.
const DefaultSettle = 300 * time.Millisecond

// ReferenceWatcher reports when a reference image on disk has been replaced
// or rewritten. Bursts of writes are coalesced into one notification.
type ReferenceWatcher struct {
	path    string
	settle  time.Duration
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewReferenceWatcher starts watching the directory containing path.
// Watching the directory rather than the file survives editors that save by
// renaming a temporary file over the original.
func NewReferenceWatcher(path string, settle time.Duration, logger *slog.Logger) (*ReferenceWatcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &ReferenceWatcher{
		path:    abs,
		settle:  settle,
		logger:  logger,
		watcher: w,
	}, nil
}

// Path returns the absolute path being watched.
func (r *ReferenceWatcher) Path() string {
	return r.path
}

// Run delivers settled changes to onChange until ctx is cancelled or the
// watcher is closed.
func (r *ReferenceWatcher) Run(ctx context.Context, onChange func(path string)) error {
	var pending time.Time
	ticker := time.NewTicker(r.settle / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.Now()
			}
		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= r.settle {
				pending = time.Time{}
				r.logger.Info("reference image changed", "path", r.path)
				onChange(r.path)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("reference watch error", "err", err)
		}
	}
}

// Close stops the underlying watcher.
func (r *ReferenceWatcher) Close() error {
	return r.watcher.Close()
}
