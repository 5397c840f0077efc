// Package watch reruns an action whenever the Ylands userscript log changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/binarysemaphore/ylex/internal/log"
)

// DefaultDebounce collapses the burst of writes Ylands makes per export.
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches a single file through its parent directory, so the file
// may be truncated, replaced or created after the watch starts.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *log.Logger
}

// New starts watching the directory containing path.
func New(path string, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{path: abs, watcher: fw, debounce: debounce, logger: logger}, nil
}

// Run blocks until ctx is cancelled, calling onChange once per settled burst
// of changes to the file. Errors from onChange are logged and do not stop the
// loop. Run closes the underlying watcher before it returns.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debugw("log changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("watch error", "error", err)

		case <-timer.C:
			if err := onChange(ctx); err != nil {
				w.logger.Errorw("extract failed", "path", w.path, "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write) != 0
}
