package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay collapses the burst of events an editor save produces.
const reloadDelay = 500 * time.Millisecond

// documentWatcher calls onChange after .cue files under a document's
// directory are written or created.
type documentWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	delay    time.Duration
	onChange func(ctx context.Context)
}

// watchDocument starts watching the directory holding path (or path
// itself when it is a directory). Events are processed until ctx is done.
func watchDocument(ctx context.Context, path string, logger *slog.Logger, onChange func(ctx context.Context)) (*documentWatcher, error) {
	dir := path
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &documentWatcher{
		watcher:  watcher,
		logger:   logger,
		delay:    reloadDelay,
		onChange: onChange,
	}
	go w.processEvents(ctx)

	logger.Info("watching document", "dir", dir)
	return w, nil
}

func (w *documentWatcher) processEvents(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !strings.HasSuffix(event.Name, ".cue") {
				continue
			}
			w.logger.Debug("document file changed", "file", event.Name, "op", event.Op.String())

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				if ctx.Err() == nil {
					w.onChange(ctx)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *documentWatcher) Close() error {
	return w.watcher.Close()
}
