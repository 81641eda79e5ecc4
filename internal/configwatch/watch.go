// Package configwatch watches a seed config file for on-disk edits and
// invokes a reload callback, grounded on
// internal/extension/piccontrolext/extension.go's startWatcher: watch the
// containing directory (not the file itself, since editors commonly
// replace-by-rename rather than write-in-place), filter to the target
// path, debounce briefly, reload.
package configwatch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invokes OnReload whenever the watched file is written or
// recreated.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New starts watching path's containing directory. OnReload is called
// from the watcher's goroutine whenever path is written or replaced;
// callers that touch shared state from OnReload must synchronize
// themselves.
func New(path string, debounce time.Duration, logger *zap.Logger, onReload func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, debounce: debounce, logger: logger, watcher: fw, done: make(chan struct{})}
	go w.run(onReload)
	return w, nil
}

func (w *Watcher) run(onReload func()) {
	defer close(w.done)
	defer w.watcher.Close()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if w.debounce > 0 {
				time.Sleep(w.debounce)
			}
			w.logger.Info("seed config file changed, reloading", zap.String("path", w.path))
			onReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() {
	w.watcher.Close()
	<-w.done
}
