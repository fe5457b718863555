package rulestorage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/arxos/graphrules/internal/grlog"
)

// Watcher hot-reloads *.dsl files from a directory on write, grounded on
// the teacher's fsnotify-based config reload: a single fsnotify.Watcher
// watching one directory, debounced only by fsnotify's own event
// coalescing, re-uploading the changed file's contents through Loader.
type Watcher struct {
	dir    string
	loader *Loader
	log    *grlog.Logger
}

func NewWatcher(dir string, loader *Loader, log *grlog.Logger) *Watcher {
	return &Watcher{dir: dir, loader: loader, log: log}
}

// Run blocks until ctx is canceled, re-uploading any *.dsl file that is
// written to or created inside the watched directory.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".dsl") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload(ctx, ev.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("dsl watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("failed to read changed DSL file", "path", path, "error", err)
		return
	}
	key := filepath.Base(path)
	if err := w.loader.Upload(ctx, key, string(data)); err != nil {
		w.log.Warn("hot-reloaded DSL file rejected", "path", path, "error", err)
	}
}
