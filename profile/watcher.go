package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

// Watcher reloads a profile whenever its file is written or replaced.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(model.Profile)
}

// NewWatcher watches the directory holding path, since editors commonly
// save by renaming a temp file over the original.
func NewWatcher(path string, onChange func(model.Profile)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve profile path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, watcher: fw, onChange: onChange}, nil
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("profile watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	// Truncation arrives as its own write event.
	if fi, err := os.Stat(w.path); err == nil && fi.Size() == 0 {
		return
	}
	p, err := Load(w.path)
	if err != nil {
		// A half-written file is common mid-save; keep the current profile.
		slog.Warn("profile reload failed", "path", w.path, "error", err)
		return
	}
	slog.Info("profile reloaded", "path", w.path, "name", p.Name)
	if w.onChange != nil {
		w.onChange(p)
	}
}
