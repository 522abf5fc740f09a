package theme

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
)

// Watcher reloads the active theme when files of its installed bundle change.
type Watcher struct {
	dir      string
	manager  *Manager
	watcher  *fsnotify.Watcher
	debounce time.Duration
	reload   chan struct{}
	onReload func(*Theme, error)
}

// NewWatcher watches the theme directory dir. onReload (optional) observes each reload.
func NewWatcher(dir string, m *Manager, onReload func(*Theme, error)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.DaemonError("failed to create theme watcher").WithCause(err).Build()
	}
	return &Watcher{
		dir:      dir,
		manager:  m,
		watcher:  w,
		debounce: 500 * time.Millisecond,
		reload:   make(chan struct{}, 1),
		onReload: onReload,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	active := w.manager.Active()
	if active == nil || active.Builtin {
		slog.Debug("Active theme is built in; nothing to watch")
		<-ctx.Done()
		return nil
	}
	root := filepath.Join(w.dir, active.Name)
	for _, sub := range []string{"", "templates", filepath.Join("templates", "partials")} {
		// missing optional directories are fine
		if err := w.watcher.Add(filepath.Join(root, sub)); err != nil && sub == "" {
			return ferrors.ThemeLoadError("failed to watch theme").WithCause(err).WithContext("theme", active.Name).WithContext("path", root).Build()
		}
	}
	slog.Info("Watching theme", logfields.Theme(active.Name), logfields.Path(root))

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			slog.Debug("Theme file changed", logfields.Path(ev.Name))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case w.reload <- struct{}{}:
				default:
				}
			})
		case <-w.reload:
			name := w.manager.Active().Name
			th, err := w.manager.Load(name)
			if w.onReload != nil {
				w.onReload(th, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Theme watcher error", logfields.Error(err))
		}
	}
}
