package data

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports edits to a scene file. It watches the parent directory so
// editors that save by rename are still seen. Notifications coalesce: the
// scene loop drains Changes() once per tick.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan struct{}
	log     *zap.Logger
}

// NewWatcher creates a watcher for path. Call Start in a goroutine.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &Watcher{
		path:    abs,
		watcher: fw,
		changes: make(chan struct{}, 1),
		log:     log,
	}, nil
}

// Changes delivers one value per burst of edits.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Start blocks until ctx is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	w.log.Debug("watching scene", zap.String("path", w.path))
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("scene watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	w.log.Debug("scene file changed", zap.String("op", ev.Op.String()))
	w.notify()
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Close stops watching. Safe to call once Start has returned or concurrently
// with it.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
