package config

import (
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/koala/engine/core"
)

// Watcher reloads the configuration file whenever it changes on disk and
// publishes the parsed result on Changes. Consumers read Changes from the main
// loop; the watcher itself never touches engine state.
type Watcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	changes  chan *Application
	done     chan struct{}
	stopped  chan struct{}
	isClosed bool
}

// NewWatcher watches the directory of path, since editors usually replace
// files instead of writing them in place.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		// only the latest configuration matters
		changes: make(chan *Application, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.start()
	return w, nil
}

func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) Changes() <-chan *Application {
	return w.changes
}

func (w *Watcher) Close() error {
	if w.isClosed {
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	close(w.done)
	<-w.stopped
	return nil
}

func (w *Watcher) start() {
	defer close(w.stopped)
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.reload()
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("config watcher: %s", err.Error())

		case <-w.done:
			w.fsnotify.Close()
			close(w.changes)
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// keep running with the previous configuration
		core.LogWarn("ignoring config change: %s", err.Error())
		return
	}
	// Drop a pending stale value so the newest one wins.
	select {
	case <-w.changes:
	default:
	}
	select {
	case w.changes <- cfg:
	case <-w.done:
	}
}
