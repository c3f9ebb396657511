// Package watch notifies the validation layer when schema files change on
// disk, so documents governed by an edited schema revalidate without a
// client round trip.
package watch

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler receives the path of a changed file.
type Handler func(path string)

// Watcher monitors directories and reports file writes, creations, removals
// and renames to its handler.
type Watcher struct {
	watcher *fsnotify.Watcher
	handler Handler
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
}

func New(handler Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		watcher: fw,
		handler: handler,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  logger,
	}
	go w.loop()
	return w, nil
}

// Add starts watching a file or directory. Directory watches report changes
// to direct children only.
func (w *Watcher) Add(path string) error {
	if err := w.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w.logger.Debug("watching", zap.String("path", path))
	return nil
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug("file changed",
					zap.String("path", event.Name),
					zap.String("op", event.Op.String()))
				w.handler(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-w.stopCh:
			return
		}
	}
}
