package registry

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillrouter/pkg/logger"
)

// Watch reloads the store whenever the corpus changes on disk. Events are
// debounced so editors writing several files trigger a single rebuild.
// Blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create corpus watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(s.root); err != nil {
		return errors.Wrapf(err, "failed to watch %s", s.root)
	}
	// one level deep, matching the registry walk
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return errors.Wrapf(err, "failed to read corpus root %s", s.root)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			_ = watcher.Add(filepath.Join(s.root, entry.Name()))
		}
	}

	log := logger.G(ctx)
	log.WithField("root", s.root).Info("watching corpus for changes")

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			log.WithField("event", event.String()).Debug("corpus change detected")
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				pending = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("corpus watcher error")
		case <-pending:
			timer = nil
			pending = nil
			// reload errors keep the old snapshot; the corpus author sees
			// the failure in the logs and fixes the file
			_ = s.Reload(ctx)
		}
	}
}
