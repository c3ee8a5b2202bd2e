package roster

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher marks the store dirty whenever the roster directory changes,
// so the next session open picks up added or replaced images without a
// restart.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewWatcher starts watching the store's roster directory.
func NewWatcher(store *Store, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create roster watcher: %w", err)
	}
	if err := fw.Add(store.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch roster directory %s: %w", store.dir, err)
	}
	return &Watcher{store: store, watcher: fw, logger: logger}, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("roster directory changed")
				w.store.MarkDirty()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("roster watcher error")
		}
	}
}
