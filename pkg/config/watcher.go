package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the freshly-parsed configuration after a change
// to the watched file. Errors from the reload are the callback's to
// handle; the watcher keeps running.
type ReloadFunc func(cfg *Config)

// Watcher reloads the configuration file when it changes on disk.
// Intended for credential rotation without restarting the daemon.
type Watcher struct {
	path     string
	onReload ReloadFunc
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:     path,
		onReload: onReload,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled. Rapid successive
// writes are debounced to a single reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("config watcher error: %w", err)

		case <-reload:
			cfg, err := Load(w.path)
			if err != nil {
				// A half-written file parses dirty; keep the old
				// config and wait for the next write.
				continue
			}
			w.onReload(cfg)
		}
	}
}
