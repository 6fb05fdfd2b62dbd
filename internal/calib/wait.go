package calib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// awaitFile blocks until path exists, the timeout elapses, or the
// context ends. The watch is registered before the existence check so a
// file created in between is never missed.
func awaitFile(ctx context.Context, path string, timeout time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if event.Name == path && event.Op.Has(fsnotify.Create|fsnotify.Write) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			return fmt.Errorf("watching %s: %w", path, err)
		case <-timer.C:
			return fmt.Errorf("no %s after %s", filepath.Base(path), timeout)
		}
	}
}
