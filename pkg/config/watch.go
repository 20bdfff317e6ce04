package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDuration collapses the burst of events an editor save produces.
const debounceDuration = 100 * time.Millisecond

// Watch reloads path whenever it changes and sends each successfully loaded
// Config on the returned channel. Invalid intermediate states are logged and
// skipped. The channel is closed when ctx is done or the watcher fails.
//
// The parent directory is watched rather than the file so that editors which
// replace the file on save keep triggering reloads.
func Watch(ctx context.Context, path string, logger *slog.Logger) (<-chan Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config", "path", path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan Config, 1)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()

		debounce := newDebounceTimer()
		defer debounce.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				resetDebounceTimer(debounce)

			case <-debounce.C:
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload rejected", "error", err)
					continue
				}
				logger.Info("config reloaded")
				// Latest wins: drop an unconsumed older config.
				select {
				case <-out:
				default:
				}
				out <- cfg

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", "error", err)
			}
		}
	}()
	return out, nil
}

// newDebounceTimer creates a stopped timer.
func newDebounceTimer() *time.Timer {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	return timer
}

// resetDebounceTimer restarts the debounce window.
func resetDebounceTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(debounceDuration)
}
