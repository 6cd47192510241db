// Package reload provides configuration hot reload functionality: a
// debounced file watcher and a coordinator that validates a new
// configuration completely before any of it is applied.
package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/supporttools/fleet-doctor/pkg/logger"
)

// ConfigWatcher watches a configuration file for changes and emits reload events.
type ConfigWatcher struct {
	configPath       string
	debounceInterval time.Duration
	watcher          *fsnotify.Watcher
	changeCh         chan struct{}
	mu               sync.Mutex
	running          bool
	stopCh           chan struct{}
}

// NewConfigWatcher creates a new configuration file watcher.
func NewConfigWatcher(configPath string, debounceInterval time.Duration) (*ConfigWatcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	if debounceInterval <= 0 {
		debounceInterval = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &ConfigWatcher{
		configPath:       configPath,
		debounceInterval: debounceInterval,
		watcher:          watcher,
		changeCh:         make(chan struct{}, 1), // Buffered to prevent blocking
		stopCh:           make(chan struct{}),
	}, nil
}

// Start begins watching the configuration file for changes.
// Returns a channel that receives events when the config file changes.
func (cw *ConfigWatcher) Start(ctx context.Context) (<-chan struct{}, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return nil, fmt.Errorf("watcher already running")
	}

	// Watch the directory, not the file directly. Editors and deployment
	// tooling replace config files by atomic rename, which a file-level
	// watch misses.
	dir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	cw.running = true

	go cw.processEvents(ctx)

	return cw.changeCh, nil
}

// Stop stops watching the configuration file.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running {
		return
	}

	close(cw.stopCh)
	cw.watcher.Close()
	close(cw.changeCh)
	cw.running = false
}

// processEvents handles file system events with debouncing.
func (cw *ConfigWatcher) processEvents(ctx context.Context) {
	var debounceTimer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-cw.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if !cw.isConfigFileEvent(event) {
				continue
			}

			// Write for in-place edits, Create for atomic rename.
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.NewTimer(cw.debounceInterval)
				timerCh = debounceTimer.C
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Config file watcher error: %v", err)

		case <-timerCh:
			// Debounce period elapsed, emit change event
			select {
			case cw.changeCh <- struct{}{}:
			default:
				// Channel full, event already pending
			}
			timerCh = nil
		}
	}
}

// isConfigFileEvent checks if the event is for our configuration file.
func (cw *ConfigWatcher) isConfigFileEvent(event fsnotify.Event) bool {
	return filepath.Clean(event.Name) == filepath.Clean(cw.configPath)
}
