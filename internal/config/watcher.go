package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// RulesWatcher watches the rules file and notifies callbacks with the
// re-parsed spec on every write. A parse failure keeps the previous rule set
// in place.
type RulesWatcher struct {
	rulesPath string
	logger    logger.Logger
	mu        sync.RWMutex
	callbacks []func(*RulesSpec)
	stopCh    chan struct{}
}

func NewRulesWatcher(rulesPath string, log logger.Logger) *RulesWatcher {
	return &RulesWatcher{
		rulesPath: rulesPath,
		logger:    log.With("component", "rules-watcher"),
		stopCh:    make(chan struct{}),
	}
}

// OnReload registers a callback invoked with each successfully reloaded spec.
func (w *RulesWatcher) OnReload(callback func(*RulesSpec)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start blocks watching for rules file changes until the context is
// cancelled or Stop is called. Run it on its own goroutine.
func (w *RulesWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.rulesPath); err != nil {
		return fmt.Errorf("failed to watch rules file: %w", err)
	}

	w.logger.Info("rules watcher started", "path", w.rulesPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				w.logger.Info("rules file changed, reloading", "file", event.Name)
				spec, err := LoadRulesFile(w.rulesPath)
				if err != nil {
					w.logger.Error("failed to reload rules file, keeping previous rules", "error", err)
					continue
				}
				w.notify(spec)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("rules watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("rules watcher stopping")
			return nil

		case <-w.stopCh:
			w.logger.Info("rules watcher stopped")
			return nil
		}
	}
}

// Stop terminates the watcher.
func (w *RulesWatcher) Stop() {
	close(w.stopCh)
}

func (w *RulesWatcher) notify(spec *RulesSpec) {
	w.mu.RLock()
	callbacks := make([]func(*RulesSpec), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		callback(spec)
	}
}
