package backline

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigReloader watches the configuration file and re-parses it on
// change, handing the new config to registered callbacks. A failed
// parse keeps the previous config active.
type ConfigReloader struct {
	mu        sync.RWMutex
	current   *FileConfig
	path      string
	logger    Logger
	callbacks []func(*FileConfig)
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewConfigReloader creates a reloader for the given config file path.
func NewConfigReloader(path string, initial *FileConfig, logger Logger) *ConfigReloader {
	return &ConfigReloader{
		current: initial,
		path:    path,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Current returns the active configuration.
func (r *ConfigReloader) Current() *FileConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnReload registers a callback invoked with the new config after a
// successful reload.
func (r *ConfigReloader) OnReload(fn func(*FileConfig)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Start begins watching the config file. Call once after construction.
func (r *ConfigReloader) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.path); err != nil {
		watcher.Close()
		return err
	}
	r.watcher = watcher

	if r.logger != nil {
		r.logger.Info("config file watcher started", "path", r.path)
	}

	go r.watchLoop()
	return nil
}

// Stop terminates the file watcher.
func (r *ConfigReloader) Stop() {
	close(r.stopCh)
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// Reload loads the config from disk and, if valid, swaps it in and
// notifies callbacks. Returns true on success.
func (r *ConfigReloader) Reload() bool {
	cfg, err := LoadConfig(r.path)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("config reload failed, keeping previous", "path", r.path, "error", err)
		}
		return false
	}

	r.mu.Lock()
	r.current = cfg
	callbacks := append([]func(*FileConfig){}, r.callbacks...)
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}

	if r.logger != nil {
		r.logger.Info("configuration reloaded", "path", r.path)
	}
	return true
}

func (r *ConfigReloader) watchLoop() {
	for {
		select {
		case <-r.stopCh:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				r.Reload()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			if r.logger != nil {
				r.logger.Warn("config watcher error", "error", err)
			}
		}
	}
}
