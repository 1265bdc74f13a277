package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
)

// debounceWindow absorbs the write bursts editors produce when saving.
const debounceWindow = 2 * time.Second

// ConfigWatcher reloads the daemon's configuration when the config file
// changes on disk. Editors often replace the file (rename + create), so the
// watch is on the parent directory and events are filtered by path.
type ConfigWatcher struct {
	configPath string
	daemon     *Daemon
	watcher    *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	done    chan struct{}
}

// NewConfigWatcher prepares a watcher for the given config file.
func NewConfigWatcher(configPath string, d *Daemon) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &ConfigWatcher{
		configPath: abs,
		daemon:     d,
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching; it returns immediately and the watch loop runs until
// ctx is cancelled or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	w.watcher = watcher

	if err := watcher.Add(filepath.Dir(w.configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}
	slog.Info("Watching configuration file", logfields.Path(w.configPath))

	go w.loop(ctx)
	return nil
}

// Stop ends the watch loop.
func (w *ConfigWatcher) Stop(_ context.Context) error {
	close(w.done)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *ConfigWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.scheduleReload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", logfields.Error(err))
		}
	}
}

func (w *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.configPath {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

// scheduleReload resets the debounce timer; the reload fires once the file
// has been quiet for the debounce window.
func (w *ConfigWatcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(debounceWindow, func() {
		w.reload(ctx)
	})
}

func (w *ConfigWatcher) reload(ctx context.Context) {
	cfg, err := config.Load(w.configPath)
	if err != nil {
		slog.Error("Ignoring config change: reload failed", logfields.Error(err))
		return
	}
	if err := w.daemon.ReloadConfig(ctx, cfg); err != nil {
		slog.Error("Failed to apply reloaded config", logfields.Error(err))
	}
}
