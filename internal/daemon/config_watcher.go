package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/bedshift/internal/config"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/logfields"
)

// Reloader applies a changed configuration.
type Reloader interface {
	ReloadConfig(ctx context.Context, cfg *config.Config) error
}

// DefaultDebounce is how long the file must stay quiet before it is re-read.
const DefaultDebounce = 2 * time.Second

// ConfigWatcher re-reads the configuration file after it settles and hands
// the result to a Reloader. A file that fails to load leaves the running
// configuration in place.
type ConfigWatcher struct {
	path         string
	target       Reloader
	fs           *fsnotify.Watcher
	debounceTime time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewConfigWatcher prepares a watcher for path. Nothing is watched until Start.
func NewConfigWatcher(path string, target Reloader) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid configuration path").
			WithContext("path", path).
			Build()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "file watcher unavailable").Build()
	}
	return &ConfigWatcher{
		path:         abs,
		target:       target,
		fs:           fs,
		debounceTime: DefaultDebounce,
		done:         make(chan struct{}),
	}, nil
}

// Start watches the file's directory, so editors that save by rename keep
// being seen, and returns once the watch is in place.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.path)
	if err := cw.fs.Add(dir); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "cannot watch configuration directory").
			WithContext("dir", dir).
			Build()
	}
	slog.Info("Watching configuration", slog.String("path", cw.path), slog.Duration("debounce", cw.debounceTime))
	go cw.loop(ctx)
	return nil
}

// Stop ends the watch. It is safe to call more than once.
func (cw *ConfigWatcher) Stop(context.Context) error {
	cw.stopOnce.Do(func() {
		close(cw.done)
		if err := cw.fs.Close(); err != nil {
			slog.Warn("Closing configuration watch failed", logfields.Error(err))
		}
	})
	return nil
}

// loop collects change events for the file and reloads once they stop
// arriving for debounceTime.
func (cw *ConfigWatcher) loop(ctx context.Context) {
	name := filepath.Base(cw.path)
	settle := time.NewTimer(cw.debounceTime)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.done:
			return
		case ev, ok := <-cw.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				slog.Warn("Configuration file removed; keeping the running configuration", slog.String("path", ev.Name))
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				settle.Reset(cw.debounceTime)
			}
		case err, ok := <-cw.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("Configuration watch error", logfields.Error(err))
		case <-settle.C:
			cw.reload(ctx)
		}
	}
}

// reload applies the file as it is now. Failures are logged and the daemon
// keeps its current settings.
func (cw *ConfigWatcher) reload(ctx context.Context) {
	cfg, err := config.Load(cw.path)
	if err != nil {
		slog.Warn("Ignoring configuration change", slog.String("path", cw.path), logfields.Error(err))
		return
	}
	for _, note := range cfg.Warnings() {
		slog.Warn("Configuration normalized", slog.String("note", note))
	}
	if err := cw.target.ReloadConfig(ctx, cfg); err != nil {
		slog.Warn("Configuration change not applied", slog.String("path", cw.path), logfields.Error(err))
		return
	}
	slog.Info("Configuration change applied", slog.String("path", cw.path))
}
