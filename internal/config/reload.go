package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// defaultReloadDebounce coalesces the burst of events an editor or
// configmap update produces for a single save.
const defaultReloadDebounce = 100 * time.Millisecond

// Reloader re-reads the configuration file whenever it changes on disk
// and hands every valid result to an apply function. A file that fails
// to load or validate is logged and skipped, leaving whatever was
// applied last in effect.
type Reloader struct {
	path     string
	debounce time.Duration
	apply    func(*Config)
	logger   observability.Logger

	fsw       *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewReloader checks that path currently holds a loadable configuration,
// then starts watching it. The watch is on the containing directory:
// editors and configmap mounts replace the file on update, which would
// silently drop a watch on the file itself.
func NewReloader(path string, debounce time.Duration, apply func(*Config), logger observability.Logger) (*Reloader, error) {
	if apply == nil {
		return nil, fmt.Errorf("reloader requires an apply function")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := loadValid(abs); err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", abs, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	r := &Reloader{
		path:     abs,
		debounce: debounce,
		apply:    apply,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}

	logger.Info("watching configuration file",
		observability.String("path", abs),
	)

	go r.run()
	return r, nil
}

// Close stops the watch and waits for the reload loop to drain.
// Idempotent.
func (r *Reloader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.fsw.Close()
		<-r.done
	})
	return r.closeErr
}

// run consumes file events until the underlying watcher closes. Writes
// land as several events in quick succession; the pending timer absorbs
// them so each save reloads once.
func (r *Reloader) run() {
	defer close(r.done)

	pending := time.NewTimer(r.debounce)
	if !pending.Stop() {
		<-pending.C
	}
	armed := false

	for {
		select {
		case ev, ok := <-r.fsw.Events:
			if !ok {
				if armed {
					pending.Stop()
				}
				return
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if armed && !pending.Stop() {
				<-pending.C
			}
			pending.Reset(r.debounce)
			armed = true

		case <-pending.C:
			armed = false
			r.reload()

		case err, ok := <-r.fsw.Errors:
			if !ok {
				if armed {
					pending.Stop()
				}
				return
			}
			r.logger.Error("config watch error", observability.Error(err))
		}
	}
}

// reload applies the file's current contents, or skips them when they
// do not form a valid configuration.
func (r *Reloader) reload() {
	cfg, err := loadValid(r.path)
	if err != nil {
		r.logger.Error("config reload skipped",
			observability.String("path", r.path),
			observability.Error(err),
		)
		return
	}

	r.logger.Info("configuration reloaded",
		observability.String("path", r.path),
	)
	r.apply(cfg)
}

// loadValid loads and validates the configuration at path.
func loadValid(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
