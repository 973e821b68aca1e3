package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/saazpayhq/saazpay/pkg/observability"
)

// DefaultReloadDebounce groups editor save bursts into one reload
const DefaultReloadDebounce = 250 * time.Millisecond

// Reloader re-parses a renderer's templates when files under a directory
// change. Parse failures are logged and the previous templates keep serving.
type Reloader struct {
	renderer *Renderer
	dir      string
	debounce time.Duration
	logger   *observability.Logger

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending time.Time
	reloads int
	// onReload is called after every reload attempt
	onReload func(error)
}

// NewReloader watches dir and every directory below it
func NewReloader(renderer *Renderer, dir string, debounce time.Duration, logger *observability.Logger) (*Reloader, error) {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := setupWatcher(watcher, dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Reloader{
		renderer: renderer,
		dir:      dir,
		debounce: debounce,
		logger:   logger.WithField("template_dir", dir),
		watcher:  watcher,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the watch loop until ctx ends or Stop is called
func (r *Reloader) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop ends the watch loop and releases the watcher. Safe to call twice.
func (r *Reloader) Stop() error {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
	return r.watcher.Close()
}

// Reloads returns the number of successful reloads
func (r *Reloader) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

func (r *Reloader) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := setupWatcher(r.watcher, event.Name); err != nil {
						r.logger.WithError(err).Warn("failed to watch new template directory")
					}
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				r.mu.Lock()
				r.pending = time.Now()
				r.mu.Unlock()
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.WithError(err).Error("template watcher error")

		case <-ticker.C:
			r.processPending()
		}
	}
}

func (r *Reloader) processPending() {
	r.mu.Lock()
	if r.pending.IsZero() || time.Since(r.pending) < r.debounce {
		r.mu.Unlock()
		return
	}
	r.pending = time.Time{}
	r.mu.Unlock()

	err := r.renderer.Reload()
	if err != nil {
		r.logger.WithError(err).Error("template reload failed, keeping previous templates")
	} else {
		r.mu.Lock()
		r.reloads++
		r.mu.Unlock()
		r.logger.Info("templates reloaded")
	}
	if r.onReload != nil {
		r.onReload(err)
	}
}

func setupWatcher(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
