package alerting

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SeedWatcher reloads a seed file when it changes on disk and creates
// any alerts added since the last load. It never deletes or modifies
// existing alerts; the seed file is additive.
type SeedWatcher struct {
	path    string
	engine  *Engine
	watcher *fsnotify.Watcher

	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewSeedWatcher creates a watcher for the given seed file path.
func NewSeedWatcher(path string, engine *Engine) (*SeedWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &SeedWatcher{
		path:    absPath,
		engine:  engine,
		watcher: watcher,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. The containing directory is watched so that
// editors which replace the file (write temp, rename over) are still
// observed.
func (w *SeedWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher.
func (w *SeedWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true

	close(w.done)
	w.watcher.Close()
}

func (w *SeedWatcher) run(ctx context.Context) {
	// Debounce bursts of write events: editors commonly emit several
	// per save, and a reload mid-write would parse a torn file.
	var debounce *time.Timer
	var reloadC <-chan time.Time

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
			if event.Name != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce == nil {
					debounce = time.NewTimer(250 * time.Millisecond)
					reloadC = debounce.C
				} else {
					debounce.Reset(250 * time.Millisecond)
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("seed watcher error: %v", err)
		case <-reloadC:
			debounce = nil
			reloadC = nil
			w.reload(ctx)
		}
	}
}

func (w *SeedWatcher) reload(ctx context.Context) {
	alerts, err := LoadSeedFile(w.path)
	if err != nil {
		// Keep the alerts loaded last time; a broken edit should not
		// take the engine down.
		log.Printf("seed reload: %v", err)
		return
	}

	created, err := Seed(ctx, w.engine, alerts)
	if err != nil {
		log.Printf("seed reload: %v", err)
		return
	}
	if created > 0 {
		log.Printf("seed reload: %d new alert(s) from %s", created, w.path)
	}
}
