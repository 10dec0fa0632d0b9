package convergence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stwalsh4118/vigil/internal/logger"
)

const (
	debounceWindow = 250 * time.Millisecond
	settleDelay    = 100 * time.Millisecond
)

// StoreWatcher calls onChange when the local store file is written, so that
// writes from another process on the same store are picked up before the
// next poll. It uses fsnotify on the store's directory and falls back to
// polling file stats when fsnotify is unavailable.
type StoreWatcher struct {
	path         string
	dir          string
	names        map[string]bool
	pollInterval time.Duration
	onChange     func()

	fsnotifyWatcher *fsnotify.Watcher
	usePolling      bool
	stopChan        chan struct{}
	watchDone       chan struct{}

	mu           sync.Mutex
	pending      bool
	pendingSince time.Time
	started      bool
	stopped      bool
}

// NewStoreWatcher creates a watcher for the store file at path
func NewStoreWatcher(path string, pollInterval time.Duration, onChange func()) (*StoreWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change callback cannot be nil")
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}
	base := filepath.Base(abs)

	return &StoreWatcher{
		path: abs,
		dir:  filepath.Dir(abs),
		// sqlite writes land in the main file, its WAL or its rollback journal
		names: map[string]bool{
			base:              true,
			base + "-wal":     true,
			base + "-journal": true,
		},
		pollInterval: pollInterval,
		onChange:     onChange,
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *StoreWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true

	if !w.usePolling {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("dir", w.dir).
				Msg("Failed to create fsnotify watcher, falling back to polling")
		} else if err := watcher.Add(w.dir); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("dir", w.dir).
				Msg("Failed to add directory to fsnotify watcher, falling back to polling")
			_ = watcher.Close()
		} else {
			w.fsnotifyWatcher = watcher
		}
	}

	go w.runWatching()

	logger.Log.Info().
		Str("path", w.path).
		Bool("using_fsnotify", w.fsnotifyWatcher != nil).
		Msg("Store watcher started")

	return nil
}

// Stop stops watching and waits for the watch goroutine
func (w *StoreWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.stopChan)

	if w.fsnotifyWatcher != nil {
		if err := w.fsnotifyWatcher.Close(); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Error closing fsnotify watcher")
		}
	}

	if started {
		<-w.watchDone
	}

	logger.Log.Debug().
		Str("path", w.path).
		Msg("Store watcher stopped")

	return nil
}

func (w *StoreWatcher) runWatching() {
	defer close(w.watchDone)

	if w.fsnotifyWatcher != nil {
		w.startWatching()
	} else {
		w.startPolling()
	}
}

func (w *StoreWatcher) startWatching() {
	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsnotifyWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.names[filepath.Base(event.Name)] {
				w.markPending()
			}
		case err, ok := <-w.fsnotifyWatcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn().
				Err(err).
				Msg("fsnotify error, continuing")
		case <-ticker.C:
			w.processPending()
		}
	}
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

func (w *StoreWatcher) statAll() map[string]fileStamp {
	stamps := make(map[string]fileStamp, len(w.names))
	for name := range w.names {
		info, err := os.Stat(filepath.Join(w.dir, name))
		if err != nil {
			continue
		}
		stamps[name] = fileStamp{modTime: info.ModTime(), size: info.Size()}
	}
	return stamps
}

func (w *StoreWatcher) startPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	seen := w.statAll()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			current := w.statAll()
			for name, stamp := range current {
				if prev, ok := seen[name]; !ok || !prev.modTime.Equal(stamp.modTime) || prev.size != stamp.size {
					w.markPending()
					break
				}
			}
			seen = current
			w.processPending()
		}
	}
}

func (w *StoreWatcher) markPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.pending {
		w.pending = true
		w.pendingSince = time.Now()
	}
}

// processPending fires onChange once for a burst of writes after they settle
func (w *StoreWatcher) processPending() {
	w.mu.Lock()
	if !w.pending || time.Since(w.pendingSince) < settleDelay {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	logger.Log.Debug().
		Str("path", w.path).
		Msg("Local store changed")
	w.onChange()
}
