package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const watchDebounce = 200 * time.Millisecond

// Watcher watches the settings file and the data directory (where
// per-session mount-plan overrides live) for external edits, debouncing
// bursts of writes before invoking OnChange. Grounded on the teacher's
// gateway.Watcher, adapted from a WebSocket reload broadcast to a plain
// callback since this daemon has no client push channel to reload over.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	logger   zerolog.Logger

	mu       sync.Mutex
	debounce map[string]*time.Timer
	stopCh   chan struct{}
}

// NewWatcher creates a Watcher. onChange is invoked (on its own goroutine,
// once per debounce window) after a watched path is written or created.
func NewWatcher(logger zerolog.Logger, onChange func(path string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  w,
		onChange: onChange,
		logger:   logger,
		debounce: make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start adds paths to the watch set and begins processing events in the
// background. A path that doesn't exist yet is logged and skipped rather
// than failing the whole daemon startup.
func (w *Watcher) Start(paths ...string) {
	for _, path := range paths {
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("config watcher: failed to watch path")
		}
	}
	go w.run()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleDebounced(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher: error")
		}
	}
}

func (w *Watcher) scheduleDebounced(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(watchDebounce, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()
		w.onChange(path)
	})
}

// Stop cancels pending debounce timers and closes the underlying watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.mu.Lock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
