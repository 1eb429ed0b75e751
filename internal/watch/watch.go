// Package watch reports changes to the directory currently on screen.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no positive debounce is configured.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a single directory (not its subtree) and signals on
// Changes once a burst of events has settled for the debounce period.
// Bursts collapse into one signal; a signal not yet consumed is not
// duplicated.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	ignore   map[string]struct{}

	mu    sync.Mutex
	dir   string
	timer *time.Timer

	changes chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// New starts a watcher with nothing watched yet; call SetDir. Events for the
// ignored paths never count as a change. The application's own log file
// belongs there, or every logged line would trigger another event.
func New(debounce time.Duration, logger *slog.Logger, ignore ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		ignore:   make(map[string]struct{}, len(ignore)),
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, p := range ignore {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore[abs] = struct{}{}
		}
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Changes delivers one value per settled burst of changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Dir returns the directory being watched.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// SetDir switches the watch to dir. Setting the current directory again is a no-op.
func (w *Watcher) SetDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve '%s': %w", dir, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if abs == w.dir {
		return nil
	}
	if w.dir != "" {
		if err := w.fsw.Remove(w.dir); err != nil {
			w.logger.Debug("Failed to stop watching directory", "dir", w.dir, "error", err)
		}
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.dir = ""
	if err := w.fsw.Add(abs); err != nil {
		return fmt.Errorf("failed to watch '%s': %w", abs, err)
	}
	w.dir = abs
	w.logger.Debug("Watching directory", "dir", abs)
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error encountered, attempting to continue", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if _, skip := w.ignore[filepath.Clean(event.Name)]; skip {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// Events queued before a SetDir can still arrive for the old directory.
	if w.dir == "" || (event.Name != w.dir && filepath.Dir(event.Name) != w.dir) {
		return
	}
	w.logger.Debug("Watcher event received", "event", event.String())

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.changes <- struct{}{}:
		default:
		}
	})
}

// Close stops the watcher. Changes is not closed.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}
