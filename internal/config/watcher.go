package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"billtool/internal/domain"
)

// debounceDelay coalesces the burst of events editors produce on save.
var debounceDelay = 200 * time.Millisecond

// newWatcher creates an fsnotify watcher; tests may replace it to inject errors.
var newWatcher = fsnotify.NewWatcher

// Watcher reloads a config file when it changes and hands the result to a
// callback. Files that fail to load or validate are logged and skipped.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for path. A nil logger uses slog.Default().
func NewWatcher(path string, logger *slog.Logger) *Watcher {
	return &Watcher{path: path, logger: logger}
}

func (w *Watcher) log() *slog.Logger {
	if w.logger != nil {
		return w.logger
	}
	return slog.Default()
}

// Start begins watching. onChange runs on a separate goroutine for each
// successful reload.
func (w *Watcher) Start(onChange func(*domain.Config)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if onChange == nil {
		return errors.New("config watcher: callback must not be nil")
	}
	if w.running {
		return errors.New("config watcher: already started")
	}

	// Watch the directory: editors replace files by rename, which drops a
	// watch on the file itself.
	fw, err := newWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw
	w.done = make(chan struct{})
	w.running = true
	go w.eventLoop(fw, w.done, onChange)
	return nil
}

// Stop ceases watching. Safe to call even if not started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	close(w.done)
	w.running = false
	return w.watcher.Close()
}

func (w *Watcher) eventLoop(fw *fsnotify.Watcher, done chan struct{}, onChange func(*domain.Config)) {
	target := filepath.Base(w.path)
	var timer *time.Timer
	for {
		select {
		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() { w.reload(onChange) })
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log().Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(onChange func(*domain.Config)) {
	cfg, err := Load(w.path)
	if err != nil {
		w.log().Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	ApplyEnv(cfg, nil)
	if err := Validate(cfg); err != nil {
		w.log().Warn("config reload rejected", "path", w.path, "error", err)
		return
	}
	w.log().Info("config reloaded", "path", w.path, "jobs", len(cfg.Jobs))
	onChange(cfg)
}
