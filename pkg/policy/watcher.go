package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no debounce interval is configured.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher reports changes to a single file.
//
// The parent directory is watched rather than the file itself: editors and
// deployment tools often replace a file by renaming a new one over it,
// which drops a watch held on the old inode.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	path     string
	debounce *Debouncer

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewFileWatcher creates a watcher for path. A non-positive interval uses
// DefaultDebounce.
func NewFileWatcher(path string, interval time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	if path == "" {
		return nil, errors.New("watch path is empty")
	}
	if interval <= 0 {
		interval = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		logger:   logger,
		path:     abs,
		debounce: NewDebouncer(interval),
	}, nil
}

// Watch calls onChange, debounced, each time the file is written, created
// or replaced. It blocks until ctx is done or the watcher is closed.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func()) error {
	fw.mu.Lock()
	switch {
	case fw.closed:
		fw.mu.Unlock()
		return errors.New("watcher closed")
	case fw.running:
		fw.mu.Unlock()
		return errors.New("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
	}()

	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	fw.logger.Info("watching policy file",
		"path", fw.path,
		"debounce_ms", fw.debounce.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			fw.debounce.Stop()
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if !fw.shouldProcessEvent(event) {
				continue
			}
			fw.logger.Debug("policy file event", "path", event.Name, "op", event.Op.String())
			fw.debounce.Trigger(onChange)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

// Close stops the watcher and cancels any pending callback.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	fw.mu.Unlock()

	fw.debounce.Stop()
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// shouldProcessEvent reports whether event concerns the watched file and
// may have changed its content.
func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != fw.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Debouncer collapses bursts of events into a single callback that runs
// once the burst has been quiet for the interval.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any callback still pending.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			callback()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
