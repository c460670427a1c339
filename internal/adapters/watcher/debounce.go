package watcher

import (
	"sync"
	"time"

	"github.com/repod-io/repod/internal/domain/events"
)

// DebouncedEvent represents a pending file change awaiting its window.
type DebouncedEvent struct {
	Path       string
	ChangeType events.FileChangeType
	Timer      *time.Timer
}

// Debouncer coalesces rapid file system events per path. Git writes most
// plumbing files with a write-then-rename dance, so a single logical change
// shows up as several events inside one window.
type Debouncer struct {
	window   time.Duration
	callback func(path string, changeType events.FileChangeType)

	mu      sync.Mutex
	pending map[string]*DebouncedEvent
	stopped bool
}

// NewDebouncer creates a debouncer with the given window and callback.
func NewDebouncer(window time.Duration, callback func(path string, changeType events.FileChangeType)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*DebouncedEvent),
	}
}

// Add queues an event for debouncing.
func (d *Debouncer) Add(path string, changeType events.FileChangeType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[path]; ok {
		existing.Timer.Stop()
		existing.ChangeType = mergeChangeTypes(existing.ChangeType, changeType)
		existing.Timer = time.AfterFunc(d.window, func() {
			d.fire(path)
		})
		return
	}

	d.pending[path] = &DebouncedEvent{
		Path:       path,
		ChangeType: changeType,
		Timer: time.AfterFunc(d.window, func() {
			d.fire(path)
		}),
	}
}

// fire executes the callback for a path.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	event, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped && d.callback != nil {
		d.callback(event.Path, event.ChangeType)
	}
}

// PendingCount returns the number of paths awaiting their window.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels all pending timers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, event := range d.pending {
		event.Timer.Stop()
	}
	d.pending = make(map[string]*DebouncedEvent)
}

// mergeChangeTypes combines two change types for the same path within one
// debounce window.
func mergeChangeTypes(existing, next events.FileChangeType) events.FileChangeType {
	// Delete takes precedence
	if next == events.FileChangeDeleted {
		return events.FileChangeDeleted
	}
	// Create takes precedence over modify
	if existing == events.FileChangeCreated {
		return events.FileChangeCreated
	}
	return next
}
