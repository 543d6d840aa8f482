package flow

import (
	"strings"
	"sync"
	"time"
)

type debounceEntry struct {
	timer *time.Timer
	fn    func()
}

// Debouncer coalesces bursts of related work into a single deferred run
// per key. The first Schedule for a key arms a timer; further schedules
// for the same key are no-ops until the pending run fires or is
// cancelled. Removal of the entry under the lock is the linearization
// point, so each scheduled function runs at most once even when Flush
// races the timer.
type Debouncer struct {
	mu      sync.Mutex
	entries map[string]*debounceEntry
	stopped bool
}

// NewDebouncer returns an empty Debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{entries: make(map[string]*debounceEntry)}
}

// Schedule arms fn to run after delay unless work is already pending for
// key. It reports whether the call armed a new run.
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) bool {
	if fn == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	if _, ok := d.entries[key]; ok {
		return false
	}
	entry := &debounceEntry{fn: fn}
	entry.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		current, ok := d.entries[key]
		if !ok || current != entry {
			d.mu.Unlock()
			return
		}
		delete(d.entries, key)
		d.mu.Unlock()
		entry.fn()
	})
	d.entries[key] = entry
	return true
}

// Pending reports whether a run is armed for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Cancel drops the pending run for key, reporting whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	entry, ok := d.entries[key]
	if ok {
		delete(d.entries, key)
		entry.timer.Stop()
	}
	d.mu.Unlock()
	return ok
}

// CancelPrefix drops every pending run whose key starts with prefix and
// returns the number of cancelled entries.
func (d *Debouncer) CancelPrefix(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for key, entry := range d.entries {
		if strings.HasPrefix(key, prefix) {
			entry.timer.Stop()
			delete(d.entries, key)
			n++
		}
	}
	return n
}

// Flush runs the pending function for key synchronously instead of
// waiting for its timer. It reports whether anything ran.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	entry, ok := d.entries[key]
	if ok {
		delete(d.entries, key)
		entry.timer.Stop()
	}
	d.mu.Unlock()
	if !ok {
		return false
	}
	entry.fn()
	return true
}

// Stop cancels all pending runs; the Debouncer accepts no further work.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, entry := range d.entries {
		entry.timer.Stop()
		delete(d.entries, key)
	}
}
