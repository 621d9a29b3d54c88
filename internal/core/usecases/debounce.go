package usecases

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultDebounce is the quiet interval after the last viewport change.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer runs only the last scheduled func once no new schedule has
// arrived for the interval. At most one timer is pending.
type Debouncer struct {
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	timer   *clock.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a Debouncer. A nil clock uses wall time.
func NewDebouncer(c clock.Clock, interval time.Duration) *Debouncer {
	if c == nil {
		c = clock.New()
	}
	if interval <= 0 {
		interval = DefaultDebounce
	}
	return &Debouncer{clock: c, interval: interval}
}

// Schedule cancels any pending func and arms fn. It returns false after Cancel.
func (d *Debouncer) Schedule(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.interval, func() {
		d.mu.Lock()
		// A timer that fired while being replaced must not run.
		if d.stopped || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
	return true
}

// Pending reports whether a func is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops the pending func and rejects future schedules.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
