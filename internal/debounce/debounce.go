// Package debounce delays a callback until its input has been quiet for a
// fixed window. Each new input cancels the pending timer and restarts it, so
// only the last value of a burst is delivered.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period used when none is configured.
const DefaultWindow = 300 * time.Millisecond

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option customises a Debouncer.
type Option func(*config)

type config struct {
	clock Clock
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// Debouncer delivers the last value passed to Trigger once the window has
// elapsed without another Trigger.
type Debouncer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	clock   Clock
	fn      func(T)
	timer   Timer
	gen     uint64
	stopped bool
}

// New returns a Debouncer calling fn. A non-positive window uses DefaultWindow.
func New[T any](window time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	cfg := config{clock: realClock{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer[T]{window: window, clock: cfg.clock, fn: fn}
}

// Trigger records v and restarts the window. It is a no-op after Stop.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.fn == nil {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.window, func() { d.fire(gen, v) })
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	fn := d.fn
	d.mu.Unlock()
	fn(v)
}

// Cancel drops the pending value, if any, and reports whether one was pending.
// Later Triggers still work.
func (d *Debouncer[T]) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Debouncer[T]) cancelLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Stop cancels any pending value and disables the Debouncer for good. Owners
// call it on teardown.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

// Pending reports whether a value is waiting for its window to elapse.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
