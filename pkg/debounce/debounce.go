// Package debounce provides a per-key debounced executor: scheduling a key
// cancels and replaces any timer already running for that key, so a burst of
// schedules collapses into a single execution after a quiet period.
package debounce

import (
	"sync"
	"time"
)

type Executor struct {
	mu     sync.Mutex
	delay  time.Duration
	timers map[string]*time.Timer
}

func NewExecutor(delay time.Duration) *Executor {
	return &Executor{
		delay:  delay,
		timers: make(map[string]*time.Timer),
	}
}

// SetDelay changes the quiet period for future schedules. Timers already
// running are not affected.
func (e *Executor) SetDelay(delay time.Duration) {
	e.mu.Lock()
	e.delay = delay
	e.mu.Unlock()
}

func (e *Executor) Delay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delay
}

// Schedule runs fn after the configured quiet period, replacing any pending
// execution for the same key.
func (e *Executor) Schedule(key string, fn func()) {
	e.mu.Lock()
	e.scheduleLocked(key, e.delay, fn)
	e.mu.Unlock()
}

// ScheduleAfter is Schedule with an explicit quiet period for this key.
func (e *Executor) ScheduleAfter(key string, delay time.Duration, fn func()) {
	e.mu.Lock()
	e.scheduleLocked(key, delay, fn)
	e.mu.Unlock()
}

func (e *Executor) scheduleLocked(key string, delay time.Duration, fn func()) {
	if t, ok := e.timers[key]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		e.mu.Lock()
		// A replacement may have raced the fire; only the current timer for
		// the key is allowed to run.
		if e.timers[key] != t {
			e.mu.Unlock()
			return
		}
		delete(e.timers, key)
		e.mu.Unlock()

		fn()
	})
	e.timers[key] = t
}

// Cancel stops the pending execution for a key, reporting whether one existed.
func (e *Executor) Cancel(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(e.timers, key)
	return true
}

// CancelAll stops every pending execution.
func (e *Executor) CancelAll() {
	e.mu.Lock()
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
	}
	e.mu.Unlock()
}

// Pending returns the number of keys with a timer running.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}
