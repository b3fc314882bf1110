package game

import (
	"sync"
	"time"
)

// DefaultIdleTimeout is the span without pointer movement after which the
// session switches to the cinematic view.
const DefaultIdleTimeout = 5 * time.Minute

// IdleWatchdog fires onIdle once the timeout elapses without Reset.
type IdleWatchdog struct {
	mu      sync.Mutex
	clock   Clock
	timeout time.Duration
	onIdle  func()
	timer   Timer
	gen     uint64
}

func NewIdleWatchdog(clock Clock, timeout time.Duration, onIdle func()) *IdleWatchdog {
	if clock == nil {
		clock = WallClock()
	}
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	return &IdleWatchdog{clock: clock, timeout: timeout, onIdle: onIdle}
}

// Reset restarts the countdown.
func (w *IdleWatchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = w.clock.AfterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *IdleWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}

// fire ignores timers that were superseded after they already started.
func (w *IdleWatchdog) fire(gen uint64) {
	w.mu.Lock()
	current := gen == w.gen
	if current {
		w.timer = nil
	}
	w.mu.Unlock()
	if current && w.onIdle != nil {
		w.onIdle()
	}
}
