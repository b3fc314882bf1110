package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopTransitions(t *testing.T) {
	l := NewLoop(time.Hour, func() {}, nil)
	defer l.Close(context.Background())

	assert.Equal(t, LoopPaused, l.State())
	l.Start()
	l.Start()
	assert.Equal(t, LoopRunning, l.State())
	assert.Len(t, l.cron.Entries(), 1, "start is idempotent")

	l.Pause()
	l.Pause()
	assert.Equal(t, LoopPaused, l.State())
	assert.Empty(t, l.cron.Entries())

	l.Start()
	l.Idle()
	assert.Equal(t, LoopIdle, l.State())
	assert.Empty(t, l.cron.Entries())

	l.Start()
	assert.Equal(t, LoopIdle, l.State(), "idle is sticky")

	l.Wake()
	assert.Equal(t, LoopRunning, l.State())
}

func TestLoopTicks(t *testing.T) {
	var ticks atomic.Int32
	l := NewLoop(time.Second, func() { ticks.Add(1) }, nil)
	defer l.Close(context.Background())

	l.Start()
	assert.Eventually(t, func() bool { return ticks.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestIdleWatchdog(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32
	w := NewIdleWatchdog(clock, 0, func() { fired.Add(1) })

	w.Reset()
	clock.Advance(DefaultIdleTimeout - time.Second)
	assert.Zero(t, fired.Load())

	w.Reset()
	clock.Advance(DefaultIdleTimeout - time.Second)
	assert.Zero(t, fired.Load(), "reset restarts the countdown")

	clock.Advance(time.Second)
	assert.Equal(t, int32(1), fired.Load())

	w.Reset()
	w.Stop()
	clock.Advance(2 * DefaultIdleTimeout)
	assert.Equal(t, int32(1), fired.Load(), "stopped watchdog never fires")
}
