package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type LoopState string

const (
	LoopRunning LoopState = "running"
	LoopPaused  LoopState = "paused"
	LoopIdle    LoopState = "idle"
)

// Loop schedules the periodic tick. Idle is sticky: only Wake leaves it.
type Loop struct {
	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
	tick     func()
	entry    cron.EntryID
	state    LoopState
	logger   *zap.Logger
}

// NewLoop starts the scheduler in the paused state. Intervals below one
// second are rounded up by the scheduler.
func NewLoop(interval time.Duration, tick func(), logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		cron:     cron.New(cron.WithSeconds()),
		schedule: fmt.Sprintf("@every %s", interval),
		tick:     tick,
		state:    LoopPaused,
		logger:   logger,
	}
	l.cron.Start()
	return l
}

// Start resumes ticking. It is a no-op while running or idle.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LoopPaused {
		return
	}
	id, err := l.cron.AddFunc(l.schedule, l.tick)
	if err != nil {
		l.logger.Error("failed to schedule game loop", zap.String("schedule", l.schedule), zap.Error(err))
		return
	}
	l.entry = id
	l.state = LoopRunning
	l.logger.Debug("game loop started")
}

// Pause stops ticking. It is a no-op unless running.
func (l *Loop) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LoopRunning {
		return
	}
	l.cron.Remove(l.entry)
	l.state = LoopPaused
	l.logger.Debug("game loop paused")
}

// Idle stops ticking from any state.
func (l *Loop) Idle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == LoopRunning {
		l.cron.Remove(l.entry)
	}
	l.state = LoopIdle
}

// Wake leaves idle and starts ticking again.
func (l *Loop) Wake() {
	l.mu.Lock()
	if l.state == LoopIdle {
		l.state = LoopPaused
	}
	l.mu.Unlock()
	l.Start()
}

func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Close stops the scheduler and waits for a running tick.
func (l *Loop) Close(ctx context.Context) {
	stopCtx := l.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}
