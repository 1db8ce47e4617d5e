package playback

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultTickInterval is the wall-clock period between ticks.
const DefaultTickInterval = 100 * time.Millisecond

// TickFunc receives real elapsed seconds since the previous tick.
type TickFunc func(elapsed float64)

// Clock drives a TickFunc from a time.Ticker. The callback runs on the
// clock's goroutine, so it must do its own synchronization with whatever owns
// the scheduler.
type Clock struct {
	interval time.Duration
	onTick   TickFunc
	logger   *slog.Logger
	now      func() time.Time
	running  atomic.Bool
	paused   atomic.Bool
}

func NewClock(interval time.Duration, onTick TickFunc, logger *slog.Logger) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Clock{
		interval: interval,
		onTick:   onTick,
		logger:   logger,
		now:      time.Now,
	}
}

// Start blocks until ctx is cancelled. Calling Start on a running clock
// returns immediately.
func (c *Clock) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return
	}
	defer c.running.Store(false)

	if c.logger != nil {
		c.logger.Debug("playback clock started", "interval", c.interval)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	last := c.now()
	for {
		select {
		case <-ctx.Done():
			if c.logger != nil {
				c.logger.Debug("playback clock stopping")
			}
			return
		case <-ticker.C:
			now := c.now()
			elapsed := now.Sub(last).Seconds()
			last = now
			if !c.paused.Load() {
				c.onTick(elapsed)
			}
		}
	}
}

func (c *Clock) Pause() { c.paused.Store(true) }
func (c *Clock) Resume() { c.paused.Store(false) }
func (c *Clock) IsPaused() bool { return c.paused.Load() }
func (c *Clock) IsRunning() bool { return c.running.Load() }
