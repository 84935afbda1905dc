// File: internal/frame/loop.go
package frame

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval approximates a 60Hz display refresh.
const DefaultInterval = time.Second / 60

// Loop is the wall-clock Scheduler. It owns no goroutine of its own; the
// caller drives it through Run.
type Loop struct {
	registry

	logger   *zap.Logger
	interval time.Duration
}

// NewLoop builds a ticker-driven scheduler. A non-positive interval falls
// back to DefaultInterval.
func NewLoop(interval time.Duration, logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		logger:   logger.Named("frame_loop"),
		interval: interval,
	}
}

// Run ticks until ctx is cancelled and returns the context's error.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("Frame loop running", zap.Duration("interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Frame loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			l.step(now)
		}
	}
}

func (l *Loop) step(now time.Time) {
	queue, subs := l.take()
	for _, cb := range queue {
		l.invoke(cb, now)
	}
	for _, cb := range subs {
		l.invoke(cb, now)
	}
}

// invoke isolates callback panics so one broken consumer cannot stall the
// whole frame clock.
func (l *Loop) invoke(cb Callback, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Frame callback panicked", zap.Any("panic", r))
		}
	}()
	cb(now)
}
