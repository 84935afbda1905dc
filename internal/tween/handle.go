// File: internal/tween/handle.go
package tween

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/position"
)

// Positionable is the slice of the position API the scheduler drives.
// *position.Position satisfies it.
type Positionable interface {
	Set(patch schemas.Patch, opts ...position.SetOption) bool
	Data() schemas.PositionData
}

// Handle represents one scheduled or running tween. It is created by the
// scheduler and lives until completion or cancellation.
type Handle struct {
	id     uint64
	s      *Scheduler
	target Positionable
	keys   []schemas.Key

	// Guarded by the scheduler's mutex.
	from     map[schemas.Key]float64
	to       map[schemas.Key]float64
	started  time.Time
	duration time.Duration
	easing   Easing
	interp   Interpolator
	quick    bool
	finished bool

	cancelled bool
	done      chan struct{}
	doneOnce  sync.Once
}

// Done closes when the tween completes or is cancelled. Cancellation is not
// a failure; inspect Cancelled to tell the outcomes apart.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the tween settles or ctx expires.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops further ticks immediately. Position data already applied by
// prior ticks stays in place. Safe to call repeatedly.
func (h *Handle) Cancel() {
	h.s.remove(h, true)
}

// Cancelled reports whether the tween was stopped before completing.
func (h *Handle) Cancelled() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.cancelled
}

// Active reports whether the tween is still scheduled or running.
func (h *Handle) Active() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return !h.finished && !h.cancelled
}

// Keys lists the fields this tween drives.
func (h *Handle) Keys() []schemas.Key {
	out := make([]schemas.Key, len(h.keys))
	copy(out, h.keys)
	return out
}

// settle closes the completion signal exactly once.
func (h *Handle) settle() {
	h.doneOnce.Do(func() { close(h.done) })
}
