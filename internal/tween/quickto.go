// File: internal/tween/quickto.go
package tween

import (
	"sync"

	"github.com/xkilldash9x/repose/api/schemas"
)

// QuickTo is a reusable driver for one fixed set of fields on one target.
// Repeated Apply calls retarget the running animation in place instead of
// allocating a new one, which keeps per-event cost flat for high-frequency
// sources such as pointer moves.
type QuickTo struct {
	s      *Scheduler
	target Positionable
	keys   []schemas.Key
	opts   Options

	mu     sync.Mutex
	handle *Handle
}

// QuickTo builds a reusable driver for the given fields. The options apply
// to every animation the driver starts; the conflict strategy is consulted
// only when a fresh handle is scheduled, not on retargets.
func (s *Scheduler) QuickTo(target Positionable, keys []schemas.Key, opts Options) *QuickTo {
	owned := make([]schemas.Key, 0, len(keys))
	for _, k := range schemas.Keys() {
		for _, want := range keys {
			if k == want {
				owned = append(owned, k)
				break
			}
		}
	}
	return &QuickTo{s: s, target: target, keys: owned, opts: opts}
}

// Apply retargets the driver toward the given values, matched positionally
// against the construction keys. Missing trailing values leave their
// field's current destination unchanged; extra values are dropped.
func (q *QuickTo) Apply(values ...float64) *Handle {
	to := make(map[schemas.Key]float64, len(q.keys))
	for i, k := range q.keys {
		if i >= len(values) {
			break
		}
		to[k] = values[i]
	}
	return q.ApplyMap(to)
}

// ApplyMap retargets the driver using explicit key/value pairs. Keys
// outside the construction set are dropped. When no animation is running a
// fresh one starts from the fields' current values; otherwise the running
// one bends toward the new destination, restarting its clock.
func (q *QuickTo) ApplyMap(values map[schemas.Key]float64) *Handle {
	merged := make(map[schemas.Key]float64, len(q.keys))
	for _, k := range q.keys {
		if v, ok := values[k]; ok {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handle != nil && q.s.retarget(q.handle, merged) {
		return q.handle
	}

	from := currentValues(q.target, q.keys)
	to := make(map[schemas.Key]float64, len(q.keys))
	for _, k := range q.keys {
		if v, ok := merged[k]; ok {
			to[k] = v
		} else {
			to[k] = from[k]
		}
	}
	q.handle = q.s.schedule(q.target, from, to, q.opts, true)
	return q.handle
}

// Cancel stops the driver's running animation, if any. The driver stays
// usable; the next Apply schedules a fresh one.
func (q *QuickTo) Cancel() {
	q.mu.Lock()
	h := q.handle
	q.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Active reports whether the driver currently animates its target.
func (q *QuickTo) Active() bool {
	q.mu.Lock()
	h := q.handle
	q.mu.Unlock()
	return h != nil && h.Active()
}
