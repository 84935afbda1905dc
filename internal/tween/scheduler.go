// File: internal/tween/scheduler.go
package tween

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/frame"
)

// Strategy resolves conflicts between a new tween request and tweens
// already occupying the same target fields.
type Strategy string

const (
	// StrategyNone lets concurrent tweens on the same field coexist.
	StrategyNone Strategy = ""
	// StrategyCancel cancels existing non-quick tweens on the target, then
	// schedules.
	StrategyCancel Strategy = "cancel"
	// StrategyCancelAll cancels every tween on the target including
	// quick-to drivers, then schedules.
	StrategyCancelAll Strategy = "cancel_all"
	// StrategyExclusive schedules only when the target is unoccupied;
	// otherwise the request is a no-op and no handle is created.
	StrategyExclusive Strategy = "exclusive"
)

// Options configure one tween request.
type Options struct {
	// Duration of the full interpolation. Zero completes on the first frame.
	Duration time.Duration
	// Easing names the progress curve; empty means linear.
	Easing Easing
	// Strategy resolves conflicts against running tweens on the same fields.
	Strategy Strategy
	// Interpolate blends values; nil means Lerp.
	Interpolate Interpolator
}

// targetField identifies one animated field on one position instance.
type targetField struct {
	pos Positionable
	key schemas.Key
}

// Scheduler owns every animation for one frame source. Handles advance on
// each frame; all bookkeeping happens under one mutex so conflict
// resolution is deterministic.
type Scheduler struct {
	logger *zap.Logger
	unsub  func()

	mu     sync.Mutex
	nextID uint64
	active map[uint64]*Handle
	fields map[targetField][]*Handle
}

// NewScheduler subscribes to the frame source. Call Close to release the
// subscription and cancel everything in flight.
func NewScheduler(src frame.Scheduler, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		logger: logger.Named("tween"),
		active: make(map[uint64]*Handle),
		fields: make(map[targetField][]*Handle),
	}
	s.unsub = src.Subscribe(s.tick)
	return s
}

// Close cancels all animations and detaches from the frame source.
func (s *Scheduler) Close() {
	s.CancelAll()
	if s.unsub != nil {
		s.unsub()
	}
}

// To animates the given fields from their current values to the target
// values. A nil handle means the request was dropped by StrategyExclusive.
func (s *Scheduler) To(target Positionable, values map[schemas.Key]float64, opts Options) *Handle {
	from := currentValues(target, keysOf(values))
	return s.schedule(target, from, values, opts, false)
}

// From applies the given values immediately and animates back to the
// values the fields held before the call.
func (s *Scheduler) From(target Positionable, values map[schemas.Key]float64, opts Options) *Handle {
	to := currentValues(target, keysOf(values))
	h := s.schedule(target, values, to, opts, false)
	if h != nil {
		target.Set(floatPatch(values))
	}
	return h
}

// FromTo animates between two explicit value sets. Keys present in only
// one set fall back to the field's current value on the other side.
func (s *Scheduler) FromTo(target Positionable, from, to map[schemas.Key]float64, opts Options) *Handle {
	keys := mergeKeys(from, to)
	cur := currentValues(target, keys)
	f := make(map[schemas.Key]float64, len(keys))
	t := make(map[schemas.Key]float64, len(keys))
	for _, k := range keys {
		if v, ok := from[k]; ok {
			f[k] = v
		} else {
			f[k] = cur[k]
		}
		if v, ok := to[k]; ok {
			t[k] = v
		} else {
			t[k] = cur[k]
		}
	}
	h := s.schedule(target, f, t, opts, false)
	if h != nil {
		target.Set(floatPatch(f))
	}
	return h
}

// CancelAll cancels every scheduled animation on this scheduler. Used for
// teardown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.remove(h, true)
	}
}

// CancelTarget cancels every animation driving the given position instance.
func (s *Scheduler) CancelTarget(target Positionable) {
	s.mu.Lock()
	var handles []*Handle
	for _, h := range s.active {
		if h.target == target {
			handles = append(handles, h)
		}
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.remove(h, true)
	}
}

// Len reports how many handles are live.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// schedule applies the conflict strategy and registers a new handle.
func (s *Scheduler) schedule(target Positionable, from, to map[schemas.Key]float64, opts Options, quick bool) *Handle {
	if target == nil || len(to) == 0 {
		return nil
	}
	keys := keysOf(to)
	interp := opts.Interpolate
	if interp == nil {
		interp = Lerp
	}
	if !opts.Easing.Valid() {
		s.logger.Warn("Unknown easing, falling back to linear", zap.String("easing", string(opts.Easing)))
		opts.Easing = EaseLinear
	}

	s.mu.Lock()
	conflicts := s.conflictsLocked(target, keys)
	var toCancel []*Handle
	switch opts.Strategy {
	case StrategyExclusive:
		if len(conflicts) > 0 {
			s.mu.Unlock()
			s.logger.Debug("Exclusive tween dropped, target occupied",
				zap.Int("conflicts", len(conflicts)))
			return nil
		}
	case StrategyCancel:
		for _, c := range conflicts {
			if !c.quick {
				toCancel = append(toCancel, c)
			}
		}
	case StrategyCancelAll:
		toCancel = conflicts
	}

	s.nextID++
	h := &Handle{
		id:       s.nextID,
		s:        s,
		target:   target,
		keys:     keys,
		from:     copyValues(from),
		to:       copyValues(to),
		duration: opts.Duration,
		easing:   opts.Easing,
		interp:   interp,
		quick:    quick,
		done:     make(chan struct{}),
	}
	s.active[h.id] = h
	for _, k := range keys {
		tf := targetField{pos: target, key: k}
		s.fields[tf] = append(s.fields[tf], h)
	}
	s.mu.Unlock()

	for _, c := range toCancel {
		s.remove(c, true)
	}
	return h
}

// conflictsLocked finds live handles sharing any of the given fields.
func (s *Scheduler) conflictsLocked(target Positionable, keys []schemas.Key) []*Handle {
	seen := make(map[uint64]struct{})
	var out []*Handle
	for _, k := range keys {
		for _, h := range s.fields[targetField{pos: target, key: k}] {
			if h.finished || h.cancelled {
				continue
			}
			if _, dup := seen[h.id]; dup {
				continue
			}
			seen[h.id] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

// remove unregisters a handle and settles its completion signal.
func (s *Scheduler) remove(h *Handle, cancelled bool) {
	s.mu.Lock()
	if h.finished || h.cancelled {
		s.mu.Unlock()
		return
	}
	if cancelled {
		h.cancelled = true
	} else {
		h.finished = true
	}
	delete(s.active, h.id)
	for _, k := range h.keys {
		tf := targetField{pos: h.target, key: k}
		bucket := s.fields[tf]
		for i, cand := range bucket {
			if cand == h {
				copy(bucket[i:], bucket[i+1:])
				s.fields[tf] = bucket[:len(bucket)-1]
				break
			}
		}
		if len(s.fields[tf]) == 0 {
			delete(s.fields, tf)
		}
	}
	s.mu.Unlock()

	h.settle()
}

// tick advances every live handle by one frame. Handles run in schedule
// order so concurrent tweens resolve deterministically.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	s.mu.Unlock()
	sort.Slice(handles, func(i, j int) bool { return handles[i].id < handles[j].id })

	for _, h := range handles {
		patch, finished, ok := s.advance(h, now)
		if !ok {
			continue
		}
		h.target.Set(patch)
		if finished {
			s.remove(h, false)
		}
	}
}

// advance computes one frame of interpolated values for h.
func (s *Scheduler) advance(h *Handle, now time.Time) (schemas.Patch, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.finished || h.cancelled {
		return nil, false, false
	}
	if h.started.IsZero() {
		h.started = now
	}
	elapsed := now.Sub(h.started)
	if elapsed < 0 {
		elapsed = 0
	}

	t := 1.0
	if h.duration > 0 {
		t = float64(elapsed) / float64(h.duration)
	}
	finished := t >= 1

	patch := make(schemas.Patch, len(h.keys))
	if finished {
		// Land exactly on the end values rather than the eased approximation.
		for _, k := range h.keys {
			patch[k] = h.to[k]
		}
	} else {
		eased := h.easing.Apply(t)
		for _, k := range h.keys {
			patch[k] = h.interp(h.from[k], h.to[k], eased)
		}
	}
	return patch, finished, true
}

// retarget redirects a live quick-to handle toward new values without
// reallocating it. The interpolation restarts from the fields' current
// values on the next frame. Reports false when the handle already settled.
func (s *Scheduler) retarget(h *Handle, to map[schemas.Key]float64) bool {
	from := currentValues(h.target, h.keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	if h.finished || h.cancelled {
		return false
	}
	h.from = from
	for k, v := range to {
		h.to[k] = v
	}
	h.started = time.Time{}
	return true
}

func keysOf(values map[schemas.Key]float64) []schemas.Key {
	keys := make([]schemas.Key, 0, len(values))
	for _, k := range schemas.Keys() {
		if _, ok := values[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func mergeKeys(a, b map[schemas.Key]float64) []schemas.Key {
	merged := make(map[schemas.Key]float64, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return keysOf(merged)
}

// currentValues samples the fields' present numeric values, defaulting
// unset fields to zero.
func currentValues(target Positionable, keys []schemas.Key) map[schemas.Key]float64 {
	data := target.Data()
	out := make(map[schemas.Key]float64, len(keys))
	for _, k := range keys {
		switch {
		case schemas.IsDimensionKey(k):
			d, _ := data.DimensionField(k)
			out[k] = d.Or(0)
		default:
			f, _ := data.FloatField(k)
			out[k] = f.Or(0)
		}
	}
	return out
}

func floatPatch(values map[schemas.Key]float64) schemas.Patch {
	patch := make(schemas.Patch, len(values))
	for k, v := range values {
		patch[k] = v
	}
	return patch
}

// copyValues detaches handle state from caller-owned maps.
func copyValues(m map[schemas.Key]float64) map[schemas.Key]float64 {
	out := make(map[schemas.Key]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
