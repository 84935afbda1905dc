// File: internal/tween/group.go
package tween

import (
	"context"

	"github.com/xkilldash9x/repose/api/schemas"
)

// GroupItem pairs one position instance with caller context that is carried
// into the per-item decision callback.
type GroupItem struct {
	Position Positionable
	Entry    any
}

// GroupContext describes the item a decision callback is deciding for.
type GroupContext struct {
	Index    int
	Position Positionable
	Entry    any
}

// GroupDecision is the outcome of a per-item callback: animate the item
// with explicit values, or leave it out of the group operation.
type GroupDecision struct {
	skip bool
	from map[schemas.Key]float64
	to   map[schemas.Key]float64
}

// Proceed animates the item from its current values toward the given ones.
func Proceed(to map[schemas.Key]float64) GroupDecision {
	return GroupDecision{to: to}
}

// ProceedFromTo animates the item between explicit start and end values.
func ProceedFromTo(from, to map[schemas.Key]float64) GroupDecision {
	return GroupDecision{from: from, to: to}
}

// Skip leaves the item out of the group operation.
func Skip() GroupDecision {
	return GroupDecision{skip: true}
}

// GroupFunc decides per item whether and how to animate it.
type GroupFunc func(GroupContext) GroupDecision

// Group aggregates the handles of one group operation. The handle slice
// aligns with the item slice passed in; nil marks an item that was skipped
// or dropped by the conflict strategy.
type Group struct {
	handles []*Handle
}

// GroupTo animates every item toward the same destination values.
func (s *Scheduler) GroupTo(items []GroupItem, values map[schemas.Key]float64, opts Options) *Group {
	return s.GroupToEach(items, func(GroupContext) GroupDecision {
		return Proceed(values)
	}, opts)
}

// GroupFrom applies the given values to every item immediately, then
// animates each back to the values it held before the call.
func (s *Scheduler) GroupFrom(items []GroupItem, values map[schemas.Key]float64, opts Options) *Group {
	g := &Group{handles: make([]*Handle, len(items))}
	for i, item := range items {
		if item.Position == nil {
			continue
		}
		g.handles[i] = s.From(item.Position, values, opts)
	}
	return g
}

// GroupToEach animates each item according to the decision callback.
func (s *Scheduler) GroupToEach(items []GroupItem, decide GroupFunc, opts Options) *Group {
	g := &Group{handles: make([]*Handle, len(items))}
	if decide == nil {
		return g
	}
	for i, item := range items {
		if item.Position == nil {
			continue
		}
		d := decide(GroupContext{Index: i, Position: item.Position, Entry: item.Entry})
		if d.skip || len(d.to) == 0 {
			continue
		}
		if d.from != nil {
			g.handles[i] = s.FromTo(item.Position, d.from, d.to, opts)
		} else {
			g.handles[i] = s.To(item.Position, d.to, opts)
		}
	}
	return g
}

// Handles returns the per-item handles, aligned with the input items.
func (g *Group) Handles() []*Handle {
	out := make([]*Handle, len(g.handles))
	copy(out, g.handles)
	return out
}

// Len counts the items actually animated.
func (g *Group) Len() int {
	n := 0
	for _, h := range g.handles {
		if h != nil {
			n++
		}
	}
	return n
}

// Cancel stops every animation in the group.
func (g *Group) Cancel() {
	for _, h := range g.handles {
		if h != nil {
			h.Cancel()
		}
	}
}

// Wait blocks until every animation in the group settles or ctx expires.
func (g *Group) Wait(ctx context.Context) error {
	for _, h := range g.handles {
		if h == nil {
			continue
		}
		if err := h.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
