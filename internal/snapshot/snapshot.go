// File: internal/snapshot/snapshot.go

// Package snapshot keeps named copies of position state and routes them
// back through the owning pipeline: silently, as a regular update, or as
// an animated transition.
package snapshot

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/position"
	"github.com/xkilldash9x/repose/internal/tween"
)

// DefaultName is the reserved slot seeded at construction. It always
// exists; Clear preserves it and Remove refuses to delete it.
const DefaultName = "default"

var (
	// ErrPositionRequired is returned by New when no position is supplied.
	ErrPositionRequired = errors.New("position instance is required")
	// ErrNotFound marks a restore of a name the store does not hold.
	ErrNotFound = errors.New("snapshot not found")
	// ErrNoAnimator marks an animated restore on a store built without a
	// tween scheduler.
	ErrNoAnimator = errors.New("animated restore requires a tween scheduler")
)

// Positioner is the slice of the position API the store drives.
// *position.Position satisfies it.
type Positioner interface {
	Data() schemas.PositionData
	Set(patch schemas.Patch, opts ...position.SetOption) bool
	Load(data schemas.PositionData)
}

// Snapshot is one named, fully materialized copy of position data plus
// arbitrary caller-supplied context. Its lifetime is independent of the
// live data it was copied from.
type Snapshot struct {
	Name    string               `json:"name"`
	Data    schemas.PositionData `json:"data"`
	Extra   map[string]any       `json:"extra,omitempty"`
	SavedAt time.Time            `json:"saved_at"`
}

// Copy returns a snapshot that shares nothing with the receiver.
func (s Snapshot) Copy() Snapshot {
	out := s
	if s.Extra != nil {
		out.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Config carries the constructor options for a snapshot store.
type Config struct {
	// Position is the pipeline the store reads from and restores into.
	// Required.
	Position Positioner
	// Tweens enables animated restores. Optional.
	Tweens *tween.Scheduler
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// DefaultName overrides the reserved slot name.
	DefaultName string
}

// Store owns the named snapshots of one position instance. The reserved
// default slot is seeded with the position's state at construction time.
type Store struct {
	pos    Positioner
	tweens *tween.Scheduler
	logger *zap.Logger
	def    string

	mu      sync.RWMutex
	entries map[string]Snapshot
}

// New builds a store and seeds the reserved default slot from the
// position's current data.
func New(cfg Config) (*Store, error) {
	if cfg.Position == nil {
		return nil, ErrPositionRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	def := cfg.DefaultName
	if def == "" {
		def = DefaultName
	}
	s := &Store{
		pos:     cfg.Position,
		tweens:  cfg.Tweens,
		logger:  logger.Named("snapshot"),
		def:     def,
		entries: make(map[string]Snapshot),
	}
	s.entries[def] = Snapshot{Name: def, Data: cfg.Position.Data(), SavedAt: time.Now()}
	return s, nil
}

// DefaultName returns the reserved slot's name.
func (s *Store) DefaultName() string { return s.def }

// name maps the empty string onto the reserved slot.
func (s *Store) name(n string) string {
	if n == "" {
		return s.def
	}
	return n
}

// Save captures the position's current data under the given name, together
// with any extra caller fields. Saving an existing name replaces it; saving
// the default name rebaselines what Reset restores to.
func (s *Store) Save(name string, extra map[string]any) Snapshot {
	snap := Snapshot{
		Name:    s.name(name),
		Data:    s.pos.Data(),
		SavedAt: time.Now(),
	}
	if len(extra) > 0 {
		snap.Extra = make(map[string]any, len(extra))
		for k, v := range extra {
			snap.Extra[k] = v
		}
	}

	s.mu.Lock()
	s.entries[snap.Name] = snap
	s.mu.Unlock()

	s.logger.Debug("Saved snapshot", zap.String("name", snap.Name))
	return snap.Copy()
}

// Get returns a copy of the named snapshot.
func (s *Store) Get(name string) (Snapshot, bool) {
	s.mu.RLock()
	snap, ok := s.entries[s.name(name)]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return snap.Copy(), true
}

// Remove deletes the named snapshot. The reserved default slot cannot be
// removed; Remove reports whether a snapshot was actually deleted.
func (s *Store) Remove(name string) bool {
	n := s.name(name)
	if n == s.def {
		return false
	}
	s.mu.Lock()
	_, ok := s.entries[n]
	delete(s.entries, n)
	s.mu.Unlock()
	return ok
}

// Keys lists the stored names in lexical order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len counts the stored snapshots, the reserved slot included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every snapshot except the reserved default slot.
func (s *Store) Clear() {
	s.mu.Lock()
	def, ok := s.entries[s.def]
	s.entries = make(map[string]Snapshot)
	if ok {
		s.entries[s.def] = def
	}
	s.mu.Unlock()
}

// All returns every snapshot sorted by name, for persistence layers.
func (s *Store) All() []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.entries))
	for _, snap := range s.entries {
		out = append(out, snap.Copy())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Import adopts externally loaded snapshots. Existing names are kept unless
// overwrite is set; unnamed entries are dropped. It returns the number of
// snapshots adopted.
func (s *Store) Import(snaps []Snapshot, overwrite bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, snap := range snaps {
		if snap.Name == "" {
			continue
		}
		if _, exists := s.entries[snap.Name]; exists && !overwrite {
			continue
		}
		s.entries[snap.Name] = snap.Copy()
		n++
	}
	return n
}

// RestoreOptions shape how a snapshot is applied back to the position.
type RestoreOptions struct {
	// Remove deletes the snapshot from the store before applying it. The
	// reserved default slot is never removed.
	Remove bool
	// Properties filters the applied fields; empty applies every field,
	// null fields included.
	Properties []schemas.Key
	// Silent loads the data directly, bypassing validation and element
	// synchronization.
	Silent bool
	// AnimateTo tweens the numeric fields toward the snapshot instead of
	// jumping; non-numeric fields are applied immediately. Requires a tween
	// scheduler on the store.
	AnimateTo *tween.Options
}

// RestoreResult reports what a restore did. Handle is non-nil only for
// animated restores; Wait covers both cases.
type RestoreResult struct {
	Snapshot Snapshot
	Handle   *tween.Handle
}

// Wait blocks until an animated restore settles. Non-animated restores
// return immediately.
func (r RestoreResult) Wait(ctx context.Context) error {
	if r.Handle == nil {
		return nil
	}
	return r.Handle.Wait(ctx)
}

// Restore fetches the named snapshot and applies it to the position.
func (s *Store) Restore(name string, opts RestoreOptions) (RestoreResult, error) {
	n := s.name(name)

	s.mu.Lock()
	snap, ok := s.entries[n]
	if ok && opts.Remove && n != s.def {
		delete(s.entries, n)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("Restore of unknown snapshot", zap.String("name", n))
		return RestoreResult{}, ErrNotFound
	}
	if opts.AnimateTo != nil && s.tweens == nil {
		return RestoreResult{}, ErrNoAnimator
	}

	res := RestoreResult{Snapshot: snap.Copy()}
	keys := opts.Properties
	if len(keys) == 0 {
		keys = schemas.Keys()
	}

	switch {
	case opts.Silent:
		data := s.pos.Data()
		data.Merge(&snap.Data, keys...)
		s.pos.Load(data)

	case opts.AnimateTo != nil:
		numeric, immediate := splitAnimatable(&snap.Data, keys)
		if len(immediate) > 0 {
			s.pos.Set(immediate)
		}
		if len(numeric) > 0 {
			res.Handle = s.tweens.To(s.pos, numeric, *opts.AnimateTo)
		}

	default:
		s.pos.Set(patchOf(&snap.Data, keys))
	}

	s.logger.Debug("Restored snapshot",
		zap.String("name", n),
		zap.Bool("silent", opts.Silent),
		zap.Bool("animated", res.Handle != nil))
	return res, nil
}

// ResetOptions shape how the reserved default snapshot is re-applied.
type ResetOptions struct {
	// KeepZIndex preserves the live z-index instead of the saved one.
	KeepZIndex bool
	// Silent loads the data directly instead of running the pipeline.
	Silent bool
}

// Reset re-applies the reserved default snapshot.
func (s *Store) Reset(opts ResetOptions) error {
	s.mu.RLock()
	snap, ok := s.entries[s.def]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	data := snap.Data
	if opts.KeepZIndex {
		data.ZIndex = s.pos.Data().ZIndex
	}
	if opts.Silent {
		s.pos.Load(data)
		return nil
	}
	patch := patchOf(&data, schemas.Keys())
	s.pos.Set(patch)
	return nil
}

// patchOf lowers the named fields into a typed patch. Null fields become
// explicit nil entries so restoring reproduces unset state exactly.
func patchOf(data *schemas.PositionData, keys []schemas.Key) schemas.Patch {
	patch := make(schemas.Patch, len(keys))
	for _, k := range keys {
		v, ok := data.Value(k)
		if !ok {
			continue
		}
		patch[k] = v
	}
	return patch
}

// splitAnimatable separates fields a tween can drive (finite numerics)
// from those that must be applied in one step.
func splitAnimatable(data *schemas.PositionData, keys []schemas.Key) (map[schemas.Key]float64, schemas.Patch) {
	numeric := make(map[schemas.Key]float64)
	immediate := make(schemas.Patch)
	for _, k := range keys {
		v, ok := data.Value(k)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case schemas.Float:
			if val.Finite() {
				numeric[k] = val.Float64()
			} else {
				immediate[k] = val
			}
		case schemas.Dimension:
			if px, ok := val.Pixels(); ok {
				numeric[k] = px
			} else {
				immediate[k] = val
			}
		default:
			immediate[k] = v
		}
	}
	return numeric, immediate
}
