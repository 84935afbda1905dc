// File: internal/constraint/constraint.go

// Package constraint provides the stock validator and placement
// collaborators: axis-aligned and transform-aware boundary clamping, and
// centered initial placement.
package constraint

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/position"
)

var (
	// ErrLocked is returned by setters on a locked collaborator.
	ErrLocked = errors.New("constraint settings are locked")
	// ErrBadBoundary marks non-finite or negative boundary dimensions.
	ErrBadBoundary = errors.New("boundary dimensions must be finite and non-negative")
	// ErrBoundaryRequired is returned when a collaborator needs explicit
	// dimensions and none were given.
	ErrBoundaryRequired = errors.New("explicit boundary dimensions required")
)

// Config carries the shared collaborator options. Use DefaultConfig as the
// base; the zero value builds a disabled collaborator.
type Config struct {
	// Constrain adjusts out-of-bounds candidates into the boundary. When
	// false the validator vetoes them instead.
	Constrain bool
	// Enabled gates the collaborator wholesale; disabled validators pass
	// every candidate through unchanged.
	Enabled bool
	// Locked freezes the settings; setters fail with ErrLocked.
	Locked bool
	// Width and Height fix the boundary box. Zero tracks the parent box
	// supplied with each validation instead.
	Width  float64
	Height float64
}

// DefaultConfig returns the stock settings: enabled, constraining, boundary
// tracking the parent box.
func DefaultConfig() Config {
	return Config{Constrain: true, Enabled: true}
}

func checkBoundary(w, h float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fmt.Errorf("%w: width %v", ErrBadBoundary, w)
	}
	if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
		return fmt.Errorf("%w: height %v", ErrBadBoundary, h)
	}
	return nil
}

// bounds is the shared state machine behind both boundary validators. It
// doubles as a position.Notifier so boundary changes trigger re-validation
// without a new Set call.
type bounds struct {
	mu        sync.RWMutex
	constrain bool
	enabled   bool
	locked    bool
	width     float64
	height    float64
	notify    func()
}

func newBounds(cfg Config) (*bounds, error) {
	if err := checkBoundary(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	return &bounds{
		constrain: cfg.Constrain,
		enabled:   cfg.Enabled,
		locked:    cfg.Locked,
		width:     cfg.Width,
		height:    cfg.Height,
	}, nil
}

// Register wires the re-validation trigger. Implements position.Notifier.
func (b *bounds) Register(revalidate func()) (cancel func()) {
	b.mu.Lock()
	b.notify = revalidate
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.notify = nil
		b.mu.Unlock()
	}
}

// SetBoundary replaces the manual boundary box and asks the owning
// instance to re-validate. Zero dimensions return to tracking the parent.
func (b *bounds) SetBoundary(w, h float64) error {
	if err := checkBoundary(w, h); err != nil {
		return err
	}
	b.mu.Lock()
	if b.locked {
		b.mu.Unlock()
		return ErrLocked
	}
	b.width, b.height = w, h
	notify := b.notify
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// SetEnabled flips the collaborator on or off.
func (b *bounds) SetEnabled(enabled bool) error {
	b.mu.Lock()
	if b.locked {
		b.mu.Unlock()
		return ErrLocked
	}
	changed := b.enabled != enabled
	b.enabled = enabled
	notify := b.notify
	b.mu.Unlock()

	if changed && enabled && notify != nil {
		notify()
	}
	return nil
}

// Enabled reports whether the collaborator participates in validation.
func (b *bounds) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// settings snapshots the flags consulted during one validation.
func (b *bounds) settings() (enabled, constrain bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled, b.constrain
}

// boundary resolves the effective box: the manual dimensions when set,
// otherwise the parent box. ok is false when no usable boundary exists.
func (b *bounds) boundary(parent schemas.Size) (w, h float64, ok bool) {
	b.mu.RLock()
	w, h = b.width, b.height
	b.mu.RUnlock()
	if w <= 0 {
		w = parent.Width.Or(0)
	}
	if h <= 0 {
		h = parent.Height.Or(0)
	}
	return w, h, w > 0 && h > 0
}

// BasicBounds keeps the untransformed element box inside the boundary:
// width/height are clamped to the effective size range and left/top to the
// remaining space, margins respected.
type BasicBounds struct {
	*bounds
}

// NewBasicBounds builds the validator, failing fast on bad dimensions.
func NewBasicBounds(cfg Config) (*BasicBounds, error) {
	b, err := newBounds(cfg)
	if err != nil {
		return nil, err
	}
	return &BasicBounds{bounds: b}, nil
}

// Validate implements position.Validator.
func (v *BasicBounds) Validate(d position.ValidationData) *schemas.PositionData {
	out := d.Candidate
	enabled, constrain := v.settings()
	if !enabled {
		return &out
	}
	bw, bh, ok := v.boundary(d.Parent)
	if !ok {
		return &out
	}

	changed := false
	width, height := concreteSize(&out, d.Element)

	if px, isPx := out.Width.Pixels(); isPx {
		lo, hi := sizeRange(out.MinWidth, out.MaxWidth, d.MinSize.Width, d.MaxSize.Width, bw-d.Margins.Left-d.Margins.Right)
		if c := clamp(px, lo, hi); c != px {
			out.Width = schemas.Px(c)
			width = c
			changed = true
		}
	}
	if px, isPx := out.Height.Pixels(); isPx {
		lo, hi := sizeRange(out.MinHeight, out.MaxHeight, d.MinSize.Height, d.MaxSize.Height, bh-d.Margins.Top-d.Margins.Bottom)
		if c := clamp(px, lo, hi); c != px {
			out.Height = schemas.Px(c)
			height = c
			changed = true
		}
	}

	if out.Left.Valid() {
		lo := d.Margins.Left
		hi := bw - d.Margins.Right - width
		if hi < lo {
			hi = lo
		}
		if c := clamp(out.Left.Float64(), lo, hi); c != out.Left.Float64() {
			out.Left = schemas.NewFloat(c)
			changed = true
		}
	}
	if out.Top.Valid() {
		lo := d.Margins.Top
		hi := bh - d.Margins.Bottom - height
		if hi < lo {
			hi = lo
		}
		if c := clamp(out.Top.Float64(), lo, hi); c != out.Top.Float64() {
			out.Top = schemas.NewFloat(c)
			changed = true
		}
	}

	if changed && !constrain {
		return nil
	}
	return &out
}

// TransformBounds keeps the transformed bounding box inside the boundary,
// so rotated or scaled elements are judged by where they actually render.
type TransformBounds struct {
	*bounds
}

// NewTransformBounds builds the validator, failing fast on bad dimensions.
func NewTransformBounds(cfg Config) (*TransformBounds, error) {
	b, err := newBounds(cfg)
	if err != nil {
		return nil, err
	}
	return &TransformBounds{bounds: b}, nil
}

// Validate implements position.Validator.
func (v *TransformBounds) Validate(d position.ValidationData) *schemas.PositionData {
	out := d.Candidate
	enabled, constrain := v.settings()
	if !enabled {
		return &out
	}
	bw, bh, ok := v.boundary(d.Parent)
	if !ok || d.Transform == nil {
		return &out
	}

	rect := d.Transform().Rect

	// Pull overflowing edges back in; when the box cannot fit, keeping the
	// top-left corner visible wins.
	dx := 0.0
	if right := bw - d.Margins.Right; rect.Right() > right {
		dx = right - rect.Right()
	}
	if rect.X+dx < d.Margins.Left {
		dx = d.Margins.Left - rect.X
	}
	dy := 0.0
	if bottom := bh - d.Margins.Bottom; rect.Bottom() > bottom {
		dy = bottom - rect.Bottom()
	}
	if rect.Y+dy < d.Margins.Top {
		dy = d.Margins.Top - rect.Y
	}

	if dx == 0 && dy == 0 {
		return &out
	}
	if !constrain {
		return nil
	}
	if dx != 0 {
		out.Left = schemas.NewFloat(out.Left.Or(0) + dx)
	}
	if dy != 0 {
		out.Top = schemas.NewFloat(out.Top.Or(0) + dy)
	}
	return &out
}

// concreteSize returns the candidate's box in pixels, falling back to the
// last observed element geometry for auto/inherit/unset dimensions.
func concreteSize(data *schemas.PositionData, obs schemas.ResizeObservation) (w, h float64) {
	if px, ok := data.Width.Pixels(); ok {
		w = px
	} else {
		w = obs.OffsetWidth
	}
	if px, ok := data.Height.Pixels(); ok {
		h = px
	} else {
		h = obs.OffsetHeight
	}
	return w, h
}

// sizeRange resolves the effective [lo, hi] range for one dimension from
// the candidate's own min/max fields, the instance bounds and the boundary.
func sizeRange(minF, maxF schemas.Float, minCfg, maxCfg schemas.Dimension, bound float64) (lo, hi float64) {
	lo = 0
	if v := minF.Or(0); v > lo {
		lo = v
	}
	if v := minCfg.Or(0); v > lo {
		lo = v
	}
	hi = bound
	if maxF.Valid() && maxF.Float64() < hi {
		hi = maxF.Float64()
	}
	if v, ok := maxCfg.Pixels(); ok && v < hi {
		hi = v
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
