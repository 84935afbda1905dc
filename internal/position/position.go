// File: internal/position/position.go

// Package position implements the update pipeline at the heart of the
// engine: partial, possibly relative patches are resolved to concrete
// values, vetted by a validator chain, merged into the canonical data,
// recomputed into derived transform geometry and republished to
// subscribers, while inline-style writes to an attached element are
// coalesced onto frame boundaries.
package position

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/frame"
	"github.com/xkilldash9x/repose/internal/resolve"
	"github.com/xkilldash9x/repose/internal/transform"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrSchedulerRequired is returned by New when no frame scheduler is supplied.
	ErrSchedulerRequired = errors.New("frame scheduler is required")
	// ErrTargetRequired is returned by Attach when the target is nil.
	ErrTargetRequired = errors.New("attach target is required")
	// ErrNotAttached is returned by ElementUpdated when no element is bound.
	ErrNotAttached = errors.New("no element attached")
	// ErrDetached is returned to ElementUpdated waiters when the element
	// detaches before the pending write lands.
	ErrDetached = errors.New("element detached before style write")
)

// Config carries the constructor options for a Position instance.
type Config struct {
	// Initial seeds the position data.
	Initial schemas.PositionData
	// Parent seeds the containing client box percentage units resolve against.
	Parent schemas.Size
	// Ortho selects transform-only placement: left/top are folded into the
	// matrix instead of being written as style properties.
	Ortho bool
	// Scheduler defers element writes to frame boundaries. Required.
	Scheduler frame.Scheduler
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Validators defaults to an empty, enabled chain.
	Validators *Validators
	// Placement optionally seeds left/top at attach time.
	Placement Placement
	// Margins and size bounds are handed to validators unchanged.
	Margins Margins
	MinSize schemas.Size
	MaxSize schemas.Size
}

// Position owns one element's position data and is the only writer to it.
// All updates flow through Set; subscribers receive value snapshots and can
// never alias the stored data.
type Position struct {
	logger    *zap.Logger
	sched     frame.Scheduler
	ortho     bool
	placement Placement
	margins   Margins
	minSize   schemas.Size
	maxSize   schemas.Size

	// pipeMu serializes whole pipeline passes (Set, Load, revalidate,
	// Attach, Detach). Validators run with only this held, so they may
	// freely read the instance but must not call Set.
	pipeMu sync.Mutex

	// mu guards the mutable state below.
	mu          sync.RWMutex
	data        schemas.PositionData
	enabled     bool
	engine      *transform.Engine
	tdata       *transform.Data
	tdirty      bool
	target      Target
	attachCtx   context.Context
	forceSize   bool
	styleCache  map[string]string
	pending     map[string]string
	flushQueued bool
	waiters     []chan time.Time
	lastApplied map[schemas.Key]any
	lastRest    map[string]any

	validators *Validators

	state    *Store[schemas.PositionData]
	dims     *Store[schemas.Size]
	geometry *Store[transform.Data]
	resize   *Store[schemas.ResizeObservation]
	parent   *Store[schemas.Size]
}

// New builds a Position from cfg. Configuration errors fail fast here; the
// running pipeline never throws for bad input.
func New(cfg Config) (*Position, error) {
	if cfg.Scheduler == nil {
		return nil, ErrSchedulerRequired
	}
	if err := checkBounds(cfg.MinSize, cfg.MaxSize); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validators := cfg.Validators
	if validators == nil {
		validators = NewValidators()
	}

	initial := cfg.Initial
	engine := transform.NewEngine(cfg.Ortho)
	engine.Reset(&initial)

	var td transform.Data
	engine.Data(&initial, &td)

	p := &Position{
		logger:     logger.Named("position"),
		sched:      cfg.Scheduler,
		ortho:      cfg.Ortho,
		placement:  cfg.Placement,
		margins:    cfg.Margins,
		minSize:    cfg.MinSize,
		maxSize:    cfg.MaxSize,
		data:       initial,
		enabled:    true,
		engine:     engine,
		tdata:      &td,
		validators: validators,
		styleCache: make(map[string]string),
		pending:    make(map[string]string),
		state:      NewStore(initial),
		dims:       NewStore(schemas.Size{Width: initial.Width, Height: initial.Height}),
		geometry:   NewStore(td),
		resize:     NewStore(schemas.ResizeObservation{}),
		parent:     NewStore(cfg.Parent),
	}
	p.validators.Bind(p.revalidate)
	return p, nil
}

func checkBounds(min, max schemas.Size) error {
	if minW, ok := min.Width.Pixels(); ok {
		if maxW, ok := max.Width.Pixels(); ok && minW > maxW {
			return fmt.Errorf("min width %v exceeds max width %v", minW, maxW)
		}
	}
	if minH, ok := min.Height.Pixels(); ok {
		if maxH, ok := max.Height.Pixels(); ok && minH > maxH {
			return fmt.Errorf("min height %v exceeds max height %v", minH, maxH)
		}
	}
	return nil
}

// SetOption adjusts one Set call.
type SetOption func(*setOptions)

type setOptions struct {
	immediate bool
	recompute bool
}

// WithImmediateElementUpdate flushes the style write before Set returns
// instead of deferring it to the next frame.
func WithImmediateElementUpdate() SetOption {
	return func(o *setOptions) { o.immediate = true }
}

// WithTransformRecompute forces derived geometry to recompute even when no
// transform-relevant field changed.
func WithTransformRecompute() SetOption {
	return func(o *setOptions) { o.recompute = true }
}

func newSetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Set runs one full pipeline pass: resolve every patch field against current
// data, consult the validator chain, merge, recompute derived geometry,
// notify subscribers and stage the element write. The result reports whether
// the update was applied; rejection is silent by design.
func (p *Position) Set(patch schemas.Patch, opts ...SetOption) bool {
	o := newSetOptions(opts)

	p.pipeMu.Lock()
	if !p.Enabled() {
		p.pipeMu.Unlock()
		return false
	}
	resolved, rest := p.resolvePatch(patch)
	snapshot, td, ok := p.commit(resolved, rest, o)
	immediate := ok && o.immediate && p.hasTarget()
	p.pipeMu.Unlock()

	if !ok {
		return false
	}
	p.publish(snapshot, td)
	if immediate {
		p.flush(time.Now())
	}
	return true
}

// resolvePatch lowers raw patch values to typed ones, dropping fields the
// resolver rejects and splitting off extra keys for validators.
func (p *Position) resolvePatch(patch schemas.Patch) (map[schemas.Key]any, map[string]any) {
	resolved := make(map[schemas.Key]any, len(patch))
	if len(patch) == 0 {
		return resolved, nil
	}

	p.mu.RLock()
	current := p.data
	p.mu.RUnlock()

	box := p.parent.Get()
	env := resolve.Env{
		ParentWidth:  box.Width.Or(0),
		ParentHeight: box.Height.Or(0),
	}

	for _, k := range schemas.Keys() {
		raw, ok := patch[k]
		if !ok {
			continue
		}
		v, err := resolve.Field(k, raw, &current, env)
		if err != nil {
			p.logger.Warn("Dropping unresolvable field",
				zap.String("field", string(k)),
				zap.Error(err))
			continue
		}
		resolved[k] = v
	}

	var rest map[string]any
	for k, v := range patch {
		if !schemas.IsPositionKey(k) {
			if rest == nil {
				rest = make(map[string]any)
			}
			rest[string(k)] = v
		}
	}
	return resolved, rest
}

// commit runs validate/merge/recompute/stage with pipeMu held by the caller.
func (p *Position) commit(resolved map[schemas.Key]any, rest map[string]any, o setOptions) (schemas.PositionData, transform.Data, bool) {
	p.mu.RLock()
	candidate := p.data
	current := p.data
	styles := make(map[string]string, len(p.styleCache))
	for k, v := range p.styleCache {
		styles[k] = v
	}
	p.mu.RUnlock()

	for k, v := range resolved {
		candidate.SetValue(k, v)
	}

	vd := ValidationData{
		Candidate: candidate,
		Current:   current,
		Parent:    p.parent.Get(),
		Element:   p.resize.Get(),
		Styles:    styles,
		Margins:   p.margins,
		MinSize:   p.minSize,
		MaxSize:   p.maxSize,
		Rest:      rest,
		Transform: func() transform.Data {
			cand := candidate
			var out transform.Data
			p.engine.Data(&cand, &out)
			return out
		},
	}
	accepted, ok := p.validators.run(vd)
	if !ok {
		p.logger.Debug("Update vetoed by validator chain")
		return schemas.PositionData{}, transform.Data{}, false
	}

	p.mu.Lock()
	prev := p.data
	p.data = accepted

	var newly []schemas.Key
	for _, k := range schemas.TransformKeys() {
		if _, ok := resolved[k]; ok {
			newly = append(newly, k)
		}
	}
	if len(newly) > 0 {
		p.engine.Track(newly...)
	}

	if o.recompute || geometryChanged(&prev, &accepted) {
		p.tdirty = true
	}
	td := p.transformDataLocked()

	if p.target != nil {
		if staged := p.stageStylesLocked(td); staged > 0 && !o.immediate && !p.flushQueued {
			p.flushQueued = true
			p.sched.Request(p.flushFrame)
		}
	}

	p.lastApplied = resolved
	p.lastRest = rest
	snapshot := p.data
	p.mu.Unlock()

	return snapshot, td, true
}

// revalidate re-runs the last accepted patch through the full pipeline.
// Validator notifiers call this when external constraints move, e.g. a
// window resize.
func (p *Position) revalidate() {
	p.pipeMu.Lock()
	if !p.Enabled() {
		p.pipeMu.Unlock()
		return
	}
	p.mu.RLock()
	resolved := p.lastApplied
	rest := p.lastRest
	p.mu.RUnlock()
	if resolved == nil {
		resolved = map[schemas.Key]any{}
	}
	snapshot, td, ok := p.commit(resolved, rest, setOptions{})
	p.pipeMu.Unlock()

	if ok {
		p.publish(snapshot, td)
	}
}

// publish pushes a committed snapshot to the reactive surfaces, outside all
// locks so subscribers may call back into the instance.
func (p *Position) publish(snapshot schemas.PositionData, td transform.Data) {
	p.state.Set(snapshot)
	p.dims.Set(schemas.Size{Width: snapshot.Width, Height: snapshot.Height})
	p.geometry.Set(td)
}

// geometryChanged reports whether any field feeding derived geometry
// differs between the two snapshots.
func geometryChanged(a, b *schemas.PositionData) bool {
	return a.Left != b.Left || a.Top != b.Top ||
		a.Width != b.Width || a.Height != b.Height ||
		a.RotateX != b.RotateX || a.RotateY != b.RotateY || a.RotateZ != b.RotateZ ||
		a.Scale != b.Scale ||
		a.TranslateX != b.TranslateX || a.TranslateY != b.TranslateY || a.TranslateZ != b.TranslateZ ||
		a.TransformOrigin != b.TransformOrigin
}

// transformDataLocked returns the derived geometry, recomputing when stale.
// Caller holds mu.
func (p *Position) transformDataLocked() transform.Data {
	if p.tdata == nil || p.tdirty {
		data := p.data
		out := &transform.Data{}
		p.engine.Data(&data, out)
		p.tdata = out
		p.tdirty = false
	}
	return *p.tdata
}

// Subscribe registers fn on the position stream. It fires immediately with
// the current data and then after every committed update, in registration
// order. Snapshots are value copies; mutating them cannot corrupt the store.
func (p *Position) Subscribe(fn func(schemas.PositionData)) Unsubscribe {
	return p.state.Subscribe(fn)
}

// Data returns a copy of the current position data.
func (p *Position) Data() schemas.PositionData {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data
}

// TransformData returns the current derived geometry, recomputing it if a
// relevant field changed since the last computation.
func (p *Position) TransformData() transform.Data {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transformDataLocked()
}

// Load replaces the position data wholesale, bypassing resolution and
// validation. Subscribers are notified; no element write is staged. Snapshot
// restore uses this for its silent path.
func (p *Position) Load(data schemas.PositionData) {
	p.pipeMu.Lock()
	p.mu.Lock()
	p.data = data
	p.engine.Reset(&data)
	p.tdirty = true
	td := p.transformDataLocked()
	p.lastApplied = nil
	p.lastRest = nil
	snapshot := p.data
	p.mu.Unlock()
	p.pipeMu.Unlock()

	p.publish(snapshot, td)
}

// SetEnabled gates the pipeline. While disabled every Set is a no-op, but
// existing data, subscriptions and attachment survive for re-enabling.
func (p *Position) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}

// Enabled reports whether Set currently has any effect.
func (p *Position) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Validators exposes the chain for add/remove at runtime.
func (p *Position) Validators() *Validators { return p.validators }

// Ortho reports whether left/top are folded into the transform matrix.
func (p *Position) Ortho() bool { return p.ortho }

// Field returns the read/write channel for one position field.
func (p *Position) Field(k schemas.Key) *FieldStore {
	return &FieldStore{p: p, key: k}
}

// Dimensions is the derived width/height channel. Treat it as read-only;
// writes do not flow through the pipeline.
func (p *Position) Dimensions() *Store[schemas.Size] { return p.dims }

// Geometry is the derived transform/bounding channel. Treat it as read-only.
func (p *Position) Geometry() *Store[transform.Data] { return p.geometry }

// Resize is the element-geometry observation channel. Prefer ObserveResize
// for writes so constraints re-run.
func (p *Position) Resize() *Store[schemas.ResizeObservation] { return p.resize }

// Parent is the containing client box channel. Prefer SetParentSize for
// writes so constraints re-run.
func (p *Position) Parent() *Store[schemas.Size] { return p.parent }

// ObserveResize records the element's observed geometry and re-validates
// against it.
func (p *Position) ObserveResize(obs schemas.ResizeObservation) {
	p.resize.Set(obs)
	p.revalidate()
}

// SetParentSize records the containing client box and re-validates against
// it.
func (p *Position) SetParentSize(s schemas.Size) {
	p.parent.Set(s)
	p.revalidate()
}

// GetOption adjusts one Get or JSON call.
type GetOption func(*getOptions)

type getOptions struct {
	keys     []schemas.Key
	exclude  []schemas.Key
	nullable bool
	numeric  bool
}

// WithKeys restricts the snapshot to the given fields.
func WithKeys(keys ...schemas.Key) GetOption {
	return func(o *getOptions) { o.keys = keys }
}

// WithoutKeys drops the given fields from the snapshot.
func WithoutKeys(keys ...schemas.Key) GetOption {
	return func(o *getOptions) { o.exclude = keys }
}

// WithoutNull omits unset fields instead of including them as nil.
func WithoutNull() GetOption {
	return func(o *getOptions) { o.nullable = false }
}

// WithNumericDefaults substitutes type-specific defaults for unset fields:
// 1 for scale, the default origin, 0 for everything else.
func WithNumericDefaults() GetOption {
	return func(o *getOptions) { o.numeric = true }
}

// Get produces a plain snapshot map honoring key/exclude filters and the
// null-handling options.
func (p *Position) Get(opts ...GetOption) map[schemas.Key]any {
	o := getOptions{nullable: true}
	for _, fn := range opts {
		fn(&o)
	}

	data := p.Data()
	keys := o.keys
	if len(keys) == 0 {
		keys = schemas.Keys()
	}
	excluded := make(map[schemas.Key]struct{}, len(o.exclude))
	for _, k := range o.exclude {
		excluded[k] = struct{}{}
	}

	out := make(map[schemas.Key]any, len(keys))
	for _, k := range keys {
		if _, skip := excluded[k]; skip {
			continue
		}
		if !schemas.IsPositionKey(k) {
			continue
		}
		v := fieldValue(&data, k)
		if v == nil {
			switch {
			case o.numeric:
				v = numericDefault(k)
			case !o.nullable:
				continue
			}
		}
		out[k] = v
	}
	return out
}

// JSON renders the Get snapshot.
func (p *Position) JSON(opts ...GetOption) ([]byte, error) {
	return json.Marshal(p.Get(opts...))
}

func numericDefault(k schemas.Key) any {
	switch k {
	case schemas.KeyScale:
		return 1.0
	case schemas.KeyTransformOrigin:
		return string(schemas.DefaultOrigin)
	default:
		return 0.0
	}
}

// Attach binds an element target. The style cache resets, placement seeds
// missing coordinates, and a full style sync is staged; the first write
// always carries width/height so downstream percentage math has concrete
// dimensions to work with.
func (p *Position) Attach(ctx context.Context, target Target) error {
	if target == nil {
		return ErrTargetRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.pipeMu.Lock()
	p.mu.Lock()
	p.target = target
	p.attachCtx = ctx
	p.styleCache = make(map[string]string)
	p.pending = make(map[string]string)
	p.flushQueued = false
	p.forceSize = true

	placed := false
	if p.placement != nil {
		w, h := p.concreteSizeLocked()
		if !p.data.Left.Valid() {
			p.data.Left = schemas.NewFloat(p.placement.Left(w))
			placed = true
		}
		if !p.data.Top.Valid() {
			p.data.Top = schemas.NewFloat(p.placement.Top(h))
			placed = true
		}
		if placed {
			p.tdirty = true
		}
	}

	td := p.transformDataLocked()
	if staged := p.stageStylesLocked(td); staged > 0 && !p.flushQueued {
		p.flushQueued = true
		p.sched.Request(p.flushFrame)
	}
	snapshot := p.data
	p.mu.Unlock()
	p.pipeMu.Unlock()

	if placed {
		p.publish(snapshot, td)
	}
	return nil
}

// Detach unbinds the element. Pending writes are discarded, the style cache
// resets and outstanding ElementUpdated waiters fail with ErrDetached.
// Position data itself survives for a later re-attach.
func (p *Position) Detach() {
	p.pipeMu.Lock()
	p.mu.Lock()
	p.target = nil
	p.attachCtx = nil
	p.styleCache = make(map[string]string)
	p.pending = make(map[string]string)
	p.flushQueued = false
	p.forceSize = false
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()
	p.pipeMu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// Attached reports whether an element target is bound.
func (p *Position) Attached() bool { return p.hasTarget() }

func (p *Position) hasTarget() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target != nil
}

// concreteSizeLocked resolves the element's effective pixel size, falling
// back to observed geometry when width/height are auto or unset.
func (p *Position) concreteSizeLocked() (w, h float64) {
	obs := p.resize.Get()
	if px, ok := p.data.Width.Pixels(); ok {
		w = px
	} else {
		w = obs.OffsetWidth
	}
	if px, ok := p.data.Height.Pixels(); ok {
		h = px
	} else {
		h = obs.OffsetHeight
	}
	return w, h
}

// ElementUpdated blocks until the next style flush lands and returns its
// timestamp. A flush is scheduled if none is pending, so the call resolves
// on the next frame even when no property changed.
func (p *Position) ElementUpdated(ctx context.Context) (time.Time, error) {
	p.mu.Lock()
	if p.target == nil {
		p.mu.Unlock()
		return time.Time{}, ErrNotAttached
	}
	ch := make(chan time.Time, 1)
	p.waiters = append(p.waiters, ch)
	if !p.flushQueued {
		p.flushQueued = true
		p.sched.Request(p.flushFrame)
	}
	p.mu.Unlock()

	select {
	case ts, ok := <-ch:
		if !ok {
			return time.Time{}, ErrDetached
		}
		return ts, nil
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
}

// desiredStylesLocked renders the full style surface for the current data.
// Empty values mean "property absent".
func (p *Position) desiredStylesLocked(td transform.Data) map[string]string {
	m := make(map[string]string, 12)

	if p.ortho {
		// Ortho mode folds left/top into the matrix and never writes them
		// directly.
		m["left"] = ""
		m["top"] = ""
		m["transform"] = td.CSS
	} else {
		m["left"] = pxOrEmpty(p.data.Left)
		m["top"] = pxOrEmpty(p.data.Top)
		m["transform"] = td.CSS
	}

	m["width"] = dimensionCSS(p.data.Width)
	m["height"] = dimensionCSS(p.data.Height)
	m["min-width"] = pxOrEmpty(p.data.MinWidth)
	m["min-height"] = pxOrEmpty(p.data.MinHeight)
	m["max-width"] = pxOrEmpty(p.data.MaxWidth)
	m["max-height"] = pxOrEmpty(p.data.MaxHeight)
	m["z-index"] = numOrEmpty(p.data.ZIndex)

	if o := p.data.TransformOrigin; o != "" && o.Valid() {
		m["transform-origin"] = string(o)
	} else {
		m["transform-origin"] = ""
	}
	return m
}

// stageStylesLocked diffs the desired styles against the last written state
// and queues only the changed properties. Returns how many were staged.
func (p *Position) stageStylesLocked(td transform.Data) int {
	want := p.desiredStylesLocked(td)
	force := p.forceSize
	p.forceSize = false

	staged := 0
	for prop, val := range want {
		forced := force && (prop == "width" || prop == "height") && val != ""
		if !forced {
			if cached, ok := p.styleCache[prop]; ok {
				if cached == val {
					continue
				}
			} else if val == "" {
				// Removing a property that was never written.
				continue
			}
		}
		p.pending[prop] = val
		staged++
	}
	return staged
}

// flushFrame adapts flush to the frame callback signature.
func (p *Position) flushFrame(now time.Time) { p.flush(now) }

// flush pushes the pending style diff to the target and resolves waiters.
// One flush serves every Set since the last frame.
func (p *Position) flush(now time.Time) {
	p.mu.Lock()
	styles := p.pending
	p.pending = make(map[string]string)
	p.flushQueued = false
	target := p.target
	ctx := p.attachCtx
	for prop, val := range styles {
		if val == "" {
			delete(p.styleCache, prop)
		} else {
			p.styleCache[prop] = val
		}
	}
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	if target != nil && len(styles) > 0 {
		if err := target.ApplyStyles(ctx, styles); err != nil {
			p.logger.Warn("Element style write failed", zap.Error(err))
		}
	}
	for _, ch := range waiters {
		ch <- now
		close(ch)
	}
}

// cssNumber formats in plain decimal notation; %g-style exponents are not
// valid in CSS lengths.
func cssNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pxOrEmpty(f schemas.Float) string {
	if !f.Valid() {
		return ""
	}
	return cssNumber(f.Float64()) + "px"
}

func numOrEmpty(f schemas.Float) string {
	if !f.Valid() {
		return ""
	}
	return cssNumber(f.Float64())
}

func dimensionCSS(d schemas.Dimension) string {
	switch {
	case d.IsAuto():
		return "auto"
	case d.IsInherit():
		return "inherit"
	case d.Valid():
		px, _ := d.Pixels()
		return cssNumber(px) + "px"
	default:
		return ""
	}
}
