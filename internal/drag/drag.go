// File: internal/drag/drag.go

// Package drag turns pointer event streams into position updates. A
// Controller owns one pointer session at a time: PointerDown captures the
// grab origin, PointerMove writes throttled left/top targets derived from
// the pointer delta, and PointerUp lands the exact final point, optionally
// gliding along the smoothed release velocity.
package drag

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/position"
	"github.com/xkilldash9x/repose/internal/tween"
)

var (
	// ErrPositionRequired is returned when a Controller is built without a
	// position to drive.
	ErrPositionRequired = errors.New("drag: position required")
	// ErrTweensRequired is returned when tweened moves or release glide are
	// configured without the scheduler and options to run them.
	ErrTweensRequired = errors.New("drag: tween pass-through not configured")
)

// DefaultThrottle caps move writes per second when Config.Throttle is zero.
const DefaultThrottle rate.Limit = 120

// velocitySmoothing is the exponential weight given to the newest velocity
// sample. Raw pointer deltas are too jittery to glide on directly.
const velocitySmoothing = 0.6

// defaultMaxGlide caps how far a release can carry, in pixels.
const defaultMaxGlide = 250.0

// Config assembles a drag Controller. Use DefaultConfig as the base; the
// zero value describes a disabled controller.
type Config struct {
	// Position receives the drag targets. Required.
	Position tween.Positionable
	// Tweens runs the quick driver and release glide. Required when Tween
	// or GlideSeconds are set.
	Tweens *tween.Scheduler
	// Tween, when set, routes moves through a reusable quick driver with
	// these options instead of writing directly.
	Tween *tween.Options
	// Throttle caps move writes per second. Zero picks DefaultThrottle,
	// negative disables throttling. Bookkeeping (velocity, last point)
	// runs for every event either way.
	Throttle rate.Limit
	// GlideSeconds projects the release velocity that many seconds past
	// the drop point. Zero disables glide. Needs the quick driver.
	GlideSeconds float64
	// MaxGlide caps the projected carry in pixels. Zero picks the default.
	MaxGlide float64
	// Enabled seeds the enabled store.
	Enabled bool
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns an enabled controller configuration with the stock
// throttle. Position must still be supplied.
func DefaultConfig() Config {
	return Config{Throttle: DefaultThrottle, Enabled: true}
}

// Controller translates pointer events for one element into position sets.
// All methods are safe for concurrent use; only one pointer session is live
// at a time and events from other pointer ids are ignored while it runs.
type Controller struct {
	pos     tween.Positionable
	tweens  *tween.Scheduler
	quick   *tween.QuickTo
	limiter *rate.Limiter
	logger  *zap.Logger
	enabled *position.Store[bool]

	glideSeconds float64
	maxGlide     float64

	mu        sync.Mutex
	active    bool
	pointerID int
	originPtr Vector2D
	originPos Vector2D
	last      Vector2D
	lastAt    time.Time
	startedAt time.Time
	velocity  Vector2D
	applied   int
	dropped   int
}

// New builds a Controller. Configuration errors fail fast: glide and
// tweened moves both need a scheduler.
func New(cfg Config) (*Controller, error) {
	if cfg.Position == nil {
		return nil, ErrPositionRequired
	}
	if (cfg.Tween != nil || cfg.GlideSeconds > 0) && cfg.Tweens == nil {
		return nil, ErrTweensRequired
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		pos:          cfg.Position,
		tweens:       cfg.Tweens,
		logger:       logger.Named("drag"),
		enabled:      position.NewStore(cfg.Enabled),
		glideSeconds: cfg.GlideSeconds,
		maxGlide:     cfg.MaxGlide,
	}
	if c.glideSeconds > 0 && c.maxGlide <= 0 {
		c.maxGlide = defaultMaxGlide
	}

	throttle := cfg.Throttle
	if throttle == 0 {
		throttle = DefaultThrottle
	}
	if throttle > 0 {
		c.limiter = rate.NewLimiter(throttle, 1)
	}

	if cfg.Tween != nil {
		c.quick = cfg.Tweens.QuickTo(cfg.Position, []schemas.Key{schemas.KeyLeft, schemas.KeyTop}, *cfg.Tween)
	}
	if c.glideSeconds > 0 && c.quick == nil {
		return nil, ErrTweensRequired
	}

	// Disabling mid-session aborts it, whichever side flips the store.
	c.enabled.Subscribe(func(on bool) {
		if !on {
			c.Cancel()
		}
	})
	return c, nil
}

// Enabled reports whether new sessions may start.
func (c *Controller) Enabled() bool { return c.enabled.Get() }

// SetEnabled flips the enabled store. Disabling cancels a live session.
func (c *Controller) SetEnabled(on bool) { c.enabled.Set(on) }

// EnabledStore exposes the store for subscription-based wiring.
func (c *Controller) EnabledStore() *position.Store[bool] { return c.enabled }

// Dragging reports whether a pointer session is live.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// PointerDown starts a session at the pointer point p. The element's
// current left/top become the grab origin; unset coordinates grab at zero.
// Returns false when disabled or when another pointer already drags.
func (c *Controller) PointerDown(id int, p Vector2D, ts time.Time) bool {
	if !c.enabled.Get() {
		return false
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	data := c.pos.Data()

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return false
	}
	c.active = true
	c.pointerID = id
	c.originPtr = p
	c.originPos = Vector2D{X: data.Left.Or(0), Y: data.Top.Or(0)}
	c.last = p
	c.lastAt = ts
	c.startedAt = ts
	c.velocity = Vector2D{}
	c.applied = 0
	c.dropped = 0
	c.mu.Unlock()

	// Grabbing mid-glide freezes the element at the grab point.
	if c.quick != nil {
		c.quick.Cancel()
	}
	return true
}

// PointerMove advances the session. Returns true when a position write
// landed; throttled or out-of-session events return false but still feed
// the velocity tracker.
func (c *Controller) PointerMove(id int, p Vector2D, ts time.Time) bool {
	if ts.IsZero() {
		ts = time.Now()
	}

	c.mu.Lock()
	if !c.active || c.pointerID != id {
		c.mu.Unlock()
		return false
	}
	c.trackLocked(p, ts)

	if c.limiter != nil && !c.limiter.Allow() {
		c.dropped++
		c.mu.Unlock()
		return false
	}
	c.applied++
	target := c.originPos.Add(p.Sub(c.originPtr))
	c.mu.Unlock()

	c.apply(target)
	return true
}

// PointerUp ends the session at p. The final point always lands exactly,
// bypassing the throttle; with glide configured the smoothed release
// velocity carries the target past the drop point.
func (c *Controller) PointerUp(id int, p Vector2D, ts time.Time) bool {
	if ts.IsZero() {
		ts = time.Now()
	}

	c.mu.Lock()
	if !c.active || c.pointerID != id {
		c.mu.Unlock()
		return false
	}
	c.trackLocked(p, ts)
	c.active = false

	target := c.originPos.Add(p.Sub(c.originPtr))
	if c.glideSeconds > 0 {
		carry := c.velocity.Mul(c.glideSeconds).Limit(c.maxGlide)
		target = target.Add(carry)
	}
	applied, dropped := c.applied, c.dropped
	elapsed := ts.Sub(c.startedAt)
	c.mu.Unlock()

	c.apply(target)
	c.logger.Debug("Drag session ended",
		zap.Int("pointer_id", id),
		zap.Int("moves_applied", applied+1),
		zap.Int("moves_dropped", dropped),
		zap.Duration("held", elapsed),
	)
	return true
}

// Cancel aborts a live session without a final write. An in-flight quick
// tween is cancelled; the position keeps whatever landed last.
func (c *Controller) Cancel() {
	c.mu.Lock()
	wasActive := c.active
	c.active = false
	c.mu.Unlock()

	if !wasActive {
		return
	}
	if c.quick != nil {
		c.quick.Cancel()
	}
	c.logger.Debug("Drag session cancelled")
}

// trackLocked folds a pointer sample into the smoothed velocity estimate.
func (c *Controller) trackLocked(p Vector2D, ts time.Time) {
	dt := ts.Sub(c.lastAt).Seconds()
	if dt > 0 {
		sample := p.Sub(c.last).Mul(1 / dt)
		c.velocity = c.velocity.Mul(1 - velocitySmoothing).Add(sample.Mul(velocitySmoothing))
	}
	c.last = p
	c.lastAt = ts
}

func (c *Controller) apply(target Vector2D) {
	if c.quick != nil {
		c.quick.ApplyMap(map[schemas.Key]float64{
			schemas.KeyLeft: target.X,
			schemas.KeyTop:  target.Y,
		})
		return
	}
	c.pos.Set(schemas.Patch{
		schemas.KeyLeft: target.X,
		schemas.KeyTop:  target.Y,
	})
}
