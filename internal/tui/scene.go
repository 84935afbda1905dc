// File: internal/tui/scene.go

// Package tui is the interactive stage: a bubbletea program that drives one
// element through the full positioning pipeline. Frames are hand-stepped
// from the program's tick, so everything runs on the update goroutine and
// the stage stays deterministic.
package tui

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/attach"
	"github.com/xkilldash9x/repose/internal/drag"
	"github.com/xkilldash9x/repose/internal/frame"
	"github.com/xkilldash9x/repose/internal/position"
	"github.com/xkilldash9x/repose/internal/snapshot"
	"github.com/xkilldash9x/repose/internal/tween"
)

// Stage coordinate space. The parent box maps onto the stage viewport; the
// element starts centered inside it.
const (
	parentWidth   = 960.0
	parentHeight  = 540.0
	elementWidth  = 120.0
	elementHeight = 80.0
)

// Geometry sizes the stage coordinate space. The zero value picks the
// stock 960x540 parent with a 120x80 element.
type Geometry struct {
	ParentWidth   float64
	ParentHeight  float64
	ElementWidth  float64
	ElementHeight float64
}

func (g Geometry) withDefaults() Geometry {
	if g.ParentWidth <= 0 {
		g.ParentWidth = parentWidth
	}
	if g.ParentHeight <= 0 {
		g.ParentHeight = parentHeight
	}
	if g.ElementWidth <= 0 {
		g.ElementWidth = elementWidth
	}
	if g.ElementHeight <= 0 {
		g.ElementHeight = elementHeight
	}
	return g
}

// Scene bundles one element's pipeline: hand-stepped frame source, position
// instance, tween scheduler, drag controller, in-memory attach target and
// the snapshot store.
type Scene struct {
	Geom     Geometry
	Frames   *frame.Manual
	Position *position.Position
	Tweens   *tween.Scheduler
	Drag     *drag.Controller
	Target   *attach.Fake
	Snaps    *snapshot.Store
}

// NewScene wires a self-contained demo pipeline against an in-memory
// target. The snapshot store's default slot is seeded with the centered
// initial state, so a reset always returns there.
func NewScene(logger *zap.Logger, geom Geometry) (*Scene, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	geom = geom.withDefaults()

	frames := frame.NewManual()
	pos, err := position.New(position.Config{
		Initial: schemas.PositionData{
			Left:   schemas.NewFloat((geom.ParentWidth - geom.ElementWidth) / 2),
			Top:    schemas.NewFloat((geom.ParentHeight - geom.ElementHeight) / 2),
			Width:  schemas.Px(geom.ElementWidth),
			Height: schemas.Px(geom.ElementHeight),
			Scale:  schemas.NewFloat(1),
		},
		Parent:    schemas.Size{Width: schemas.Px(geom.ParentWidth), Height: schemas.Px(geom.ParentHeight)},
		Scheduler: frames,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("stage position: %w", err)
	}

	tweens := tween.NewScheduler(frames, logger)
	dragger, err := drag.New(drag.Config{
		Position:     pos,
		Tweens:       tweens,
		Tween:        &tween.Options{Duration: 120 * time.Millisecond, Easing: tween.EaseOutQuad},
		Throttle:     drag.DefaultThrottle,
		GlideSeconds: 0.15,
		MaxGlide:     220,
		Enabled:      true,
		Logger:       logger,
	})
	if err != nil {
		tweens.Close()
		return nil, fmt.Errorf("stage drag: %w", err)
	}

	snaps, err := snapshot.New(snapshot.Config{Position: pos, Tweens: tweens, Logger: logger})
	if err != nil {
		tweens.Close()
		return nil, fmt.Errorf("stage snapshots: %w", err)
	}

	target := attach.NewFake()
	target.SetBounds(schemas.ResizeObservation{
		OffsetWidth:   geom.ElementWidth,
		OffsetHeight:  geom.ElementHeight,
		ContentWidth:  geom.ElementWidth,
		ContentHeight: geom.ElementHeight,
	}, schemas.Size{Width: schemas.Px(geom.ParentWidth), Height: schemas.Px(geom.ParentHeight)})
	if err := target.Sync(context.Background(), pos); err != nil {
		tweens.Close()
		return nil, fmt.Errorf("stage sync: %w", err)
	}
	if err := pos.Attach(context.Background(), target); err != nil {
		tweens.Close()
		return nil, fmt.Errorf("stage attach: %w", err)
	}

	return &Scene{
		Geom:     geom,
		Frames:   frames,
		Position: pos,
		Tweens:   tweens,
		Drag:     dragger,
		Target:   target,
		Snaps:    snaps,
	}, nil
}

// Close stops the animation scheduler and releases the element.
func (s *Scene) Close() {
	s.Drag.Cancel()
	s.Tweens.Close()
	s.Position.Detach()
}
