// File: internal/constraint/constraint_test.go
package constraint_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/constraint"
	"github.com/xkilldash9x/repose/internal/frame"
	"github.com/xkilldash9x/repose/internal/position"
	"github.com/xkilldash9x/repose/internal/transform"
)

func baseCandidate() schemas.PositionData {
	return schemas.PositionData{
		Left:   schemas.NewFloat(0),
		Top:    schemas.NewFloat(0),
		Width:  schemas.Px(100),
		Height: schemas.Px(50),
	}
}

// vdata wraps a candidate in a validation bundle with a 1000x800 parent.
func vdata(c schemas.PositionData) position.ValidationData {
	return position.ValidationData{
		Candidate: c,
		Parent: schemas.Size{
			Width:  schemas.Px(1000),
			Height: schemas.Px(800),
		},
	}
}

func mustBasic(t *testing.T, cfg constraint.Config) *constraint.BasicBounds {
	t.Helper()
	v, err := constraint.NewBasicBounds(cfg)
	require.NoError(t, err)
	return v
}

func TestNewBasicBoundsRejectsBadBoundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		w, h float64
	}{
		{"nan width", math.NaN(), 100},
		{"inf height", 100, math.Inf(1)},
		{"negative width", -1, 100},
		{"negative height", 100, -5},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := constraint.DefaultConfig()
			cfg.Width, cfg.Height = tc.w, tc.h
			_, err := constraint.NewBasicBounds(cfg)
			require.ErrorIs(t, err, constraint.ErrBadBoundary)
			_, err = constraint.NewTransformBounds(cfg)
			require.ErrorIs(t, err, constraint.ErrBadBoundary)
		})
	}
}

func TestBasicBoundsClampsRightEdge(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())
	c := baseCandidate()
	c.Left = schemas.NewFloat(950)

	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	assert.InDelta(t, 900, got.Left.Float64(), 1e-9)
}

func TestBasicBoundsClampsNegativeCoordinates(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())
	c := baseCandidate()
	c.Left = schemas.NewFloat(-10)
	c.Top = schemas.NewFloat(-5)

	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	assert.Zero(t, got.Left.Float64())
	assert.Zero(t, got.Top.Float64())
}

func TestBasicBoundsHonorsMargins(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())
	c := baseCandidate()
	c.Left = schemas.NewFloat(950)
	c.Top = schemas.NewFloat(0)

	d := vdata(c)
	d.Margins = position.Margins{Top: 10, Right: 20, Bottom: 30, Left: 40}

	got := v.Validate(d)
	require.NotNil(t, got)
	assert.InDelta(t, 880, got.Left.Float64(), 1e-9, "1000 - right margin 20 - width 100")
	assert.InDelta(t, 10, got.Top.Float64(), 1e-9, "top margin floor")
}

func TestBasicBoundsOversizedPinsOrigin(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())
	c := baseCandidate()
	c.Width = schemas.Px(1200)
	c.Left = schemas.NewFloat(300)

	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	w, ok := got.Width.Pixels()
	require.True(t, ok)
	assert.InDelta(t, 1000, w, 1e-9, "width clamps to the boundary")
	assert.Zero(t, got.Left.Float64())
}

func TestBasicBoundsRespectsSizeRanges(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())

	c := baseCandidate()
	c.MinWidth = schemas.NewFloat(150)
	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	w, _ := got.Width.Pixels()
	assert.InDelta(t, 150, w, 1e-9, "candidate min width raises the floor")

	c = baseCandidate()
	d := vdata(c)
	d.MaxSize = schemas.Size{Width: schemas.Px(80)}
	got = v.Validate(d)
	require.NotNil(t, got)
	w, _ = got.Width.Pixels()
	assert.InDelta(t, 80, w, 1e-9, "instance max width caps the size")
}

func TestBasicBoundsAutoSizeUsesObservation(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())
	c := baseCandidate()
	c.Width = schemas.Auto()
	c.Left = schemas.NewFloat(950)

	d := vdata(c)
	d.Element = schemas.ResizeObservation{OffsetWidth: 120, OffsetHeight: 60}

	got := v.Validate(d)
	require.NotNil(t, got)
	assert.InDelta(t, 880, got.Left.Float64(), 1e-9, "1000 - observed width 120")
	assert.True(t, got.Width.IsAuto(), "auto width passes through untouched")
}

func TestBasicBoundsNullCoordinatesUntouched(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())
	c := baseCandidate()
	c.Left = schemas.Float{}
	c.Top = schemas.Float{}

	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	assert.False(t, got.Left.Valid())
	assert.False(t, got.Top.Valid())
}

func TestBasicBoundsVetoMode(t *testing.T) {
	t.Parallel()

	cfg := constraint.DefaultConfig()
	cfg.Constrain = false
	v := mustBasic(t, cfg)

	in := baseCandidate()
	in.Left = schemas.NewFloat(500)
	got := v.Validate(vdata(in))
	require.NotNil(t, got)
	assert.InDelta(t, 500, got.Left.Float64(), 1e-9)

	out := baseCandidate()
	out.Left = schemas.NewFloat(950)
	assert.Nil(t, v.Validate(vdata(out)), "out of bounds must veto instead of adjust")
}

func TestBasicBoundsDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	cfg := constraint.DefaultConfig()
	cfg.Enabled = false
	v := mustBasic(t, cfg)

	c := baseCandidate()
	c.Left = schemas.NewFloat(99999)
	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	assert.InDelta(t, 99999, got.Left.Float64(), 1e-9)
}

func TestBasicBoundsManualBoundaryOverridesParent(t *testing.T) {
	t.Parallel()

	cfg := constraint.DefaultConfig()
	cfg.Width, cfg.Height = 500, 400
	v := mustBasic(t, cfg)

	c := baseCandidate()
	c.Left = schemas.NewFloat(950)
	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	assert.InDelta(t, 400, got.Left.Float64(), 1e-9, "500 boundary - width 100")
}

func TestBasicBoundsWithoutBoundaryPasses(t *testing.T) {
	t.Parallel()

	v := mustBasic(t, constraint.DefaultConfig())
	c := baseCandidate()
	c.Left = schemas.NewFloat(99999)

	d := position.ValidationData{Candidate: c}
	got := v.Validate(d)
	require.NotNil(t, got)
	assert.InDelta(t, 99999, got.Left.Float64(), 1e-9)
}

func TestBoundsSettersHonorLock(t *testing.T) {
	t.Parallel()

	cfg := constraint.DefaultConfig()
	cfg.Locked = true
	v := mustBasic(t, cfg)

	require.ErrorIs(t, v.SetBoundary(10, 10), constraint.ErrLocked)
	require.ErrorIs(t, v.SetEnabled(false), constraint.ErrLocked)
	assert.True(t, v.Enabled())

	require.ErrorIs(t, mustBasic(t, constraint.DefaultConfig()).SetBoundary(math.NaN(), 1), constraint.ErrBadBoundary)
}

func TestTransformBoundsShiftsByOverflow(t *testing.T) {
	t.Parallel()

	v, err := constraint.NewTransformBounds(constraint.DefaultConfig())
	require.NoError(t, err)

	c := baseCandidate()
	c.Left = schemas.NewFloat(0)
	c.Top = schemas.NewFloat(760)
	d := vdata(c)
	d.Transform = func() transform.Data {
		return transform.Data{Rect: transform.Rect{X: -50, Y: 760, Width: 100, Height: 100}}
	}

	got := v.Validate(d)
	require.NotNil(t, got)
	assert.InDelta(t, 50, got.Left.Float64(), 1e-9, "pulled right to clear the left edge")
	assert.InDelta(t, 700, got.Top.Float64(), 1e-9, "pulled up to clear the bottom edge")
}

func TestTransformBoundsRotatedRealGeometry(t *testing.T) {
	t.Parallel()

	v, err := constraint.NewTransformBounds(constraint.DefaultConfig())
	require.NoError(t, err)

	c := schemas.PositionData{
		Left:    schemas.NewFloat(0),
		Top:     schemas.NewFloat(0),
		Width:   schemas.Px(100),
		Height:  schemas.Px(100),
		RotateZ: schemas.NewFloat(45),
	}
	eng := transform.NewEngine(false)
	eng.Reset(&c)

	d := vdata(c)
	d.Transform = func() transform.Data {
		var td transform.Data
		eng.Data(&c, &td)
		return td
	}

	got := v.Validate(d)
	require.NotNil(t, got)
	// Rotating 45 degrees about the top-left corner swings the bottom-left
	// corner to x = -100/sqrt(2); the box shifts right by that much.
	assert.InDelta(t, 100/math.Sqrt2, got.Left.Float64(), 1e-9)
	assert.InDelta(t, 0, got.Top.Float64(), 1e-9)
}

func TestTransformBoundsTopLeftWinsWhenOversized(t *testing.T) {
	t.Parallel()

	v, err := constraint.NewTransformBounds(constraint.DefaultConfig())
	require.NoError(t, err)

	c := baseCandidate()
	d := vdata(c)
	d.Transform = func() transform.Data {
		return transform.Data{Rect: transform.Rect{X: 100, Y: 0, Width: 1500, Height: 100}}
	}

	got := v.Validate(d)
	require.NotNil(t, got)
	// The box cannot fit; it is pinned to the left edge and allowed to
	// overflow on the right.
	assert.InDelta(t, -100, got.Left.Float64(), 1e-9)
}

func TestTransformBoundsVetoMode(t *testing.T) {
	t.Parallel()

	cfg := constraint.DefaultConfig()
	cfg.Constrain = false
	v, err := constraint.NewTransformBounds(cfg)
	require.NoError(t, err)

	c := baseCandidate()
	d := vdata(c)
	d.Transform = func() transform.Data {
		return transform.Data{Rect: transform.Rect{X: -1, Y: 0, Width: 100, Height: 50}}
	}
	assert.Nil(t, v.Validate(d))
}

func TestTransformBoundsWithoutAccessorPasses(t *testing.T) {
	t.Parallel()

	v, err := constraint.NewTransformBounds(constraint.DefaultConfig())
	require.NoError(t, err)

	c := baseCandidate()
	got := v.Validate(vdata(c))
	require.NotNil(t, got)
	assert.Equal(t, c, *got)
}

type nopTarget struct{}

func (nopTarget) ApplyStyles(context.Context, map[string]string) error { return nil }

func TestBasicBoundsInsidePipeline(t *testing.T) {
	t.Parallel()

	bb := mustBasic(t, constraint.DefaultConfig())
	p, err := position.New(position.Config{
		Initial: baseCandidate(),
		Parent: schemas.Size{
			Width:  schemas.Px(1000),
			Height: schemas.Px(800),
		},
		Scheduler:  frame.NewManual(),
		Logger:     zaptest.NewLogger(t),
		Validators: position.NewValidators(position.Entry{Validator: bb, Notifier: bb}),
	})
	require.NoError(t, err)

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 5000.0}))
	assert.InDelta(t, 900, p.Data().Left.Or(-1), 1e-9)

	// Shrinking the boundary re-validates the committed state without a
	// new Set call.
	require.NoError(t, bb.SetBoundary(500, 400))
	assert.InDelta(t, 400, p.Data().Left.Or(-1), 1e-9)
}

func TestCenteredPlacementSeedsAttach(t *testing.T) {
	t.Parallel()

	cfg := constraint.DefaultConfig()
	cfg.Width, cfg.Height = 800, 600
	c, err := constraint.NewCentered(cfg)
	require.NoError(t, err)

	p, err := position.New(position.Config{
		Initial: schemas.PositionData{
			Width:  schemas.Px(100),
			Height: schemas.Px(50),
		},
		Scheduler: frame.NewManual(),
		Logger:    zaptest.NewLogger(t),
		Placement: c,
	})
	require.NoError(t, err)

	require.NoError(t, p.Attach(context.Background(), nopTarget{}))
	data := p.Data()
	assert.InDelta(t, 350, data.Left.Or(-1), 1e-9)
	assert.InDelta(t, 275, data.Top.Or(-1), 1e-9)
}

func TestNewCenteredValidation(t *testing.T) {
	t.Parallel()

	_, err := constraint.NewCentered(constraint.DefaultConfig())
	require.ErrorIs(t, err, constraint.ErrBoundaryRequired)

	cfg := constraint.DefaultConfig()
	cfg.Width, cfg.Height = math.NaN(), 600
	_, err = constraint.NewCentered(cfg)
	require.ErrorIs(t, err, constraint.ErrBadBoundary)
}

func TestCenteredLockAndDisable(t *testing.T) {
	t.Parallel()

	cfg := constraint.DefaultConfig()
	cfg.Width, cfg.Height = 800, 600
	cfg.Locked = true
	c, err := constraint.NewCentered(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, c.SetBoundary(100, 100), constraint.ErrLocked)
	assert.InDelta(t, 350, c.Left(100), 1e-9)

	cfg = constraint.DefaultConfig()
	cfg.Width, cfg.Height = 800, 600
	cfg.Enabled = false
	off, err := constraint.NewCentered(cfg)
	require.NoError(t, err)
	assert.Zero(t, off.Left(100))
	assert.Zero(t, off.Top(50))
}
