// File: internal/tween/easings_test.go
package tween_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/repose/internal/tween"
)

func TestEasingCurveValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		easing tween.Easing
		at     float64
		want   float64
	}{
		{tween.EaseLinear, 0.25, 0.25},
		{tween.EaseInQuad, 0.5, 0.25},
		{tween.EaseOutQuad, 0.5, 0.75},
		{tween.EaseInOutQuad, 0.25, 0.125},
		{tween.EaseInOutQuad, 0.75, 0.875},
		{tween.EaseInCubic, 0.5, 0.125},
		{tween.EaseOutCubic, 0.5, 0.875},
		{tween.EaseInOutCubic, 0.25, 0.0625},
		{tween.EaseInOutCubic, 0.75, 0.9375},
		{tween.EaseInSine, 0.5, 1 - math.Cos(math.Pi/4)},
		{tween.EaseOutSine, 0.5, math.Sin(math.Pi / 4)},
		{tween.EaseInOutSine, 0.5, 0.5},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("%s at %.2f", tc.easing, tc.at), func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, tc.easing.Apply(tc.at), 1e-9)
		})
	}
}

func TestEasingApplyClampsAndTerminates(t *testing.T) {
	t.Parallel()

	all := []tween.Easing{
		tween.EaseLinear,
		tween.EaseInQuad, tween.EaseOutQuad, tween.EaseInOutQuad,
		tween.EaseInCubic, tween.EaseOutCubic, tween.EaseInOutCubic,
		tween.EaseInSine, tween.EaseOutSine, tween.EaseInOutSine,
	}
	for _, e := range all {
		e := e
		t.Run(string(e), func(t *testing.T) {
			t.Parallel()
			require.True(t, e.Valid())
			assert.Zero(t, e.Apply(0))
			assert.Zero(t, e.Apply(-3))
			assert.Equal(t, 1.0, e.Apply(1))
			assert.Equal(t, 1.0, e.Apply(42))
		})
	}
}

func TestEasingUnknownFallsBackToLinear(t *testing.T) {
	t.Parallel()

	unknown := tween.Easing("wobble")
	assert.False(t, unknown.Valid())
	assert.InDelta(t, 0.3, unknown.Apply(0.3), 1e-12)

	// The empty name means linear and is always valid.
	assert.True(t, tween.Easing("").Valid())
	assert.InDelta(t, 0.7, tween.Easing("").Apply(0.7), 1e-12)
}

func TestLerp(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 50, tween.Lerp(0, 100, 0.5), 1e-12)
	assert.InDelta(t, -25, tween.Lerp(0, -100, 0.25), 1e-12)
	assert.InDelta(t, 10, tween.Lerp(10, 10, 0.9), 1e-12)
	assert.InDelta(t, 100, tween.Lerp(0, 100, 1), 1e-12)
}
