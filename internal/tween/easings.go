// File: internal/tween/easings.go

// Package tween schedules per-field position animations on frame
// boundaries: to/from/fromTo primitives, a reusable quick-to driver for
// high-frequency targets, and deterministic conflict strategies.
package tween

import "math"

// Easing names an interpolation curve.
type Easing string

const (
	EaseLinear     Easing = "linear"
	EaseInQuad     Easing = "in_quad"
	EaseOutQuad    Easing = "out_quad"
	EaseInOutQuad  Easing = "in_out_quad"
	EaseInCubic    Easing = "in_cubic"
	EaseOutCubic   Easing = "out_cubic"
	EaseInOutCubic Easing = "in_out_cubic"
	EaseInSine     Easing = "in_sine"
	EaseOutSine    Easing = "out_sine"
	EaseInOutSine  Easing = "in_out_sine"
)

type easingFunc func(t float64) float64

func easeLinear(t float64) float64 { return t }

func easeInQuad(t float64) float64  { return t * t }
func easeOutQuad(t float64) float64 { return 1 - (1-t)*(1-t) }
func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

func easeInCubic(t float64) float64  { return t * t * t }
func easeOutCubic(t float64) float64 { return 1 - math.Pow(1-t, 3) }

// easeInOutCubic provides a smooth acceleration and deceleration profile.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func easeInSine(t float64) float64    { return 1 - math.Cos(t*math.Pi/2) }
func easeOutSine(t float64) float64   { return math.Sin(t * math.Pi / 2) }
func easeInOutSine(t float64) float64 { return -(math.Cos(math.Pi*t) - 1) / 2 }

var easings = map[Easing]easingFunc{
	EaseLinear:     easeLinear,
	EaseInQuad:     easeInQuad,
	EaseOutQuad:    easeOutQuad,
	EaseInOutQuad:  easeInOutQuad,
	EaseInCubic:    easeInCubic,
	EaseOutCubic:   easeOutCubic,
	EaseInOutCubic: easeInOutCubic,
	EaseInSine:     easeInSine,
	EaseOutSine:    easeOutSine,
	EaseInOutSine:  easeInOutSine,
}

// Valid reports whether the name maps to a known curve. The empty name is
// valid and means linear.
func (e Easing) Valid() bool {
	if e == "" {
		return true
	}
	_, ok := easings[e]
	return ok
}

// Apply evaluates the curve with t clamped to [0, 1]. Unknown names fall
// back to linear.
func (e Easing) Apply(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	fn, ok := easings[e]
	if !ok {
		fn = easeLinear
	}
	return fn(t)
}

// Interpolator blends between two field values at eased progress t.
type Interpolator func(from, to, t float64) float64

// Lerp is the default (and currently only built-in) interpolator.
func Lerp(from, to, t float64) float64 { return from + (to-from)*t }
