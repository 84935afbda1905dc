// File: internal/transform/engine.go
package transform

import (
	"math"

	"github.com/xkilldash9x/repose/api/schemas"
)

// Point is a 2-D point in screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in screen space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the right edge coordinate.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the bottom edge coordinate.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Data is the derived geometry for one position: the screen-space matrix,
// its inverse, the origin pre/post translations, the transformed box
// corners, their bounding rectangle and the rendered CSS transform value.
// It is recomputed from position data on demand and never aliased back into
// stored state.
type Data struct {
	Rect    Rect
	Corners [4]Point
	Matrix  Mat4
	Inverse Mat4
	Pre     Mat4
	Post    Mat4
	CSS     string
}

// HasTransform reports whether any transform-relevant field of data holds a
// finite number.
func HasTransform(data *schemas.PositionData) bool {
	if data == nil {
		return false
	}
	return data.HasFiniteTransform()
}

// Engine composes position data into 4×4 matrices. It tracks the order in
// which transform fields were first set, because 3-D composition is not
// commutative: a rotation recorded before a translation must keep composing
// ahead of it on every recomputation.
type Engine struct {
	ortho bool
	order []schemas.Key
}

// NewEngine returns an Engine. In orthographic mode left/top fold into the
// transform matrix instead of being rendered as standalone offsets.
func NewEngine(ortho bool) *Engine {
	return &Engine{ortho: ortho}
}

// Ortho reports whether the engine operates in orthographic mode.
func (e *Engine) Ortho() bool { return e.ortho }

// Track records transform keys in first-set order. Keys already tracked and
// keys that are not transform-relevant are ignored.
func (e *Engine) Track(keys ...schemas.Key) {
	for _, k := range keys {
		if !schemas.IsTransformKey(k) {
			continue
		}
		if !e.tracked(k) {
			e.order = append(e.order, k)
		}
	}
}

// Order returns the tracked key order.
func (e *Engine) Order() []schemas.Key {
	out := make([]schemas.Key, len(e.order))
	copy(out, e.order)
	return out
}

// Reset replaces the tracked subset from the transform fields present in
// data, in canonical order. Fields that are not transform-relevant are
// ignored.
func (e *Engine) Reset(data *schemas.PositionData) {
	e.order = e.order[:0]
	if data == nil {
		return
	}
	for _, k := range schemas.TransformKeys() {
		if f, ok := data.FloatField(k); ok && f.Valid() {
			e.order = append(e.order, k)
		}
	}
}

func (e *Engine) tracked(k schemas.Key) bool {
	for _, t := range e.order {
		if t == k {
			return true
		}
	}
	return false
}

// compositionOrder yields the tracked keys followed by any untracked
// transform keys that hold values in data, in canonical order.
func (e *Engine) compositionOrder(data *schemas.PositionData) []schemas.Key {
	keys := make([]schemas.Key, 0, len(e.order))
	keys = append(keys, e.order...)
	for _, k := range schemas.TransformKeys() {
		if e.tracked(k) {
			continue
		}
		if f, ok := data.FloatField(k); ok && f.Valid() {
			keys = append(keys, k)
		}
	}
	return keys
}

// fieldMatrix returns the matrix contribution of a single transform field,
// or identity when the field is unset or not finite.
func fieldMatrix(k schemas.Key, data *schemas.PositionData) (Mat4, bool) {
	f, ok := data.FloatField(k)
	if !ok || !f.Finite() {
		return Mat4{}, false
	}
	v := f.Float64()
	switch k {
	case schemas.KeyRotateX:
		return RotationX(v * math.Pi / 180), true
	case schemas.KeyRotateY:
		return RotationY(v * math.Pi / 180), true
	case schemas.KeyRotateZ:
		return RotationZ(v * math.Pi / 180), true
	case schemas.KeyScale:
		return Scaling(v, v, 1), true
	case schemas.KeyTranslateX:
		return Translation(v, 0, 0), true
	case schemas.KeyTranslateY:
		return Translation(0, v, 0), true
	case schemas.KeyTranslateZ:
		return Translation(0, 0, v), true
	}
	return Mat4{}, false
}

// compose multiplies the transform-field matrices in composition order.
// When skipTranslate is set the translate axes are left out, for callers
// that fold them into a leading translation.
func (e *Engine) compose(data *schemas.PositionData, skipTranslate bool) (Mat4, bool) {
	m := Identity()
	applied := false
	for _, k := range e.compositionOrder(data) {
		if skipTranslate {
			switch k {
			case schemas.KeyTranslateX, schemas.KeyTranslateY, schemas.KeyTranslateZ:
				continue
			}
		}
		fm, ok := fieldMatrix(k, data)
		if !ok {
			continue
		}
		m = m.Mul(fm)
		applied = true
	}
	return m, applied
}

// Mat4 builds the matrix for the transform-relevant fields in tracked
// order, with left/top applied as a leading translation when present.
func (e *Engine) Mat4(data *schemas.PositionData) Mat4 {
	if data == nil {
		return Identity()
	}
	m := Identity()
	if data.Left.Valid() || data.Top.Valid() {
		m = Translation(data.Left.Or(0), data.Top.Or(0), 0)
	}
	core, _ := e.compose(data, false)
	return m.Mul(core)
}

// Mat4Ortho builds the orthographic variant: left/top and the translate
// axes collapse into one leading 2-D translation, then rotation and scale
// compose in tracked order.
func (e *Engine) Mat4Ortho(data *schemas.PositionData) Mat4 {
	if data == nil {
		return Identity()
	}
	tx := data.Left.Or(0) + data.TranslateX.Or(0)
	ty := data.Top.Or(0) + data.TranslateY.Or(0)
	tz := data.TranslateZ.Or(0)
	core, _ := e.compose(data, true)
	return Translation(tx, ty, tz).Mul(core)
}

// Data derives the full geometry for pos into out, allocating when out is
// nil. Output values are deterministic for identical input.
func (e *Engine) Data(pos *schemas.PositionData, out *Data) *Data {
	if out == nil {
		out = &Data{}
	}
	if pos == nil {
		*out = Data{Matrix: Identity(), Inverse: Identity(), Pre: Identity(), Post: Identity()}
		return out
	}

	w := pos.Width.Or(0)
	h := pos.Height.Or(0)
	fx, fy := pos.TransformOrigin.Anchor()
	ox, oy := fx*w, fy*h

	out.Pre = Translation(-ox, -oy, 0)
	out.Post = Translation(ox, oy, 0)

	core, hasCore := e.compose(pos, e.ortho)
	wrapped := out.Post.Mul(core).Mul(out.Pre)

	var screen Mat4
	if e.ortho {
		lead := Translation(
			pos.Left.Or(0)+pos.TranslateX.Or(0),
			pos.Top.Or(0)+pos.TranslateY.Or(0),
			pos.TranslateZ.Or(0),
		)
		screen = lead.Mul(wrapped)
		// Orthographic mode carries left/top inside the matrix, so the CSS
		// value is always the full screen matrix.
		out.CSS = screen.CSS()
	} else {
		screen = Translation(pos.Left.Or(0), pos.Top.Or(0), 0).Mul(wrapped)
		if hasCore {
			out.CSS = wrapped.CSS()
		} else {
			out.CSS = ""
		}
	}
	out.Matrix = screen

	if inv, ok := screen.Inverse(); ok {
		out.Inverse = inv
	} else {
		out.Inverse = Identity()
	}

	box := [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}
	for i, c := range box {
		x, y, _ := screen.Apply(c[0], c[1], 0)
		out.Corners[i] = Point{X: x, Y: y}
	}

	minX, minY := out.Corners[0].X, out.Corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range out.Corners[1:] {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	out.Rect = Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	return out
}
