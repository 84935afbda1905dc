// File: api/schemas/values.go
package schemas

import (
	"encoding/json"
	"fmt"
	"math"
)

// Float is a nullable float64. The zero value is null, which means
// "unset / not positioned on this axis", never an error.
type Float struct {
	value float64
	valid bool
}

// NewFloat returns a non-null Float holding v.
func NewFloat(v float64) Float {
	return Float{value: v, valid: true}
}

// Valid reports whether the value is set.
func (f Float) Valid() bool { return f.valid }

// Float64 returns the held value; 0 when null.
func (f Float) Float64() float64 { return f.value }

// Or returns the held value, or def when null.
func (f Float) Or(def float64) float64 {
	if !f.valid {
		return def
	}
	return f.value
}

// Finite reports whether the value is set and neither NaN nor infinite.
func (f Float) Finite() bool {
	return f.valid && !math.IsNaN(f.value) && !math.IsInf(f.value, 0)
}

// Equal reports value equality, treating null as equal only to null.
func (f Float) Equal(o Float) bool {
	if f.valid != o.valid {
		return false
	}
	return !f.valid || f.value == o.value
}

func (f Float) String() string {
	if !f.valid {
		return "null"
	}
	return fmt.Sprintf("%g", f.value)
}

// MarshalJSON encodes null or a bare number.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON accepts null or a number.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("invalid float value %q: %w", string(b), err)
	}
	*f = NewFloat(v)
	return nil
}

type dimensionKind uint8

const (
	dimNull dimensionKind = iota
	dimPixels
	dimAuto
	dimInherit
)

// Dimension is a nullable width/height value: a pixel length, the CSS
// keywords "auto" / "inherit", or null (unset).
type Dimension struct {
	kind   dimensionKind
	pixels float64
}

// Px returns a pixel-valued Dimension.
func Px(v float64) Dimension { return Dimension{kind: dimPixels, pixels: v} }

// Auto returns the "auto" keyword Dimension.
func Auto() Dimension { return Dimension{kind: dimAuto} }

// Inherit returns the "inherit" keyword Dimension.
func Inherit() Dimension { return Dimension{kind: dimInherit} }

// Valid reports whether the value is set (not null).
func (d Dimension) Valid() bool { return d.kind != dimNull }

// IsAuto reports whether the value is the "auto" keyword.
func (d Dimension) IsAuto() bool { return d.kind == dimAuto }

// IsInherit reports whether the value is the "inherit" keyword.
func (d Dimension) IsInherit() bool { return d.kind == dimInherit }

// Pixels returns the pixel length and whether the value holds one.
func (d Dimension) Pixels() (float64, bool) {
	return d.pixels, d.kind == dimPixels
}

// Or returns the pixel length, or def when the value holds no length.
func (d Dimension) Or(def float64) float64 {
	if d.kind != dimPixels {
		return def
	}
	return d.pixels
}

// Equal reports value equality across kind and pixel length.
func (d Dimension) Equal(o Dimension) bool {
	if d.kind != o.kind {
		return false
	}
	return d.kind != dimPixels || d.pixels == o.pixels
}

func (d Dimension) String() string {
	switch d.kind {
	case dimPixels:
		return fmt.Sprintf("%gpx", d.pixels)
	case dimAuto:
		return "auto"
	case dimInherit:
		return "inherit"
	default:
		return "null"
	}
}

// MarshalJSON encodes null, a bare number, or the keyword string.
func (d Dimension) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case dimPixels:
		return json.Marshal(d.pixels)
	case dimAuto:
		return []byte(`"auto"`), nil
	case dimInherit:
		return []byte(`"inherit"`), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a number, "auto" or "inherit".
func (d *Dimension) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null":
		*d = Dimension{}
		return nil
	case `"auto"`:
		*d = Auto()
		return nil
	case `"inherit"`:
		*d = Inherit()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("invalid dimension value %q: %w", string(b), err)
	}
	*d = Px(v)
	return nil
}

// Origin names the anchor point rotation and scaling are applied about.
type Origin string

const (
	OriginTopLeft      Origin = "top left"
	OriginTopCenter    Origin = "top center"
	OriginTopRight     Origin = "top right"
	OriginCenterLeft   Origin = "center left"
	OriginCenter       Origin = "center"
	OriginCenterRight  Origin = "center right"
	OriginBottomLeft   Origin = "bottom left"
	OriginBottomCenter Origin = "bottom center"
	OriginBottomRight  Origin = "bottom right"
)

// DefaultOrigin is assumed whenever an origin is unset.
const DefaultOrigin = OriginTopLeft

var originAnchors = map[Origin][2]float64{
	OriginTopLeft:      {0, 0},
	OriginTopCenter:    {0.5, 0},
	OriginTopRight:     {1, 0},
	OriginCenterLeft:   {0, 0.5},
	OriginCenter:       {0.5, 0.5},
	OriginCenterRight:  {1, 0.5},
	OriginBottomLeft:   {0, 1},
	OriginBottomCenter: {0.5, 1},
	OriginBottomRight:  {1, 1},
}

// Valid reports whether o is one of the nine named anchors or empty (unset).
func (o Origin) Valid() bool {
	if o == "" {
		return true
	}
	_, ok := originAnchors[o]
	return ok
}

// Anchor returns the fractional anchor point in [0,1]×[0,1]. Unset and
// unknown origins resolve to the default top-left anchor.
func (o Origin) Anchor() (fx, fy float64) {
	if a, ok := originAnchors[o]; ok {
		return a[0], a[1]
	}
	a := originAnchors[DefaultOrigin]
	return a[0], a[1]
}
