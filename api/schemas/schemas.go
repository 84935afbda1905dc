package schemas

// Key names a single PositionData field. The string values double as the
// JSON field names.
type Key string

const (
	KeyLeft            Key = "left"
	KeyTop             Key = "top"
	KeyWidth           Key = "width"
	KeyHeight          Key = "height"
	KeyMinWidth        Key = "min_width"
	KeyMinHeight       Key = "min_height"
	KeyMaxWidth        Key = "max_width"
	KeyMaxHeight       Key = "max_height"
	KeyRotateX         Key = "rotate_x"
	KeyRotateY         Key = "rotate_y"
	KeyRotateZ         Key = "rotate_z"
	KeyScale           Key = "scale"
	KeyTranslateX      Key = "translate_x"
	KeyTranslateY      Key = "translate_y"
	KeyTranslateZ      Key = "translate_z"
	KeyZIndex          Key = "z_index"
	KeyTransformOrigin Key = "transform_origin"
)

// canonicalKeys lists every PositionData field in declaration order.
var canonicalKeys = []Key{
	KeyLeft, KeyTop, KeyWidth, KeyHeight,
	KeyMinWidth, KeyMinHeight, KeyMaxWidth, KeyMaxHeight,
	KeyRotateX, KeyRotateY, KeyRotateZ, KeyScale,
	KeyTranslateX, KeyTranslateY, KeyTranslateZ,
	KeyZIndex, KeyTransformOrigin,
}

// transformKeys lists the fields composed into the transform matrix, in
// canonical composition order.
var transformKeys = []Key{
	KeyRotateX, KeyRotateY, KeyRotateZ, KeyScale,
	KeyTranslateX, KeyTranslateY, KeyTranslateZ,
}

// Keys returns every PositionData field key in canonical order.
func Keys() []Key {
	out := make([]Key, len(canonicalKeys))
	copy(out, canonicalKeys)
	return out
}

// TransformKeys returns the transform-relevant keys in canonical order.
func TransformKeys() []Key {
	out := make([]Key, len(transformKeys))
	copy(out, transformKeys)
	return out
}

// IsPositionKey reports whether k names a PositionData field.
func IsPositionKey(k Key) bool {
	switch k {
	case KeyLeft, KeyTop, KeyWidth, KeyHeight,
		KeyMinWidth, KeyMinHeight, KeyMaxWidth, KeyMaxHeight,
		KeyRotateX, KeyRotateY, KeyRotateZ, KeyScale,
		KeyTranslateX, KeyTranslateY, KeyTranslateZ,
		KeyZIndex, KeyTransformOrigin:
		return true
	}
	return false
}

// IsTransformKey reports whether k is composed into the transform matrix.
func IsTransformKey(k Key) bool {
	switch k {
	case KeyRotateX, KeyRotateY, KeyRotateZ, KeyScale,
		KeyTranslateX, KeyTranslateY, KeyTranslateZ:
		return true
	}
	return false
}

// IsRotationKey reports whether k is one of the rotation axes.
func IsRotationKey(k Key) bool {
	return k == KeyRotateX || k == KeyRotateY || k == KeyRotateZ
}

// IsDimensionKey reports whether k holds a Dimension value.
func IsDimensionKey(k Key) bool {
	return k == KeyWidth || k == KeyHeight
}

// IsHorizontalKey reports whether percentage values for k resolve against
// the parent width.
func IsHorizontalKey(k Key) bool {
	switch k {
	case KeyLeft, KeyWidth, KeyMinWidth, KeyMaxWidth, KeyTranslateX:
		return true
	}
	return false
}

// IsVerticalKey reports whether percentage values for k resolve against
// the parent height.
func IsVerticalKey(k Key) bool {
	switch k {
	case KeyTop, KeyHeight, KeyMinHeight, KeyMaxHeight, KeyTranslateY:
		return true
	}
	return false
}

// PositionData is the canonical position entity. Every field is
// independently nullable; null means the axis is not positioned. Instances
// are exclusively owned by one position store and mutated only through its
// pipeline; consumers receive value copies.
type PositionData struct {
	Left            Float     `json:"left"`
	Top             Float     `json:"top"`
	Width           Dimension `json:"width"`
	Height          Dimension `json:"height"`
	MinWidth        Float     `json:"min_width"`
	MinHeight       Float     `json:"min_height"`
	MaxWidth        Float     `json:"max_width"`
	MaxHeight       Float     `json:"max_height"`
	RotateX         Float     `json:"rotate_x"`
	RotateY         Float     `json:"rotate_y"`
	RotateZ         Float     `json:"rotate_z"`
	Scale           Float     `json:"scale"`
	TranslateX      Float     `json:"translate_x"`
	TranslateY      Float     `json:"translate_y"`
	TranslateZ      Float     `json:"translate_z"`
	ZIndex          Float     `json:"z_index"`
	TransformOrigin Origin    `json:"transform_origin"`
}

// Copy returns an independent value copy.
func (p PositionData) Copy() PositionData { return p }

// floatRef returns a pointer to the Float field named by k, or nil when k
// does not name a Float field.
func (p *PositionData) floatRef(k Key) *Float {
	switch k {
	case KeyLeft:
		return &p.Left
	case KeyTop:
		return &p.Top
	case KeyMinWidth:
		return &p.MinWidth
	case KeyMinHeight:
		return &p.MinHeight
	case KeyMaxWidth:
		return &p.MaxWidth
	case KeyMaxHeight:
		return &p.MaxHeight
	case KeyRotateX:
		return &p.RotateX
	case KeyRotateY:
		return &p.RotateY
	case KeyRotateZ:
		return &p.RotateZ
	case KeyScale:
		return &p.Scale
	case KeyTranslateX:
		return &p.TranslateX
	case KeyTranslateY:
		return &p.TranslateY
	case KeyTranslateZ:
		return &p.TranslateZ
	case KeyZIndex:
		return &p.ZIndex
	}
	return nil
}

// FloatField returns the Float field named by k.
func (p *PositionData) FloatField(k Key) (Float, bool) {
	if ref := p.floatRef(k); ref != nil {
		return *ref, true
	}
	return Float{}, false
}

// SetFloatField assigns the Float field named by k.
func (p *PositionData) SetFloatField(k Key, v Float) bool {
	if ref := p.floatRef(k); ref != nil {
		*ref = v
		return true
	}
	return false
}

// DimensionField returns the Dimension field named by k.
func (p *PositionData) DimensionField(k Key) (Dimension, bool) {
	switch k {
	case KeyWidth:
		return p.Width, true
	case KeyHeight:
		return p.Height, true
	}
	return Dimension{}, false
}

// SetDimensionField assigns the Dimension field named by k.
func (p *PositionData) SetDimensionField(k Key, v Dimension) bool {
	switch k {
	case KeyWidth:
		p.Width = v
		return true
	case KeyHeight:
		p.Height = v
		return true
	}
	return false
}

// Value returns the field named by k as its native type (Float, Dimension
// or Origin).
func (p *PositionData) Value(k Key) (any, bool) {
	switch {
	case k == KeyTransformOrigin:
		return p.TransformOrigin, true
	case IsDimensionKey(k):
		return p.DimensionField(k)
	default:
		return p.FloatField(k)
	}
}

// SetValue assigns the field named by k from a native typed value. It
// returns false when k is unknown or v has the wrong type for the field.
func (p *PositionData) SetValue(k Key, v any) bool {
	switch {
	case k == KeyTransformOrigin:
		o, ok := v.(Origin)
		if !ok || !o.Valid() {
			return false
		}
		p.TransformOrigin = o
		return true
	case IsDimensionKey(k):
		d, ok := v.(Dimension)
		if !ok {
			return false
		}
		return p.SetDimensionField(k, d)
	default:
		f, ok := v.(Float)
		if !ok {
			return false
		}
		return p.SetFloatField(k, f)
	}
}

// Merge copies the named fields of o into p. With no keys given, every
// field is copied.
func (p *PositionData) Merge(o *PositionData, keys ...Key) {
	if len(keys) == 0 {
		*p = *o
		return
	}
	for _, k := range keys {
		if v, ok := o.Value(k); ok {
			p.SetValue(k, v)
		}
	}
}

// HasFiniteTransform reports whether any transform-relevant field holds a
// finite number.
func (p *PositionData) HasFiniteTransform() bool {
	for _, k := range transformKeys {
		if f, ok := p.FloatField(k); ok && f.Finite() {
			return true
		}
	}
	return false
}

// Patch is a partial position update. Values may be native field types,
// raw numbers, nil (explicit clear) or relative-adjustment strings.
// Keys outside the canonical field set are never merged into PositionData;
// they are forwarded to validators as auxiliary context.
type Patch map[Key]any

// Copy returns a shallow copy of the patch.
func (p Patch) Copy() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ResizeObservation carries one observed element size update.
type ResizeObservation struct {
	OffsetWidth   float64 `json:"offset_width"`
	OffsetHeight  float64 `json:"offset_height"`
	ContentWidth  float64 `json:"content_width"`
	ContentHeight float64 `json:"content_height"`
}

// Size aggregates the current width/height pair.
type Size struct {
	Width  Dimension `json:"width"`
	Height Dimension `json:"height"`
}
