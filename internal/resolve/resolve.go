// File: internal/resolve/resolve.go
package resolve

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xkilldash9x/repose/api/schemas"
)

// Env supplies the live geometry percentage units resolve against. The
// resolver itself is stateless; the position store owns the geometry.
type Env struct {
	ParentWidth  float64
	ParentHeight float64
}

var (
	// ErrUnsupportedValue marks a raw value whose type the field cannot accept.
	ErrUnsupportedValue = errors.New("unsupported value")
	// ErrUnsupportedUnit marks a unit that is not defined for the field.
	ErrUnsupportedUnit = errors.New("unit not supported for field")
	// ErrBadNumber marks a malformed numeric literal.
	ErrBadNumber = errors.New("malformed numeric literal")
)

type op uint8

const (
	opNone op = iota
	opAdd
	opSub
	opMul
)

type unit uint8

const (
	unitNone unit = iota
	unitPercent
	unitPercentSelf
	unitPx
	unitRad
	unitTurn
)

type expr struct {
	op   op
	num  float64
	unit unit
}

// Field resolves one raw patch value for the field named by k against the
// current data, returning the field's native type (Float, Dimension or
// Origin). An error means the field should be dropped from the patch; it
// never aborts the surrounding update.
func Field(k schemas.Key, raw any, current *schemas.PositionData, env Env) (any, error) {
	if !schemas.IsPositionKey(k) {
		return nil, fmt.Errorf("%w: unknown field %q", ErrUnsupportedValue, k)
	}
	if k == schemas.KeyTransformOrigin {
		return resolveOrigin(raw)
	}
	if schemas.IsDimensionKey(k) {
		return resolveDimension(k, raw, current, env)
	}
	return resolveFloat(k, raw, current, env)
}

// resolveOrigin accepts only the native origin type; origins are not
// animatable and carry no unit syntax.
func resolveOrigin(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return schemas.Origin(""), nil
	case schemas.Origin:
		if !v.Valid() {
			return nil, fmt.Errorf("%w: origin %q", ErrUnsupportedValue, v)
		}
		return v, nil
	case string:
		o := schemas.Origin(v)
		if !o.Valid() {
			return nil, fmt.Errorf("%w: origin %q", ErrUnsupportedValue, v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("%w: origin cannot hold %T", ErrUnsupportedValue, raw)
	}
}

func resolveDimension(k schemas.Key, raw any, current *schemas.PositionData, env Env) (any, error) {
	switch v := raw.(type) {
	case nil:
		return schemas.Dimension{}, nil
	case schemas.Dimension:
		return v, nil
	case schemas.Float:
		if !v.Valid() {
			return schemas.Dimension{}, nil
		}
		return schemas.Px(v.Float64()), nil
	case string:
		s := strings.TrimSpace(v)
		switch s {
		case "auto":
			return schemas.Auto(), nil
		case "inherit":
			return schemas.Inherit(), nil
		}
		cur, _ := current.DimensionField(k)
		val, err := evalExpr(k, s, cur.Or(0), env)
		if err != nil {
			return nil, err
		}
		return schemas.Px(val), nil
	default:
		if f, ok := asFloat(raw); ok {
			return schemas.Px(f), nil
		}
		return nil, fmt.Errorf("%w: %s cannot hold %T", ErrUnsupportedValue, k, raw)
	}
}

func resolveFloat(k schemas.Key, raw any, current *schemas.PositionData, env Env) (any, error) {
	switch v := raw.(type) {
	case nil:
		return schemas.Float{}, nil
	case schemas.Float:
		return v, nil
	case string:
		cur, _ := current.FloatField(k)
		val, err := evalExpr(k, strings.TrimSpace(v), cur.Or(0), env)
		if err != nil {
			return nil, err
		}
		return schemas.NewFloat(val), nil
	default:
		if f, ok := asFloat(raw); ok {
			return schemas.NewFloat(f), nil
		}
		return nil, fmt.Errorf("%w: %s cannot hold %T", ErrUnsupportedValue, k, raw)
	}
}

// evalExpr parses and applies one relative-adjustment expression of the
// form [op][number][unit] against the field's current value.
func evalExpr(k schemas.Key, s string, base float64, env Env) (float64, error) {
	e, err := parseExpr(s)
	if err != nil {
		return 0, err
	}

	if e.op == opMul {
		// Multiplication takes a plain factor; percent forms read as
		// percentages of the current value ("*=150%" halves again what
		// "+=50%~" adds).
		switch e.unit {
		case unitNone:
			return base * e.num, nil
		case unitPercent, unitPercentSelf:
			return base * e.num / 100, nil
		default:
			return 0, fmt.Errorf("%w: %s with *=", ErrUnsupportedUnit, s)
		}
	}

	var v float64
	switch e.unit {
	case unitNone:
		// The field's natural unit: pixels for position/size, degrees for
		// rotation, unitless for scale and z-index.
		v = e.num
	case unitPx:
		if schemas.IsRotationKey(k) || k == schemas.KeyScale || k == schemas.KeyZIndex {
			return 0, fmt.Errorf("%w: px on %s", ErrUnsupportedUnit, k)
		}
		v = e.num
	case unitPercent:
		switch {
		case schemas.IsRotationKey(k):
			v = e.num / 100 * 360
		case schemas.IsHorizontalKey(k):
			v = e.num / 100 * env.ParentWidth
		case schemas.IsVerticalKey(k):
			v = e.num / 100 * env.ParentHeight
		default:
			return 0, fmt.Errorf("%w: %% on %s", ErrUnsupportedUnit, k)
		}
	case unitPercentSelf:
		v = e.num / 100 * base
	case unitRad:
		if !schemas.IsRotationKey(k) {
			return 0, fmt.Errorf("%w: rad on %s", ErrUnsupportedUnit, k)
		}
		v = e.num * 180 / math.Pi
	case unitTurn:
		if !schemas.IsRotationKey(k) {
			return 0, fmt.Errorf("%w: turn on %s", ErrUnsupportedUnit, k)
		}
		v = e.num * 360
	}

	switch e.op {
	case opAdd:
		return base + v, nil
	case opSub:
		return base - v, nil
	default:
		return v, nil
	}
}

func parseExpr(s string) (expr, error) {
	e := expr{}
	switch {
	case strings.HasPrefix(s, "+="):
		e.op = opAdd
		s = s[2:]
	case strings.HasPrefix(s, "-="):
		e.op = opSub
		s = s[2:]
	case strings.HasPrefix(s, "*="):
		e.op = opMul
		s = s[2:]
	}

	// "%~" must be checked ahead of "%".
	switch {
	case strings.HasSuffix(s, "%~"):
		e.unit = unitPercentSelf
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "%"):
		e.unit = unitPercent
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "px"):
		e.unit = unitPx
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "rad"):
		e.unit = unitRad
		s = s[:len(s)-3]
	case strings.HasSuffix(s, "turn"):
		e.unit = unitTurn
		s = s[:len(s)-4]
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return expr{}, fmt.Errorf("%w: empty literal", ErrBadNumber)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return expr{}, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	e.num = n
	return e, nil
}

// asFloat widens the numeric types a patch may carry.
func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
