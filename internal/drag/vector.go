// File: internal/drag/vector.go
package drag

import "math"

// Vector2D is a point or displacement in screen space, in pixels.
type Vector2D struct {
	X, Y float64
}

// Add returns the vector sum of v and other.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns the vector difference of v and other.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mul returns the vector v scaled by the scalar factor.
func (v Vector2D) Mul(scalar float64) Vector2D {
	return Vector2D{X: v.X * scalar, Y: v.Y * scalar}
}

// MagSq calculates the squared magnitude of the vector.
func (v Vector2D) MagSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Mag calculates the magnitude of the vector.
func (v Vector2D) Mag() float64 {
	// math.Hypot for numerical stability.
	return math.Hypot(v.X, v.Y)
}

// Limit truncates the magnitude of the vector if it exceeds max.
func (v Vector2D) Limit(max float64) Vector2D {
	magSq := v.MagSq()
	if magSq > max*max && magSq > 0 {
		mag := math.Sqrt(magSq)
		return v.Mul(max / mag)
	}
	return v
}
