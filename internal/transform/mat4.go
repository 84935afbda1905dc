// File: internal/transform/mat4.go
package transform

import (
	"math"
	"strconv"
	"strings"
)

// Mat4 is a 4×4 matrix stored row-major. Points are treated as column
// vectors, so composed transforms apply right-to-left.
type Mat4 [16]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a translation matrix.
func Translation(tx, ty, tz float64) Mat4 {
	return Mat4{
		1, 0, 0, tx,
		0, 1, 0, ty,
		0, 0, 1, tz,
		0, 0, 0, 1,
	}
}

// Scaling returns a scaling matrix.
func Scaling(sx, sy, sz float64) Mat4 {
	return Mat4{
		sx, 0, 0, 0,
		0, sy, 0, 0,
		0, 0, sz, 0,
		0, 0, 0, 1,
	}
}

// RotationX returns a rotation about the X axis by rad radians.
func RotationX(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	return Mat4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// RotationY returns a rotation about the Y axis by rad radians.
func RotationY(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	return Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotationZ returns a rotation about the Z axis by rad radians.
func RotationZ(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	return Mat4{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m × n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = m[r*4+0]*n[0*4+c] + m[r*4+1]*n[1*4+c] +
				m[r*4+2]*n[2*4+c] + m[r*4+3]*n[3*4+c]
		}
	}
	return out
}

// Apply transforms the point (x, y, z), performing the perspective divide
// when the bottom row is not affine.
func (m Mat4) Apply(x, y, z float64) (float64, float64, float64) {
	px := m[0]*x + m[1]*y + m[2]*z + m[3]
	py := m[4]*x + m[5]*y + m[6]*z + m[7]
	pz := m[8]*x + m[9]*y + m[10]*z + m[11]
	w := m[12]*x + m[13]*y + m[14]*z + m[15]
	if w != 1 && w != 0 {
		px /= w
		py /= w
		pz /= w
	}
	return px, py, pz
}

// IsIdentity checks whether the matrix is approximately identity.
func (m Mat4) IsIdentity() bool {
	id := Identity()
	for i := 0; i < 16; i++ {
		d := m[i] - id[i]
		if d > 1e-9 || d < -1e-9 {
			return false
		}
	}
	return true
}

// Inverse returns the inverse matrix. The second return value is false when
// the matrix is singular.
func (m Mat4) Inverse() (Mat4, bool) {
	var inv Mat4

	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] +
		m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] -
		m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] +
		m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] -
		m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]

	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] -
		m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] +
		m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] -
		m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] +
		m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]

	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] +
		m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] -
		m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] +
		m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] -
		m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]

	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] -
		m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] +
		m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] -
		m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] +
		m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det == 0 {
		return Mat4{}, false
	}

	det = 1.0 / det
	for i := range inv {
		inv[i] *= det
	}
	return inv, true
}

// CSS renders the matrix as a CSS matrix3d() value. CSS expects
// column-major element order, so emission transposes the row-major storage.
func (m Mat4) CSS() string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString("matrix3d(")
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			if c != 0 || r != 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatFloat(m[r*4+c]))
		}
	}
	b.WriteString(")")
	return b.String()
}

// formatFloat renders a float compactly, normalizing negative zero.
func formatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
