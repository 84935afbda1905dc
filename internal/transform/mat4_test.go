package transform

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestIdentityApply(t *testing.T) {
	t.Parallel()

	x, y, z := Identity().Apply(3, -4, 5)
	assert.Equal(t, 3.0, x)
	assert.Equal(t, -4.0, y)
	assert.Equal(t, 5.0, z)
	assert.True(t, Identity().IsIdentity())
}

func TestTranslationAndScaling(t *testing.T) {
	t.Parallel()

	x, y, _ := Translation(10, 20, 0).Apply(1, 1, 0)
	assert.Equal(t, 11.0, x)
	assert.Equal(t, 21.0, y)

	x, y, _ = Scaling(2, 3, 1).Apply(4, 5, 0)
	assert.Equal(t, 8.0, x)
	assert.Equal(t, 15.0, y)
}

func TestRotationZ(t *testing.T) {
	t.Parallel()

	// 90° about Z maps (1, 0) onto (0, 1).
	x, y, _ := RotationZ(math.Pi / 2).Apply(1, 0, 0)
	if diff := cmp.Diff([]float64{0, 1}, []float64{x, y}, approx); diff != "" {
		t.Fatalf("rotated point mismatch (-want +got):\n%s", diff)
	}
}

func TestMulOrderMatters(t *testing.T) {
	t.Parallel()

	scaleThenMove := Translation(10, 0, 0).Mul(Scaling(2, 2, 1))
	moveThenScale := Scaling(2, 2, 1).Mul(Translation(10, 0, 0))

	// Column-vector convention: the rightmost factor applies first.
	x, _, _ := scaleThenMove.Apply(1, 0, 0)
	assert.Equal(t, 12.0, x)
	x, _, _ = moveThenScale.Apply(1, 0, 0)
	assert.Equal(t, 22.0, x)
}

func TestInverseRoundTrip(t *testing.T) {
	t.Parallel()

	m := Translation(12, -7, 3).
		Mul(RotationZ(0.3)).
		Mul(RotationX(-1.1)).
		Mul(Scaling(2, 2, 2))

	inv, ok := m.Inverse()
	require.True(t, ok)

	if diff := cmp.Diff(Identity(), m.Mul(inv), approx); diff != "" {
		t.Fatalf("m × m⁻¹ is not identity (-want +got):\n%s", diff)
	}
}

func TestInverseSingular(t *testing.T) {
	t.Parallel()

	_, ok := Scaling(0, 0, 0).Inverse()
	assert.False(t, ok)
}

func TestCSSColumnMajor(t *testing.T) {
	t.Parallel()

	// Translation components must land in the fourth column group of the
	// matrix3d() value.
	css := Translation(10, 20, 0).CSS()
	assert.Equal(t, "matrix3d(1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 10, 20, 0, 1)", css)

	// Negative zero never leaks into the output.
	m := Identity()
	m[3] = math.Copysign(0, -1)
	assert.Equal(t, "matrix3d(1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1)", m.CSS())
}
