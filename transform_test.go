package i3dex

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAxisConversionDefaultTarget(t *testing.T) {
	conversion, err := AxisConversionMatrix(AxisNegZ, AxisY)
	require.NoError(t, err)

	// Host forward (0,1,0) must land on engine forward (0,0,-1) and host
	// up (0,0,1) on engine up (0,1,0).
	forward := transformPoint(conversion, mgl64.Vec3{0, 1, 0})
	up := transformPoint(conversion, mgl64.Vec3{0, 0, 1})
	assert.True(t, vectorsClose(forward, mgl64.Vec3{0, 0, -1}, 1e-12), "forward mapped to %v", forward)
	assert.True(t, vectorsClose(up, mgl64.Vec3{0, 1, 0}, 1e-12), "up mapped to %v", up)

	assert.InDelta(t, 1.0, conversion.Det(), 1e-12, "axis conversion must not mirror")
}

func TestAxisConversionRejectsParallelAxes(t *testing.T) {
	_, err := AxisConversionMatrix(AxisY, AxisNegY)
	assert.Error(t, err)
}

func TestAxisConversionRejectsUnknownAxis(t *testing.T) {
	_, err := AxisConversionMatrix("W", AxisY)
	assert.Error(t, err)
}

func TestDecomposeTranslationOnly(t *testing.T) {
	m := mgl64.Translate3D(1, 2, 3)
	d := decomposeTransform(m)
	assert.True(t, vectorsClose(d.translation, mgl64.Vec3{1, 2, 3}, 1e-12))
	assert.True(t, vectorsClose(d.rotationDeg, mgl64.Vec3{}, 1e-9))
	assert.True(t, vectorsClose(d.scale, mgl64.Vec3{1, 1, 1}, 1e-12))
	assert.False(t, d.negative)
}

func TestDecomposeEulerRoundTrip(t *testing.T) {
	angles := []mgl64.Vec3{
		{30, 0, 0},
		{0, 45, 0},
		{0, 0, 60},
		{10, 20, 30},
		{-15, 75, -120},
	}
	for _, want := range angles {
		x := mgl64.DegToRad(want.X())
		y := mgl64.DegToRad(want.Y())
		z := mgl64.DegToRad(want.Z())
		m := mgl64.HomogRotate3DZ(z).Mul4(mgl64.HomogRotate3DY(y)).Mul4(mgl64.HomogRotate3DX(x))
		d := decomposeTransform(m)
		assert.True(t, vectorsClose(d.rotationDeg, want, 1e-9), "want %v got %v", want, d.rotationDeg)
	}
}

func TestDecomposeScale(t *testing.T) {
	m := mgl64.Scale3D(2, 3, 4)
	d := decomposeTransform(m)
	assert.True(t, vectorsClose(d.scale, mgl64.Vec3{2, 3, 4}, 1e-12))
	assert.False(t, d.negative)
}

func TestDecomposeNegativeDeterminant(t *testing.T) {
	m := mgl64.Scale3D(-1, 1, 1)
	d := decomposeTransform(m)
	assert.True(t, d.negative)
}

func TestDecomposeGimbalLock(t *testing.T) {
	m := mgl64.HomogRotate3DY(math.Pi / 2)
	d := decomposeTransform(m)
	assert.InDelta(t, 90.0, d.rotationDeg.Y(), 1e-6)
}

func TestTransformDirectionRenormalizes(t *testing.T) {
	m := mgl64.Scale3D(1, 5, 1)
	n := transformDirection(m, mgl64.Vec3{0, 1, 0})
	assert.InDelta(t, 1.0, n.Len(), 1e-12)
}
