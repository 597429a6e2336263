package i3dex

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// transformEpsilon is the absolute tolerance used when deciding whether a
// translation/rotation/scale component differs from identity. Components
// within epsilon are omitted from the document, since the engine defaults to
// identity anyway and omission keeps the file small.
const transformEpsilon = 1e-7

// Axis names accepted by the settings bag for axis conversion.
const (
	AxisX    = "X"
	AxisY    = "Y"
	AxisZ    = "Z"
	AxisNegX = "-X"
	AxisNegY = "-Y"
	AxisNegZ = "-Z"
)

func axisVector(name string) (mgl64.Vec3, error) {
	switch name {
	case AxisX:
		return mgl64.Vec3{1, 0, 0}, nil
	case AxisY:
		return mgl64.Vec3{0, 1, 0}, nil
	case AxisZ:
		return mgl64.Vec3{0, 0, 1}, nil
	case AxisNegX:
		return mgl64.Vec3{-1, 0, 0}, nil
	case AxisNegY:
		return mgl64.Vec3{0, -1, 0}, nil
	case AxisNegZ:
		return mgl64.Vec3{0, 0, -1}, nil
	}
	return mgl64.Vec3{}, fmt.Errorf("unknown axis %q", name)
}

func axisBasis(forward, up mgl64.Vec3) mgl64.Mat3 {
	right := forward.Cross(up)
	return mgl64.Mat3FromCols(right, forward, up)
}

// AxisConversionMatrix builds the matrix that rebases host coordinates
// (Y forward, Z up) onto the engine convention given by toForward/toUp.
// The default engine target is forward -Z, up Y.
func AxisConversionMatrix(toForward, toUp string) (mgl64.Mat4, error) {
	fwd, err := axisVector(toForward)
	if err != nil {
		return mgl64.Ident4(), err
	}
	up, err := axisVector(toUp)
	if err != nil {
		return mgl64.Ident4(), err
	}
	if math.Abs(fwd.Dot(up)) > 0.5 {
		return mgl64.Ident4(), fmt.Errorf("axis forward %q and up %q are not perpendicular", toForward, toUp)
	}
	src := axisBasis(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1})
	dst := axisBasis(fwd, up)
	// Both bases are orthonormal, so the inverse is the transpose.
	return dst.Mul3(src.Transpose()).Mat4(), nil
}

func floatsClose(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func vectorsClose(a, b mgl64.Vec3, epsilon float64) bool {
	return floatsClose(a.X(), b.X(), epsilon) &&
		floatsClose(a.Y(), b.Y(), epsilon) &&
		floatsClose(a.Z(), b.Z(), epsilon)
}

// decomposedTransform is the translation/rotation/scale view of a local
// matrix, ready for attribute emission. Rotation is XYZ euler in degrees.
type decomposedTransform struct {
	translation mgl64.Vec3
	rotationDeg mgl64.Vec3
	scale       mgl64.Vec3
	negative    bool
}

func decomposeTransform(m mgl64.Mat4) decomposedTransform {
	var d decomposedTransform
	d.translation = mgl64.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}

	c0 := mgl64.Vec3{m.At(0, 0), m.At(1, 0), m.At(2, 0)}
	c1 := mgl64.Vec3{m.At(0, 1), m.At(1, 1), m.At(2, 1)}
	c2 := mgl64.Vec3{m.At(0, 2), m.At(1, 2), m.At(2, 2)}
	d.scale = mgl64.Vec3{c0.Len(), c1.Len(), c2.Len()}
	d.negative = m.Det() < 0

	r := [3]mgl64.Vec3{c0, c1, c2}
	for i := range r {
		if l := r[i].Len(); l > 0 {
			r[i] = r[i].Mul(1 / l)
		}
	}

	// XYZ euler extraction from R = Rz*Ry*Rx (x applied first).
	var x, y, z float64
	sy := -r[0].Z()
	if math.Abs(sy) < 1-1e-12 {
		y = math.Asin(sy)
		x = math.Atan2(r[1].Z(), r[2].Z())
		z = math.Atan2(r[0].Y(), r[0].X())
	} else {
		y = math.Asin(clamp(sy, -1, 1))
		x = math.Atan2(-r[2].Y(), r[1].Y())
		z = 0
	}
	d.rotationDeg = mgl64.Vec3{mgl64.RadToDeg(x), mgl64.RadToDeg(y), mgl64.RadToDeg(z)}
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// transformPoint applies the full 4x4 transform to a position.
func transformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	return mgl64.Vec3{v.X(), v.Y(), v.Z()}
}

// transformDirection applies only the linear part, for normals. Callers
// re-normalize afterwards; non-uniform scale would otherwise skew lighting.
func transformDirection(m mgl64.Mat4, n mgl64.Vec3) mgl64.Vec3 {
	v := m.Mul4x1(n.Vec4(0))
	d := mgl64.Vec3{v.X(), v.Y(), v.Z()}
	if l := d.Len(); l > 0 {
		return d.Mul(1 / l)
	}
	return d
}
