package cloud

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a rigid rotation built from roll, pitch and yaw (radians,
// Euler order XYZ) with identity translation. Build it with NewTransform; the
// zero value is the identity.
type Transform struct {
	Roll, Pitch, Yaw float64

	m [3][3]float64
}

func NewTransform(roll, pitch, yaw float64) Transform {
	t := Transform{Roll: roll, Pitch: pitch, Yaw: yaw}
	if t.IsIdentity() {
		return t
	}
	rx := r3.NewRotation(roll, r3.Vec{X: 1})
	ry := r3.NewRotation(pitch, r3.Vec{Y: 1})
	rz := r3.NewRotation(yaw, r3.Vec{Z: 1})
	basis := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	for j, e := range basis {
		// R = Rx·Ry·Rz, so z is applied first.
		c := rx.Rotate(ry.Rotate(rz.Rotate(e)))
		t.m[0][j] = c.X
		t.m[1][j] = c.Y
		t.m[2][j] = c.Z
	}
	return t
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return NewTransform(0, 0, 0)
}

// IsIdentity reports whether Apply is a no-op.
func (t Transform) IsIdentity() bool {
	return t.Roll == 0 && t.Pitch == 0 && t.Yaw == 0
}

func (t Transform) Apply(p Point) Point {
	if t.IsIdentity() {
		return p
	}
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return Point{
		X: float32(t.m[0][0]*x + t.m[0][1]*y + t.m[0][2]*z),
		Y: float32(t.m[1][0]*x + t.m[1][1]*y + t.m[1][2]*z),
		Z: float32(t.m[2][0]*x + t.m[2][1]*y + t.m[2][2]*z),
	}
}
