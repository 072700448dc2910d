package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places a node relative to its parent as T * R * S.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() *Transform {
	return &Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Place sets position and rotation from a pose, rotation given as a
// column-major 3x3 matrix. Scale is kept.
func (t *Transform) Place(position mgl32.Vec3, rotation mgl32.Mat3) {
	t.Position = position
	t.SetRotationMatrix(rotation)
}

func (t *Transform) SetRotationMatrix(m mgl32.Mat3) {
	t.Rotation = mgl32.Mat4ToQuat(m.Mat4()).Normalize()
}

func (t *Transform) Local() mgl32.Mat4 {
	p, s := t.Position, t.Scale
	return mgl32.Translate3D(p[0], p[1], p[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// LocalInverse is inv(S) * conj(R) * inv(T). Zero scale components are
// treated as 1 so hidden-by-scale nodes still invert.
func (t *Transform) LocalInverse() mgl32.Mat4 {
	inv := func(v float32) float32 {
		if v == 0 {
			return 1
		}
		return 1 / v
	}
	p, s := t.Position, t.Scale
	return mgl32.Scale3D(inv(s[0]), inv(s[1]), inv(s[2])).
		Mul4(t.Rotation.Conjugate().Mat4()).
		Mul4(mgl32.Translate3D(-p[0], -p[1], -p[2]))
}
