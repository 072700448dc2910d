package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera looking down its local -Z axis with +Y up.
type Camera struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Up       mgl32.Vec3

	Fov    float32 // vertical, degrees
	Aspect float32
	Near   float32
	Far    float32
	Zoom   float32
}

func NewCamera(fov, aspect, near, far float32) *Camera {
	return &Camera{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Up:       mgl32.Vec3{0, 0, 1}, // scans are Z-up
		Fov:      fov,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
		Zoom:     1,
	}
}

func (c *Camera) Clone() *Camera {
	cp := *c
	return &cp
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
}

func (c *Camera) UpVector() mgl32.Vec3 {
	return c.Rotation.Rotate(mgl32.Vec3{0, 1, 0})
}

// LookAt orients the camera towards target keeping c.Up as the up hint.
func (c *Camera) LookAt(target mgl32.Vec3) {
	f := target.Sub(c.Position)
	if f.Len() < 1e-9 {
		return
	}
	z := f.Normalize().Mul(-1)
	up := c.Up
	if up.Len() < 1e-9 {
		up = mgl32.Vec3{0, 1, 0}
	}
	x := up.Cross(z)
	if x.Len() < 1e-6 {
		// up is parallel to the view direction
		x = mgl32.Vec3{1, 0, 0}.Cross(z)
		if x.Len() < 1e-6 {
			x = mgl32.Vec3{0, 1, 0}.Cross(z)
		}
	}
	x = x.Normalize()
	y := z.Cross(x)
	c.Rotation = mgl32.Mat4ToQuat(mgl32.Mat3FromCols(x, y, z).Mat4()).Normalize()
}

// EffectiveFov applies the zoom factor to the vertical field of view.
func (c *Camera) EffectiveFov() float32 {
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	half := math.Tan(float64(mgl32.DegToRad(c.Fov)) / 2)
	return mgl32.RadToDeg(float32(2 * math.Atan(half/float64(zoom))))
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	invRotate := c.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-c.Position.X(), -c.Position.Y(), -c.Position.Z())
	return invRotate.Mul4(invTranslate)
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.EffectiveFov()), aspect, c.Near, c.Far)
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

// Project maps a world point to normalized device coordinates. ok is false
// for points behind the camera.
func (c *Camera) Project(p mgl32.Vec3) (mgl32.Vec3, bool) {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return mgl32.Vec3{}, false
	}
	return clip.Vec3().Mul(1 / clip.W()), true
}

// RayFromNDC builds a world-space ray through the given NDC point.
func (c *Camera) RayFromNDC(ndc mgl32.Vec2) Ray {
	forward := c.Forward()
	right := c.Right()
	up := c.UpVector()

	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	tanHalfFov := float32(math.Tan(float64(mgl32.DegToRad(c.EffectiveFov())) / 2))

	dir := forward.Add(right.Mul(ndc.X() * aspect * tanHalfFov)).Add(up.Mul(ndc.Y() * tanHalfFov))
	return Ray{Origin: c.Position, Direction: dir.Normalize()}
}
