package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/behaviors"
	"github.com/gekko3d/scanview/viewer/core"
)

// OrbitControls rotate, pan and dolly a camera around a target point while
// keeping the camera's Up axis level.
type OrbitControls struct {
	Camera  *core.Camera
	Target  mgl32.Vec3
	Enabled bool

	RotateSpeed float32 // degrees per pixel
	PanSpeed    float32
	DollySpeed  float32
	MinDistance float32
	MaxDistance float32

	rotating bool
	panning  bool
}

func NewOrbitControls(cam *core.Camera) *OrbitControls {
	c := &OrbitControls{
		Camera:      cam,
		Enabled:     true,
		RotateSpeed: 0.4,
		PanSpeed:    1,
		DollySpeed:  0.1,
		MinDistance: 1,
		MaxDistance: 100000,
	}
	c.Update()
	return c
}

func (c *OrbitControls) Distance() float32 {
	return c.Camera.Position.Sub(c.Target).Len()
}

// Update re-aims the camera at the target.
func (c *OrbitControls) Update() {
	c.Camera.LookAt(c.Target)
}

// Orbit rotates the camera around the target by the given angles in
// degrees: delX around Up, delY towards or away from Up.
func (c *OrbitControls) Orbit(delX, delY float32) {
	up := c.Camera.Up.Normalize()
	offset := c.Camera.Position.Sub(c.Target)
	dist := offset.Len()
	if dist < 1e-9 {
		return
	}

	yaw := mgl32.QuatRotate(mgl32.DegToRad(-delX), up)
	offset = yaw.Rotate(offset)

	// keep the polar angle away from the poles so LookAt stays defined
	polar := float32(math.Acos(float64(mgl32.Clamp(offset.Normalize().Dot(up), -1, 1))))
	newPolar := mgl32.Clamp(polar-mgl32.DegToRad(delY), 0.01, math.Pi-0.01)
	right := up.Cross(offset)
	if right.Len() > 1e-9 {
		pitch := mgl32.QuatRotate(newPolar-polar, right.Normalize())
		offset = pitch.Rotate(offset)
	}

	c.Camera.Position = c.Target.Add(offset.Normalize().Mul(dist))
	c.Update()
}

// Pan moves camera and target together in the view plane. Deltas are in
// pixels for a viewport of the given height.
func (c *OrbitControls) Pan(dx, dy, viewportHeight float32) {
	if viewportHeight <= 0 {
		return
	}
	fov := mgl32.DegToRad(c.Camera.EffectiveFov())
	worldPerPixel := 2 * c.Distance() * float32(math.Tan(float64(fov)/2)) / viewportHeight * c.PanSpeed
	move := c.Camera.Right().Mul(-dx * worldPerPixel).Add(c.Camera.UpVector().Mul(dy * worldPerPixel))
	c.Camera.Position = c.Camera.Position.Add(move)
	c.Target = c.Target.Add(move)
}

// Dolly scales the camera distance; positive steps move away.
func (c *OrbitControls) Dolly(steps float32) {
	offset := c.Camera.Position.Sub(c.Target)
	dist := offset.Len()
	if dist < 1e-9 {
		return
	}
	scale := float32(math.Pow(float64(1+c.DollySpeed), float64(steps)))
	newDist := mgl32.Clamp(dist*scale, c.MinDistance, c.MaxDistance)
	c.Camera.Position = c.Target.Add(offset.Mul(newDist / dist))
}

// Handle drives the controls from pointer events: left drag orbits, middle
// or right drag pans, the wheel dollies.
func (c *OrbitControls) Handle(ev behaviors.PointerEvent, viewportHeight float32) {
	if !c.Enabled {
		c.rotating, c.panning = false, false
		return
	}
	switch ev.Kind {
	case behaviors.EventDown:
		switch ev.Button {
		case behaviors.ButtonLeft:
			c.rotating = true
		case behaviors.ButtonMiddle, behaviors.ButtonRight:
			c.panning = true
		}
	case behaviors.EventUp:
		c.rotating, c.panning = false, false
	case behaviors.EventMove:
		if c.rotating {
			c.Orbit(ev.DX*c.RotateSpeed, ev.DY*c.RotateSpeed)
		} else if c.panning {
			c.Pan(ev.DX, ev.DY, viewportHeight)
		}
	case behaviors.EventWheel:
		c.Dolly(ev.DeltaY / 100)
	}
}
