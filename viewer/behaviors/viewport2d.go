package behaviors

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	MinZoom2D = 1
	MaxZoom2D = 15

	wheelStep = 200
)

type lastEvent int

const (
	lastNone lastEvent = iota
	lastPan
	lastZoom
)

// Transform2D places the photo overlay: the image is drawn Width×Height
// pixels large, offset by MarginX/MarginY from the container's top left.
type Transform2D struct {
	Zoom    float32
	MarginX float32
	MarginY float32
	Width   float32
	Height  float32
}

type ResetOptions struct {
	Center bool
	Zoom   bool
}

// ResetAll resets both axes.
var ResetAll = ResetOptions{Center: true, Zoom: true}

// Viewport2D turns drags and wheel events into a pan/zoom transform around a
// centre point expressed in unscaled container coordinates.
type Viewport2D struct {
	getSize func() (w, h float32)

	dragging     bool
	zoom         float32
	center       mgl32.Vec2
	centerSet    bool
	pendingDelta mgl32.Vec2
	last         lastEvent

	transform Transform2D
}

func NewViewport2D(getSize func() (w, h float32)) *Viewport2D {
	v := &Viewport2D{
		getSize: getSize,
		zoom:    1,
	}
	v.recompute()
	return v
}

func (v *Viewport2D) Zoom() float32 { return v.zoom }

func (v *Viewport2D) Center() mgl32.Vec2 { return v.center }

func (v *Viewport2D) Dragging() bool { return v.dragging }

func (v *Viewport2D) Transform() Transform2D { return v.transform }

func (v *Viewport2D) MouseDown() {
	v.dragging = true
	v.recompute()
}

func (v *Viewport2D) MouseUp() {
	v.dragging = false
	v.recompute()
}

func (v *Viewport2D) MouseMove(dx, dy float32) {
	if !v.dragging {
		return
	}
	v.pendingDelta = v.pendingDelta.Add(mgl32.Vec2{dx, dy})
	v.last = lastPan
	v.recompute()
}

func (v *Viewport2D) Wheel(deltaY float32) {
	z := clampZoom(v.zoom - deltaY/wheelStep)
	if z != v.zoom {
		v.zoom = z
		v.last = lastZoom
	}
	v.recompute()
}

func (v *Viewport2D) Handle(ev PointerEvent) {
	switch ev.Kind {
	case EventDown:
		v.MouseDown()
	case EventUp:
		v.MouseUp()
	case EventMove:
		v.MouseMove(ev.DX, ev.DY)
	case EventWheel:
		v.Wheel(ev.DeltaY)
	}
}

// Reset restores the selected axes to their defaults: zoom 1 and the
// midpoint of the container as measured now.
func (v *Viewport2D) Reset(opts ResetOptions) {
	if opts.Zoom {
		v.zoom = 1
	}
	if opts.Center {
		w, h := v.size()
		v.center = mgl32.Vec2{w / 2, h / 2}
		v.centerSet = w > 0 && h > 0
	}
	v.pendingDelta = mgl32.Vec2{}
	v.last = lastNone
	v.recompute()
}

func (v *Viewport2D) size() (float32, float32) {
	if v.getSize == nil {
		return 0, 0
	}
	return v.getSize()
}

func (v *Viewport2D) recompute() {
	w, h := v.size()
	if w <= 0 || h <= 0 {
		return
	}
	if !v.centerSet {
		v.center = mgl32.Vec2{w / 2, h / 2}
		v.centerSet = true
	}
	if v.last == lastPan {
		v.center = v.center.Sub(v.pendingDelta.Mul(1 / v.zoom))
		v.pendingDelta = mgl32.Vec2{}
	}
	v.transform = Transform2D{
		Zoom:    v.zoom,
		MarginX: w/2 - v.center.X()*v.zoom,
		MarginY: h/2 - v.center.Y()*v.zoom,
		Width:   w * v.zoom,
		Height:  h * v.zoom,
	}
}

func clampZoom(z float32) float32 {
	z = mgl32.Clamp(z, MinZoom2D, MaxZoom2D)
	return float32(math.Round(float64(z)*100) / 100)
}
