package behaviors

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultClickWindow is the longest press that still counts as a click.
const DefaultClickWindow = 1000 * time.Millisecond

type ClickResult struct {
	Clicked      bool
	RightClicked bool
}

// Viewport3D tells clicks from drag releases. A release counts as a click
// when it follows a press of the same button within Window and, if
// MaxTravel is positive, the pointer moved no further than MaxTravel pixels
// in between.
type Viewport3D struct {
	Window    time.Duration
	MaxTravel float32

	now func() time.Time

	pressed       bool
	pressTime     time.Time
	pressedButton int
	pressPos      mgl32.Vec2
	travel        float32
	lastPos       mgl32.Vec2
}

func NewViewport3D(now func() time.Time) *Viewport3D {
	if now == nil {
		now = time.Now
	}
	return &Viewport3D{
		Window: DefaultClickWindow,
		now:    now,
	}
}

func (v *Viewport3D) MouseDown(button int, x, y float32) {
	v.pressed = true
	v.pressTime = v.now()
	v.pressedButton = button
	v.pressPos = mgl32.Vec2{x, y}
	v.lastPos = v.pressPos
	v.travel = 0
}

func (v *Viewport3D) MouseMove(x, y float32) {
	if !v.pressed {
		return
	}
	p := mgl32.Vec2{x, y}
	v.travel += p.Sub(v.lastPos).Len()
	v.lastPos = p
}

// MouseUp reports a click result, or false when the release ends a drag.
func (v *Viewport3D) MouseUp(button int, x, y float32) (ClickResult, bool) {
	if !v.pressed {
		return ClickResult{}, false
	}
	v.pressed = false
	v.travel += mgl32.Vec2{x, y}.Sub(v.lastPos).Len()

	if v.now().Sub(v.pressTime) >= v.Window {
		return ClickResult{}, false
	}
	if v.MaxTravel > 0 && v.travel > v.MaxTravel {
		return ClickResult{}, false
	}
	return ClickResult{
		Clicked:      button == ButtonLeft && v.pressedButton == ButtonLeft,
		RightClicked: button == ButtonRight && v.pressedButton == ButtonRight,
	}, true
}

func (v *Viewport3D) Handle(ev PointerEvent) (ClickResult, bool) {
	switch ev.Kind {
	case EventDown:
		v.MouseDown(ev.Button, ev.X, ev.Y)
	case EventMove:
		v.MouseMove(ev.X, ev.Y)
	case EventUp:
		return v.MouseUp(ev.Button, ev.X, ev.Y)
	}
	return ClickResult{}, false
}
