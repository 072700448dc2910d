package scanview

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/scanview/viewer/behaviors"
)

const (
	KeyEscape int = iota
	KeyR
	KeyS
	KeyP
	KeyL
	KeyO
	KeyM
	KeyC
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	keyCount
)

// wheelStep converts one scroll notch into browser style wheel delta.
const wheelStep = 100

type InputModule struct{}

// Input is the per-frame keyboard state plus the pointer events received
// since the previous frame, in arrival order.
type Input struct {
	Pressed      [keyCount]bool
	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool

	MouseX, MouseY float64
	Events         []behaviors.PointerEvent

	WindowWidth, WindowHeight int

	pending []behaviors.PointerEvent
	hasPos  bool
	bound   bool
}

func (mod InputModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Input{})
	cmd.UseSystem(System(inputSystem).InStage(PreUpdate))
}

func (in *Input) cursorMoved(x, y float64) {
	var dx, dy float64
	if in.hasPos {
		dx, dy = x-in.MouseX, y-in.MouseY
	}
	in.MouseX, in.MouseY, in.hasPos = x, y, true
	in.pending = append(in.pending, behaviors.PointerEvent{
		Kind: behaviors.EventMove,
		X:    float32(x), Y: float32(y),
		DX: float32(dx), DY: float32(dy),
	})
}

func (in *Input) buttonChanged(button int, pressed bool) {
	kind := behaviors.EventUp
	if pressed {
		kind = behaviors.EventDown
	}
	in.pending = append(in.pending, behaviors.PointerEvent{
		Kind:   kind,
		Button: button,
		X:      float32(in.MouseX),
		Y:      float32(in.MouseY),
	})
}

func (in *Input) scrolled(yoff float64) {
	in.pending = append(in.pending, behaviors.PointerEvent{
		Kind:   behaviors.EventWheel,
		X:      float32(in.MouseX),
		Y:      float32(in.MouseY),
		DeltaY: float32(-yoff * wheelStep),
	})
}

// flush publishes the events gathered since the last frame.
func (in *Input) flush() {
	in.Events = append(in.Events[:0], in.pending...)
	in.pending = in.pending[:0]
}

func glfwButton(b glfw.MouseButton) (int, bool) {
	switch b {
	case glfw.MouseButtonLeft:
		return behaviors.ButtonLeft, true
	case glfw.MouseButtonMiddle:
		return behaviors.ButtonMiddle, true
	case glfw.MouseButtonRight:
		return behaviors.ButtonRight, true
	}
	return 0, false
}

func (in *Input) bind(win *glfw.Window) {
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		in.cursorMoved(x, y)
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, b glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if btn, ok := glfwButton(b); ok && action != glfw.Repeat {
			in.buttonChanged(btn, action == glfw.Press)
		}
	})
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		in.scrolled(yoff)
	})
	in.bound = true
}

func inputSystem(s *WindowState, input *Input) {
	if !input.bound {
		input.bind(s.windowGlfw)
	}

	glfw.PollEvents()
	input.flush()

	for key, glfwKey := range keyToGlfw {
		action := s.windowGlfw.GetKey(glfwKey)
		input.setKey(key, action == glfw.Press)
	}

	input.WindowWidth, input.WindowHeight = s.windowGlfw.GetFramebufferSize()
	s.WindowWidth, s.WindowHeight = input.WindowWidth, input.WindowHeight
}

func (in *Input) setKey(key int, down bool) {
	in.JustPressed[key] = down && !in.Pressed[key]
	in.JustReleased[key] = !down && in.Pressed[key]
	in.Pressed[key] = down
}

var keyToGlfw = map[int]glfw.Key{
	KeyEscape: glfw.KeyEscape,
	KeyR:      glfw.KeyR,
	KeyS:      glfw.KeyS,
	KeyP:      glfw.KeyP,
	KeyL:      glfw.KeyL,
	KeyO:      glfw.KeyO,
	KeyM:      glfw.KeyM,
	KeyC:      glfw.KeyC,
	Key1:      glfw.Key1,
	Key2:      glfw.Key2,
	Key3:      glfw.Key3,
	Key4:      glfw.Key4,
	Key5:      glfw.Key5,
	Key6:      glfw.Key6,
	Key7:      glfw.Key7,
	Key7:      glfw.Key7,
}
