// Package behaviors holds the pointer-driven state machines of the viewer.
// They know nothing about the scene; the world feeds them events and reads
// their results.
package behaviors

type EventKind int

const (
	EventDown EventKind = iota
	EventUp
	EventMove
	EventWheel
)

const (
	ButtonLeft   = 0
	ButtonMiddle = 1
	ButtonRight  = 2
)

// PointerEvent is a canvas-space pointer event. DX/DY carry the movement
// since the previous move event, DeltaY the wheel delta.
type PointerEvent struct {
	Kind   EventKind
	Button int
	X, Y   float32
	DX, DY float32
	DeltaY float32
}
