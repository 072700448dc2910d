package world

import (
	"image"

	"github.com/gekko3d/scanview/viewer/core"
)

// Rect is a viewport rectangle in canvas pixels, origin top left.
type Rect struct {
	X, Y, W, H float32
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Frame is everything a renderer needs to draw one image.
type Frame struct {
	Scene      *core.Node
	Camera     *core.Camera
	Background [4]float32
	Viewport   Rect
	Gizmos     []core.Gizmo
}

// Renderer draws frames onto a canvas. Implementations release GPU copies
// of nodes that no longer appear in the rendered scene.
type Renderer interface {
	SetSize(width, height int)
	Size() (width, height int)
	Render(f Frame) error
	// Capture renders f offscreen at the current size and reads it back.
	Capture(f Frame) (image.Image, error)
}

type nopRenderer struct {
	w, h int
}

func (r *nopRenderer) SetSize(w, h int)   { r.w, r.h = w, h }
func (r *nopRenderer) Size() (int, int)   { return r.w, r.h }
func (r *nopRenderer) Render(Frame) error { return nil }
func (r *nopRenderer) Capture(Frame) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, r.w, r.h)), nil
}
