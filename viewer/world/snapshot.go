package world

import (
	"fmt"
	"image"
)

// Snapshot renders one frame at width×height and returns it. The canvas
// size and camera aspect are restored afterwards.
func (w *World) Snapshot(width, height int) (image.Image, error) {
	if w.disposed.Load() {
		return nil, ErrDisposed
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid snapshot size %dx%d", width, height)
	}

	origW, origH := w.render.Size()
	cam := w.ActiveCamera()
	origAspect := cam.Aspect

	w.render.SetSize(width, height)
	if w.mode == ModeFree {
		cam.Aspect = float32(width) / float32(height)
	}
	defer func() {
		w.render.SetSize(origW, origH)
		cam.Aspect = origAspect
	}()

	f := w.frame()
	f.Viewport = Rect{W: float32(width), H: float32(height)}
	img, err := w.render.Capture(f)
	if err != nil {
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}
	return img, nil
}
