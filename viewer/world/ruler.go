package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
)

type RulerMode int

const (
	RulerScaling RulerMode = iota
	RulerMeasuring
)

// Ruler is the two-click distance tool: Anchor, any number of Moves, then
// Finish.
type Ruler struct {
	anchored   bool
	start, end mgl32.Vec3
}

func (r *Ruler) Anchored() bool { return r.anchored }

func (r *Ruler) Anchor(p mgl32.Vec3) {
	r.anchored = true
	r.start, r.end = p, p
}

func (r *Ruler) Move(p mgl32.Vec3) {
	if r.anchored {
		r.end = p
	}
}

// Finish ends the measurement at p and returns its length.
func (r *Ruler) Finish(p mgl32.Vec3) float32 {
	r.end = p
	r.anchored = false
	return r.end.Sub(r.start).Len()
}

func (r *Ruler) Segment() (mgl32.Vec3, mgl32.Vec3) { return r.start, r.end }

func (r *Ruler) Cancel() { r.anchored = false }

// RulerResult reports a finished ruler gesture.
type RulerResult struct {
	Done bool
	// Scale is set after a scaling gesture.
	Scale *float32
	// Measurement is set after a measuring gesture when a scale exists.
	Measurement *float32
}

// SetScale sets or clears the scene-units-per-real-unit factor.
func (w *World) SetScale(scale *float32) {
	w.scale = scale
}

func (w *World) Scale() *float32 { return w.scale }

func (w *World) RulerAnchored() bool { return w.ruler.Anchored() }

// RulerLine returns the visible ruler segment node, if any.
func (w *World) RulerLine() *core.Node { return w.rulerLine }

// RulerClick handles a click while scaling or measuring. The first click
// anchors the ruler, the second finishes it.
func (w *World) RulerClick(mode RulerMode) RulerResult {
	p, ok := w.hitOrPlane()
	if !ok {
		return RulerResult{}
	}
	if !w.ruler.Anchored() {
		w.ruler.Anchor(p)
		w.rebuildRulerLine()
		return RulerResult{}
	}

	dist := w.ruler.Finish(p)
	w.removeRulerLine()

	switch mode {
	case RulerScaling:
		s := dist
		w.scale = &s
		return RulerResult{Done: true, Scale: &s}
	case RulerMeasuring:
		return RulerResult{Done: true, Measurement: w.EndMeasure(dist)}
	}
	return RulerResult{Done: true}
}

// EndMeasure converts a scene distance into real units, or nil without a
// scale.
func (w *World) EndMeasure(dist float32) *float32 {
	if w.scale == nil || *w.scale == 0 {
		return nil
	}
	m := dist / *w.scale
	return &m
}

// RulerMove follows the pointer with the free end of an anchored ruler.
func (w *World) RulerMove() {
	if !w.ruler.Anchored() {
		return
	}
	p, ok := w.hitOrPlane()
	if !ok {
		return
	}
	w.ruler.Move(p)
	w.rebuildRulerLine()
}

// rebuildRulerLine replaces the line node; geometry is never edited in
// place.
func (w *World) rebuildRulerLine() {
	w.removeRulerLine()
	a, b := w.ruler.Segment()
	w.rulerLine = w.kit.NewSegments("ruler", []mgl32.Vec3{a, b}, w.colors.Ruler, w.opts.LineWidth)
	w.rulerLine.Material.DepthTest = false
	w.helpers.Add(w.rulerLine)
}

func (w *World) removeRulerLine() {
	if w.rulerLine == nil {
		return
	}
	w.kit.Release(w.rulerLine)
	w.rulerLine.Detach()
	w.rulerLine = nil
}

func (w *World) cancelRuler() {
	w.ruler.Cancel()
	w.removeRulerLine()
}
