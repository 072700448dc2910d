package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
)

var ErrUnknownSelectionMethod = errors.New("world: unknown selection method")

// SelectionMethod is how a clicked segmented point grows into a selection.
type SelectionMethod string

const (
	SelectNone      SelectionMethod = ""
	SelectProximity SelectionMethod = "proximity"
	SelectSameLabel SelectionMethod = "same label"
	SelectSphere    SelectionMethod = "sphere"
	SelectSphereEnd SelectionMethod = "sphere end"
)

func ParseSelectionMethod(s string) (SelectionMethod, error) {
	switch m := SelectionMethod(s); m {
	case SelectNone, SelectProximity, SelectSameLabel, SelectSphere, SelectSphereEnd:
		return m, nil
	}
	return SelectNone, fmt.Errorf("%w: %q", ErrUnknownSelectionMethod, s)
}

// SelectionState is the externally owned part of the selection machine.
type SelectionState struct {
	Method       SelectionMethod
	ClickedPoint *int
}

type SelectionInput struct {
	Clicked bool
	Moved   bool
}

type spherePreview struct {
	center mgl32.Vec3 // world space
	radius float32
}

func (s *spherePreview) gizmo(color [4]float32) core.Gizmo {
	return core.NewSphereGizmo(s.center, s.radius, color)
}

// SelectionSphere returns the current preview sphere in world space.
func (w *World) SelectionSphere() (center mgl32.Vec3, radius float32, ok bool) {
	if w.sphere == nil {
		return mgl32.Vec3{}, 0, false
	}
	return w.sphere.center, w.sphere.radius, true
}

// AdvanceSelection runs one step of the selection machine. It returns the
// next state and, when a selection was produced, the selected point indexes
// sorted ascending. Every produced selection clears both the method and the
// clicked point. Without a clicked point nothing happens.
func (w *World) AdvanceSelection(state SelectionState, in SelectionInput) (SelectionState, []int, bool) {
	if state.Method == SelectNone || state.ClickedPoint == nil {
		return state, nil, false
	}
	if w.segmented == nil {
		return state, nil, false
	}
	clicked := *state.ClickedPoint
	positions := w.segmented.Positions()
	if clicked < 0 || clicked >= len(positions) {
		w.log.Warnf("clicked point %d out of range, clearing selection", clicked)
		return SelectionState{}, nil, false
	}

	done := SelectionState{}
	switch state.Method {
	case SelectProximity:
		return done, w.selectProximity(clicked), true

	case SelectSameLabel:
		return done, w.selectSameLabel(clicked), true

	case SelectSphere:
		center := w.segmented.Node().WorldMatrix().Mul4x1(positions[clicked].Vec4(1)).Vec3()
		if in.Moved || w.sphere == nil {
			if p, ok := w.hitOrPlane(); ok {
				w.sphere = &spherePreview{center: center, radius: p.Sub(center).Len()}
			}
		}
		if in.Clicked && w.sphere != nil {
			return SelectionState{Method: SelectSphereEnd, ClickedPoint: state.ClickedPoint}, nil, false
		}
		return state, nil, false

	case SelectSphereEnd:
		var sel []int
		if w.sphere != nil {
			sel = w.selectSphere(w.sphere.center, w.sphere.radius)
		}
		w.sphere = nil
		return done, sel, true
	}

	w.log.Warnf("unknown selection method %q, clearing", state.Method)
	return done, nil, false
}

// selectProximity grows a region from clicked over points of the same label
// closer than ProximityRadius to a point already in the region.
func (w *World) selectProximity(clicked int) []int {
	label, _ := w.segmented.Label(clicked)
	positions := w.segmented.Positions()
	grid := w.segmented.Grid(w.opts.ProximityRadius)

	visited := map[int]struct{}{clicked: {}}
	queue := []int{clicked}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range grid.QueryRadius(positions[cur], w.opts.ProximityRadius) {
			if _, seen := visited[n]; seen {
				continue
			}
			if l, _ := w.segmented.Label(n); l != label {
				continue
			}
			visited[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return sortedKeys(visited)
}

func (w *World) selectSameLabel(clicked int) []int {
	label, _ := w.segmented.Label(clicked)
	var out []int
	for i, l := range w.segmented.Labels() {
		if l == label {
			out = append(out, i)
		}
	}
	return out
}

func (w *World) selectSphere(center mgl32.Vec3, radius float32) []int {
	local := w.segmented.Node().WorldInverse().Mul4x1(center.Vec4(1)).Vec3()
	out := w.segmented.Grid(w.opts.ProximityRadius).QueryRadius(local, radius)
	slices.Sort(out)
	return out
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
