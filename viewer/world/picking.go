package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
)

// SetMouse records the pointer position in canvas pixels. It is mapped
// through the current viewport rectangle to normalized device coordinates.
func (w *World) SetMouse(x, y float32) {
	vp := w.Viewport()
	if vp.Empty() {
		return
	}
	w.mouse = mgl32.Vec2{
		(x-vp.X)/vp.W*2 - 1,
		-((y-vp.Y)/vp.H*2 - 1),
	}
}

// Mouse returns the pointer in normalized device coordinates.
func (w *World) Mouse() mgl32.Vec2 { return w.mouse }

// Ray returns the pick ray through the pointer.
func (w *World) Ray() core.Ray {
	return w.ActiveCamera().RayFromNDC(w.mouse)
}

// CastRayFromMouse intersects the pick ray with the given subtrees, nearest
// hit first. Nil targets are skipped.
func (w *World) CastRayFromMouse(targets ...*core.Node) []core.Intersection {
	var nodes []*core.Node
	for _, t := range targets {
		if t != nil {
			nodes = append(nodes, t)
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	w.raycaster.SetFromCamera(w.mouse, w.ActiveCamera())
	return w.raycaster.IntersectObjects(nodes, true)
}

// PickOrgan returns the index of the organ under the pointer.
func (w *World) PickOrgan() (int, bool) {
	if w.angles == nil {
		return 0, false
	}
	for _, hit := range w.CastRayFromMouse(w.angles.Group()) {
		if idx, ok := w.angles.OrganAt(hit.Node); ok {
			return idx, true
		}
	}
	return 0, false
}

// PickSegmentedPoint returns the index of the segmented point under the
// pointer.
func (w *World) PickSegmentedPoint() (int, bool) {
	if w.segmented == nil {
		return 0, false
	}
	hits := w.CastRayFromMouse(w.segmented.Node())
	if len(hits) == 0 {
		return 0, false
	}
	return hits[0].Index, true
}

// PickCameraPose returns the pose whose marker is under the pointer. Markers
// are not pickable while looking through a photo.
func (w *World) PickCameraPose() *scan.Pose {
	if w.cameraPoints == nil || w.mode != ModeFree {
		return nil
	}
	for _, hit := range w.CastRayFromMouse(w.cameraPoints.Node()) {
		if p, ok := w.cameraPoints.PoseAt(hit.Node); ok {
			return p
		}
	}
	return nil
}

// UpdateHover re-picks the hovered pose and fires the hover callback when
// it changed.
func (w *World) UpdateHover() *scan.Pose {
	if w.disposed.Load() {
		return w.hovered
	}
	p := w.PickCameraPose()
	if poseId(p) != poseId(w.hovered) {
		w.hovered = p
		if w.onHover != nil {
			w.onHover(p)
		}
	}
	return w.hovered
}

func (w *World) Hovered() *scan.Pose { return w.hovered }

func poseId(p *scan.Pose) string {
	if p == nil {
		return ""
	}
	return p.Id
}

// hitOrPlane returns the first scene hit under the pointer or, failing
// that, the projection onto the plane through the origin facing the camera.
func (w *World) hitOrPlane() (mgl32.Vec3, bool) {
	if hits := w.CastRayFromMouse(w.viewerObjects); len(hits) > 0 {
		return hits[0].Point, true
	}
	cam := w.ActiveCamera()
	plane := core.PlaneFromNormalAndPoint(cam.Forward(), mgl32.Vec3{})
	return w.Ray().IntersectPlane(plane)
}
