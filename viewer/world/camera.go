package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/entities"
	"github.com/gekko3d/scanview/viewer/scan"
)

type CameraMode int

const (
	ModeFree CameraMode = iota
	ModeSelectedPhoto
)

func (m CameraMode) String() string {
	if m == ModeSelectedPhoto {
		return "selected-photo"
	}
	return "free"
}

// cameraSnapshot is the free camera state saved while looking through a
// photo.
type cameraSnapshot struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Target   mgl32.Vec3
	Zoom     float32
}

type overlayState struct {
	pose   *scan.Pose
	camera *core.Camera
	plane  *entities.ImagePlane
}

func (w *World) Mode() CameraMode { return w.mode }

// SelectedPose returns the pose being looked through, or nil in free mode.
func (w *World) SelectedPose() *scan.Pose {
	if w.overlay == nil {
		return nil
	}
	return w.overlay.pose
}

func (w *World) OverlayCamera() *core.Camera {
	if w.overlay == nil {
		return nil
	}
	return w.overlay.camera
}

func (w *World) ImagePlane() *entities.ImagePlane {
	if w.overlay == nil {
		return nil
	}
	return w.overlay.plane
}

func (w *World) snapshotCamera() *cameraSnapshot {
	return &cameraSnapshot{
		Position: w.camera.Position,
		Rotation: w.camera.Rotation,
		Target:   w.controls.Target,
		Zoom:     w.camera.Zoom,
	}
}

// SetSelectedCamera enters photo mode on pose, or leaves it when pose is
// nil. When leaving with a previous pose the free camera is re-homed onto
// that pose instead of being restored.
func (w *World) SetSelectedCamera(pose, previous *scan.Pose) {
	if pose == nil {
		w.leavePhotoMode(previous)
		return
	}

	w.background = w.opts.OverlayBackground
	if w.cameraPoints != nil {
		w.cameraPoints.SetVisible(false)
	}
	if w.mode == ModeFree {
		w.saved = w.snapshotCamera()
		w.controls.Enabled = false
	}
	if w.overlay != nil {
		w.removeOverlay()
	}

	offset := w.viewerObjects.Transform.Position
	cam := core.NewCamera(w.ComputeDynamicFOV(), w.overlayAspect(), cameraNear, cameraFar)
	cam.Position = pose.Position.Add(offset)
	cam.Rotation = pose.ViewQuat()

	plane := w.newImagePlane(pose, cam)
	plane.Node().Transform.Position = pose.Position.Add(pose.Forward().Mul(scan.WorkingDistance))
	plane.Node().Transform.Rotation = cam.Rotation
	entities.Attach(w.viewerObjects, plane)

	w.overlay = &overlayState{pose: pose, camera: cam, plane: plane}
	w.mode = ModeSelectedPhoto
	w.clearTransient()
	w.log.Debugf("entered photo mode on pose %s", pose.Id)
}

// overlayAspect is the aspect of the rectangle the overlay is drawn into.
// The photo keeps its own aspect on the image plane, so a canvas of another
// shape shows background beside the photo or crops its sides.
func (w *World) overlayAspect() float32 {
	if !w.viewport.Empty() {
		return w.viewport.W / w.viewport.H
	}
	if w.width > 0 && w.height > 0 {
		return float32(w.width) / float32(w.height)
	}
	return 1
}

// newImagePlane sizes the quad so that the photo's height exactly fills the
// overlay view at the working distance.
func (w *World) newImagePlane(pose *scan.Pose, cam *core.Camera) *entities.ImagePlane {
	height := float32(2 * scan.WorkingDistance * math.Tan(float64(mgl32.DegToRad(cam.Fov))/2))
	width := height * cam.Aspect
	if pw, ph := pose.ImageSize(); pw > 0 && ph > 0 {
		width = height * float32(pw) / float32(ph)
	}

	var tex *core.Texture
	if w.opts.Textures != nil {
		tex = w.opts.Textures(pose)
	}
	if tex == nil {
		pw, ph := pose.ImageSize()
		tex = core.NewTexture(pw, ph)
	}
	return entities.NewImagePlane(tex, width, height)
}

func (w *World) removeOverlay() {
	if w.overlay == nil {
		return
	}
	entities.Detach(w.overlay.plane)
	w.overlay = nil
}

func (w *World) leavePhotoMode(previous *scan.Pose) {
	w.background = w.opts.Background
	if w.cameraPoints != nil {
		w.cameraPoints.SetVisible(w.layers.Cameras)
	}
	if w.mode == ModeFree {
		return
	}

	w.removeOverlay()
	w.mode = ModeFree
	w.viewport = Rect{}
	w.kit.SetResolution(float32(w.width), float32(w.height))

	switch {
	case previous != nil:
		w.rehome(previous)
	case w.saved != nil:
		w.camera.Position = w.saved.Position
		w.camera.Rotation = w.saved.Rotation
		w.camera.Zoom = w.saved.Zoom
		w.controls.Target = w.saved.Target
	}
	w.saved = nil
	w.controls.Enabled = true
	w.clearTransient()
	w.log.Debugf("left photo mode")
}

// rehome puts the free camera where pose was taken, looking the same way,
// with the orbit target a fixed distance ahead.
func (w *World) rehome(pose *scan.Pose) {
	offset := w.viewerObjects.Transform.Position
	w.camera.Position = pose.Position.Add(offset)
	w.camera.Rotation = pose.ViewQuat()
	w.camera.Zoom = 1
	w.controls.Target = w.camera.Position.Add(w.camera.Forward().Mul(w.opts.TargetDistance))
}

// clearTransient drops state tied to the previous view: the sphere preview
// and an anchored ruler.
func (w *World) clearTransient() {
	w.sphere = nil
	w.cancelRuler()
}
