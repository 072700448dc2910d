// Package world owns the scene graph of the viewer: cameras and their two
// interaction modes, the scan entities, picking, selection and the ruler.
// A World is driven from a single goroutine.
package world

import (
	"errors"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/entities"
	"github.com/gekko3d/scanview/viewer/scan"
)

var ErrDisposed = errors.New("world: disposed")

// Logger is the subset of the application logger the world writes to.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Layers are per-category visibility flags.
type Layers struct {
	Mesh                bool `yaml:"mesh"`
	PointCloud          bool `yaml:"pointCloud"`
	SegmentedPointCloud bool `yaml:"segmentedPointCloud"`
	Skeleton            bool `yaml:"skeleton"`
	Angles              bool `yaml:"angles"`
	Cameras             bool `yaml:"cameras"`
	Workspace           bool `yaml:"workspace"`
}

func AllLayers() Layers {
	return Layers{true, true, true, true, true, true, true}
}

type Colors struct {
	Mesh             [4]float32 `yaml:"mesh"`
	PointCloud       [4]float32 `yaml:"pointCloud"`
	Skeleton         [4]float32 `yaml:"skeleton"`
	Angles           [4]float32 `yaml:"angles"`
	AnglesSelected   [4]float32 `yaml:"anglesSelected"`
	AnglesHovered    [4]float32 `yaml:"anglesHovered"`
	Workspace        [4]float32 `yaml:"workspace"`
	Camera           [4]float32 `yaml:"camera"`
	CameraHovered    [4]float32 `yaml:"cameraHovered"`
	CameraSelected   [4]float32 `yaml:"cameraSelected"`
	PointHighlighted [4]float32 `yaml:"pointHighlighted"`
	SelectionSphere  [4]float32 `yaml:"selectionSphere"`
	Ruler            [4]float32 `yaml:"ruler"`
}

func DefaultColors() Colors {
	return Colors{
		Mesh:             core.RGB(0x96c0a7),
		PointCloud:       core.RGB(0xf8de96),
		Skeleton:         core.RGB(0xd69b7a),
		Angles:           core.RGB(0x3a4d45),
		AnglesSelected:   core.RGB(0x84eee6),
		AnglesHovered:    core.RGB(0x00a960),
		Workspace:        core.RGB(0x5d6e65),
		Camera:           core.RGB(0xc4c4c4),
		CameraHovered:    core.RGB(0x00a960),
		CameraSelected:   core.RGB(0x84eee6),
		PointHighlighted: core.RGB(0xff2f62),
		SelectionSphere:  [4]float32{1, 0.18, 0.38, 0.6},
		Ruler:            core.RGB(0xffcc00),
	}
}

type Options struct {
	Renderer Renderer
	Logger   Logger
	Width    int
	Height   int

	Background        [4]float32
	OverlayBackground [4]float32
	Colors            Colors

	PointSize     float32
	LineWidth     float32
	MarkerSize    float32
	GridDivisions int

	// ProximityRadius bounds a region-growing step of proximity selection.
	ProximityRadius float32
	PointThreshold  float32
	LineThreshold   float32

	// HomePosition is where ResetControls puts the free camera.
	HomePosition mgl32.Vec3
	// TargetDistance is how far ahead of a pose the orbit target is put
	// when the free camera is re-homed onto it.
	TargetDistance float32

	// Textures returns the photo texture of a pose. It may return a texture
	// whose pixels are still loading.
	Textures func(p *scan.Pose) *core.Texture
}

func (o *Options) defaults() {
	if o.Renderer == nil {
		o.Renderer = &nopRenderer{}
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
	if o.Colors == (Colors{}) {
		o.Colors = DefaultColors()
	}
	if o.Background == ([4]float32{}) {
		o.Background = core.RGB(0xecf3f0)
	}
	if o.OverlayBackground == ([4]float32{}) {
		o.OverlayBackground = core.RGB(0x1f2426)
	}
	if o.PointSize <= 0 {
		o.PointSize = 1
	}
	if o.LineWidth <= 0 {
		o.LineWidth = 2
	}
	if o.MarkerSize <= 0 {
		o.MarkerSize = 15
	}
	if o.GridDivisions <= 0 {
		o.GridDivisions = entities.DefaultGridDivisions
	}
	if o.ProximityRadius <= 0 {
		o.ProximityRadius = 2
	}
	if o.PointThreshold <= 0 {
		o.PointThreshold = 1
	}
	if o.LineThreshold <= 0 {
		o.LineThreshold = 1
	}
	if o.HomePosition == (mgl32.Vec3{}) {
		o.HomePosition = mgl32.Vec3{0, -500, 300}
	}
	if o.TargetDistance <= 0 {
		o.TargetDistance = 100
	}
}

const (
	cameraNear = 1
	cameraFar  = 20000
	defaultFov = 50
)

type World struct {
	opts   Options
	log    Logger
	render Renderer

	scene         *core.Node
	viewerObjects *core.Node
	helpers       *core.Node

	camera   *core.Camera
	controls *OrbitControls
	overlay  *overlayState
	saved    *cameraSnapshot
	mode     CameraMode

	width, height int
	viewport      Rect
	zoomLevel     float32

	raycaster *core.Raycaster
	mouse     mgl32.Vec2

	kit          *entities.LineKit
	mesh         *entities.Mesh
	pointCloud   *entities.PointCloud
	segmented    *entities.SegmentedPointCloud
	skeleton     *entities.Skeleton
	angles       *entities.Angles
	workspaceEnt *entities.Workspace
	cameraPoints *entities.CameraPoints

	workspace   *scan.Workspace
	cameraModel *scan.CameraModel
	poses       []*scan.Pose

	layers     Layers
	colors     Colors
	background [4]float32

	hovered *scan.Pose
	onHover func(p *scan.Pose)

	sphere    *spherePreview
	ruler     Ruler
	rulerLine *core.Node
	scale     *float32

	disposed atomic.Bool
}

func New(opts Options) *World {
	opts.defaults()

	w := &World{
		opts:       opts,
		log:        opts.Logger,
		render:     opts.Renderer,
		scene:      core.NewGroup("scene"),
		raycaster:  core.NewRaycaster(),
		kit:        entities.NewLineKit(float32(opts.Width), float32(opts.Height)),
		layers:     AllLayers(),
		colors:     opts.Colors,
		background: opts.Background,
		zoomLevel:  1,
	}
	w.viewerObjects = core.NewGroup("viewerObjects")
	w.helpers = core.NewGroup("helpers")
	w.scene.Add(w.viewerObjects)
	w.scene.Add(w.helpers)

	w.raycaster.PointThreshold = opts.PointThreshold
	w.raycaster.LineThreshold = opts.LineThreshold

	w.camera = core.NewCamera(defaultFov, 1, cameraNear, cameraFar)
	w.controls = NewOrbitControls(w.camera)
	w.ResetControls()

	w.SetSize(opts.Width, opts.Height)
	return w
}

func (w *World) Scene() *core.Node { return w.scene }

// ViewerObjects is the group holding every scan entity.
func (w *World) ViewerObjects() *core.Node { return w.viewerObjects }

func (w *World) LineKit() *entities.LineKit { return w.kit }

func (w *World) Controls() *OrbitControls { return w.controls }

func (w *World) FreeCamera() *core.Camera { return w.camera }

// ActiveCamera is the camera frames are rendered and rays are cast from.
func (w *World) ActiveCamera() *core.Camera {
	if w.mode == ModeSelectedPhoto && w.overlay != nil {
		return w.overlay.camera
	}
	return w.camera
}

func (w *World) Background() [4]float32 { return w.background }

func (w *World) Size() (int, int) { return w.width, w.height }

// SetSize resizes the canvas. A zero size is ignored.
func (w *World) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	w.width, w.height = width, height
	w.render.SetSize(width, height)
	w.camera.Aspect = float32(width) / float32(height)
	if w.overlay != nil {
		w.overlay.camera.Aspect = w.overlayAspect()
	}
	if w.mode == ModeFree {
		w.kit.SetResolution(float32(width), float32(height))
	}
}

// Viewport returns the rectangle frames are drawn into: the whole canvas in
// free mode, the 2D transform rectangle in photo mode.
func (w *World) Viewport() Rect {
	if w.mode == ModeSelectedPhoto && !w.viewport.Empty() {
		return w.viewport
	}
	return Rect{W: float32(w.width), H: float32(w.height)}
}

// SetViewport applies the 2D overlay transform: the renderer viewport, the
// zoom dependent point size and the line resolution.
func (w *World) SetViewport(zoom, x, y, width, height float32) {
	if width <= 0 || height <= 0 {
		return
	}
	w.viewport = Rect{X: x, Y: y, W: width, H: height}
	w.zoomLevel = zoom
	if w.overlay != nil {
		w.overlay.camera.Aspect = w.overlayAspect()
	}
	if w.pointCloud != nil {
		w.pointCloud.SetZoomLevel(zoom)
	}
	if w.segmented != nil {
		w.segmented.SetZoomLevel(zoom)
	}
	w.kit.SetResolution(width, height)
}

func (w *World) frame() Frame {
	f := Frame{
		Scene:      w.scene,
		Camera:     w.ActiveCamera(),
		Background: w.background,
		Viewport:   w.Viewport(),
	}
	if w.sphere != nil {
		f.Gizmos = append(f.Gizmos, w.sphere.gizmo(w.colors.SelectionSphere))
	}
	return f
}

// Frame renders one frame. It is the body of the render loop; it does
// nothing once the world is disposed.
func (w *World) Frame() error {
	if w.disposed.Load() {
		return ErrDisposed
	}
	return w.render.Render(w.frame())
}

// Dispose stops the render loop and hover callbacks. It is safe to call
// from any goroutine; a frame already in progress completes.
func (w *World) Dispose() {
	w.disposed.Store(true)
}

func (w *World) Disposed() bool { return w.disposed.Load() }

// OnHover registers the hover callback, fired when the pose under the
// pointer changes.
func (w *World) OnHover(fn func(p *scan.Pose)) {
	w.onHover = fn
}

// SetCamera stores the intrinsics used for the photo overlay field of view.
func (w *World) SetCamera(model *scan.CameraModel) {
	w.cameraModel = model
}

func (w *World) CameraModel() *scan.CameraModel { return w.cameraModel }

// ComputeDynamicFOV returns the overlay field of view in degrees.
func (w *World) ComputeDynamicFOV() float32 {
	return scan.ComputeDynamicFOV(w.cameraModel)
}

// ResetControls puts the free camera back home, aimed at the origin.
func (w *World) ResetControls() {
	w.controls.Target = mgl32.Vec3{}
	w.camera.Position = w.opts.HomePosition
	w.camera.Zoom = 1
	w.controls.Update()
}

// SetWorkSpace rebuilds the workspace entity and moves the scan so the
// workspace box is centred on the origin.
func (w *World) SetWorkSpace(ws scan.Workspace) {
	if w.workspaceEnt != nil {
		w.detach(w.workspaceEnt)
	}
	w.workspace = &ws
	w.workspaceEnt = entities.NewWorkspace(w.kit, ws, w.opts.GridDivisions, w.colors.Workspace, 1)
	entities.Attach(w.viewerObjects, w.workspaceEnt)

	a := ws.Anchor()
	w.viewerObjects.Transform.Position = mgl32.Vec3{-float32(a[0]), -float32(a[1]), -float32(a[2])}
	w.workspaceEnt.SetVisible(w.layers.Workspace)
}

func (w *World) Workspace() *entities.Workspace { return w.workspaceEnt }

func (w *World) detach(e entities.Entity) {
	w.kit.Release(e.Node())
	entities.Detach(e)
}

func (w *World) SetMesh(geom *core.Geometry) {
	if w.mesh != nil {
		w.detach(w.mesh)
		w.mesh = nil
	}
	if geom == nil {
		return
	}
	w.mesh = entities.NewMesh(geom, w.colors.Mesh)
	entities.Attach(w.viewerObjects, w.mesh)
}

func (w *World) SetPointCloud(geom *core.Geometry) {
	if w.pointCloud != nil {
		w.detach(w.pointCloud)
		w.pointCloud = nil
	}
	if geom == nil {
		return
	}
	w.pointCloud = entities.NewPointCloud(geom, w.colors.PointCloud, w.opts.PointSize)
	w.pointCloud.SetZoomLevel(w.zoomLevel)
	entities.Attach(w.viewerObjects, w.pointCloud)
}

func (w *World) SetSegmentedPointCloud(geom *core.Geometry, labels []int32) {
	if w.segmented != nil {
		w.detach(w.segmented)
		w.segmented = nil
	}
	if geom == nil {
		return
	}
	w.segmented = entities.NewSegmentedPointCloud(geom, labels, w.opts.PointSize, w.colors.PointHighlighted)
	w.segmented.SetZoomLevel(w.zoomLevel)
	entities.Attach(w.viewerObjects, w.segmented)
}

func (w *World) SetSkeleton(s *scan.Skeleton) {
	if w.skeleton != nil {
		w.detach(w.skeleton)
		w.skeleton = nil
	}
	if s == nil {
		return
	}
	w.skeleton = entities.NewSkeleton(w.kit, s, w.colors.Skeleton, w.opts.LineWidth)
	entities.Attach(w.viewerObjects, w.skeleton)
}

func (w *World) SetAngles(a *scan.Angles) {
	if w.angles != nil {
		w.detach(w.angles)
		w.angles = nil
	}
	if a == nil {
		return
	}
	w.angles = entities.NewAngles(w.kit, a, w.colors.Angles, w.opts.LineWidth*2)
	entities.Attach(w.viewerObjects, w.angles)
}

func (w *World) SetCameraPoses(poses []*scan.Pose) {
	if w.cameraPoints != nil {
		w.detach(w.cameraPoints)
		w.cameraPoints = nil
	}
	w.poses = poses
	if w.hovered != nil {
		w.hovered = nil
		if w.onHover != nil {
			w.onHover(nil)
		}
	}
	if len(poses) == 0 {
		return
	}
	w.cameraPoints = entities.NewCameraPoints(w.kit, poses, w.opts.MarkerSize, w.cameraColors(), 1)
	entities.Attach(w.viewerObjects, w.cameraPoints)
	if w.mode == ModeSelectedPhoto {
		w.cameraPoints.SetVisible(false)
	}
}

func (w *World) Poses() []*scan.Pose { return w.poses }

func (w *World) Mesh() *entities.Mesh                               { return w.mesh }
func (w *World) PointCloud() *entities.PointCloud                   { return w.pointCloud }
func (w *World) SegmentedPointCloud() *entities.SegmentedPointCloud { return w.segmented }
func (w *World) Skeleton() *entities.Skeleton                       { return w.skeleton }
func (w *World) Angles() *entities.Angles                           { return w.angles }
func (w *World) CameraPoints() *entities.CameraPoints               { return w.cameraPoints }

// SetLayers applies the visibility flags to every entity. Calling it again
// with the same flags changes nothing.
func (w *World) SetLayers(l Layers) {
	w.layers = l
	if w.mesh != nil {
		w.mesh.SetVisible(l.Mesh)
	}
	if w.pointCloud != nil {
		w.pointCloud.SetVisible(l.PointCloud)
	}
	if w.segmented != nil {
		w.segmented.SetVisible(l.SegmentedPointCloud)
	}
	if w.skeleton != nil {
		w.skeleton.SetVisible(l.Skeleton)
	}
	if w.angles != nil {
		w.angles.SetVisible(l.Angles)
	}
	if w.workspaceEnt != nil {
		w.workspaceEnt.SetVisible(l.Workspace)
	}
	if w.cameraPoints != nil {
		// markers stay hidden while looking through a photo
		w.cameraPoints.SetVisible(l.Cameras && w.mode == ModeFree)
	}
}

func (w *World) Layers() Layers { return w.layers }

func (w *World) cameraColors() entities.CameraPointColors {
	return entities.CameraPointColors{
		Base:     w.colors.Camera,
		Hovered:  w.colors.CameraHovered,
		Selected: w.colors.CameraSelected,
	}
}

// SetColors recolours every entity.
func (w *World) SetColors(c Colors) {
	w.colors = c
	if w.mesh != nil {
		w.mesh.SetColor(c.Mesh)
	}
	if w.pointCloud != nil {
		w.pointCloud.SetColor(c.PointCloud)
	}
	if w.segmented != nil {
		w.segmented.SetHighlightColor(c.PointHighlighted)
	}
	if w.skeleton != nil {
		w.skeleton.SetColor(c.Skeleton)
	}
	if w.angles != nil {
		w.angles.SetColor(c.Angles)
	}
	if w.workspaceEnt != nil {
		w.workspaceEnt.SetColor(c.Workspace)
	}
	if w.cameraPoints != nil {
		w.cameraPoints.SetColors(w.cameraColors())
	}
}

func (w *World) Colors() Colors { return w.colors }

// SetHighlightedAngles paints the hovered organ and then the selected one,
// so selection wins when both are the same organ.
func (w *World) SetHighlightedAngles(selected, hovered *int) {
	if w.angles == nil {
		return
	}
	var idx []int
	if hovered != nil {
		idx = []int{*hovered}
	}
	w.angles.SetHighlighted(idx, w.colors.AnglesHovered)
	if selected != nil {
		w.angles.AddHighlight(*selected, w.colors.AnglesSelected)
	}
}

func (w *World) SetHighlightedPoints(indexes []int) {
	if w.segmented == nil {
		return
	}
	w.segmented.SetHighlighted(indexes)
}

// SetHighlightedPoses marks the hovered and selected pose markers.
func (w *World) SetHighlightedPoses(hovered, selected *scan.Pose) {
	if w.cameraPoints == nil {
		return
	}
	w.cameraPoints.SetHovered(hovered)
	w.cameraPoints.SetSelected(selected)
}
