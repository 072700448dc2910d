package scanview

import (
	"errors"
	"slices"
	"time"

	"github.com/gekko3d/scanview/viewer/behaviors"
	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
	"github.com/gekko3d/scanview/viewer/world"
)

// FrameInput is what the window delivered since the previous pass.
type FrameInput struct {
	Events        []behaviors.PointerEvent
	Width, Height int
}

// applied is the part of the scene state the world currently shows.
type applied struct {
	scan       *scan.Scan
	mesh       *core.Geometry
	pointCloud *core.Geometry
	segmented  *SegmentedCloud
	layers     world.Layers
	colors     world.Colors

	selectedAngle  *int
	hoveredAngle   *int
	selectedPoints []int
	hoveredMarker  string
	selectedMarker string
	selectedPose   string
}

// Reconciler drives a World from successive SceneState values. It keeps
// the last applied state and only touches what changed.
type Reconciler struct {
	world    *world.World
	log      Logger
	textures *PhotoTextures

	view2d *behaviors.Viewport2D
	view3d *behaviors.Viewport3D

	applied applied
	started bool
	poses   map[string]*scan.Pose

	// lastPhoto is the pose id the 2D viewport was last reset for.
	lastPhoto string
	// inter is the interaction Apply is building; hover changes land there.
	inter *Interaction
}

type ReconcilerOptions struct {
	Logger   Logger
	Textures *PhotoTextures
	// Now is the clock of the click detector.
	Now         func() time.Time
	ClickWindow time.Duration
	ClickTravel float32
}

func NewReconciler(w *world.World, opts ReconcilerOptions) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = NewNopLogger()
	}
	r := &Reconciler{
		world:    w,
		log:      opts.Logger,
		textures: opts.Textures,
		poses:    map[string]*scan.Pose{},
	}
	r.view2d = behaviors.NewViewport2D(func() (float32, float32) {
		width, height := w.Size()
		return float32(width), float32(height)
	})
	r.view3d = behaviors.NewViewport3D(opts.Now)
	if opts.ClickWindow > 0 {
		r.view3d.Window = opts.ClickWindow
	}
	r.view3d.MaxTravel = opts.ClickTravel
	w.OnHover(r.hoverChanged)
	return r
}

func (r *Reconciler) hoverChanged(p *scan.Pose) {
	if r.inter == nil {
		return
	}
	if p != nil {
		r.inter.HoveredPose = p.Id
	} else {
		r.inter.HoveredPose = ""
	}
}

func (r *Reconciler) World() *world.World { return r.world }

func (r *Reconciler) Viewport2D() *behaviors.Viewport2D { return r.view2d }

// ResetFuncs returns the reset actions published to the store.
func (r *Reconciler) ResetFuncs() ResetFuncs {
	return ResetFuncs{
		Reset3D: r.world.ResetControls,
		Reset2D: func() { r.view2d.Reset(behaviors.ResetAll) },
	}
}

// Apply runs one reconciliation pass and returns what must be written
// back. After the world is disposed it returns st.Interaction unchanged.
func (r *Reconciler) Apply(st SceneState, in FrameInput) Outbound {
	out := Outbound{Scan: st.Scan, Interaction: st.Interaction}
	if r.world.Disposed() {
		return out
	}
	inter := &out.Interaction
	r.inter = inter
	defer func() { r.inter = nil }()

	r.world.SetSize(in.Width, in.Height)

	scanChanged := r.applyScan(st.Scan)
	installed := scanChanged
	if st.Mesh != r.applied.mesh || !r.started {
		r.world.SetMesh(st.Mesh)
		r.applied.mesh = st.Mesh
		installed = true
	}
	if st.PointCloud != r.applied.pointCloud || !r.started {
		r.world.SetPointCloud(st.PointCloud)
		r.applied.pointCloud = st.PointCloud
		installed = true
	}
	if st.Segmented != r.applied.segmented || !r.started {
		if st.Segmented != nil {
			r.world.SetSegmentedPointCloud(st.Segmented.Geometry, st.Segmented.Labels)
		} else {
			r.world.SetSegmentedPointCloud(nil, nil)
		}
		r.applied.segmented = st.Segmented
		r.applied.selectedPoints = nil
		installed = true
	}
	if installed || st.Layers != r.applied.layers {
		r.world.SetLayers(st.Layers)
		r.applied.layers = st.Layers
	}
	if installed || st.Colors != r.applied.colors {
		if st.Colors != (world.Colors{}) {
			r.world.SetColors(st.Colors)
		}
		r.applied.colors = st.Colors
	}
	r.started = true

	r.applyScale(inter.Scale)
	r.applyHighlights(*inter, installed)
	r.applySelectedCamera(inter.SelectedPose, scanChanged)
	r.applyViewport()

	for _, ev := range in.Events {
		r.handleEvent(ev, float32(in.Height), inter)
	}
	r.finishSelection(inter)

	if st.Snapshot != nil {
		out.SnapshotDone = true
		out.SnapshotURL = r.snapshot(*st.Snapshot)
	}
	return out
}

func (r *Reconciler) applyScan(s *scan.Scan) bool {
	if s == r.applied.scan && r.started {
		return false
	}
	r.applied.scan = s
	r.applied.hoveredMarker, r.applied.selectedMarker = "", ""
	clear(r.poses)
	if r.textures != nil {
		r.textures.Bind(s)
	}
	if s == nil {
		r.world.SetCameraPoses(nil)
		r.world.SetSkeleton(nil)
		r.world.SetAngles(nil)
		return true
	}

	if s.Workspace != nil {
		r.world.SetWorkSpace(*s.Workspace)
	}
	var poses []*scan.Pose
	if s.Camera != nil {
		r.world.SetCamera(s.Camera.Model)
		var err error
		if poses, err = s.Poses(); err != nil && !errors.Is(err, scan.ErrNoCamera) {
			r.log.Warnf("scan %s: %v", s.Id, err)
		}
	} else {
		r.world.SetCamera(nil)
	}
	for _, p := range poses {
		r.poses[p.Id] = p
	}
	r.world.SetCameraPoses(poses)
	r.world.SetSkeleton(s.Data.Skeleton)
	r.world.SetAngles(s.Data.Angles)
	r.world.ResetControls()
	r.log.Infof("scan %s applied (%d poses)", s.Id, len(poses))
	return true
}

func (r *Reconciler) applyScale(scale *float32) {
	if !floatPtrEqual(scale, r.world.Scale()) {
		r.world.SetScale(scale)
	}
}

func (r *Reconciler) applyHighlights(in Interaction, force bool) {
	if force || !intPtrEqual(in.SelectedAngle, r.applied.selectedAngle) || !intPtrEqual(in.HoveredAngle, r.applied.hoveredAngle) {
		r.world.SetHighlightedAngles(in.SelectedAngle, in.HoveredAngle)
		r.applied.selectedAngle, r.applied.hoveredAngle = in.SelectedAngle, in.HoveredAngle
	}
	if force || !slices.Equal(in.SelectedPoints, r.applied.selectedPoints) {
		r.world.SetHighlightedPoints(in.SelectedPoints)
		r.applied.selectedPoints = slices.Clone(in.SelectedPoints)
	}
	if force || in.HoveredPose != r.applied.hoveredMarker || in.SelectedPose != r.applied.selectedMarker {
		r.world.SetHighlightedPoses(r.poses[in.HoveredPose], r.poses[in.SelectedPose])
		r.applied.hoveredMarker, r.applied.selectedMarker = in.HoveredPose, in.SelectedPose
	}
}

// applySelectedCamera enters, switches or leaves photo mode. Leaving goes
// back through the previously shown pose unless the scan itself changed.
func (r *Reconciler) applySelectedCamera(id string, scanChanged bool) {
	if id == r.applied.selectedPose && !scanChanged {
		return
	}
	r.applied.selectedPose = id
	pose := r.poses[id]
	if id != "" && pose == nil {
		r.log.Warnf("selected pose %q is not part of the scan", id)
	}
	var previous *scan.Pose
	if !scanChanged {
		previous = r.world.SelectedPose()
	}
	if pose != nil || r.world.Mode() == world.ModeSelectedPhoto {
		r.world.SetSelectedCamera(pose, previous)
	}
	if pose != nil && pose.Id != r.lastPhoto {
		r.view2d.Reset(behaviors.ResetAll)
		r.lastPhoto = pose.Id
	}
}

func (r *Reconciler) applyViewport() {
	if r.world.Mode() != world.ModeSelectedPhoto {
		return
	}
	t := r.view2d.Transform()
	r.world.SetViewport(t.Zoom, t.MarginX, t.MarginY, t.Width, t.Height)
}

func (r *Reconciler) handleEvent(ev behaviors.PointerEvent, height float32, inter *Interaction) {
	photo := r.world.Mode() == world.ModeSelectedPhoto
	if photo {
		r.view2d.Handle(ev)
		r.applyViewport()
	} else {
		r.world.Controls().Handle(ev, height)
	}

	if ev.Kind != behaviors.EventWheel {
		r.world.SetMouse(ev.X, ev.Y)
	}
	click, released := r.view3d.Handle(ev)

	if ev.Kind == behaviors.EventMove {
		r.pointerMoved(inter)
	}
	if !released {
		return
	}
	switch {
	case click.Clicked:
		r.leftClick(inter)
	case click.RightClicked:
		if idx, ok := r.world.PickSegmentedPoint(); ok {
			inter.ClickedPoint = &idx
		}
	}
}

func (r *Reconciler) pointerMoved(inter *Interaction) {
	r.world.UpdateHover()
	if idx, ok := r.world.PickOrgan(); ok {
		inter.HoveredAngle = &idx
	} else {
		inter.HoveredAngle = nil
	}
	r.world.RulerMove()
	if inter.SelectionMethod == world.SelectSphere {
		r.advanceSelection(inter, world.SelectionInput{Moved: true})
	}
}

// leftClick resolves a click in priority order: pose marker, ruler,
// selection method, organ. The hover is picked again since the scene may
// have changed under a still pointer.
func (r *Reconciler) leftClick(inter *Interaction) {
	if p := r.world.UpdateHover(); p != nil {
		inter.SelectedPose = p.Id
		return
	}
	switch {
	case inter.Scaling:
		if res := r.world.RulerClick(world.RulerScaling); res.Done {
			inter.Scale = res.Scale
			inter.Scaling = false
		}
		return
	case inter.Measuring:
		if res := r.world.RulerClick(world.RulerMeasuring); res.Done {
			inter.Measurement = res.Measurement
			inter.Measuring = false
		}
		return
	case inter.SelectionMethod != world.SelectNone:
		r.advanceSelection(inter, world.SelectionInput{Clicked: true})
		return
	}
	if idx, ok := r.world.PickOrgan(); ok {
		inter.SelectedAngle = &idx
	} else {
		inter.SelectedAngle = nil
	}
}

// finishSelection completes the methods that need no further pointer input.
func (r *Reconciler) finishSelection(inter *Interaction) {
	if inter.SelectionMethod == world.SelectNone {
		return
	}
	r.advanceSelection(inter, world.SelectionInput{})
}

func (r *Reconciler) advanceSelection(inter *Interaction, in world.SelectionInput) {
	next, sel, done := r.world.AdvanceSelection(world.SelectionState{
		Method:       inter.SelectionMethod,
		ClickedPoint: inter.ClickedPoint,
	}, in)
	inter.SelectionMethod = next.Method
	inter.ClickedPoint = next.ClickedPoint
	if done {
		inter.SelectedPoints = sel
		r.world.SetHighlightedPoints(sel)
		r.applied.selectedPoints = slices.Clone(sel)
	}
}

func (r *Reconciler) snapshot(req SnapshotRequest) string {
	img, err := r.world.Snapshot(req.Width, req.Height)
	if err != nil {
		r.log.Errorf("snapshot: %v", err)
		return ""
	}
	url, err := EncodeDataURL(img)
	if err != nil {
		r.log.Errorf("snapshot: %v", err)
		return ""
	}
	return url
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
