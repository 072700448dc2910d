package world

import (
	"errors"
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
)

type fakeRenderer struct {
	w, h     int
	frames   int
	captures []image.Point
	sizes    []image.Point
}

func (r *fakeRenderer) SetSize(w, h int) {
	r.w, r.h = w, h
	r.sizes = append(r.sizes, image.Pt(w, h))
}

func (r *fakeRenderer) Size() (int, int) { return r.w, r.h }

func (r *fakeRenderer) Render(Frame) error {
	r.frames++
	return nil
}

func (r *fakeRenderer) Capture(Frame) (image.Image, error) {
	r.captures = append(r.captures, image.Pt(r.w, r.h))
	return image.NewRGBA(image.Rect(0, 0, r.w, r.h)), nil
}

func newTestWorld(t *testing.T, opts Options) (*World, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	opts.Renderer = r
	if opts.Width == 0 {
		opts.Width, opts.Height = 800, 600
	}
	return New(opts), r
}

// pointAt moves the pointer over the world-space point p.
func pointAt(t *testing.T, w *World, p mgl32.Vec3) {
	t.Helper()
	ndc, ok := w.ActiveCamera().Project(p)
	require.True(t, ok, "point %v behind the camera", p)
	vp := w.Viewport()
	w.SetMouse(vp.X+(ndc.X()+1)/2*vp.W, vp.Y+(1-ndc.Y())/2*vp.H)
}

func testPoses() []*scan.Pose {
	model := &scan.CameraModel{Model: "SIMPLE_RADIAL", Width: 1600, Height: 1200, Params: []float64{1100}}
	down := [3][3]float64{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}}
	return []*scan.Pose{
		scan.NewPose(0, scan.RawPose{PhotoUri: "images/00000_rgb.jpg", Rotmat: down, Tvec: [3]float64{0, 0, 400}}, model),
		scan.NewPose(1, scan.RawPose{PhotoUri: "images/00001_rgb.jpg", Rotmat: down, Tvec: [3]float64{50, 0, 400}}, model),
	}
}

func TestCameraModeRoundTrip(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	poses := testPoses()
	w.SetCamera(poses[0].Model)
	w.SetCameraPoses(poses)

	w.Controls().Orbit(30, 10)
	w.FreeCamera().Zoom = 1.7
	before := w.snapshotCamera()

	w.SetSelectedCamera(poses[0], nil)
	require.Equal(t, ModeSelectedPhoto, w.Mode())
	assert.False(t, w.Controls().Enabled)
	assert.Same(t, w.OverlayCamera(), w.ActiveCamera())
	assert.Equal(t, w.opts.OverlayBackground, w.Background())
	assert.False(t, w.CameraPoints().Visible(), "markers hidden in photo mode")
	require.NotNil(t, w.ImagePlane())
	assert.True(t, w.ViewerObjects().Contains(w.ImagePlane().Node()))
	assert.InDelta(t, scan.ComputeDynamicFOV(poses[0].Model), w.OverlayCamera().Fov, 1e-4)

	w.SetSelectedCamera(nil, nil)
	require.Equal(t, ModeFree, w.Mode())
	cam := w.FreeCamera()
	assert.True(t, cam.Position.ApproxEqualThreshold(before.Position, 1e-4))
	assert.True(t, cam.Rotation.ApproxEqualThreshold(before.Rotation, 1e-4))
	assert.Equal(t, before.Zoom, cam.Zoom)
	assert.True(t, w.Controls().Target.ApproxEqualThreshold(before.Target, 1e-4))
	assert.True(t, w.Controls().Enabled)
	assert.True(t, w.CameraPoints().Visible())
	assert.Nil(t, w.ImagePlane())
	assert.Equal(t, w.opts.Background, w.Background())
}

func TestOverlayAspectFollowsViewport(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	model := &scan.CameraModel{Model: "SIMPLE_RADIAL", Width: 1500, Height: 1000, Params: []float64{1100}}
	down := [3][3]float64{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}}
	pose := scan.NewPose(0, scan.RawPose{PhotoUri: "images/00000_rgb.jpg", Rotmat: down, Tvec: [3]float64{0, 0, 400}}, model)
	w.SetCamera(model)
	w.SetCameraPoses([]*scan.Pose{pose})

	w.SetSelectedCamera(pose, nil)
	w.SetViewport(2, -400, -300, 1600, 1200)
	vp := w.Viewport()
	assert.InDelta(t, vp.W/vp.H, w.OverlayCamera().Aspect, 1e-5)

	pw, ph := w.ImagePlane().Size()
	assert.InDelta(t, 1.5, pw/ph, 1e-4, "the photo keeps its own aspect")

	// the photo fills the height and overflows the narrower canvas evenly
	corner := w.ImagePlane().Node().WorldMatrix().Mul4x1(mgl32.Vec4{pw / 2, ph / 2, 0, 1}).Vec3()
	ndc, ok := w.OverlayCamera().Project(corner)
	require.True(t, ok)
	assert.InDelta(t, 1, ndc.Y(), 1e-3)
	assert.InDelta(t, 1.5/(4.0/3.0), ndc.X(), 1e-3)

	w.SetSize(1000, 500)
	w.SetViewport(1, 0, 0, 1000, 500)
	assert.InDelta(t, 2, w.OverlayCamera().Aspect, 1e-5)
}

func TestSwitchingPhotosKeepsFirstSnapshot(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	poses := testPoses()
	w.SetCameraPoses(poses)
	start := w.FreeCamera().Position

	w.SetSelectedCamera(poses[0], nil)
	firstPlane := w.ImagePlane().Node()
	w.SetSelectedCamera(poses[1], poses[0])
	assert.Nil(t, firstPlane.Parent(), "old image plane removed")
	assert.Equal(t, poses[1], w.SelectedPose())

	w.SetSelectedCamera(nil, nil)
	assert.True(t, w.FreeCamera().Position.ApproxEqualThreshold(start, 1e-4))
}

func TestLeavingWithPreviousPoseRehomes(t *testing.T) {
	w, _ := newTestWorld(t, Options{TargetDistance: 80})
	poses := testPoses()
	w.SetWorkSpace(scan.Workspace{X: scan.Range{-100, 100}, Y: scan.Range{-50, 50}, Z: scan.Range{0, 20}})
	w.SetCameraPoses(poses)
	w.FreeCamera().Zoom = 3

	w.SetSelectedCamera(poses[1], nil)
	w.SetSelectedCamera(nil, poses[1])

	cam := w.FreeCamera()
	want := poses[1].Position.Add(mgl32.Vec3{0, 0, -10})
	assert.True(t, cam.Position.ApproxEqualThreshold(want, 1e-3), "got %v want %v", cam.Position, want)
	assert.Equal(t, float32(1), cam.Zoom)
	assert.True(t, cam.Forward().ApproxEqualThreshold(poses[1].Forward(), 1e-4))
	assert.True(t, w.Controls().Target.ApproxEqualThreshold(want.Add(mgl32.Vec3{0, 0, -80}), 1e-3))
}

func TestLeaveInFreeModeIsNoop(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	before := *w.FreeCamera()
	w.SetSelectedCamera(nil, nil)
	w.SetSelectedCamera(nil, testPoses()[0])
	assert.Equal(t, ModeFree, w.Mode())
	assert.Equal(t, before, *w.FreeCamera())
	assert.Equal(t, w.opts.Background, w.Background())
}

func TestWorkspaceScenario(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	w.SetWorkSpace(scan.Workspace{X: scan.Range{-100, 100}, Y: scan.Range{-50, 50}, Z: scan.Range{0, 20}})

	ws := w.Workspace()
	require.NotNil(t, ws)
	assert.Equal(t, mgl32.Vec3{0, 0, 10}, ws.Node().Transform.Position)
	assert.Equal(t, mgl32.Vec3{0, 0, -10}, w.ViewerObjects().Transform.Position)
	assert.True(t, ws.Node().WorldPosition().ApproxEqualThreshold(mgl32.Vec3{}, 1e-5), "box centred at origin")
	grid := ws.Grid()
	assert.Equal(t, float32(200), grid.Width)
	assert.Equal(t, float32(100), grid.Height)
	assert.Equal(t, 10, grid.Divisions)

	// rebuilding replaces rather than stacks
	w.SetWorkSpace(scan.Workspace{X: scan.Range{0, 10}, Y: scan.Range{0, 10}, Z: scan.Range{0, 10}})
	count := 0
	for _, c := range w.ViewerObjects().Children() {
		if c.Name == "workspace" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func installAll(w *World) {
	pts := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	w.SetMesh(core.NewGeometry(append([]mgl32.Vec3(nil), pts...)))
	w.SetPointCloud(core.NewGeometry(append([]mgl32.Vec3(nil), pts...)))
	w.SetSegmentedPointCloud(core.NewGeometry(append([]mgl32.Vec3(nil), pts...)), []int32{1, 1, 2})
	w.SetSkeleton(&scan.Skeleton{Points: [][3]float64{{0, 0, 0}, {0, 0, 1}}, Lines: [][2]int{{0, 1}}})
	w.SetAngles(&scan.Angles{FruitPoints: [][][3]float64{{{0, 0, 0}, {1, 1, 1}}}})
	w.SetWorkSpace(scan.Workspace{X: scan.Range{-1, 1}, Y: scan.Range{-1, 1}, Z: scan.Range{0, 1}})
	w.SetCameraPoses(testPoses())
}

func TestLayerToggleIsolation(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	installAll(w)

	nodes := map[string]*core.Node{
		"mesh":      w.Mesh().Node(),
		"points":    w.PointCloud().Node(),
		"segmented": w.SegmentedPointCloud().Node(),
		"skeleton":  w.Skeleton().Node(),
		"angles":    w.Angles().Node(),
		"workspace": w.Workspace().Node(),
		"cameras":   w.CameraPoints().Node(),
	}
	toggles := map[string]func(*Layers){
		"mesh":      func(l *Layers) { l.Mesh = false },
		"points":    func(l *Layers) { l.PointCloud = false },
		"segmented": func(l *Layers) { l.SegmentedPointCloud = false },
		"skeleton":  func(l *Layers) { l.Skeleton = false },
		"angles":    func(l *Layers) { l.Angles = false },
		"workspace": func(l *Layers) { l.Workspace = false },
		"cameras":   func(l *Layers) { l.Cameras = false },
	}

	for name, toggle := range toggles {
		t.Run(name, func(t *testing.T) {
			l := AllLayers()
			w.SetLayers(l)
			toggle(&l)
			w.SetLayers(l)
			w.SetLayers(l)
			for other, n := range nodes {
				assert.Equal(t, other != name, n.Visible, "%s visibility after toggling %s", other, name)
			}
		})
	}
}

func TestReplacingEntityDetachesOld(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	w.SetSkeleton(&scan.Skeleton{Points: [][3]float64{{0, 0, 0}, {0, 0, 1}}, Lines: [][2]int{{0, 1}}})
	old := w.Skeleton().Node()
	lines := w.LineKit().Len()

	w.SetSkeleton(&scan.Skeleton{Points: [][3]float64{{0, 0, 0}, {0, 0, 2}}, Lines: [][2]int{{0, 1}}})
	assert.Nil(t, old.Parent())
	assert.NotSame(t, old, w.Skeleton().Node())
	assert.Equal(t, lines, w.LineKit().Len(), "old line material released")
}

func TestParseSelectionMethod(t *testing.T) {
	for _, s := range []string{"", "proximity", "same label", "sphere", "sphere end"} {
		m, err := ParseSelectionMethod(s)
		require.NoError(t, err)
		assert.Equal(t, SelectionMethod(s), m)
	}
	_, err := ParseSelectionMethod("lasso")
	assert.True(t, errors.Is(err, ErrUnknownSelectionMethod))
}

func selectionWorld(t *testing.T) *World {
	w, _ := newTestWorld(t, Options{ProximityRadius: 1.5, PointThreshold: 0.1})
	w.SetSegmentedPointCloud(core.NewGeometry([]mgl32.Vec3{
		{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {10, 0, 0}, {1, 1, 0},
	}), []int32{1, 1, 1, 1, 2})
	return w
}

func intPtr(i int) *int { return &i }

func TestSelectionProximityAndSameLabel(t *testing.T) {
	w := selectionWorld(t)

	state, sel, ok := w.AdvanceSelection(SelectionState{Method: SelectProximity, ClickedPoint: intPtr(0)}, SelectionInput{})
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, sel)
	assert.Equal(t, SelectNone, state.Method)
	assert.Nil(t, state.ClickedPoint)

	state, sel, ok = w.AdvanceSelection(SelectionState{Method: SelectSameLabel, ClickedPoint: intPtr(0)}, SelectionInput{})
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3}, sel)
	assert.Equal(t, SelectionState{}, state)
}

func TestSelectionSphere(t *testing.T) {
	w := selectionWorld(t)
	state := SelectionState{Method: SelectSphere, ClickedPoint: intPtr(0)}

	pointAt(t, w, mgl32.Vec3{2, 0, 0})
	state, sel, ok := w.AdvanceSelection(state, SelectionInput{Moved: true})
	assert.False(t, ok)
	assert.Nil(t, sel)
	_, radius, preview := w.SelectionSphere()
	require.True(t, preview)
	assert.InDelta(t, 2, radius, 1e-3)
	assert.Len(t, w.frame().Gizmos, 1)

	state, _, ok = w.AdvanceSelection(state, SelectionInput{Clicked: true})
	assert.False(t, ok)
	require.Equal(t, SelectSphereEnd, state.Method)

	state, sel, ok = w.AdvanceSelection(state, SelectionInput{})
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 4}, sel)
	assert.Equal(t, SelectionState{}, state)
	_, _, preview = w.SelectionSphere()
	assert.False(t, preview)
}

func TestSelectionWithoutClickedPointIsNoop(t *testing.T) {
	w := selectionWorld(t)
	in := SelectionState{Method: SelectProximity}
	state, sel, ok := w.AdvanceSelection(in, SelectionInput{Clicked: true})
	assert.False(t, ok)
	assert.Nil(t, sel)
	assert.Equal(t, in, state)
}

func TestSelectionUnknownMethodIsCleared(t *testing.T) {
	w := selectionWorld(t)
	state, sel, ok := w.AdvanceSelection(SelectionState{Method: "lasso", ClickedPoint: intPtr(1)}, SelectionInput{})
	assert.False(t, ok)
	assert.Nil(t, sel)
	assert.Equal(t, SelectionState{}, state)
}

func TestRulerScaleThenMeasure(t *testing.T) {
	w, _ := newTestWorld(t, Options{})

	_, ok := w.hitOrPlane()
	require.True(t, ok)

	pointAt(t, w, mgl32.Vec3{-25, 0, 0})
	res := w.RulerClick(RulerScaling)
	assert.False(t, res.Done)
	require.NotNil(t, w.RulerLine())

	pointAt(t, w, mgl32.Vec3{0, 0, 0})
	line := w.RulerLine()
	w.RulerMove()
	assert.NotSame(t, line, w.RulerLine(), "line rebuilt on move")

	pointAt(t, w, mgl32.Vec3{25, 0, 0})
	res = w.RulerClick(RulerScaling)
	require.True(t, res.Done)
	require.NotNil(t, res.Scale)
	assert.InDelta(t, 50, *res.Scale, 1e-2)
	assert.Nil(t, w.RulerLine())

	pointAt(t, w, mgl32.Vec3{-50, 0, 0})
	w.RulerClick(RulerMeasuring)
	pointAt(t, w, mgl32.Vec3{50, 0, 0})
	res = w.RulerClick(RulerMeasuring)
	require.NotNil(t, res.Measurement)
	assert.InDelta(t, 2.0, *res.Measurement, 1e-3)
}

func TestMeasureWithoutScale(t *testing.T) {
	w, _ := newTestWorld(t, Options{})
	pointAt(t, w, mgl32.Vec3{-5, 0, 0})
	w.RulerClick(RulerMeasuring)
	pointAt(t, w, mgl32.Vec3{5, 0, 0})
	res := w.RulerClick(RulerMeasuring)
	assert.True(t, res.Done)
	assert.Nil(t, res.Measurement)
}

func TestPickOrganAndPoint(t *testing.T) {
	w, _ := newTestWorld(t, Options{PointThreshold: 0.5, LineThreshold: 0.5})
	w.SetAngles(&scan.Angles{FruitPoints: [][][3]float64{
		{{-50, 0, 0}, {-40, 0, 0}},
		{{40, 0, 0}, {50, 0, 0}},
	}})
	w.SetSegmentedPointCloud(core.NewGeometry([]mgl32.Vec3{{0, 0, 30}, {0, 0, 60}}), []int32{1, 2})

	pointAt(t, w, mgl32.Vec3{45, 0, 0})
	idx, ok := w.PickOrgan()
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	pointAt(t, w, mgl32.Vec3{0, 0, 60})
	pt, ok := w.PickSegmentedPoint()
	require.True(t, ok)
	assert.Equal(t, 1, pt)

	pointAt(t, w, mgl32.Vec3{0, 200, 200})
	_, ok = w.PickOrgan()
	assert.False(t, ok)
	_, ok = w.PickSegmentedPoint()
	assert.False(t, ok)
}

func TestHoverFiresOnChangeOnly(t *testing.T) {
	w, _ := newTestWorld(t, Options{LineThreshold: 2})
	poses := testPoses()
	w.SetCameraPoses(poses)

	var calls []*scan.Pose
	w.OnHover(func(p *scan.Pose) { calls = append(calls, p) })

	pointAt(t, w, poses[0].Position)
	w.UpdateHover()
	w.UpdateHover()
	require.Len(t, calls, 1)
	assert.Equal(t, poses[0].Id, calls[0].Id)

	pointAt(t, w, mgl32.Vec3{0, 300, -300})
	w.UpdateHover()
	require.Len(t, calls, 2)
	assert.Nil(t, calls[1])

	w.Dispose()
	pointAt(t, w, poses[0].Position)
	w.UpdateHover()
	assert.Len(t, calls, 2, "no callbacks after dispose")
}

func TestDisposeStopsFrames(t *testing.T) {
	w, r := newTestWorld(t, Options{})
	require.NoError(t, w.Frame())
	w.Dispose()
	assert.ErrorIs(t, w.Frame(), ErrDisposed)
	assert.Equal(t, 1, r.frames)
}

func TestSnapshotRestoresSize(t *testing.T) {
	w, r := newTestWorld(t, Options{})
	aspect := w.FreeCamera().Aspect

	img, err := w.Snapshot(1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, 1920, img.Bounds().Dx())
	assert.Equal(t, []image.Point{image.Pt(1920, 1080)}, r.captures)
	width, height := r.Size()
	assert.Equal(t, 800, width)
	assert.Equal(t, 600, height)
	assert.Equal(t, aspect, w.FreeCamera().Aspect)

	_, err = w.Snapshot(0, 10)
	assert.Error(t, err)
}

func TestSetSizeZeroIsSkipped(t *testing.T) {
	w, r := newTestWorld(t, Options{})
	n := len(r.sizes)
	w.SetSize(0, 0)
	assert.Len(t, r.sizes, n)
	width, height := w.Size()
	assert.Equal(t, 800, width)
	assert.Equal(t, 600, height)
}

func TestSetViewportPropagates(t *testing.T) {
	w, _ := newTestWorld(t, Options{PointSize: 2})
	installAll(w)
	w.SetSelectedCamera(testPoses()[0], nil)

	w.SetViewport(3, -400, -300, 2400, 1800)
	assert.Equal(t, float32(6), w.PointCloud().PointSize())
	assert.Equal(t, [2]float32{2400, 1800}, w.Skeleton().Node().Material.Resolution)
	assert.Equal(t, Rect{X: -400, Y: -300, W: 2400, H: 1800}, w.Viewport())

	w.SetSelectedCamera(nil, nil)
	assert.Equal(t, Rect{W: 800, H: 600}, w.Viewport())
}
