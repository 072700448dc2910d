package scanview

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/scanview/viewer/behaviors"
	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
	"github.com/gekko3d/scanview/viewer/world"
)

type fakeRenderer struct {
	w, h     int
	frames   int
	captures []image.Point
}

func (r *fakeRenderer) SetSize(w, h int) { r.w, r.h = w, h }
func (r *fakeRenderer) Size() (int, int) { return r.w, r.h }
func (r *fakeRenderer) Render(world.Frame) error {
	r.frames++
	return nil
}

func (r *fakeRenderer) Capture(world.Frame) (image.Image, error) {
	r.captures = append(r.captures, image.Pt(r.w, r.h))
	return image.NewRGBA(image.Rect(0, 0, r.w, r.h)), nil
}

type fixture struct {
	r      *Reconciler
	w      *world.World
	render *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	render := &fakeRenderer{}
	w := world.New(world.Options{
		Renderer:       render,
		Width:          800,
		Height:         600,
		LineThreshold:  2,
		PointThreshold: 0.5,
	})
	now := time.Unix(1000, 0)
	r := NewReconciler(w, ReconcilerOptions{Now: func() time.Time { return now }})
	return &fixture{r: r, w: w, render: render}
}

func (f *fixture) apply(st SceneState, events ...behaviors.PointerEvent) Outbound {
	return f.r.Apply(st, FrameInput{Events: events, Width: 800, Height: 600})
}

// screenOf returns the canvas pixel under which p is drawn.
func (f *fixture) screenOf(t *testing.T, p mgl32.Vec3) (float32, float32) {
	t.Helper()
	ndc, ok := f.w.ActiveCamera().Project(p)
	require.True(t, ok, "point %v behind the camera", p)
	vp := f.w.Viewport()
	return vp.X + (ndc.X()+1)/2*vp.W, vp.Y + (1-ndc.Y())/2*vp.H
}

func clickAt(x, y float32, button int) []behaviors.PointerEvent {
	return []behaviors.PointerEvent{
		{Kind: behaviors.EventMove, X: x, Y: y},
		{Kind: behaviors.EventDown, Button: button, X: x, Y: y},
		{Kind: behaviors.EventUp, Button: button, X: x, Y: y},
	}
}

func testScan(id string) *scan.Scan {
	down := [3][3]float64{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}}
	return &scan.Scan{
		Id:        id,
		Workspace: &scan.Workspace{X: scan.Range{-100, 100}, Y: scan.Range{-100, 100}, Z: scan.Range{-10, 10}},
		Camera: &scan.Camera{
			Model: &scan.CameraModel{Model: "SIMPLE_RADIAL", Width: 1600, Height: 1200, Params: []float64{1100}},
			Poses: []scan.RawPose{
				{PhotoUri: "images/00000_rgb.jpg", Rotmat: down, Tvec: [3]float64{0, 0, 400}},
				{PhotoUri: "images/00001_rgb.jpg", Rotmat: down, Tvec: [3]float64{50, 0, 400}},
			},
		},
		Data: scan.Data{
			Skeleton: &scan.Skeleton{Points: [][3]float64{{0, 0, 0}, {0, 0, 1}}, Lines: [][2]int{{0, 1}}},
			Angles: &scan.Angles{FruitPoints: [][][3]float64{
				{{-50, 0, 0}, {-40, 0, 0}},
				{{40, 0, 0}, {50, 0, 0}},
			}},
		},
	}
}

func baseState(s *scan.Scan) SceneState {
	return SceneState{Scan: s, Layers: world.AllLayers(), Colors: world.DefaultColors()}
}

func TestReconcileInstallsOnlyWhatChanged(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("plant"))
	f.apply(st)

	require.Len(t, f.w.Poses(), 2)
	require.NotNil(t, f.w.Skeleton())
	require.NotNil(t, f.w.Angles())
	require.NotNil(t, f.w.Workspace())
	assert.Nil(t, f.w.Mesh())
	skeleton := f.w.Skeleton().Node()

	f.apply(st)
	assert.Same(t, skeleton, f.w.Skeleton().Node(), "unchanged scan is not rebuilt")

	st.Layers.Skeleton = false
	f.apply(st)
	assert.False(t, f.w.Skeleton().Node().Visible)
	assert.True(t, f.w.Angles().Node().Visible)

	st.Mesh = core.NewGeometry([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	st.Layers.Mesh = false
	f.apply(st)
	require.NotNil(t, f.w.Mesh())
	assert.False(t, f.w.Mesh().Node().Visible, "layers apply to freshly installed geometry")

	st.Mesh = nil
	f.apply(st)
	assert.Nil(t, f.w.Mesh())
}

func TestReconcileSelectedPoseAndViewportReset(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("plant"))
	f.apply(st)

	st.Interaction.SelectedPose = "00000_rgb"
	f.apply(st)
	require.Equal(t, world.ModeSelectedPhoto, f.w.Mode())
	assert.Equal(t, float32(800), f.w.Viewport().W)

	f.apply(st, behaviors.PointerEvent{Kind: behaviors.EventWheel, DeltaY: -400})
	assert.Equal(t, float32(3), f.r.Viewport2D().Zoom())
	assert.Equal(t, float32(2400), f.w.Viewport().W)

	st.Interaction.SelectedPose = ""
	f.apply(st)
	assert.Equal(t, world.ModeFree, f.w.Mode())

	st.Interaction.SelectedPose = "00000_rgb"
	f.apply(st)
	assert.Equal(t, float32(3), f.r.Viewport2D().Zoom(), "returning to the same photo keeps the zoom")

	st.Interaction.SelectedPose = "00001_rgb"
	f.apply(st)
	assert.Equal(t, float32(1), f.r.Viewport2D().Zoom(), "a different photo resets the 2D view")
	assert.Equal(t, "00001_rgb", f.w.SelectedPose().Id)

	st.Interaction.SelectedPose = "missing"
	f.apply(st)
	assert.Equal(t, world.ModeFree, f.w.Mode(), "unknown pose leaves photo mode")
}

func TestReconcileHoverThenClickSelectsPose(t *testing.T) {
	f := newFixture(t)
	s := testScan("plant")
	st := baseState(s)
	f.apply(st)

	x, y := f.screenOf(t, f.w.Poses()[0].Position)
	out := f.apply(st, clickAt(x, y, behaviors.ButtonLeft)...)
	assert.Equal(t, "00000_rgb", out.Interaction.HoveredPose)
	assert.Equal(t, "00000_rgb", out.Interaction.SelectedPose)
	assert.Same(t, s, out.Scan)

	f.apply(SceneState{Scan: s, Layers: st.Layers, Colors: st.Colors, Interaction: out.Interaction})
	assert.Equal(t, world.ModeSelectedPhoto, f.w.Mode())
}

func TestReconcileHoverFollowsWorldCallback(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("plant"))
	f.apply(st)

	x, y := f.screenOf(t, f.w.Poses()[1].Position)
	out := f.apply(st, behaviors.PointerEvent{Kind: behaviors.EventMove, X: x, Y: y})
	assert.Equal(t, "00001_rgb", out.Interaction.HoveredPose)

	// a new scan replaces the markers and drops the hover with them
	st = baseState(testScan("other"))
	st.Interaction.HoveredPose = out.Interaction.HoveredPose
	out = f.apply(st)
	assert.Equal(t, "", out.Interaction.HoveredPose)
	assert.Nil(t, f.w.Hovered())
}

func TestReconcileClickPicksHoverAgain(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("plant"))
	f.apply(st)

	x, y := f.screenOf(t, f.w.Poses()[0].Position)
	out := f.apply(st, behaviors.PointerEvent{Kind: behaviors.EventMove, X: x, Y: y})
	require.Equal(t, "00000_rgb", out.Interaction.HoveredPose)

	// hide the markers, then click without moving
	st.Interaction = out.Interaction
	st.Layers.Cameras = false
	out = f.apply(st,
		behaviors.PointerEvent{Kind: behaviors.EventDown, Button: behaviors.ButtonLeft, X: x, Y: y},
		behaviors.PointerEvent{Kind: behaviors.EventUp, Button: behaviors.ButtonLeft, X: x, Y: y},
	)
	assert.Equal(t, "", out.Interaction.SelectedPose, "a hidden marker cannot be clicked")
	assert.Equal(t, "", out.Interaction.HoveredPose)
}

func TestReconcileOrganClick(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("plant"))
	f.apply(st)

	x, y := f.screenOf(t, mgl32.Vec3{45, 0, 0})
	out := f.apply(st, clickAt(x, y, behaviors.ButtonLeft)...)
	require.NotNil(t, out.Interaction.SelectedAngle)
	assert.Equal(t, 1, *out.Interaction.SelectedAngle)
	require.NotNil(t, out.Interaction.HoveredAngle)
	assert.Equal(t, 1, *out.Interaction.HoveredAngle)

	st.Interaction = out.Interaction
	out = f.apply(st, clickAt(5, 5, behaviors.ButtonLeft)...)
	assert.Nil(t, out.Interaction.SelectedAngle, "clicking empty space deselects")
	assert.Nil(t, out.Interaction.HoveredAngle)
}

func TestReconcileRightClickThenSameLabel(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("plant"))
	st.Segmented = &SegmentedCloud{
		Geometry: core.NewGeometry([]mgl32.Vec3{{0, 0, 30}, {0, 0, 60}, {30, 0, 60}}),
		Labels:   []int32{1, 2, 2},
	}
	f.apply(st)

	x, y := f.screenOf(t, mgl32.Vec3{0, 0, 60})
	out := f.apply(st, clickAt(x, y, behaviors.ButtonRight)...)
	require.NotNil(t, out.Interaction.ClickedPoint)
	assert.Equal(t, 1, *out.Interaction.ClickedPoint)
	assert.Nil(t, out.Interaction.SelectedAngle, "right clicks never pick organs")

	st.Interaction = out.Interaction
	st.Interaction.SelectionMethod = world.SelectSameLabel
	out = f.apply(st)
	assert.Equal(t, []int{1, 2}, out.Interaction.SelectedPoints)
	assert.Equal(t, world.SelectNone, out.Interaction.SelectionMethod)
	assert.Nil(t, out.Interaction.ClickedPoint)
}

func TestReconcileRulerScaleThenMeasure(t *testing.T) {
	f := newFixture(t)
	st := SceneState{Layers: world.AllLayers()}
	st.Interaction.Scaling = true

	events := append(clickAt(300, 300, behaviors.ButtonLeft), clickAt(500, 300, behaviors.ButtonLeft)...)
	out := f.apply(st, events...)
	require.NotNil(t, out.Interaction.Scale)
	assert.Greater(t, *out.Interaction.Scale, float32(0))
	assert.False(t, out.Interaction.Scaling)
	require.NotNil(t, f.w.Scale())
	assert.Equal(t, *out.Interaction.Scale, *f.w.Scale())

	st.Interaction = out.Interaction
	st.Interaction.Measuring = true
	out = f.apply(st, events...)
	require.NotNil(t, out.Interaction.Measurement)
	assert.InDelta(t, 1, *out.Interaction.Measurement, 1e-3)
	assert.False(t, out.Interaction.Measuring)
}

func TestReconcileSnapshot(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("plant"))
	st.Snapshot = &SnapshotRequest{Width: 64, Height: 32}

	out := f.apply(st)
	require.True(t, out.SnapshotDone)
	data, err := DecodeDataURL(out.SnapshotURL)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)

	w, h := f.render.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestReconcileScanSwitchLeavesPhotoMode(t *testing.T) {
	f := newFixture(t)
	st := baseState(testScan("first"))
	st.Interaction.SelectedPose = "00000_rgb"
	f.apply(st)
	require.Equal(t, world.ModeSelectedPhoto, f.w.Mode())

	next := baseState(testScan("second"))
	next.Scan.Camera.Poses = next.Scan.Camera.Poses[:1]
	f.apply(next)
	assert.Equal(t, world.ModeFree, f.w.Mode())
	assert.Len(t, f.w.Poses(), 1)
}

func TestReconcileAfterDispose(t *testing.T) {
	f := newFixture(t)
	f.w.Dispose()

	st := baseState(testScan("plant"))
	st.Interaction.HoveredPose = "x"
	out := f.apply(st, clickAt(10, 10, behaviors.ButtonLeft)...)
	assert.Empty(t, f.w.Poses())
	assert.Equal(t, st.Interaction, out.Interaction)
	assert.False(t, out.SnapshotDone)
}

func TestResetFuncs(t *testing.T) {
	f := newFixture(t)
	f.apply(baseState(testScan("plant")))

	home := f.w.FreeCamera().Position
	f.w.Controls().Orbit(40, 10)
	require.False(t, f.w.FreeCamera().Position.ApproxEqualThreshold(home, 1e-3))

	resets := f.r.ResetFuncs()
	resets.Reset3D()
	assert.True(t, f.w.FreeCamera().Position.ApproxEqualThreshold(home, 1e-3))

	f.r.Viewport2D().Wheel(-400)
	resets.Reset2D()
	assert.Equal(t, float32(1), f.r.Viewport2D().Zoom())
}
