package entities

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
)

var white = [4]float32{1, 1, 1, 1}

func TestWorkspaceGrid200x100(t *testing.T) {
	kit := NewLineKit(800, 600)
	ws := scan.Workspace{X: scan.Range{-100, 100}, Y: scan.Range{-50, 50}, Z: scan.Range{0, 20}}
	e := NewWorkspace(kit, ws, 0, white, 1)

	grid := e.Grid()
	assert.Equal(t, float32(200), grid.Width)
	assert.Equal(t, float32(100), grid.Height)
	assert.Equal(t, DefaultGridDivisions, grid.Divisions)

	pos := e.Node().Transform.Position
	assert.Equal(t, mgl32.Vec3{0, 0, 10}, pos, "node sits at zMin + depth*0.5")

	b := e.GridNode().Geometry.ComputeBoundingBox()
	size := b.Size()
	assert.InDelta(t, 200, size.X(), 1e-4)
	assert.InDelta(t, 100, size.Y(), 1e-4)
	assert.InDelta(t, 0, size.Z(), 1e-4)
	// bottom face in world space
	assert.InDelta(t, 0, e.GridNode().WorldMatrix().Mul4x1(b.Min.Vec4(1)).Z(), 1e-4)
	// 11 lines along each axis
	assert.Equal(t, 2*2*(DefaultGridDivisions+1), len(e.GridNode().Geometry.Positions))
}

func TestFactoriesDoNotAttach(t *testing.T) {
	kit := NewLineKit(1, 1)
	sk := NewSkeleton(kit, &scan.Skeleton{
		Points: [][3]float64{{0, 0, 0}, {0, 0, 1}},
		Lines:  [][2]int{{0, 1}, {0, 7}},
	}, white, 2)
	assert.Nil(t, sk.Node().Parent())
	assert.Equal(t, 1, sk.SegmentCount(), "out of range edge is skipped")

	root := core.NewGroup("root")
	Attach(root, sk)
	require.Equal(t, root, sk.Node().Parent())
	Detach(sk)
	assert.Nil(t, sk.Node().Parent())
	assert.Empty(t, root.Children())
}

func TestSetVisibleKeepsGeometry(t *testing.T) {
	g := core.NewGeometry([]mgl32.Vec3{{0, 0, 0}, {1, 1, 1}})
	pc := NewPointCloud(g, white, 2)
	pc.SetVisible(false)
	assert.False(t, pc.Visible())
	assert.Same(t, g, pc.Node().Geometry)
	pc.SetVisible(true)
	assert.True(t, pc.Node().Visible)
}

func TestPointCloudZoomLevel(t *testing.T) {
	pc := NewPointCloud(core.NewGeometry(nil), white, 1.5)
	pc.SetZoomLevel(4)
	assert.Equal(t, float32(6), pc.PointSize())
	pc.SetPointSize(2)
	assert.Equal(t, float32(8), pc.PointSize())
	pc.SetZoomLevel(0)
	assert.Equal(t, float32(2), pc.PointSize())
}

func TestMeshComputesNormals(t *testing.T) {
	g := core.NewGeometry([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	m := NewMesh(g, white)
	require.Len(t, m.Node().Geometry.Normals, 3)
	m.SetOpacity(0.5)
	assert.Equal(t, float32(0.5), m.Node().Material.Opacity)
}

func TestSegmentedHighlight(t *testing.T) {
	g := core.NewGeometry([]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}})
	red := core.RGB(0xff0000)
	s := NewSegmentedPointCloud(g, []int32{5, 5, 9}, 1, red)

	assert.Equal(t, []int32{5, 9}, s.LabelSet())
	c0 := g.Colors[0]
	assert.Equal(t, c0, g.Colors[1], "same label, same colour")
	assert.NotEqual(t, c0, g.Colors[2])

	v := g.Version
	s.SetHighlighted([]int{2, 42})
	assert.Greater(t, g.Version, v)
	assert.Equal(t, [3]float32{1, 0, 0}, g.Colors[2])
	assert.Equal(t, c0, g.Colors[0], "others keep their label colour")
	assert.Equal(t, []int{2}, s.Highlighted())

	s.SetLabelColors(map[int32][4]float32{5: core.RGB(0x00ff00)})
	assert.Equal(t, [3]float32{0, 1, 0}, g.Colors[0])

	s.SetHighlighted(nil)
	assert.NotEqual(t, [3]float32{1, 0, 0}, g.Colors[2])
}

func TestAnglesOrganLookup(t *testing.T) {
	kit := NewLineKit(800, 600)
	a := NewAngles(kit, &scan.Angles{
		FruitPoints: [][][3]float64{
			{{0, 0, 0}, {1, 0, 0}},
			{{0, 0, 5}, {1, 0, 5}, {2, 0, 6}},
		},
	}, white, 3)

	require.Equal(t, 2, a.OrganCount())
	children := a.Group().Children()
	idx, ok := a.OrganAt(children[1])
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = a.OrganAt(core.NewGroup("other"))
	assert.False(t, ok)

	hl := core.RGB(0xffff00)
	a.SetHighlighted([]int{1}, hl)
	assert.Equal(t, hl, a.OrganColor(1))
	assert.Equal(t, white, a.OrganColor(0))
}

func TestLineKitResolutionSync(t *testing.T) {
	kit := NewLineKit(800, 600)
	sk := NewSkeleton(kit, &scan.Skeleton{Points: [][3]float64{{0, 0, 0}, {1, 0, 0}}, Lines: [][2]int{{0, 1}}}, white, 1)
	ws := NewWorkspace(kit, scan.Workspace{X: scan.Range{0, 1}, Y: scan.Range{0, 1}, Z: scan.Range{0, 1}}, 2, white, 1)

	kit.SetResolution(1024, 768)
	assert.Equal(t, [2]float32{1024, 768}, sk.Node().Material.Resolution)
	assert.Equal(t, [2]float32{1024, 768}, ws.GridNode().Material.Resolution)

	before := kit.Len()
	kit.Release(ws.Node())
	assert.Equal(t, before-5, kit.Len())
}

func TestCameraPointsHoverAndSelect(t *testing.T) {
	kit := NewLineKit(1, 1)
	p0 := scan.NewPose(0, scan.RawPose{PhotoUri: "a.jpg", Rotmat: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}, nil)
	p1 := scan.NewPose(1, scan.RawPose{PhotoUri: "b.jpg", Rotmat: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, Tvec: [3]float64{5, 0, 0}}, nil)
	colors := CameraPointColors{Base: white, Hovered: core.RGB(0x00ff00), Selected: core.RGB(0xff0000)}
	cp := NewCameraPoints(kit, []*scan.Pose{p0, p1}, 10, colors, 1)

	require.Equal(t, 2, cp.Len())
	assert.Equal(t, mgl32.Vec3{-5, 0, 0}, cp.Marker(p1).Transform.Position)

	cp.SetHovered(p1)
	assert.Equal(t, colors.Hovered, cp.Marker(p1).Material.Color)
	cp.SetSelected(p1)
	assert.Equal(t, colors.Selected, cp.Marker(p1).Material.Color, "selection wins over hover")
	assert.Equal(t, white, cp.Marker(p0).Material.Color)

	pose, ok := cp.PoseAt(cp.Marker(p0))
	require.True(t, ok)
	assert.Equal(t, "a", pose.Id)
}
