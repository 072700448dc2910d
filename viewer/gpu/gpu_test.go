package gpu

import (
	"testing"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/world"
)

func TestLayoutsMatchShaders(t *testing.T) {
	assert.Equal(t, uintptr(44), unsafe.Sizeof(Vertex{}))
	assert.Equal(t, uintptr(96), unsafe.Sizeof(cameraUniform{}))
	assert.LessOrEqual(t, unsafe.Sizeof(cameraUniform{}), uintptr(uniformSize))
	assert.Equal(t, uintptr(112), unsafe.Sizeof(objectUniform{}))
	assert.Equal(t, uintptr(80), unsafe.Sizeof(GizmoInstance{}))
	assert.LessOrEqual(t, unsafe.Sizeof(objectUniform{}), uintptr(uniformSize))
}

func TestPackVertices(t *testing.T) {
	g := core.NewGeometry([]mgl32.Vec3{{1, 2, 3}, {4, 5, 6}})
	g.Colors = [][3]float32{{1, 0, 0}, {0, 1, 0}}
	g.Normals = []mgl32.Vec3{{0, 0, 1}} // wrong length, ignored

	v := packVertices(g)
	require.Len(t, v, 2)
	assert.Equal(t, [3]float32{4, 5, 6}, v[1].Pos)
	assert.Equal(t, [3]float32{0, 1, 0}, v[1].Color)
	assert.Equal(t, [3]float32{}, v[0].Normal)
}

func TestMaterialUniform(t *testing.T) {
	n := core.NewNode("cloud", core.KindPoints)
	n.Transform.Position = mgl32.Vec3{1, 2, 3}
	n.Material = core.NewMaterial([4]float32{1, 0.5, 0, 1})
	n.Material.Opacity = 0.5
	n.Material.PointSize = 3
	n.Material.VertexColors = true
	n.Material.Resolution = [2]float32{800, 600}

	u := materialUniform(n)
	assert.Equal(t, [4]float32{1, 0.5, 0, 0.5}, u.Color)
	assert.Equal(t, float32(3), u.Params[0])
	assert.Equal(t, float32(1), u.Params[2])
	assert.Equal(t, float32(800), u.Resolution[0])
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, u.Model.Col(3).Vec3())

	bare := materialUniform(core.NewNode("bare", core.KindMesh))
	assert.Equal(t, [4]float32{1, 1, 1, 1}, bare.Color)
}

func TestDrawable(t *testing.T) {
	assert.False(t, drawable(core.NewGroup("g")))

	n := core.NewNode("empty", core.KindMesh)
	assert.False(t, drawable(n))
	n.Geometry = core.NewGeometry(nil)
	assert.False(t, drawable(n))
	n.Geometry = core.NewGeometry([]mgl32.Vec3{{0, 0, 0}})
	assert.True(t, drawable(n))
}

func TestAlignedBytesPerRow(t *testing.T) {
	assert.Equal(t, uint32(256), alignedBytesPerRow(1))
	assert.Equal(t, uint32(256), alignedBytesPerRow(64))
	assert.Equal(t, uint32(512), alignedBytesPerRow(65))
}

func TestUnpackRowsSwapsBGRA(t *testing.T) {
	const w, h = 2, 2
	stride := alignedBytesPerRow(w)
	data := make([]byte, stride*h)
	// pixel (1,1) in BGRA order
	copy(data[stride+4:], []byte{10, 20, 30, 255})

	img, err := unpackRows(data, w, h, stride, true)
	require.NoError(t, err)
	r, g, b, a := img.At(1, 1).RGBA()
	assert.Equal(t, []uint32{30, 20, 10, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})

	img, err = unpackRows(data, w, h, stride, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(10), img.Pix[img.PixOffset(1, 1)])

	_, err = unpackRows(data[:10], w, h, stride, false)
	assert.Error(t, err)
}

func TestIsBGRA(t *testing.T) {
	assert.True(t, isBGRA(wgpu.TextureFormatBGRA8UnormSrgb))
	assert.False(t, isBGRA(wgpu.TextureFormatRGBA8Unorm))
}

func TestClampViewport(t *testing.T) {
	vp, ok := clampViewport(world.Rect{}, 800, 600)
	assert.True(t, ok)
	assert.Equal(t, world.Rect{W: 800, H: 600}, vp)

	vp, ok = clampViewport(world.Rect{X: -50, Y: 100, W: 400, H: 1000}, 800, 600)
	assert.True(t, ok)
	assert.Equal(t, world.Rect{X: 0, Y: 100, W: 350, H: 500}, vp)

	_, ok = clampViewport(world.Rect{X: 900, Y: 0, W: 10, H: 10}, 800, 600)
	assert.False(t, ok)
}

// cropNDC applies a crop the way the shaders do, for w = 1.
func cropNDC(c [4]float32, p mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{p[0]*c[0] + c[2], p[1]*c[1] + c[3]}
}

// pixelNDC is the NDC of canvas pixel (x, y) inside rect r.
func pixelNDC(r world.Rect, x, y float32) mgl32.Vec2 {
	return mgl32.Vec2{(x-r.X)/r.W*2 - 1, -((y-r.Y)/r.H*2 - 1)}
}

func TestViewportCropKeepsZoomAndPan(t *testing.T) {
	for _, full := range []world.Rect{
		{X: -400, Y: -300, W: 1600, H: 1200}, // zoom 2, centred
		{X: -100, Y: -600, W: 2400, H: 1800}, // zoom 3, panned
		{X: 50, Y: -20, W: 600, H: 700},      // partly inside
	} {
		clip, ok := clampViewport(full, 800, 600)
		require.True(t, ok)
		crop := viewportCrop(full, clip)

		// a canvas pixel lands where picking maps it through full
		for _, px := range [][2]float32{{clip.X, clip.Y}, {clip.X + clip.W, clip.Y + clip.H}, {clip.X + 0.3*clip.W, clip.Y + 0.7*clip.H}} {
			picked := pixelNDC(full, px[0], px[1])
			drawn := pixelNDC(clip, px[0], px[1])
			got := cropNDC(crop, picked)
			assert.InDelta(t, drawn[0], got[0], 1e-4, "x of %v in %v", px, full)
			assert.InDelta(t, drawn[1], got[1], 1e-4, "y of %v in %v", px, full)
		}
	}

	zoom2 := viewportCrop(world.Rect{X: -400, Y: -300, W: 1600, H: 1200}, world.Rect{W: 800, H: 600})
	assert.InDeltaSlice(t, []float32{2, 2, 0, 0}, zoom2[:], 1e-5)
	assert.Equal(t, [4]float32{1, 1, 0, 0}, viewportCrop(world.Rect{W: 800, H: 600}, world.Rect{W: 800, H: 600}))
}

func TestClipCorrectionMapsDepthToUnitRange(t *testing.T) {
	proj := clipCorrection.Mul4(mgl32.Perspective(mgl32.DegToRad(50), 1, 1, 100))

	near := proj.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := proj.Mul4x1(mgl32.Vec4{0, 0, -100, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)
}

func TestGizmoInstance(t *testing.T) {
	line := core.NewLineGizmo(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 0, 4}, [4]float32{1, 1, 1, 1})
	inst, ok := gizmoInstance(line)
	require.True(t, ok)
	end := inst.ModelMat.Mul4x1(mgl32.Vec4{0, 0, 1, 1}).Vec3()
	assert.InDelta(t, 1, end.X(), 1e-4)
	assert.InDelta(t, 4, end.Z(), 1e-4)

	_, ok = gizmoInstance(core.NewLineGizmo(mgl32.Vec3{}, mgl32.Vec3{}, [4]float32{}))
	assert.False(t, ok)

	sphere := core.NewSphereGizmo(mgl32.Vec3{0, 0, 5}, 2, [4]float32{1, 0, 0, 1})
	inst, ok = gizmoInstance(sphere)
	require.True(t, ok)
	assert.Equal(t, sphere.ModelMatrix, inst.ModelMat)
}

func TestGizmoShapesLayout(t *testing.T) {
	p := &GizmoPass{
		shapeOffsets: map[core.GizmoType]uint32{},
		shapeCounts:  map[core.GizmoType]uint32{},
	}
	verts := p.buildShapes()

	var total uint32
	for _, s := range gizmoShapes {
		assert.Equal(t, total, p.shapeOffsets[s], "shape %d", s)
		assert.Zero(t, p.shapeCounts[s]%2, "line list needs vertex pairs")
		total += p.shapeCounts[s]
	}
	assert.Equal(t, int(total), len(verts))
	assert.Equal(t, uint32(24), p.shapeCounts[core.GizmoCube])
}
