package entities

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
)

const DefaultGridDivisions = 10

type GridInfo struct {
	Width     float32
	Height    float32
	Divisions int
	// Z is the grid height in the workspace node's frame.
	Z float32
}

// Workspace draws the scan volume: a grid on its bottom face, the box edges
// and three axes. The node sits at the workspace anchor, so its children are
// expressed around the box centre.
type Workspace struct {
	base
	grid  *core.Node
	box   *core.Node
	axes  []*core.Node
	info  GridInfo
	color [4]float32
}

func NewWorkspace(kit *LineKit, ws scan.Workspace, divisions int, color [4]float32, width float32) *Workspace {
	if divisions <= 0 {
		divisions = DefaultGridDivisions
	}
	w, h, d := float32(ws.Width()), float32(ws.Height()), float32(ws.Depth())
	hw, hh, hd := w/2, h/2, d/2

	group := core.NewGroup("workspace")
	anchor := ws.Anchor()
	group.Transform.Position = vec3(anchor)

	var gridSegs []mgl32.Vec3
	for i := 0; i <= divisions; i++ {
		f := float32(i) / float32(divisions)
		x := -hw + f*w
		y := -hh + f*h
		gridSegs = append(gridSegs,
			mgl32.Vec3{x, -hh, -hd}, mgl32.Vec3{x, hh, -hd},
			mgl32.Vec3{-hw, y, -hd}, mgl32.Vec3{hw, y, -hd},
		)
	}
	grid := kit.NewSegments("workspace-grid", gridSegs, color, width)
	group.Add(grid)

	corners := [8]mgl32.Vec3{
		{-hw, -hh, -hd}, {hw, -hh, -hd}, {hw, hh, -hd}, {-hw, hh, -hd},
		{-hw, -hh, hd}, {hw, -hh, hd}, {hw, hh, hd}, {-hw, hh, hd},
	}
	edges := [12][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	boxSegs := make([]mgl32.Vec3, 0, 24)
	for _, e := range edges {
		boxSegs = append(boxSegs, corners[e[0]], corners[e[1]])
	}
	box := kit.NewSegments("workspace-box", boxSegs, color, width)
	group.Add(box)

	axisLen := min(w, h) / 4
	origin := mgl32.Vec3{0, 0, -hd}
	axisColors := [3][4]float32{core.RGB(0xff0000), core.RGB(0x00ff00), core.RGB(0x0000ff)}
	var axes []*core.Node
	for i := 0; i < 3; i++ {
		var dir mgl32.Vec3
		dir[i] = axisLen
		n := kit.NewSegments("workspace-axis", []mgl32.Vec3{origin, origin.Add(dir)}, axisColors[i], width)
		group.Add(n)
		axes = append(axes, n)
	}

	return &Workspace{
		base:  base{node: group},
		grid:  grid,
		box:   box,
		axes:  axes,
		color: color,
		info:  GridInfo{Width: w, Height: h, Divisions: divisions, Z: -hd},
	}
}

func (w *Workspace) Grid() GridInfo { return w.info }

func (w *Workspace) GridNode() *core.Node { return w.grid }

func (w *Workspace) SetColor(c [4]float32) {
	w.color = c
	w.grid.Material.Color = c
	w.box.Material.Color = c
}
