package entities

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
)

// DefaultLabelPalette colours labels in order of first appearance.
var DefaultLabelPalette = [][4]float32{
	core.RGB(0x1f77b4), core.RGB(0xff7f0e), core.RGB(0x2ca02c), core.RGB(0xd62728),
	core.RGB(0x9467bd), core.RGB(0x8c564b), core.RGB(0xe377c2), core.RGB(0x7f7f7f),
	core.RGB(0xbcbd22), core.RGB(0x17becf),
}

// SegmentedPointCloud colours each point by its label and overrides the
// colour of highlighted points.
type SegmentedPointCloud struct {
	*PointCloud

	labels      []int32
	labelOrder  []int32
	labelColors map[int32][4]float32
	highlighted map[int]struct{}
	highlight   [4]float32

	gridCell float32
	grid     *core.PointGrid
}

func NewSegmentedPointCloud(geom *core.Geometry, labels []int32, size float32, highlight [4]float32) *SegmentedPointCloud {
	pc := NewPointCloud(geom, [4]float32{1, 1, 1, 1}, size)
	pc.node.Name = "segmented-pointcloud"
	pc.node.Material.VertexColors = true

	s := &SegmentedPointCloud{
		PointCloud:  pc,
		labels:      labels,
		labelColors: make(map[int32][4]float32),
		highlighted: make(map[int]struct{}),
		highlight:   highlight,
	}
	for _, l := range labels {
		if !slices.Contains(s.labelOrder, l) {
			s.labelOrder = append(s.labelOrder, l)
		}
	}
	for i, l := range s.labelOrder {
		s.labelColors[l] = DefaultLabelPalette[i%len(DefaultLabelPalette)]
	}
	s.recolor()
	return s
}

func (s *SegmentedPointCloud) Labels() []int32 { return s.labels }

// LabelSet returns the distinct labels in order of first appearance.
func (s *SegmentedPointCloud) LabelSet() []int32 { return s.labelOrder }

func (s *SegmentedPointCloud) Label(i int) (int32, bool) {
	if i < 0 || i >= len(s.labels) {
		return 0, false
	}
	return s.labels[i], true
}

func (s *SegmentedPointCloud) Positions() []mgl32.Vec3 { return s.node.Geometry.Positions }

// SetLabelColors overrides colours for the given labels; others keep theirs.
func (s *SegmentedPointCloud) SetLabelColors(colors map[int32][4]float32) {
	for l, c := range colors {
		s.labelColors[l] = c
	}
	s.recolor()
}

func (s *SegmentedPointCloud) LabelColor(l int32) [4]float32 { return s.labelColors[l] }

// SetHighlighted replaces the highlighted point set.
func (s *SegmentedPointCloud) SetHighlighted(indexes []int) {
	clear(s.highlighted)
	for _, i := range indexes {
		if i >= 0 && i < len(s.node.Geometry.Positions) {
			s.highlighted[i] = struct{}{}
		}
	}
	s.recolor()
}

func (s *SegmentedPointCloud) Highlighted() []int {
	out := make([]int, 0, len(s.highlighted))
	for i := range s.highlighted {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func (s *SegmentedPointCloud) SetHighlightColor(c [4]float32) {
	s.highlight = c
	s.recolor()
}

// Grid returns a spatial index over the positions, rebuilt when the cell
// size changes.
func (s *SegmentedPointCloud) Grid(cellSize float32) *core.PointGrid {
	if s.grid == nil || s.gridCell != cellSize {
		s.grid = core.NewPointGrid(cellSize, s.node.Geometry.Positions)
		s.gridCell = cellSize
	}
	return s.grid
}

func (s *SegmentedPointCloud) recolor() {
	g := s.node.Geometry
	if len(g.Colors) != len(g.Positions) {
		g.Colors = make([][3]float32, len(g.Positions))
	}
	for i := range g.Positions {
		c := [4]float32{1, 1, 1, 1}
		if _, ok := s.highlighted[i]; ok {
			c = s.highlight
		} else if i < len(s.labels) {
			c = s.labelColors[s.labels[i]]
		}
		g.Colors[i] = [3]float32{c[0], c[1], c[2]}
	}
	g.Version++
}
