package entities

import (
	"github.com/gekko3d/scanview/viewer/core"
)

// PointCloud draws a uniformly coloured point set whose on-screen size
// follows the 2D overlay zoom.
type PointCloud struct {
	base
	size float32
	zoom float32
}

func NewPointCloud(geom *core.Geometry, color [4]float32, size float32) *PointCloud {
	geom.ComputeBoundingBox()

	n := core.NewNode("pointcloud", core.KindPoints)
	n.Geometry = geom
	n.Material = core.NewMaterial(color)
	p := &PointCloud{base: base{node: n}, size: size, zoom: 1}
	p.apply()
	return p
}

func (p *PointCloud) SetColor(c [4]float32) {
	p.node.Material.Color = c
}

func (p *PointCloud) SetPointSize(s float32) {
	p.size = s
	p.apply()
}

// SetZoomLevel scales the base point size.
func (p *PointCloud) SetZoomLevel(z float32) {
	if z <= 0 {
		z = 1
	}
	p.zoom = z
	p.apply()
}

func (p *PointCloud) PointSize() float32 { return p.node.Material.PointSize }

func (p *PointCloud) apply() {
	p.node.Material.PointSize = p.size * p.zoom
}
