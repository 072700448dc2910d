package entities

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
)

// ImagePlane is a textured quad in the XY plane facing +Z, width×height
// units large and centred on its node origin. UV (0,0) is the top left of
// the photo.
type ImagePlane struct {
	base
}

func NewImagePlane(tex *core.Texture, width, height float32) *ImagePlane {
	hw, hh := width/2, height/2
	g := core.NewGeometry([]mgl32.Vec3{
		{-hw, -hh, 0}, {hw, -hh, 0}, {hw, hh, 0}, {-hw, hh, 0},
	})
	g.UVs = []mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	g.Normals = []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	g.Indices = []uint32{0, 1, 2, 0, 2, 3}

	n := core.NewNode("image-plane", core.KindImagePlane)
	n.Geometry = g
	n.Texture = tex
	n.Material = core.NewMaterial([4]float32{1, 1, 1, 1})
	n.Material.DepthTest = false
	return &ImagePlane{base{node: n}}
}

func (p *ImagePlane) Texture() *core.Texture { return p.node.Texture }

// Size returns the quad size in node units.
func (p *ImagePlane) Size() (w, h float32) {
	b := p.node.Geometry.ComputeBoundingBox()
	s := b.Size()
	return s.X(), s.Y()
}
