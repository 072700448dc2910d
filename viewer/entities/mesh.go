package entities

import (
	"github.com/gekko3d/scanview/viewer/core"
)

type Mesh struct {
	base
}

// NewMesh wraps a triangle geometry. Vertex normals are computed when the
// source carried none.
func NewMesh(geom *core.Geometry, color [4]float32) *Mesh {
	if len(geom.Normals) != len(geom.Positions) {
		geom.ComputeVertexNormals()
	}
	geom.ComputeBoundingBox()

	n := core.NewNode("mesh", core.KindMesh)
	n.Geometry = geom
	n.Material = core.NewMaterial(color)
	return &Mesh{base{node: n}}
}

func (m *Mesh) SetColor(c [4]float32) {
	m.node.Material.Color = c
}

func (m *Mesh) SetOpacity(o float32) {
	m.node.Material.Opacity = o
}
