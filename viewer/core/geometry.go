package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyAABB returns an inverted box that any Expand call will fix up.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (b AABB) IsEmpty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

func (b AABB) Expand(p mgl32.Vec3) AABB {
	return AABB{
		Min: mgl32.Vec3{min(b.Min.X(), p.X()), min(b.Min.Y(), p.Y()), min(b.Min.Z(), p.Z())},
		Max: mgl32.Vec3{max(b.Max.X(), p.X()), max(b.Max.Y(), p.Y()), max(b.Max.Z(), p.Z())},
	}
}

// Grow pads the box by d on every side.
func (b AABB) Grow(d float32) AABB {
	pad := mgl32.Vec3{d, d, d}
	return AABB{Min: b.Min.Sub(pad), Max: b.Max.Add(pad)}
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Geometry holds vertex data in node-local space. Positions are interpreted
// per node kind: every vertex for points and meshes, consecutive pairs for
// line segments. Version is bumped on each mutation so GPU copies can be
// refreshed lazily.
type Geometry struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Colors    [][3]float32
	UVs       []mgl32.Vec2
	Indices   []uint32

	Version uint64
	bounds  *AABB
}

func NewGeometry(positions []mgl32.Vec3) *Geometry {
	return &Geometry{Positions: positions, Version: 1}
}

func (g *Geometry) VertexCount() int { return len(g.Positions) }

// MarkDirty invalidates cached bounds and GPU copies.
func (g *Geometry) MarkDirty() {
	g.Version++
	g.bounds = nil
}

func (g *Geometry) ComputeBoundingBox() AABB {
	if g.bounds != nil {
		return *g.bounds
	}
	b := EmptyAABB()
	for _, p := range g.Positions {
		b = b.Expand(p)
	}
	g.bounds = &b
	return b
}

// ComputeVertexNormals accumulates area-weighted face normals per vertex.
// Non-indexed geometry is treated as a triangle soup.
func (g *Geometry) ComputeVertexNormals() {
	normals := make([]mgl32.Vec3, len(g.Positions))
	addFace := func(a, b, c uint32) {
		if int(a) >= len(g.Positions) || int(b) >= len(g.Positions) || int(c) >= len(g.Positions) {
			return
		}
		pa, pb, pc := g.Positions[a], g.Positions[b], g.Positions[c]
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	if len(g.Indices) > 0 {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			addFace(g.Indices[i], g.Indices[i+1], g.Indices[i+2])
		}
	} else {
		for i := 0; i+2 < len(g.Positions); i += 3 {
			addFace(uint32(i), uint32(i+1), uint32(i+2))
		}
	}
	for i, n := range normals {
		if n.Len() > 0 {
			normals[i] = n.Normalize()
		}
	}
	g.Normals = normals
	g.MarkDirty()
}

// TriangleCount returns the number of faces for mesh geometry.
func (g *Geometry) TriangleCount() int {
	if len(g.Indices) > 0 {
		return len(g.Indices) / 3
	}
	return len(g.Positions) / 3
}

func (g *Geometry) Triangle(i int) (a, b, c mgl32.Vec3) {
	if len(g.Indices) > 0 {
		return g.Positions[g.Indices[3*i]], g.Positions[g.Indices[3*i+1]], g.Positions[g.Indices[3*i+2]]
	}
	return g.Positions[3*i], g.Positions[3*i+1], g.Positions[3*i+2]
}
