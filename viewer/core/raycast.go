package core

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Transform maps the ray by m. The direction is left unnormalized so that
// parameters along the ray stay comparable across spaces.
func (r Ray) Transform(m mgl32.Mat4) Ray {
	return Ray{
		Origin:    m.Mul4x1(r.Origin.Vec4(1)).Vec3(),
		Direction: m.Mul4x1(r.Direction.Vec4(0)).Vec3(),
	}
}

// ClosestT returns the parameter of the point on the ray closest to p,
// clamped to the ray start.
func (r Ray) ClosestT(p mgl32.Vec3) float32 {
	dd := r.Direction.Dot(r.Direction)
	if dd == 0 {
		return 0
	}
	t := p.Sub(r.Origin).Dot(r.Direction) / dd
	if t < 0 {
		return 0
	}
	return t
}

func (r Ray) DistanceSqToPoint(p mgl32.Vec3) float32 {
	q := r.At(r.ClosestT(p))
	d := q.Sub(p)
	return d.Dot(d)
}

// DistanceSqToSegment returns the squared distance between the ray and the
// segment [a, b], the ray parameter and the closest point on the segment.
func (r Ray) DistanceSqToSegment(a, b mgl32.Vec3) (distSq, tRay float32, onSegment mgl32.Vec3) {
	d1 := r.Direction
	d2 := b.Sub(a)
	w := r.Origin.Sub(a)

	aa := d1.Dot(d1)
	bb := d1.Dot(d2)
	cc := d2.Dot(d2)
	dd := d1.Dot(w)
	ee := d2.Dot(w)

	denom := aa*cc - bb*bb
	var s, t float32
	if denom > 1e-12 {
		s = (bb*ee - cc*dd) / denom
	}
	if s < 0 {
		s = 0
	}
	if cc > 1e-12 {
		t = (bb*s + ee) / cc
	}
	if t < 0 {
		t = 0
		if aa > 0 {
			s = max(0, -dd/aa)
		}
	} else if t > 1 {
		t = 1
		if aa > 0 {
			s = max(0, (bb-dd)/aa)
		}
	}

	p1 := r.At(s)
	p2 := a.Add(d2.Mul(t))
	diff := p1.Sub(p2)
	return diff.Dot(diff), s, p2
}

// IntersectAABB returns the entry and exit parameters; tMin > tMax means a miss.
func (r Ray) IntersectAABB(b AABB) (tMin, tMax float32) {
	tMin = float32(math.Inf(-1))
	tMax = float32(math.Inf(1))
	for i := 0; i < 3; i++ {
		o, d := r.Origin[i], r.Direction[i]
		if math.Abs(float64(d)) < 1e-12 {
			if o < b.Min[i] || o > b.Max[i] {
				return 1, 0
			}
			continue
		}
		inv := 1 / d
		t1 := (b.Min[i] - o) * inv
		t2 := (b.Max[i] - o) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = max(tMin, t1)
		tMax = min(tMax, t2)
	}
	return tMin, tMax
}

// IntersectTriangle implements Moller-Trumbore without backface culling.
func (r Ray) IntersectTriangle(a, b, c mgl32.Vec3) (float32, bool) {
	const eps = 1e-9
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= eps {
		return 0, false
	}
	return t, true
}

// Plane is the set of points p with Normal·p + Constant = 0.
type Plane struct {
	Normal   mgl32.Vec3
	Constant float32
}

func PlaneFromNormalAndPoint(normal, point mgl32.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Constant: -n.Dot(point)}
}

func (r Ray) IntersectPlane(p Plane) (mgl32.Vec3, bool) {
	denom := p.Normal.Dot(r.Direction)
	if math.Abs(float64(denom)) < 1e-12 {
		return mgl32.Vec3{}, false
	}
	t := -(r.Origin.Dot(p.Normal) + p.Constant) / denom
	if t < 0 {
		return mgl32.Vec3{}, false
	}
	return r.At(t), true
}

type Intersection struct {
	Node     *Node
	Distance float32
	Point    mgl32.Vec3
	// Index is the vertex index for points, the segment index for lines and
	// the face index for meshes.
	Index int
}

// Raycaster tests a world-space ray against scene nodes. Thresholds are in
// world units.
type Raycaster struct {
	Ray            Ray
	PointThreshold float32
	LineThreshold  float32
	Far            float32
}

func NewRaycaster() *Raycaster {
	return &Raycaster{
		PointThreshold: 1,
		LineThreshold:  1,
		Far:            float32(math.Inf(1)),
	}
}

func (rc *Raycaster) SetFromCamera(ndc mgl32.Vec2, cam *Camera) {
	rc.Ray = cam.RayFromNDC(ndc)
}

// IntersectObjects collects hits against every shown node in the given
// subtrees, nearest first.
func (rc *Raycaster) IntersectObjects(nodes []*Node, recursive bool) []Intersection {
	var hits []Intersection
	for _, n := range nodes {
		if n == nil || !n.Shown() {
			continue
		}
		if recursive {
			n.TraverseVisible(func(c *Node) {
				hits = rc.intersectNode(c, hits)
			})
		} else {
			hits = rc.intersectNode(n, hits)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func (rc *Raycaster) IntersectObject(n *Node, recursive bool) []Intersection {
	return rc.IntersectObjects([]*Node{n}, recursive)
}

func (rc *Raycaster) intersectNode(n *Node, hits []Intersection) []Intersection {
	g := n.Geometry
	if g == nil || len(g.Positions) == 0 {
		return hits
	}
	world := n.WorldMatrix()

	switch n.Kind {
	case KindPoints:
		return rc.intersectPoints(n, world, hits)
	case KindLines:
		return rc.intersectLines(n, world, hits)
	case KindMesh:
		return rc.intersectMesh(n, world, hits)
	}
	return hits
}

// broadPhase rejects a node whose world bounds, padded by pad, miss the ray.
func (rc *Raycaster) broadPhase(n *Node, pad float32) bool {
	g := n.Geometry
	local := rc.Ray.Transform(n.WorldInverse())
	b := g.ComputeBoundingBox()
	if b.IsEmpty() {
		return false
	}
	// pad is in world units; scale it into local space along the ray
	scale := local.Direction.Len() / rc.Ray.Direction.Len()
	tMin, tMax := local.IntersectAABB(b.Grow(pad * scale))
	return tMin <= tMax && tMax >= 0
}

func (rc *Raycaster) intersectPoints(n *Node, world mgl32.Mat4, hits []Intersection) []Intersection {
	g := n.Geometry
	if !rc.broadPhase(n, rc.PointThreshold) {
		return hits
	}
	thresholdSq := rc.PointThreshold * rc.PointThreshold
	for i, p := range g.Positions {
		wp := world.Mul4x1(p.Vec4(1)).Vec3()
		if rc.Ray.DistanceSqToPoint(wp) > thresholdSq {
			continue
		}
		t := rc.Ray.ClosestT(wp)
		if t <= 0 {
			continue
		}
		dist := wp.Sub(rc.Ray.Origin).Len()
		if dist > rc.Far {
			continue
		}
		hits = append(hits, Intersection{Node: n, Distance: dist, Point: wp, Index: i})
	}
	return hits
}

func (rc *Raycaster) intersectLines(n *Node, world mgl32.Mat4, hits []Intersection) []Intersection {
	g := n.Geometry
	if !rc.broadPhase(n, rc.LineThreshold) {
		return hits
	}
	thresholdSq := rc.LineThreshold * rc.LineThreshold
	for i := 0; i+1 < len(g.Positions); i += 2 {
		a := world.Mul4x1(g.Positions[i].Vec4(1)).Vec3()
		b := world.Mul4x1(g.Positions[i+1].Vec4(1)).Vec3()
		distSq, t, onSeg := rc.Ray.DistanceSqToSegment(a, b)
		if distSq > thresholdSq || t <= 0 {
			continue
		}
		dist := onSeg.Sub(rc.Ray.Origin).Len()
		if dist > rc.Far {
			continue
		}
		hits = append(hits, Intersection{Node: n, Distance: dist, Point: onSeg, Index: i / 2})
	}
	return hits
}

func (rc *Raycaster) intersectMesh(n *Node, world mgl32.Mat4, hits []Intersection) []Intersection {
	g := n.Geometry
	if !rc.broadPhase(n, 0) {
		return hits
	}
	local := rc.Ray.Transform(n.WorldInverse())
	best := -1
	var bestT float32
	for i := 0; i < g.TriangleCount(); i++ {
		a, b, c := g.Triangle(i)
		t, ok := local.IntersectTriangle(a, b, c)
		if !ok {
			continue
		}
		if best < 0 || t < bestT {
			best, bestT = i, t
		}
	}
	if best < 0 {
		return hits
	}
	wp := world.Mul4x1(local.At(bestT).Vec4(1)).Vec3()
	dist := wp.Sub(rc.Ray.Origin).Len()
	if dist > rc.Far {
		return hits
	}
	return append(hits, Intersection{Node: n, Distance: dist, Point: wp, Index: best})
}
