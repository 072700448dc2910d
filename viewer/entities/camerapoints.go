package entities

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
)

type CameraPointColors struct {
	Base     [4]float32
	Hovered  [4]float32
	Selected [4]float32
}

// CameraPoints draws a small frustum per pose, in the pose's camera frame
// (+Z forward, +Y down).
type CameraPoints struct {
	base
	markers  []*core.Node
	poses    []*scan.Pose
	colors   CameraPointColors
	hovered  *scan.Pose
	selected *scan.Pose
}

func NewCameraPoints(kit *LineKit, poses []*scan.Pose, size float32, colors CameraPointColors, width float32) *CameraPoints {
	group := core.NewGroup("camera-points")
	c := &CameraPoints{base: base{node: group}, colors: colors}

	for _, p := range poses {
		segs := frustumSegments(size, aspect(p))
		n := kit.NewSegments("camera-"+p.Id, segs, colors.Base, width)
		n.Transform.Place(p.Position, p.ObjectRotation)
		group.Add(n)
		c.markers = append(c.markers, n)
		c.poses = append(c.poses, p)
	}
	return c
}

func aspect(p *scan.Pose) float32 {
	w, h := p.ImageSize()
	if w <= 0 || h <= 0 {
		return 4.0 / 3.0
	}
	return float32(w) / float32(h)
}

func frustumSegments(size, aspect float32) []mgl32.Vec3 {
	hh := size / 2
	hw := hh * aspect
	apex := mgl32.Vec3{0, 0, 0}
	c := [4]mgl32.Vec3{
		{-hw, -hh, size}, {hw, -hh, size}, {hw, hh, size}, {-hw, hh, size},
	}
	segs := make([]mgl32.Vec3, 0, 18)
	for i := 0; i < 4; i++ {
		segs = append(segs, apex, c[i], c[i], c[(i+1)%4])
	}
	// image top edge marker
	segs = append(segs, c[0], mgl32.Vec3{0, -hh * 1.5, size}, mgl32.Vec3{0, -hh * 1.5, size}, c[1])
	return segs
}

func (c *CameraPoints) Len() int { return len(c.markers) }

// PoseAt maps a hit marker node back to its pose.
func (c *CameraPoints) PoseAt(n *core.Node) (*scan.Pose, bool) {
	for i, m := range c.markers {
		if m == n {
			return c.poses[i], true
		}
	}
	return nil, false
}

func (c *CameraPoints) Marker(p *scan.Pose) *core.Node {
	for i, q := range c.poses {
		if samePose(q, p) {
			return c.markers[i]
		}
	}
	return nil
}

func (c *CameraPoints) SetHovered(p *scan.Pose) {
	c.hovered = p
	c.apply()
}

func (c *CameraPoints) SetSelected(p *scan.Pose) {
	c.selected = p
	c.apply()
}

func (c *CameraPoints) SetColors(colors CameraPointColors) {
	c.colors = colors
	c.apply()
}

func (c *CameraPoints) apply() {
	for i, m := range c.markers {
		switch {
		case samePose(c.poses[i], c.selected):
			m.Material.Color = c.colors.Selected
		case samePose(c.poses[i], c.hovered):
			m.Material.Color = c.colors.Hovered
		default:
			m.Material.Color = c.colors.Base
		}
	}
}

func samePose(a, b *scan.Pose) bool {
	return a != nil && b != nil && a.Id == b.Id
}
