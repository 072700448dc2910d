package entities

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
)

// LineKit builds screen-space thick line nodes. One kit is created per
// world and handed to every entity that draws lines, so that all line
// materials share the same viewport resolution.
type LineKit struct {
	mu         sync.Mutex
	resolution [2]float32
	materials  map[*core.Material]struct{}
}

func NewLineKit(width, height float32) *LineKit {
	return &LineKit{
		resolution: [2]float32{width, height},
		materials:  make(map[*core.Material]struct{}),
	}
}

// NewSegments returns a line node drawing consecutive position pairs.
func (k *LineKit) NewSegments(name string, segments []mgl32.Vec3, color [4]float32, width float32) *core.Node {
	n := core.NewNode(name, core.KindLines)
	n.Geometry = core.NewGeometry(segments)
	n.Material = k.NewMaterial(color, width)
	return n
}

// NewPolyline returns a line node through points in order.
func (k *LineKit) NewPolyline(name string, points []mgl32.Vec3, color [4]float32, width float32) *core.Node {
	return k.NewSegments(name, PolylineSegments(points), color, width)
}

func (k *LineKit) NewMaterial(color [4]float32, width float32) *core.Material {
	m := core.NewMaterial(color)
	m.LineWidth = width

	k.mu.Lock()
	m.Resolution = k.resolution
	k.materials[m] = struct{}{}
	k.mu.Unlock()
	return m
}

// SetResolution updates every live line material.
func (k *LineKit) SetResolution(width, height float32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.resolution = [2]float32{width, height}
	for m := range k.materials {
		m.Resolution = k.resolution
	}
}

func (k *LineKit) Resolution() [2]float32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.resolution
}

// Release forgets the line materials of a subtree that left the scene.
func (k *LineKit) Release(n *core.Node) {
	if n == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	n.Traverse(func(c *core.Node) bool {
		if c.Material != nil {
			delete(k.materials, c.Material)
		}
		return true
	})
}

func (k *LineKit) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.materials)
}

func PolylineSegments(points []mgl32.Vec3) []mgl32.Vec3 {
	if len(points) < 2 {
		return nil
	}
	segs := make([]mgl32.Vec3, 0, 2*(len(points)-1))
	for i := 0; i+1 < len(points); i++ {
		segs = append(segs, points[i], points[i+1])
	}
	return segs
}
