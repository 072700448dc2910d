// Package entities builds the renderable categories of a scan. Factories
// only build nodes; callers decide where they live with Attach and Detach.
package entities

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
)

type Entity interface {
	Node() *core.Node
}

// Attach moves e under parent.
func Attach(parent *core.Node, e Entity) {
	if parent == nil || e == nil || e.Node() == nil {
		return
	}
	parent.Add(e.Node())
}

// Detach removes e from whatever holds it.
func Detach(e Entity) {
	if e == nil || e.Node() == nil {
		return
	}
	e.Node().Detach()
}

type base struct {
	node *core.Node
}

func (b *base) Node() *core.Node { return b.node }

// SetVisible hides or shows the entity without touching its geometry.
func (b *base) SetVisible(v bool) { b.node.Visible = v }

func (b *base) Visible() bool { return b.node.Visible }

func (b *base) SetPosition(p mgl32.Vec3) { b.node.Transform.Position = p }

func vec3(p [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(p[0]), float32(p[1]), float32(p[2])}
}
