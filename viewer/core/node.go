package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type NodeId string

type NodeKind int

const (
	KindGroup NodeKind = iota
	KindPoints
	KindLines
	KindMesh
	KindImagePlane
)

func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindPoints:
		return "points"
	case KindLines:
		return "lines"
	case KindMesh:
		return "mesh"
	case KindImagePlane:
		return "image-plane"
	}
	return "unknown"
}

// Node is one element of the scene graph. Nodes never attach themselves;
// ownership changes only through Add, Remove and Detach.
type Node struct {
	Id        NodeId
	Name      string
	Kind      NodeKind
	Transform *Transform
	Visible   bool
	Geometry  *Geometry
	Material  *Material
	Texture   *Texture

	parent   *Node
	children []*Node
}

func NewNode(name string, kind NodeKind) *Node {
	return &Node{
		Id:        NodeId(uuid.NewString()),
		Name:      name,
		Kind:      kind,
		Transform: NewTransform(),
		Visible:   true,
	}
}

func NewGroup(name string) *Node {
	return NewNode(name, KindGroup)
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node { return n.children }

// Add re-parents child under n.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.Remove(n)
	}
}

func (n *Node) Clear() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

// WorldMatrix composes the local matrices from the root down to n.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.Transform.Local()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Transform.Local().Mul4(m)
	}
	return m
}

// WorldInverse maps world space into the local space of n.
func (n *Node) WorldInverse() mgl32.Mat4 {
	m := n.Transform.LocalInverse()
	for p := n.parent; p != nil; p = p.parent {
		m = m.Mul4(p.Transform.LocalInverse())
	}
	return m
}

// WorldPosition returns the origin of n in world space.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// Shown reports whether n and all of its ancestors are visible.
func (n *Node) Shown() bool {
	for p := n; p != nil; p = p.parent {
		if !p.Visible {
			return false
		}
	}
	return true
}

// Traverse walks the subtree depth-first. Returning false from fn skips the
// children of that node.
func (n *Node) Traverse(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// TraverseVisible walks only visible nodes.
func (n *Node) TraverseVisible(fn func(*Node)) {
	n.Traverse(func(c *Node) bool {
		if !c.Visible {
			return false
		}
		fn(c)
		return true
	})
}

func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}
