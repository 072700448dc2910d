package core

import "github.com/go-gl/mathgl/mgl32"

type GizmoType int

const (
	GizmoLine GizmoType = iota
	GizmoCube
	GizmoSphere
	GizmoRect
	GizmoCircle
)

// Gizmo is a transient wireframe shape drawn on top of the scene.
type Gizmo struct {
	Type        GizmoType
	Color       [4]float32
	ModelMatrix mgl32.Mat4

	// For Line: P1 is Start, P2 is End. ModelMatrix is Identity usually.
	P1, P2 mgl32.Vec3
}

func NewSphereGizmo(center mgl32.Vec3, radius float32, color [4]float32) Gizmo {
	return Gizmo{
		Type:        GizmoSphere,
		Color:       color,
		ModelMatrix: mgl32.Translate3D(center.X(), center.Y(), center.Z()).Mul4(mgl32.Scale3D(radius, radius, radius)),
	}
}

func NewLineGizmo(p1, p2 mgl32.Vec3, color [4]float32) Gizmo {
	return Gizmo{
		Type:        GizmoLine,
		Color:       color,
		ModelMatrix: mgl32.Ident4(),
		P1:          p1,
		P2:          p2,
	}
}
