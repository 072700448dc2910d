package shaders

import (
	_ "embed"
)

//go:embed scene.wgsl
var SceneWGSL string

//go:embed gizmo.wgsl
var GizmoWGSL string
