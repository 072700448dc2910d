package core

type Material struct {
	Color   [4]float32 // RGBA, 0..1
	Opacity float32

	// Points
	PointSize float32

	// Lines. Resolution is the viewport size in pixels used to keep line
	// width constant on screen.
	LineWidth  float32
	Resolution [2]float32

	// VertexColors sources color from Geometry.Colors instead of Color.
	VertexColors bool
	DepthTest    bool
}

func NewMaterial(color [4]float32) *Material {
	return &Material{
		Color:     color,
		Opacity:   1.0,
		PointSize: 1.0,
		LineWidth: 1.0,
		DepthTest: true,
	}
}

func DefaultMaterial() *Material {
	return NewMaterial([4]float32{1, 1, 1, 1})
}

// RGB converts a 0xRRGGBB value to an opaque color.
func RGB(hex uint32) [4]float32 {
	return [4]float32{
		float32((hex>>16)&0xff) / 255,
		float32((hex>>8)&0xff) / 255,
		float32(hex&0xff) / 255,
		1,
	}
}
