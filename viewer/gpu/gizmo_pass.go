package gpu

import (
	"math"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/shaders"
)

// GizmoVertex matches the WGSL VertexInput.
type GizmoVertex struct {
	Pos [3]float32
}

// GizmoInstance matches the WGSL instance attributes.
type GizmoInstance struct {
	ModelMat mgl32.Mat4
	Color    [4]float32
}

var gizmoShapes = []core.GizmoType{core.GizmoLine, core.GizmoCube, core.GizmoSphere, core.GizmoRect, core.GizmoCircle}

// GizmoPass draws transient wireframes (selection sphere, ruler helpers)
// over the scene without depth testing.
type GizmoPass struct {
	device   *wgpu.Device
	pipeline *wgpu.RenderPipeline

	vertexBuffer *wgpu.Buffer
	shapeOffsets map[core.GizmoType]uint32
	shapeCounts  map[core.GizmoType]uint32

	instanceBuffer *wgpu.Buffer
	instanceCap    uint32
	byShape        map[core.GizmoType][]GizmoInstance
}

func NewGizmoPass(device *wgpu.Device, cameraLayout *wgpu.BindGroupLayout, format wgpu.TextureFormat) (*GizmoPass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "GizmoShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.GizmoWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "GizmoPipelineLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{cameraLayout},
	})
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	instanceAttrs := make([]wgpu.VertexAttribute, 5)
	for i := range instanceAttrs {
		instanceAttrs[i] = wgpu.VertexAttribute{
			Format:         wgpu.VertexFormatFloat32x4,
			Offset:         uint64(i * 16),
			ShaderLocation: uint32(i + 2),
		}
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "GizmoPipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(GizmoVertex{})),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					},
				},
				{
					ArrayStride: uint64(unsafe.Sizeof(GizmoInstance{})),
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes:  instanceAttrs,
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{alphaBlendTarget(format)},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyLineList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depthState(false),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	p := &GizmoPass{
		device:       device,
		pipeline:     pipeline,
		shapeOffsets: make(map[core.GizmoType]uint32),
		shapeCounts:  make(map[core.GizmoType]uint32),
		byShape:      make(map[core.GizmoType][]GizmoInstance),
	}

	vertices := p.buildShapes()
	size := uint64(len(vertices)) * uint64(unsafe.Sizeof(GizmoVertex{}))
	p.vertexBuffer, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "GizmoUnitVertexBuffer",
		Contents: unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		pipeline.Release()
		return nil, err
	}
	return p, nil
}

// buildShapes lays out the unit shapes back to back and records where
// each one starts.
func (p *GizmoPass) buildShapes() []GizmoVertex {
	var vertices []GizmoVertex
	add := func(t core.GizmoType, shape []GizmoVertex) {
		p.shapeOffsets[t] = uint32(len(vertices))
		p.shapeCounts[t] = uint32(len(shape))
		vertices = append(vertices, shape...)
	}
	v := func(x, y, z float32) GizmoVertex { return GizmoVertex{Pos: [3]float32{x, y, z}} }

	// unit line along +Z, stretched from P1 to P2 per instance
	add(core.GizmoLine, []GizmoVertex{v(0, 0, 0), v(0, 0, 1)})

	lo, hi := float32(-0.5), float32(0.5)
	corners := [8]GizmoVertex{
		v(lo, lo, lo), v(hi, lo, lo), v(hi, hi, lo), v(lo, hi, lo),
		v(lo, lo, hi), v(hi, lo, hi), v(hi, hi, hi), v(lo, hi, hi),
	}
	var cube []GizmoVertex
	for _, e := range [12][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}} {
		cube = append(cube, corners[e[0]], corners[e[1]])
	}
	add(core.GizmoCube, cube)

	const steps = 48
	step := 2 * math.Pi / steps
	var sphere, circle []GizmoVertex
	for i := 0; i < steps; i++ {
		c1, s1 := float32(math.Cos(float64(i)*step)), float32(math.Sin(float64(i)*step))
		c2, s2 := float32(math.Cos(float64(i+1)*step)), float32(math.Sin(float64(i+1)*step))
		sphere = append(sphere,
			v(c1, s1, 0), v(c2, s2, 0),
			v(c1, 0, s1), v(c2, 0, s2),
			v(0, c1, s1), v(0, c2, s2))
		circle = append(circle, v(c1, s1, 0), v(c2, s2, 0))
	}
	add(core.GizmoSphere, sphere)

	add(core.GizmoRect, []GizmoVertex{
		v(lo, lo, 0), v(hi, lo, 0), v(hi, lo, 0), v(hi, hi, 0),
		v(hi, hi, 0), v(lo, hi, 0), v(lo, hi, 0), v(lo, lo, 0),
	})
	add(core.GizmoCircle, circle)
	return vertices
}

// gizmoInstance turns a gizmo into the instance transform of its unit
// shape. ok is false for degenerate lines.
func gizmoInstance(g core.Gizmo) (GizmoInstance, bool) {
	inst := GizmoInstance{Color: g.Color, ModelMat: g.ModelMatrix}
	if g.Type != core.GizmoLine {
		return inst, true
	}
	a := g.ModelMatrix.Mul4x1(g.P1.Vec4(1)).Vec3()
	b := g.ModelMatrix.Mul4x1(g.P2.Vec4(1)).Vec3()
	d := b.Sub(a)
	length := d.Len()
	if length < 1e-4 {
		return inst, false
	}
	rot := mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, 1}, d.Mul(1/length))
	inst.ModelMat = mgl32.Translate3D(a.X(), a.Y(), a.Z()).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(1, 1, length))
	return inst, true
}

func (p *GizmoPass) Update(queue *wgpu.Queue, gizmos []core.Gizmo) error {
	for k := range p.byShape {
		p.byShape[k] = p.byShape[k][:0]
	}
	for _, g := range gizmos {
		if inst, ok := gizmoInstance(g); ok {
			p.byShape[g.Type] = append(p.byShape[g.Type], inst)
		}
	}

	var all []GizmoInstance
	for _, t := range gizmoShapes {
		all = append(all, p.byShape[t]...)
	}
	if len(all) == 0 {
		return nil
	}

	count := uint32(len(all))
	if p.instanceBuffer == nil || p.instanceCap < count {
		if p.instanceBuffer != nil {
			p.instanceBuffer.Release()
		}
		p.instanceCap = count + 32
		buf, err := p.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "GizmoInstanceBuffer",
			Size:  uint64(p.instanceCap) * uint64(unsafe.Sizeof(GizmoInstance{})),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			p.instanceBuffer = nil
			return err
		}
		p.instanceBuffer = buf
	}
	size := uint64(len(all)) * uint64(unsafe.Sizeof(GizmoInstance{}))
	queue.WriteBuffer(p.instanceBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&all[0])), size))
	return nil
}

func (p *GizmoPass) Draw(pass *wgpu.RenderPassEncoder, cameraGroup *wgpu.BindGroup) {
	if p.instanceBuffer == nil {
		return
	}
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, cameraGroup, nil)
	pass.SetVertexBuffer(0, p.vertexBuffer, 0, p.vertexBuffer.GetSize())
	pass.SetVertexBuffer(1, p.instanceBuffer, 0, p.instanceBuffer.GetSize())

	var first uint32
	for _, t := range gizmoShapes {
		n := uint32(len(p.byShape[t]))
		if n > 0 {
			pass.Draw(p.shapeCounts[t], n, p.shapeOffsets[t], first)
		}
		first += n
	}
}

func (p *GizmoPass) Release() {
	if p.instanceBuffer != nil {
		p.instanceBuffer.Release()
	}
	p.vertexBuffer.Release()
	p.pipeline.Release()
}
