package gpu

import (
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/scanview/viewer/shaders"
)

const depthFormat = wgpu.TextureFormatDepth24Plus

// Vertex is the packed layout shared by meshes, points, lines and image
// planes.
type Vertex struct {
	Pos    [3]float32
	Normal [3]float32
	Color  [3]float32
	UV     [2]float32
}

var vertexStride = uint64(unsafe.Sizeof(Vertex{}))

type cameraUniform struct {
	ViewProj mgl32.Mat4
	// Viewport is the full viewport rectangle as width, height, x, y. It
	// may extend past the target when a photo is zoomed.
	Viewport [4]float32
	// Crop maps the viewport's NDC into the clamped part that is drawn.
	Crop [4]float32
}

type objectUniform struct {
	Model      mgl32.Mat4
	Color      [4]float32
	Params     [4]float32
	Resolution [4]float32
}

const uniformSize = 256

// clipCorrection maps OpenGL clip depth [-w, w] to the [0, w] range
// WebGPU expects.
var clipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

type pipelines struct {
	cameraLayout *wgpu.BindGroupLayout
	objectLayout *wgpu.BindGroupLayout
	imageLayout  *wgpu.BindGroupLayout

	mesh   *wgpu.RenderPipeline
	points *wgpu.RenderPipeline
	lines  *wgpu.RenderPipeline
	image  *wgpu.RenderPipeline
}

func alphaBlendTarget(format wgpu.TextureFormat) wgpu.ColorTargetState {
	return wgpu.ColorTargetState{
		Format:    format,
		WriteMask: wgpu.ColorWriteMaskAll,
		Blend: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
		},
	}
}

// depthState returns a depth-tested state, or one that always passes and
// never writes when test is false. Every pipeline carries one since all
// passes bind a depth attachment.
func depthState(test bool) *wgpu.DepthStencilState {
	keep := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	s := &wgpu.DepthStencilState{
		Format:            depthFormat,
		DepthWriteEnabled: test,
		DepthCompare:      wgpu.CompareFunctionAlways,
		StencilFront:      keep,
		StencilBack:       keep,
	}
	if test {
		s.DepthCompare = wgpu.CompareFunctionLessEqual
	}
	return s
}

func uniformLayoutEntry(visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: visibility,
		Buffer: wgpu.BufferBindingLayout{
			Type:           wgpu.BufferBindingTypeUniform,
			MinBindingSize: uniformSize,
		},
	}
}

func newPipelines(device *wgpu.Device, format wgpu.TextureFormat) (*pipelines, error) {
	p := &pipelines{}
	var err error

	p.cameraLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "CameraBGL",
		Entries: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(wgpu.ShaderStageVertex)},
	})
	if err != nil {
		return nil, err
	}
	p.objectLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "ObjectBGL",
		Entries: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(wgpu.ShaderStageVertex | wgpu.ShaderStageFragment)},
	})
	if err != nil {
		return nil, err
	}
	p.imageLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ImageBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SceneShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.SceneWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	sceneLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "SceneLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.cameraLayout, p.objectLayout},
	})
	if err != nil {
		return nil, err
	}
	defer sceneLayout.Release()

	imageLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "ImageLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.cameraLayout, p.objectLayout, p.imageLayout},
	})
	if err != nil {
		return nil, err
	}
	defer imageLayout.Release()

	vertexAttrs := []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 24, ShaderLocation: 2},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 36, ShaderLocation: 4},
	}
	perVertex := wgpu.VertexBufferLayout{
		ArrayStride: vertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  vertexAttrs,
	}
	perPoint := wgpu.VertexBufferLayout{
		ArrayStride: vertexStride,
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes:  vertexAttrs,
	}
	// one instance per consecutive vertex pair
	perSegment := wgpu.VertexBufferLayout{
		ArrayStride: 2 * vertexStride,
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x3, Offset: 24, ShaderLocation: 2},
			{Format: wgpu.VertexFormatFloat32x3, Offset: vertexStride, ShaderLocation: 3},
		},
	}

	build := func(label string, layout *wgpu.PipelineLayout, vs, fs string, buf wgpu.VertexBufferLayout, depthTest bool) (*wgpu.RenderPipeline, error) {
		return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  label,
			Layout: layout,
			Vertex: wgpu.VertexState{
				Module:     module,
				EntryPoint: vs,
				Buffers:    []wgpu.VertexBufferLayout{buf},
			},
			Fragment: &wgpu.FragmentState{
				Module:     module,
				EntryPoint: fs,
				Targets:    []wgpu.ColorTargetState{alphaBlendTarget(format)},
			},
			Primitive: wgpu.PrimitiveState{
				Topology:  wgpu.PrimitiveTopologyTriangleList,
				FrontFace: wgpu.FrontFaceCCW,
				CullMode:  wgpu.CullModeNone,
			},
			DepthStencil: depthState(depthTest),
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
	}

	if p.mesh, err = build("MeshPipeline", sceneLayout, "vs_mesh", "fs_mesh", perVertex, true); err != nil {
		return nil, err
	}
	if p.points, err = build("PointsPipeline", sceneLayout, "vs_points", "fs_points", perPoint, true); err != nil {
		return nil, err
	}
	if p.lines, err = build("LinesPipeline", sceneLayout, "vs_lines", "fs_flat", perSegment, true); err != nil {
		return nil, err
	}
	if p.image, err = build("ImagePipeline", imageLayout, "vs_image", "fs_image", perVertex, false); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pipelines) Release() {
	for _, pl := range []*wgpu.RenderPipeline{p.mesh, p.points, p.lines, p.image} {
		if pl != nil {
			pl.Release()
		}
	}
	for _, l := range []*wgpu.BindGroupLayout{p.cameraLayout, p.objectLayout, p.imageLayout} {
		if l != nil {
			l.Release()
		}
	}
}
