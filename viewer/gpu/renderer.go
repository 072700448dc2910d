// Package gpu draws viewer scenes with WebGPU, onto a GLFW window surface
// or into offscreen textures for snapshots.
package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/world"
)

var ErrReleased = errors.New("gpu: renderer released")

type Renderer struct {
	mu     sync.Mutex
	logger world.Logger

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	config   *wgpu.SurfaceConfiguration
	format   wgpu.TextureFormat

	width, height int
	configured    bool

	depth       *wgpu.Texture
	depthView   *wgpu.TextureView
	depthW      uint32
	depthH      uint32
	cameraBuf   *wgpu.Buffer
	cameraGroup *wgpu.BindGroup
	sampler     *wgpu.Sampler
	pipes       *pipelines
	gizmos      *GizmoPass
	objects     map[core.NodeId]*gpuObject
	textures    map[string]*gpuTexture
	frameNo     uint64
	released    bool
}

var _ world.Renderer = (*Renderer)(nil)

// New creates a renderer presenting to win.
func New(win *glfw.Window, logger world.Logger) (*Renderer, error) {
	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		surface.Release()
		instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}

	w, h := win.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	r := &Renderer{
		logger:   logger,
		instance: instance,
		surface:  surface,
		adapter:  adapter,
		format:   caps.Formats[0],
		width:    w,
		height:   h,
	}
	r.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      r.format,
		Width:       uint32(max(w, 1)),
		Height:      uint32(max(h, 1)),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// NewHeadless creates a renderer without a surface. Render draws into a
// scratch target; Capture is the useful entry point.
func NewHeadless(width, height int, logger world.Logger) (*Renderer, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	r := &Renderer{
		logger:   logger,
		instance: instance,
		adapter:  adapter,
		format:   wgpu.TextureFormatRGBA8Unorm,
		width:    width,
		height:   height,
	}
	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init() error {
	if r.logger == nil {
		r.logger = nopLogger{}
	}
	device, err := r.adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Viewer Device"})
	if err != nil {
		return fmt.Errorf("failed to request device: %w", err)
	}
	r.device = device
	r.queue = device.GetQueue()
	r.objects = make(map[core.NodeId]*gpuObject)
	r.textures = make(map[string]*gpuTexture)

	if r.pipes, err = newPipelines(device, r.format); err != nil {
		return fmt.Errorf("failed to create pipelines: %w", err)
	}
	if r.gizmos, err = NewGizmoPass(device, r.pipes.cameraLayout, r.format); err != nil {
		return fmt.Errorf("failed to create gizmo pass: %w", err)
	}
	if r.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	}); err != nil {
		return err
	}
	if r.cameraBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "CameraUniform",
		Size:  uniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return err
	}
	if r.cameraGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "CameraBG",
		Layout:  r.pipes.cameraLayout,
		Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: r.cameraBuf, Size: uniformSize}},
	}); err != nil {
		return err
	}
	r.logger.Infof("renderer ready: %dx%d, format %v", r.width, r.height, r.format)
	return nil
}

func (r *Renderer) SetSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width && height == r.height {
		return
	}
	r.width, r.height = width, height
	r.configured = false
}

func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Renderer) Render(f world.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if r.width <= 0 || r.height <= 0 {
		return nil
	}
	if r.surface == nil {
		_, err := r.renderOffscreen(f, false)
		return err
	}

	if !r.configured {
		r.config.Width, r.config.Height = uint32(r.width), uint32(r.height)
		r.surface.Configure(r.adapter, r.device, r.config)
		r.configured = true
	}
	next, err := r.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	if err := r.encode(encoder, view, f); err != nil {
		return err
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	r.queue.Submit(cmd)
	r.surface.Present()
	return nil
}

func (r *Renderer) Capture(f world.Frame) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	if r.width <= 0 || r.height <= 0 {
		return nil, fmt.Errorf("cannot capture a %dx%d canvas", r.width, r.height)
	}
	return r.renderOffscreen(f, true)
}

func (r *Renderer) renderOffscreen(f world.Frame, read bool) (*image.RGBA, error) {
	w, h := uint32(r.width), uint32(r.height)
	target, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "OffscreenTarget",
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        r.format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	defer target.Release()
	view, err := target.CreateView(nil)
	if err != nil {
		return nil, err
	}
	defer view.Release()

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	if err := r.encode(encoder, view, f); err != nil {
		return nil, err
	}
	if read {
		return r.readTexture(encoder, target, w, h)
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	r.queue.Submit(cmd)
	return nil, nil
}

func (r *Renderer) ensureDepth(w, h uint32) error {
	if r.depth != nil && r.depthW == w && r.depthH == h {
		return nil
	}
	if r.depthView != nil {
		r.depthView.Release()
	}
	if r.depth != nil {
		r.depth.Release()
	}
	tex, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "DepthTexture",
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		r.depth, r.depthView = nil, nil
		return err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		r.depth, r.depthView = nil, nil
		return err
	}
	r.depth, r.depthView, r.depthW, r.depthH = tex, view, w, h
	return nil
}

// clampViewport keeps vp inside a w×h target. ok is false when nothing of
// it remains.
func clampViewport(vp world.Rect, w, h float32) (world.Rect, bool) {
	if vp.Empty() {
		return world.Rect{W: w, H: h}, w > 0 && h > 0
	}
	x0, y0 := max(vp.X, 0), max(vp.Y, 0)
	x1, y1 := min(vp.X+vp.W, w), min(vp.Y+vp.H, h)
	if x1 <= x0 || y1 <= y0 {
		return world.Rect{}, false
	}
	return world.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

// viewportCrop returns the scale (xy) and offset (zw) taking NDC of the full
// viewport to NDC of clip, the part of it left by clampViewport. Pixel
// math in the shaders stays relative to full; only the final position is
// cropped.
func viewportCrop(full, clip world.Rect) [4]float32 {
	if full.Empty() || clip.Empty() {
		return [4]float32{1, 1, 0, 0}
	}
	return [4]float32{
		full.W / clip.W,
		full.H / clip.H,
		(full.W+2*(full.X-clip.X))/clip.W - 1,
		1 - (full.H+2*(full.Y-clip.Y))/clip.H,
	}
}

type drawItem struct {
	node *core.Node
	obj  *gpuObject
	tex  *gpuTexture
}

// collect syncs every visible drawable and orders the draws: image planes
// first so they stay behind, then meshes, points and lines.
func (r *Renderer) collect(scene *core.Node) ([]drawItem, error) {
	r.frameNo++
	if scene == nil {
		r.evict()
		return nil, nil
	}

	// hidden nodes keep their device copies
	scene.Traverse(func(n *core.Node) bool {
		if o, ok := r.objects[n.Id]; ok {
			o.frame = r.frameNo
		}
		if n.Texture != nil {
			if t, ok := r.textures[n.Texture.Id]; ok {
				t.frame = r.frameNo
			}
		}
		return true
	})

	buckets := map[core.NodeKind][]drawItem{}
	var firstErr error
	scene.TraverseVisible(func(n *core.Node) {
		if firstErr != nil || !drawable(n) {
			return
		}
		item := drawItem{node: n}
		if n.Kind == core.KindImagePlane {
			if n.Texture == nil {
				return
			}
			t, err := r.syncTexture(n.Texture)
			if err != nil {
				firstErr = err
				return
			}
			if t == nil {
				return
			}
			item.tex = t
		}
		o, err := r.syncObject(n)
		if err != nil {
			firstErr = err
			return
		}
		item.obj = o
		buckets[n.Kind] = append(buckets[n.Kind], item)
	})
	r.evict()
	if firstErr != nil {
		return nil, firstErr
	}

	var items []drawItem
	for _, k := range []core.NodeKind{core.KindImagePlane, core.KindMesh, core.KindPoints, core.KindLines} {
		items = append(items, buckets[k]...)
	}
	return items, nil
}

func (r *Renderer) encode(encoder *wgpu.CommandEncoder, target *wgpu.TextureView, f world.Frame) error {
	w, h := uint32(r.width), uint32(r.height)
	if err := r.ensureDepth(w, h); err != nil {
		return err
	}
	items, err := r.collect(f.Scene)
	if err != nil {
		return err
	}
	if err := r.gizmos.Update(r.queue, f.Gizmos); err != nil {
		return err
	}

	full := f.Viewport
	if full.Empty() {
		full = world.Rect{W: float32(w), H: float32(h)}
	}
	vp, ok := clampViewport(full, float32(w), float32(h))
	if ok && f.Camera != nil {
		r.queue.WriteBuffer(r.cameraBuf, 0, wgpu.ToBytes([]cameraUniform{{
			ViewProj: clipCorrection.Mul4(f.Camera.ViewProjection()),
			Viewport: [4]float32{full.W, full.H, full.X, full.Y},
			Crop:     viewportCrop(full, vp),
		}}))
	}

	bg := f.Background
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(bg[0]), G: float64(bg[1]), B: float64(bg[2]), A: float64(bg[3])},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})

	if ok && f.Camera != nil {
		pass.SetViewport(vp.X, vp.Y, vp.W, vp.H, 0, 1)
		for _, it := range items {
			r.draw(pass, it)
		}
		r.gizmos.Draw(pass, r.cameraGroup)
	}
	return pass.End()
}

func (r *Renderer) draw(pass *wgpu.RenderPassEncoder, it drawItem) {
	o := it.obj
	switch it.node.Kind {
	case core.KindMesh:
		pass.SetPipeline(r.pipes.mesh)
	case core.KindPoints:
		pass.SetPipeline(r.pipes.points)
	case core.KindLines:
		pass.SetPipeline(r.pipes.lines)
	case core.KindImagePlane:
		pass.SetPipeline(r.pipes.image)
		pass.SetBindGroup(2, it.tex.group, nil)
	}
	pass.SetBindGroup(0, r.cameraGroup, nil)
	pass.SetBindGroup(1, o.group, nil)
	pass.SetVertexBuffer(0, o.vertices, 0, o.vertices.GetSize())

	switch it.node.Kind {
	case core.KindPoints:
		pass.Draw(6, o.vertexCount, 0, 0)
	case core.KindLines:
		if n := o.vertexCount / 2; n > 0 {
			pass.Draw(6, n, 0, 0)
		}
	default:
		if o.indices != nil {
			pass.SetIndexBuffer(o.indices, wgpu.IndexFormatUint32, 0, o.indices.GetSize())
			pass.DrawIndexed(o.indexCount, 1, 0, 0, 0)
		} else {
			pass.Draw(o.vertexCount, 1, 0, 0)
		}
	}
}

// Release frees every device resource. The renderer is unusable after.
func (r *Renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	for id, o := range r.objects {
		o.release()
		delete(r.objects, id)
	}
	for id, t := range r.textures {
		t.release()
		delete(r.textures, id)
	}
	if r.gizmos != nil {
		r.gizmos.Release()
	}
	if r.cameraGroup != nil {
		r.cameraGroup.Release()
	}
	if r.cameraBuf != nil {
		r.cameraBuf.Release()
	}
	if r.sampler != nil {
		r.sampler.Release()
	}
	if r.pipes != nil {
		r.pipes.Release()
	}
	if r.depthView != nil {
		r.depthView.Release()
	}
	if r.depth != nil {
		r.depth.Release()
	}
	if r.device != nil {
		r.device.Release()
	}
	if r.adapter != nil {
		r.adapter.Release()
	}
	if r.surface != nil {
		r.surface.Release()
	}
	if r.instance != nil {
		r.instance.Release()
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
