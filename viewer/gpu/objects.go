package gpu

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/scanview/viewer/core"
)

// gpuObject is the device copy of one scene node.
type gpuObject struct {
	kind        core.NodeKind
	geomVersion uint64
	geom        *core.Geometry

	vertices    *wgpu.Buffer
	vertexCount uint32
	indices     *wgpu.Buffer
	indexCount  uint32

	uniform *wgpu.Buffer
	group   *wgpu.BindGroup

	frame uint64
}

func (o *gpuObject) releaseGeometry() {
	if o.vertices != nil {
		o.vertices.Release()
		o.vertices = nil
	}
	if o.indices != nil {
		o.indices.Release()
		o.indices = nil
	}
	o.vertexCount, o.indexCount = 0, 0
}

func (o *gpuObject) release() {
	o.releaseGeometry()
	if o.group != nil {
		o.group.Release()
	}
	if o.uniform != nil {
		o.uniform.Release()
	}
}

type gpuTexture struct {
	version uint64
	texture *wgpu.Texture
	view    *wgpu.TextureView
	group   *wgpu.BindGroup
	frame   uint64
}

func (t *gpuTexture) release() {
	if t.group != nil {
		t.group.Release()
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}

// packVertices interleaves geometry attributes. Missing attributes are
// zero; colours are used only when there is one per position.
func packVertices(g *core.Geometry) []Vertex {
	out := make([]Vertex, len(g.Positions))
	hasNormals := len(g.Normals) == len(g.Positions)
	hasColors := len(g.Colors) == len(g.Positions)
	hasUVs := len(g.UVs) == len(g.Positions)
	for i, p := range g.Positions {
		v := Vertex{Pos: [3]float32{p.X(), p.Y(), p.Z()}}
		if hasNormals {
			n := g.Normals[i]
			v.Normal = [3]float32{n.X(), n.Y(), n.Z()}
		}
		if hasColors {
			v.Color = g.Colors[i]
		}
		if hasUVs {
			v.UV = [2]float32{g.UVs[i].X(), g.UVs[i].Y()}
		}
		out[i] = v
	}
	return out
}

// materialUniform builds the per-object uniform for a node.
func materialUniform(n *core.Node) objectUniform {
	u := objectUniform{Model: n.WorldMatrix(), Color: [4]float32{1, 1, 1, 1}}
	m := n.Material
	if m == nil {
		return u
	}
	u.Color = m.Color
	u.Color[3] *= m.Opacity
	u.Params = [4]float32{m.PointSize, m.LineWidth, 0, 0}
	if m.VertexColors {
		u.Params[2] = 1
	}
	u.Resolution = [4]float32{m.Resolution[0], m.Resolution[1], 0, 0}
	return u
}

func drawable(n *core.Node) bool {
	switch n.Kind {
	case core.KindPoints, core.KindLines, core.KindMesh, core.KindImagePlane:
		return n.Geometry != nil && len(n.Geometry.Positions) > 0
	}
	return false
}

// syncObject makes sure n has an up to date device copy and returns it.
func (r *Renderer) syncObject(n *core.Node) (*gpuObject, error) {
	o, ok := r.objects[n.Id]
	if !ok {
		o = &gpuObject{kind: n.Kind}
		buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "ObjectUniform",
			Size:  uniformSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		o.uniform = buf
		o.group, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   "ObjectBG",
			Layout:  r.pipes.objectLayout,
			Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Size: uniformSize}},
		})
		if err != nil {
			buf.Release()
			return nil, err
		}
		r.objects[n.Id] = o
	}
	o.frame = r.frameNo

	g := n.Geometry
	if o.geom != g || o.geomVersion != g.Version {
		o.releaseGeometry()
		verts := packVertices(g)
		vb, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    fmt.Sprintf("%s vertices", n.Name),
			Contents: wgpu.ToBytes(verts),
			Usage:    wgpu.BufferUsageVertex,
		})
		if err != nil {
			return nil, err
		}
		o.vertices, o.vertexCount = vb, uint32(len(verts))
		if len(g.Indices) > 0 && n.Kind != core.KindPoints && n.Kind != core.KindLines {
			ib, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
				Label:    fmt.Sprintf("%s indices", n.Name),
				Contents: wgpu.ToBytes(g.Indices),
				Usage:    wgpu.BufferUsageIndex,
			})
			if err != nil {
				return nil, err
			}
			o.indices, o.indexCount = ib, uint32(len(g.Indices))
		}
		o.geom, o.geomVersion = g, g.Version
	}

	r.queue.WriteBuffer(o.uniform, 0, wgpu.ToBytes([]objectUniform{materialUniform(n)}))
	return o, nil
}

// syncTexture uploads the image behind t once it has loaded. It returns
// nil while the pixels are still pending.
func (r *Renderer) syncTexture(t *core.Texture) (*gpuTexture, error) {
	img := t.Image()
	if img == nil {
		return nil, nil
	}
	gt, ok := r.textures[t.Id]
	if ok && gt.version == t.Version() {
		gt.frame = r.frameNo
		return gt, nil
	}
	if ok {
		gt.release()
	}
	gt, err := r.uploadImage(img)
	if err != nil {
		delete(r.textures, t.Id)
		return nil, err
	}
	gt.version = t.Version()
	gt.frame = r.frameNo
	r.textures[t.Id] = gt
	return gt, nil
}

func (r *Renderer) uploadImage(img *image.RGBA) (*gpuTexture, error) {
	b := img.Bounds()
	extent := wgpu.Extent3D{Width: uint32(b.Dx()), Height: uint32(b.Dy()), DepthOrArrayLayers: 1}
	tex, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "ImagePlaneTexture",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	gt := &gpuTexture{texture: tex}
	if err := r.queue.WriteTexture(tex.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: extent.Height,
	}, &extent); err != nil {
		gt.release()
		return nil, err
	}
	if gt.view, err = tex.CreateView(nil); err != nil {
		gt.release()
		return nil, err
	}
	gt.group, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ImageBG",
		Layout: r.pipes.imageLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: gt.view},
			{Binding: 1, Sampler: r.sampler},
		},
	})
	if err != nil {
		gt.release()
		return nil, err
	}
	return gt, nil
}

// evict drops device copies that were not touched in the current frame,
// which means their nodes left the scene.
func (r *Renderer) evict() {
	for id, o := range r.objects {
		if o.frame != r.frameNo {
			o.release()
			delete(r.objects, id)
		}
	}
	for id, t := range r.textures {
		if t.frame != r.frameNo {
			t.release()
			delete(r.textures, id)
		}
	}
}
