package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
)

// alignedBytesPerRow pads a row of RGBA8 texels to the 256 byte copy
// alignment.
func alignedBytesPerRow(width uint32) uint32 {
	return (width*4 + 255) &^ 255
}

func isBGRA(format wgpu.TextureFormat) bool {
	return format == wgpu.TextureFormatBGRA8Unorm || format == wgpu.TextureFormatBGRA8UnormSrgb
}

// unpackRows copies padded readback rows into an RGBA image, swapping
// channels for BGRA targets.
func unpackRows(data []byte, width, height, bytesPerRow uint32, bgra bool) (*image.RGBA, error) {
	if uint64(len(data)) < uint64(bytesPerRow)*uint64(height) {
		return nil, fmt.Errorf("readback too short: %d bytes for %dx%d", len(data), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	for y := uint32(0); y < height; y++ {
		src := data[y*bytesPerRow : y*bytesPerRow+width*4]
		dst := img.Pix[int(y)*img.Stride : int(y)*img.Stride+int(width)*4]
		copy(dst, src)
		if bgra {
			for x := 0; x < len(dst); x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
	}
	return img, nil
}

// readTexture copies tex into a mappable buffer and waits for the device.
func (r *Renderer) readTexture(encoder *wgpu.CommandEncoder, tex *wgpu.Texture, width, height uint32) (*image.RGBA, error) {
	bytesPerRow := alignedBytesPerRow(width)
	size := uint64(bytesPerRow) * uint64(height)
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "CaptureReadback",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: height,
			},
		},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	r.queue.Submit(cmd)

	var status wgpu.BufferMapAsyncStatus
	done := false
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	}); err != nil {
		return nil, err
	}
	for !done {
		r.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.New("capture buffer mapping failed")
	}
	defer buf.Unmap()

	return unpackRows(buf.GetMappedRange(0, uint(size)), width, height, bytesPerRow, isBGRA(r.format))
}
