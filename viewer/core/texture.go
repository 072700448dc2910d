package core

import (
	"image"
	"sync/atomic"

	"github.com/google/uuid"
)

// Texture is a handle whose pixels may arrive later from a background
// loader. Readers on the render thread see either nothing or a complete
// image, never a partial one.
type Texture struct {
	Id     string
	Width  int
	Height int

	img     atomic.Pointer[image.RGBA]
	version atomic.Uint64
}

func NewTexture(width, height int) *Texture {
	return &Texture{
		Id:     uuid.NewString(),
		Width:  width,
		Height: height,
	}
}

func (t *Texture) SetImage(img *image.RGBA) {
	t.img.Store(img)
	t.version.Add(1)
}

// Image returns the loaded pixels or nil while loading.
func (t *Texture) Image() *image.RGBA {
	return t.img.Load()
}

func (t *Texture) Version() uint64 {
	return t.version.Load()
}

func (t *Texture) Ready() bool {
	return t.img.Load() != nil
}
