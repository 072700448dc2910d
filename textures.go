package scanview

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/gekko3d/scanview/viewer/core"
	"github.com/gekko3d/scanview/viewer/scan"
)

// PhotoTextures lazily loads the photo behind each pose. Textures are
// handed out immediately and filled in by a background decode.
type PhotoTextures struct {
	mu      sync.Mutex
	log     Logger
	maxSize int
	scan    *scan.Scan
	gen     uint64
	cache   map[string]*core.Texture
	wg      sync.WaitGroup
}

func NewPhotoTextures(maxSize int, log Logger) *PhotoTextures {
	if log == nil {
		log = NewNopLogger()
	}
	return &PhotoTextures{
		log:     log,
		maxSize: maxSize,
		cache:   make(map[string]*core.Texture),
	}
}

// Bind switches to the photos of s. Pending decodes of the previous scan
// are ignored when they finish.
func (t *PhotoTextures) Bind(s *scan.Scan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scan == s {
		return
	}
	t.scan = s
	t.gen++
	t.cache = make(map[string]*core.Texture)
}

// Texture returns the texture of p, starting its decode on first use.
func (t *PhotoTextures) Texture(p *scan.Pose) *core.Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tex, ok := t.cache[p.Id]; ok {
		return tex
	}
	w, h := p.ImageSize()
	tex := core.NewTexture(w, h)
	t.cache[p.Id] = tex

	path := p.PhotoUri
	if t.scan != nil {
		path = t.scan.Resolve(p.PhotoUri)
	}
	gen := t.gen
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		img, err := loadPhoto(path, t.maxSize)
		if err != nil {
			t.log.Warnf("photo %s: %v", p.Id, err)
			return
		}
		t.mu.Lock()
		current := gen == t.gen
		t.mu.Unlock()
		if current {
			tex.SetImage(img)
		}
	}()
	return tex
}

// Wait blocks until every started decode has finished.
func (t *PhotoTextures) Wait() { t.wg.Wait() }

func loadPhoto(path string, maxSize int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodePhoto(f, maxSize)
}

// decodePhoto decodes jpeg, png, webp or bmp and scales the result so its
// longer side is at most maxSize (0 keeps the size).
func decodePhoto(r io.Reader, maxSize int) (*image.RGBA, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode photo: %w", err)
	}
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return dst, nil
}

func fitWithin(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, h*maxSize/w)
	}
	return max(1, w*maxSize/h), maxSize
}
