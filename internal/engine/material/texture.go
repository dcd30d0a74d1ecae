package material

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/lodestone/internal/assets"
	"github.com/Faultbox/lodestone/internal/engine/gpu"
)

// Texture is decoded image data shared by every material that references
// the same path. It is uploaded on first use.
type Texture struct {
	Path  string
	Image *image.RGBA

	dev gpu.Device
	id  gpu.TextureID
}

func (t *Texture) Type() assets.Type { return assets.TypeImage }

// DecodeTexture decodes png, jpeg, bmp, tiff, webp or tga data.
func DecodeTexture(path string, data []byte) (*Texture, error) {
	var (
		img image.Image
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		img, err = decodeTGA(data)
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding texture %s", path)
	}
	return &Texture{Path: path, Image: toRGBA(img)}, nil
}

// SolidTexture returns a 1x1 texture of color c.
func SolidTexture(name string, c color.RGBA) *Texture {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	return &Texture{Path: name, Image: img}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Upload returns the device handle, uploading the image on first call.
func (t *Texture) Upload(dev gpu.Device) (gpu.TextureID, error) {
	if t.id != 0 && t.dev == dev {
		return t.id, nil
	}
	id, err := dev.CreateTexture(t.Image)
	if err != nil {
		return 0, err
	}
	t.dev, t.id = dev, id
	return id, nil
}

// Invalidate forgets the device handle so the next Upload recreates it.
// Used after a device reset, when the old handle is already gone.
func (t *Texture) Invalidate() {
	t.dev, t.id = nil, 0
}

// Release frees the device texture.
func (t *Texture) Release() {
	if t.id != 0 {
		t.dev.DeleteTexture(t.id)
	}
	t.Invalidate()
}
