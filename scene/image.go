package scene

import (
	"fmt"

	"github.com/chewxy/math32"
)

// ImageSet packs the training images into one contiguous RGBA8 block so the
// pixel sampler can fetch any pixel of any image with flat offsets.
type ImageSet struct {
	Count  int
	Width  int
	Height int

	// Pixels holds Count images of Width*Height*4 bytes each, row major.
	Pixels []byte
}

// Allocate an image set for count images of the given dimensions.
func NewImageSet(count, width, height int) (*ImageSet, error) {
	if count < 1 || width < 1 || height < 1 {
		return nil, fmt.Errorf("imageset: invalid dimensions %dx%dx%d", count, width, height)
	}
	return &ImageSet{
		Count:  count,
		Width:  width,
		Height: height,
		Pixels: make([]byte, count*width*height*4),
	}, nil
}

// Get the pixel count of a single image.
func (s *ImageSet) PixelsPerImage() int {
	return s.Width * s.Height
}

// Get the writable RGBA8 region of a single image.
func (s *ImageSet) ImageData(img int) []byte {
	stride := s.Width * s.Height * 4
	return s.Pixels[img*stride : (img+1)*stride]
}

// Get the raw RGBA bytes of a pixel.
func (s *ImageSet) RGBA(img, x, y int) (r, g, b, a byte) {
	base := (img*s.Width*s.Height + y*s.Width + x) * 4
	return s.Pixels[base], s.Pixels[base+1], s.Pixels[base+2], s.Pixels[base+3]
}

// Fetch a pixel by its flat index within an image, convert it from sRGB to
// linear light and premultiply the color channels by alpha. Alpha is returned
// in [0, 1].
func (s *ImageSet) LinearPremultipliedFlat(img, flat int) (r, g, b, a float32) {
	base := (img*s.Width*s.Height + flat) * 4
	a = float32(s.Pixels[base+3]) * (1.0 / 255.0)
	r = srgbToLinear[s.Pixels[base]] * a
	g = srgbToLinear[s.Pixels[base+1]] * a
	b = srgbToLinear[s.Pixels[base+2]] * a
	return r, g, b, a
}

// Get the pixel block footprint in bytes.
func (s *ImageSet) MemoryBytes() uint64 {
	return uint64(len(s.Pixels))
}

// Lookup table mapping 8-bit sRGB channel values to linear light.
var srgbToLinear = func() (lut [256]float32) {
	for i := range lut {
		c := float32(i) * (1.0 / 255.0)
		if c <= 0.04045 {
			lut[i] = c * (1.0 / 12.92)
		} else {
			lut[i] = math32.Pow((c+0.055)*(1.0/1.055), 2.4)
		}
	}
	return lut
}()
