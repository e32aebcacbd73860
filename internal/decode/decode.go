// Package decode turns encoded image bytes into an image.Image.
//
// JPEG, PNG and GIF come from the standard library; WebP, BMP and TIFF are
// registered from golang.org/x/image.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds decoded images at roughly 100 megapixels
const DefaultMaxPixels = 100_000_000

var (
	// ErrNoData is returned for empty input
	ErrNoData = errors.New("no image data")

	// ErrTooLarge is returned when the header announces more pixels than allowed
	ErrTooLarge = errors.New("image dimensions exceed limit")

	// ErrUnsupportedFormat is returned when no registered decoder recognises the data
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Result is a decoded image and its format name ("jpeg", "png", "webp", ...)
type Result struct {
	Image  image.Image
	Format string
}

// Decoder decodes images with a pixel budget
type Decoder struct {
	maxPixels int
}

// NewDecoder creates a decoder; maxPixels <= 0 selects DefaultMaxPixels
func NewDecoder(maxPixels int) *Decoder {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Decoder{maxPixels: maxPixels}
}

// Decode reads the header first so oversized images are rejected before allocation
func (d *Decoder) Decode(data []byte) (*Result, error) {
	_, format, err := d.Config(data)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return &Result{Image: img, Format: format}, nil
}

// Config reads only the image header and enforces the pixel budget
func (d *Decoder) Config(data []byte) (image.Config, string, error) {
	if len(data) == 0 {
		return image.Config{}, "", ErrNoData
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width*cfg.Height > d.maxPixels {
		return cfg, format, fmt.Errorf("%w: %dx%d %s", ErrTooLarge, cfg.Width, cfg.Height, format)
	}
	return cfg, format, nil
}

// Downscale shrinks img so its longer side is at most maxDim, preserving the
// aspect ratio with Catmull-Rom resampling. Images that already fit, and a
// maxDim <= 0, are returned unchanged.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, h*maxDim/w)
	} else {
		nh = maxDim
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
