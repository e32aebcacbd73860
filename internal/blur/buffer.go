package blur

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ImageBuffer is a decoded, row-major pixel grid with one scalar per channel per pixel.
// Samples are used as given; FromImage always produces the 8-bit scale (0-255).
type ImageBuffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// NewImageBuffer wraps pix without copying it
func NewImageBuffer(width, height, channels int, pix []float64) ImageBuffer {
	return ImageBuffer{Width: width, Height: height, Channels: channels, Pix: pix}
}

// Plane is a single-channel W x H grid of float64 values.
// Luminance and edge-response maps are both planes.
type Plane struct {
	Width  int
	Height int
	Values []float64
}

func newPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Values: make([]float64, width*height)}
}

// At returns the value at (x, y). Callers must stay within bounds.
func (p *Plane) At(x, y int) float64 {
	return p.Values[y*p.Width+x]
}

// validate checks the buffer shape. It does not apply the 3x3 minimum.
func (b ImageBuffer) validate() error {
	if b.Width <= 0 || b.Height <= 0 || b.Channels <= 0 {
		return fmt.Errorf("%w: %dx%d with %d channels", ErrEmptyBuffer, b.Width, b.Height, b.Channels)
	}
	if want := b.Width * b.Height * b.Channels; len(b.Pix) != want {
		return fmt.Errorf("%w: expected %d samples, got %d", ErrEmptyBuffer, want, len(b.Pix))
	}
	return nil
}

// FromImage converts a decoded image into an ImageBuffer.
// Gray and Gray16 images become single-channel buffers; everything else is
// converted to non-premultiplied RGBA. Samples are always on the 8-bit scale,
// so 16-bit sources are reduced the same way color.GrayModel reduces them.
func FromImage(img image.Image) ImageBuffer {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		pix := make([]float64, 0, width*height)
		for y := 0; y < height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+width]
			for _, v := range row {
				pix = append(pix, float64(v))
			}
		}
		return NewImageBuffer(width, height, 1, pix)
	case *image.Gray16:
		pix := make([]float64, 0, width*height)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				pix = append(pix, float64(src.Gray16At(x, y).Y>>8))
			}
		}
		return NewImageBuffer(width, height, 1, pix)
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}

	pix := make([]float64, 0, width*height*4)
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		for _, v := range row {
			pix = append(pix, float64(v))
		}
	}
	return NewImageBuffer(width, height, 4, pix)
}
