package decode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func TestDecode_Formats(t *testing.T) {
	img := testImage(12, 8)

	encoders := map[string]func(*bytes.Buffer) error{
		"png":  func(b *bytes.Buffer) error { return png.Encode(b, img) },
		"jpeg": func(b *bytes.Buffer) error { return jpeg.Encode(b, img, nil) },
		"bmp":  func(b *bytes.Buffer) error { return bmp.Encode(b, img) },
		"tiff": func(b *bytes.Buffer) error { return tiff.Encode(b, img, nil) },
	}

	d := NewDecoder(0)
	for format, encode := range encoders {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(&buf))

			res, err := d.Decode(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, format, res.Format)
			assert.Equal(t, 12, res.Image.Bounds().Dx())
			assert.Equal(t, 8, res.Image.Bounds().Dy())
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	d := NewDecoder(0)

	_, err := d.Decode(nil)
	assert.True(t, errors.Is(err, ErrNoData))

	_, err = d.Decode([]byte("definitely not an image"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(20, 20)))
	_, err = NewDecoder(100).Decode(buf.Bytes())
	assert.True(t, errors.Is(err, ErrTooLarge))

	cfg, format, err := d.Config(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 20, cfg.Width)
}

func TestDownscale(t *testing.T) {
	img := testImage(400, 100)

	small := Downscale(img, 200)
	assert.Equal(t, image.Rect(0, 0, 200, 50), small.Bounds())

	tall := Downscale(testImage(30, 90), 45)
	assert.Equal(t, image.Rect(0, 0, 15, 45), tall.Bounds())

	assert.Same(t, img, Downscale(img, 0))
	assert.Same(t, img, Downscale(img, 400))
}
