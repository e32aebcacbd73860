package blur

import (
	"image"
	"image/color"
)

// grayBuffer builds a single-channel buffer from f(x, y)
func grayBuffer(width, height int, f func(x, y int) float64) ImageBuffer {
	pix := make([]float64, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix = append(pix, f(x, y))
		}
	}
	return NewImageBuffer(width, height, 1, pix)
}

// rgbBuffer builds a 3-channel buffer with all channels set to f(x, y)
func rgbBuffer(width, height int, f func(x, y int) float64) ImageBuffer {
	pix := make([]float64, 0, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := f(x, y)
			pix = append(pix, v, v, v)
		}
	}
	return NewImageBuffer(width, height, 3, pix)
}

func checkerboard(x, y int) float64 {
	if (x+y)%2 == 0 {
		return 0
	}
	return 255
}

func constant(v float64) func(x, y int) float64 {
	return func(x, y int) float64 { return v }
}

// gradientNoise is a deterministic textured pattern
func gradientNoise(x, y int) float64 {
	return float64((x*37 + y*91 + (x*y)%13*17) % 256)
}

func createTestImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
