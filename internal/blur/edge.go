package blur

import (
	"fmt"
	"runtime"
	"sync"
)

// parallelPixelThreshold is the image area below which strips are not worth a goroutine each
const parallelPixelThreshold = 256 * 256

// BuildEdgeMap convolves lum with k and returns a map of the same dimensions.
//
// Border pixels use replicate-edge padding: a neighbour outside the image
// takes the value of the nearest pixel on the border. A constant image
// therefore yields an all-zero map instead of a false edge along its frame.
// Values are not clamped and may be negative.
func BuildEdgeMap(lum *Plane, k Kernel, parallel bool) (*Plane, error) {
	if lum == nil || lum.Width <= 0 || lum.Height <= 0 || len(lum.Values) != lum.Width*lum.Height {
		return nil, ErrEmptyBuffer
	}
	if lum.Width < MinDimension || lum.Height < MinDimension {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, lum.Width, lum.Height)
	}

	out := newPlane(lum.Width, lum.Height)
	if !parallel || lum.Width*lum.Height < parallelPixelThreshold {
		convolveRows(lum, out, k, 0, lum.Height)
		return out, nil
	}

	// Horizontal strips; each output row only reads a fixed neighbourhood of the input.
	numWorkers := runtime.NumCPU()
	if lum.Height < numWorkers {
		numWorkers = lum.Height
	}
	rowsPerWorker := (lum.Height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for startY := 0; startY < lum.Height; startY += rowsPerWorker {
		endY := min(startY+rowsPerWorker, lum.Height)
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			convolveRows(lum, out, k, startY, endY)
		}(startY, endY)
	}
	wg.Wait()

	return out, nil
}

// EdgeMap extracts luminance from buf and convolves it with k
func EdgeMap(buf ImageBuffer, k Kernel, parallel bool) (*Plane, error) {
	if err := buf.validate(); err != nil {
		return nil, err
	}
	if buf.Width < MinDimension || buf.Height < MinDimension {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, buf.Width, buf.Height)
	}
	lum, err := Luminance(buf)
	if err != nil {
		return nil, err
	}
	return BuildEdgeMap(lum, k, parallel)
}

func convolveRows(src, dst *Plane, k Kernel, startY, endY int) {
	maxX, maxY := src.Width-1, src.Height-1
	for y := startY; y < endY; y++ {
		for x := 0; x <= maxX; x++ {
			var acc float64
			for ky := -1; ky <= 1; ky++ {
				sy := clamp(y+ky, maxY)
				for kx := -1; kx <= 1; kx++ {
					w := k[ky+1][kx+1]
					if w == 0 {
						continue
					}
					acc += w * src.Values[sy*src.Width+clamp(x+kx, maxX)]
				}
			}
			dst.Values[y*dst.Width+x] = acc
		}
	}
}

// clamp limits v to [0, hi]
func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
