package blur

import "errors"

// MinDimension is the smallest width or height the 3x3 kernels can score
const MinDimension = 3

var (
	// ErrInvalidDimensions indicates the image is smaller than the 3x3 kernel neighbourhood
	ErrInvalidDimensions = errors.New("image must be at least 3x3 pixels")

	// ErrEmptyBuffer indicates the buffer has no pixels or its length does not match its shape
	ErrEmptyBuffer = errors.New("image buffer is empty or malformed")

	// ErrEmptyInput indicates an empty edge-response map reached the scorer
	ErrEmptyInput = errors.New("edge map has no values")
)
