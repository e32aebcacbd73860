// Package blur scores image sharpness as the variance of a Laplacian edge
// response and classifies images as blurry or sharp against a threshold.
//
// Every function in this package is pure: inputs are never modified, nothing
// is logged and no state is shared between calls.
package blur

import (
	"fmt"
	"math"
	"strings"
)

// DefaultThreshold is the Laplacian variance, in 8-bit luminance units, below
// which an image is considered blurry.
const DefaultThreshold = 100.0

// Verdict is the outcome of a classification
type Verdict string

const (
	Blurry Verdict = "blurry"
	Sharp  Verdict = "sharp"
)

// Classification is the result of scoring one image
type Classification struct {
	Score         float64 `json:"score"`
	Mean          float64 `json:"mean"`
	IsBlurry      bool    `json:"is_blurry"`
	ThresholdUsed float64 `json:"threshold_used"`
	Verdict       Verdict `json:"verdict"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
}

// Classify compares score against threshold. An image is blurry when its score
// is strictly below the threshold.
func Classify(score, threshold float64) Classification {
	c := Classification{
		Score:         score,
		ThresholdUsed: threshold,
		IsBlurry:      score < threshold,
		Verdict:       Sharp,
	}
	if c.IsBlurry {
		c.Verdict = Blurry
	}
	return c
}

// Options controls a Detector
type Options struct {
	Threshold float64
	Kernel    Kernel
	// Parallel splits the convolution of large images into row strips
	Parallel bool
}

// DefaultOptions returns the default detector options
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Kernel:    Laplacian4,
		Parallel:  true,
	}
}

// StrictOptions flags more images as blurry, e.g. for document capture
func StrictOptions() Options {
	opts := DefaultOptions()
	opts.Threshold = 300.0
	return opts
}

// LenientOptions only rejects images with an almost flat edge response
func LenientOptions() Options {
	opts := DefaultOptions()
	opts.Threshold = 3.0
	return opts
}

// Preset names accepted by PresetOptions
const (
	PresetDefault = "default"
	PresetStrict  = "strict"
	PresetLenient = "lenient"
)

// PresetOptions resolves a preset name (case-insensitive) to options
func PresetOptions(name string) (Options, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetDefault, "":
		return DefaultOptions(), nil
	case PresetStrict:
		return StrictOptions(), nil
	case PresetLenient:
		return LenientOptions(), nil
	}
	return Options{}, fmt.Errorf("unknown preset %q", name)
}

// WithThreshold returns options using the given threshold
func (opts Options) WithThreshold(threshold float64) Options {
	opts.Threshold = threshold
	return opts
}

// WithKernel returns options using the given kernel
func (opts Options) WithKernel(k Kernel) Options {
	opts.Kernel = k
	return opts
}

// WithParallel toggles strip-parallel convolution
func (opts Options) WithParallel(parallel bool) Options {
	opts.Parallel = parallel
	return opts
}

// ValidThreshold reports whether t can be used as a classification threshold
func ValidThreshold(t float64) bool {
	return t >= 0 && !math.IsNaN(t) && !math.IsInf(t, 0)
}

// Detector runs the full pipeline: luminance, edge map, variance and threshold
type Detector struct {
	opts Options
}

// NewDetector creates a detector. A zero kernel falls back to Laplacian4.
func NewDetector(opts Options) *Detector {
	if opts.Kernel == (Kernel{}) {
		opts.Kernel = Laplacian4
	}
	return &Detector{opts: opts}
}

// Options returns the detector configuration
func (d *Detector) Options() Options {
	return d.opts
}

// Classify scores buf and classifies it against the detector's threshold
func (d *Detector) Classify(buf ImageBuffer) (Classification, error) {
	edge, err := EdgeMap(buf, d.opts.Kernel, d.opts.Parallel)
	if err != nil {
		return Classification{}, err
	}
	mean, variance, err := Variance(edge.Values)
	if err != nil {
		return Classification{}, err
	}

	c := Classify(variance, d.opts.Threshold)
	c.Mean = mean
	c.Width = edge.Width
	c.Height = edge.Height
	return c, nil
}

// ClassifyBlur scores buf with the 4-connected Laplacian and classifies it
// against threshold
func ClassifyBlur(buf ImageBuffer, threshold float64) (Classification, error) {
	return NewDetector(DefaultOptions().WithThreshold(threshold)).Classify(buf)
}
