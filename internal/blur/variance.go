package blur

import (
	"gonum.org/v1/gonum/stat"
)

// Variance returns the mean and population variance (divisor N) of values.
// gonum computes it in two passes over float64 accumulators.
func Variance(values []float64) (mean, variance float64, err error) {
	if len(values) == 0 {
		return 0, 0, ErrEmptyInput
	}
	mean, variance = stat.PopMeanVariance(values, nil)
	// Rounding in the compensated second pass can leave a tiny negative value
	if variance < 0 {
		variance = 0
	}
	return mean, variance, nil
}

// Score reduces an edge-response map to its population variance
func Score(edge *Plane) (float64, error) {
	if edge == nil {
		return 0, ErrEmptyInput
	}
	_, variance, err := Variance(edge.Values)
	return variance, err
}
