package blur

import (
	"errors"
	"math"
	"testing"
)

func TestVariance(t *testing.T) {
	testCases := []struct {
		name         string
		values       []float64
		wantMean     float64
		wantVariance float64
	}{
		{"single value", []float64{7}, 7, 0},
		{"constant", []float64{3, 3, 3, 3}, 3, 0},
		{"population divisor", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 5, 4},
		{"symmetric", []float64{-1, 1}, 0, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mean, variance, err := Variance(tc.values)
			if err != nil {
				t.Fatalf("Variance failed: %v", err)
			}
			if math.Abs(mean-tc.wantMean) > 1e-12 {
				t.Errorf("Expected mean %f, got %f", tc.wantMean, mean)
			}
			if math.Abs(variance-tc.wantVariance) > 1e-12 {
				t.Errorf("Expected variance %f, got %f", tc.wantVariance, variance)
			}
		})
	}
}

func TestVariance_Empty(t *testing.T) {
	if _, _, err := Variance(nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
	if _, err := Score(&Plane{}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput from Score, got %v", err)
	}
	if _, err := Score(nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput for nil map, got %v", err)
	}
}

func TestVariance_LargeValuesStayNonNegative(t *testing.T) {
	values := make([]float64, 1<<16)
	for i := range values {
		values[i] = 1e9 + float64(i%2)
	}

	_, variance, err := Variance(values)
	if err != nil {
		t.Fatalf("Variance failed: %v", err)
	}
	if variance < 0 || math.Abs(variance-0.25) > 1e-3 {
		t.Errorf("Expected variance ~0.25, got %f", variance)
	}
}
