package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PeakAbs returns the largest absolute sample value
func PeakAbs(signal []float64) float64 {
	if len(signal) == 0 {
		return 0.0
	}
	return math.Max(math.Abs(floats.Max(signal)), math.Abs(floats.Min(signal)))
}

// PeakNormalize scales the signal so its largest absolute value becomes 1.
// A silent signal is returned unchanged (as a copy).
func PeakNormalize(signal []float64) []float64 {
	normalized := make([]float64, len(signal))
	copy(normalized, signal)

	peak := PeakAbs(signal)
	if peak == 0 || math.IsNaN(peak) {
		return normalized
	}

	floats.Scale(1/peak, normalized)
	return normalized
}

// RemoveMean returns signal minus the given offset
func RemoveMean(signal []float64, mean float64) []float64 {
	out := make([]float64, len(signal))
	for i, v := range signal {
		out[i] = v - mean
	}
	return out
}
