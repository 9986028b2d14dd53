package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MeanOrNaN is Mean but reports an empty slice as NaN
func MeanOrNaN(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return stat.Mean(data, nil)
}

// Sum returns the sum of the slice
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// MaxOrNaN returns the largest element, NaN for an empty slice
func MaxOrNaN(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return floats.Max(data)
}

// CenteredMovingAverage convolves data with a box kernel of the given width and
// keeps the centered part, so the output has the input length. Samples beyond
// the edges count as zero and every output is divided by the full width.
func CenteredMovingAverage(data []float64, width int) []float64 {
	if len(data) == 0 || width <= 1 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}

	// "same" mode offset for a kernel of this width
	offset := (width - 1) / 2
	out := make([]float64, len(data))

	// prefix sums keep this linear in len(data)
	prefix := make([]float64, len(data)+1)
	for i, v := range data {
		prefix[i+1] = prefix[i] + v
	}

	for i := range data {
		lo := i - (width - 1 - offset)
		hi := i + offset + 1
		if lo < 0 {
			lo = 0
		}
		if hi > len(data) {
			hi = len(data)
		}
		out[i] = (prefix[hi] - prefix[lo]) / float64(width)
	}

	return out
}

// LinRegression performs simple linear regression and returns slope, intercept, r²
func LinRegression(x, y []float64) (slope, intercept, rSquared float64) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, 0, 0
	}

	// Use gonum's linear regression
	alpha, beta := stat.LinearRegression(x, y, nil, false)

	yMean := Mean(y)
	ssTotal := 0.0
	ssResidual := 0.0

	for i := range x {
		predicted := alpha + beta*x[i]
		ssTotal += (y[i] - yMean) * (y[i] - yMean)
		ssResidual += (y[i] - predicted) * (y[i] - predicted)
	}

	rSquared = 1.0 - (ssResidual / ssTotal)
	if math.IsNaN(rSquared) || math.IsInf(rSquared, 0) {
		rSquared = 0.0
	}

	return beta, alpha, rSquared
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// DistinctCount returns the number of distinct values in data
func DistinctCount(data []float64) int {
	seen := make(map[float64]struct{}, len(data))
	for _, v := range data {
		seen[v] = struct{}{}
	}
	return len(seen)
}
