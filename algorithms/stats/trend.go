package stats

import (
	"math"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// Trend descriptions
const (
	TrendIncreasing    = "Increasing"
	TrendDecreasing    = "Decreasing"
	TrendFlat          = "Flat"
	TrendNotApplicable = "Not Applicable"
)

// Trend fits a least-squares line through values against their repetition
// number 1..N and describes its direction. Fewer than two distinct values
// give an undefined (NaN) slope described as "Not Applicable".
func Trend(values []float64) (float64, string) {
	if common.DistinctCount(values) < 2 {
		return math.NaN(), TrendNotApplicable
	}

	reps := make([]float64, len(values))
	for i := range reps {
		reps[i] = float64(i + 1)
	}

	slope, _, _ := common.LinRegression(reps, values)
	return slope, DescribeSlope(slope)
}

// DescribeSlope maps a slope sign to its description
func DescribeSlope(slope float64) string {
	switch {
	case math.IsNaN(slope):
		return TrendNotApplicable
	case slope > 0:
		return TrendIncreasing
	case slope < 0:
		return TrendDecreasing
	default:
		return TrendFlat
	}
}
