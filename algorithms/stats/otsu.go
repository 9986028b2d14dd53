package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// OtsuBins is the histogram resolution used by Otsu.
const OtsuBins = 256

// Otsu computes the threshold that maximizes the between-class variance of
// a two-class split of values.
//
// The values are binned into a 256-bin histogram spanning [min, max] and the
// winning bin center is returned. When every value is identical there is no
// split to make: the midpoint of the range is returned together with a
// ThresholdError, which callers may treat as recoverable.
//
// Reference: N. Otsu, "A Threshold Selection Method from Gray-Level
// Histograms", IEEE Trans. Systems, Man, and Cybernetics, 1979.
func Otsu(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, common.Errorf(common.KindThreshold, "otsu", "no values")
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if lo == hi {
		return (lo + hi) / 2, common.Errorf(common.KindThreshold, "otsu",
			"zero variance window at %.6g", lo)
	}

	counts, centers := histogram(values, lo, hi, OtsuBins)

	// Class weights and means from both ends
	weight1 := make([]float64, OtsuBins)
	weight2 := make([]float64, OtsuBins)
	mean1 := make([]float64, OtsuBins)
	mean2 := make([]float64, OtsuBins)

	w, m := 0.0, 0.0
	for i := range OtsuBins {
		w += counts[i]
		m += counts[i] * centers[i]
		weight1[i] = w
		mean1[i] = m / w
	}

	w, m = 0.0, 0.0
	for i := OtsuBins - 1; i >= 0; i-- {
		w += counts[i]
		m += counts[i] * centers[i]
		weight2[i] = w
		mean2[i] = m / w
	}

	best := 0
	bestVariance := math.Inf(-1)
	for i := range OtsuBins - 1 {
		diff := mean1[i] - mean2[i+1]
		variance := weight1[i] * weight2[i+1] * diff * diff
		if variance > bestVariance {
			bestVariance = variance
			best = i
		}
	}

	return centers[best], nil
}

// histogram bins values into n equal-width bins over [lo, hi], with hi
// falling into the last bin. Returns counts and bin centers.
func histogram(values []float64, lo, hi float64, n int) ([]float64, []float64) {
	edges := make([]float64, n+1)
	floats.Span(edges, lo, hi)

	centers := make([]float64, n)
	for i := range n {
		centers[i] = (edges[i] + edges[i+1]) / 2
	}

	// gonum treats the last divider as exclusive
	dividers := slices.Clone(edges)
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	counts := stat.Histogram(nil, dividers, sorted, nil)
	return counts, centers
}
