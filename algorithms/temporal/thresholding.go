package temporal

import (
	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/algorithms/stats"
)

// ThresholdWindow is one analysis window with its Otsu threshold
type ThresholdWindow struct {
	Start     int
	End       int // Exclusive
	Threshold float64
}

// Windows lays out windows of the given length over n samples. Windows
// start at 0 and advance by int(length*(1-overlap)); the last one ends at or
// before n. No windows are produced when n < length.
func Windows(n, length int, overlap float64) ([]ThresholdWindow, error) {
	if length <= 0 {
		return nil, common.Errorf(common.KindThreshold, "windows", "window length must be positive, got %d", length)
	}
	if overlap < 0 || overlap >= 1 {
		return nil, common.Errorf(common.KindThreshold, "windows", "overlap must be in [0, 1), got %g", overlap)
	}

	step := int(float64(length) * (1 - overlap))
	if step < 1 {
		return nil, common.Errorf(common.KindThreshold, "windows", "window of %d samples with overlap %g has no hop", length, overlap)
	}

	if n < length {
		return []ThresholdWindow{}, nil
	}

	windows := make([]ThresholdWindow, 0, (n-length)/step+1)
	for start := 0; start <= n-length; start += step {
		windows = append(windows, ThresholdWindow{Start: start, End: start + length})
	}
	return windows, nil
}

// AdaptiveThresholder derives a per-sample threshold from Otsu thresholds
// of overlapping envelope windows
type AdaptiveThresholder struct {
	windowSeconds float64
	overlap       float64
	scale         float64
}

// NewAdaptiveThresholder creates a thresholder. scale multiplies the
// averaged window thresholds.
func NewAdaptiveThresholder(windowSeconds, overlap, scale float64) *AdaptiveThresholder {
	return &AdaptiveThresholder{
		windowSeconds: windowSeconds,
		overlap:       overlap,
		scale:         scale,
	}
}

// WindowLength is the window size in samples at sampleRate
func (a *AdaptiveThresholder) WindowLength(sampleRate int) int {
	return int(a.windowSeconds * float64(sampleRate))
}

// WindowThresholds computes the Otsu threshold of every window of envelope.
// Zero-variance windows fall back to their range midpoint; the number of
// such windows is returned alongside.
func (a *AdaptiveThresholder) WindowThresholds(envelope []float64, sampleRate int) ([]ThresholdWindow, int, error) {
	windows, err := Windows(len(envelope), a.WindowLength(sampleRate), a.overlap)
	if err != nil {
		return nil, 0, err
	}

	degenerate := 0
	for i := range windows {
		threshold, err := stats.Otsu(envelope[windows[i].Start:windows[i].End])
		if err != nil {
			degenerate++
		}
		windows[i].Threshold = threshold
	}

	return windows, degenerate, nil
}

// Thresholds returns the scaled per-sample threshold map for envelope.
func (a *AdaptiveThresholder) Thresholds(envelope []float64, sampleRate int) ([]float64, int, error) {
	windows, degenerate, err := a.WindowThresholds(envelope, sampleRate)
	if err != nil {
		return nil, 0, err
	}
	return SampleThresholds(len(envelope), windows, a.scale), degenerate, nil
}

// SampleThresholds averages the thresholds of every window covering each
// sample and multiplies by scale. Uncovered samples get 0.
func SampleThresholds(n int, windows []ThresholdWindow, scale float64) []float64 {
	sums := make([]float64, n)
	counts := make([]int, n)

	for _, w := range windows {
		for i := w.Start; i < w.End && i < n; i++ {
			sums[i] += w.Threshold
			counts[i]++
		}
	}

	for i := range sums {
		if counts[i] > 0 {
			sums[i] = sums[i] / float64(counts[i]) * scale
		}
	}
	return sums
}
