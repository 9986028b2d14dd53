package filters

import (
	"math"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// DCRemoval subtracts the DC offset of a recording.
//
// The offset is the mean of the interior of the signal, skipping one
// second at each end. When the recording is too short to have an
// interior the whole buffer is used instead.
type DCRemoval struct {
	guardSamples int // Samples excluded at each end
}

// NewDCRemoval creates a DC removal stage for the given sample rate.
func NewDCRemoval(sampleRate int) *DCRemoval {
	return &DCRemoval{
		guardSamples: int(math.Round(float64(sampleRate))),
	}
}

// Offset returns the DC estimate of signal.
func (dc *DCRemoval) Offset(signal []float64) float64 {
	start := dc.guardSamples
	end := len(signal) - dc.guardSamples
	if start >= end {
		return common.Mean(signal)
	}
	return common.Mean(signal[start:end])
}

// ProcessBuffer returns signal with its DC offset removed.
func (dc *DCRemoval) ProcessBuffer(signal []float64) []float64 {
	return common.RemoveMean(signal, dc.Offset(signal))
}
