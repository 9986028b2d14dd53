package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/algorithms/filters"
)

// Envelope provides the smoothed energy envelopes used for segmentation
type Envelope struct {
	smoothingWidths []int   // Successive centered moving averages
	lowpassOrder    int     // Butterworth order of the final smoothing
	lowpassCutoff   float64 // Hz
	rmsWindow       int     // Samples per sliding RMS window
}

// NewEnvelope creates an envelope extractor with 3 then 5 sample moving
// averages and a 2nd order 10 Hz zero-phase low-pass.
func NewEnvelope() *Envelope {
	return &Envelope{
		smoothingWidths: []int{3, 5},
		lowpassOrder:    2,
		lowpassCutoff:   10,
		rmsWindow:       5,
	}
}

// MinLength is the shortest input the envelopes accept at sampleRate.
func (e *Envelope) MinLength(sampleRate int) int {
	sos, err := filters.ButterworthLowpass(e.lowpassOrder, e.lowpassCutoff, sampleRate)
	if err != nil {
		return 5
	}
	return max(5, sos.PadLen()+1)
}

// TKEO computes the Teager-Kaiser energy envelope of signal.
//
// For 2 <= i < N-2 the raw operator is
//
//	2x[i]² + (x[i-1] - x[i+1])² - x[i](x[i-2] + x[i+2])
//
// and the two samples at each end are zero. The result is rectified and
// smoothed, and has the same length as signal.
func (e *Envelope) TKEO(signal []float64, sampleRate int) ([]float64, error) {
	if err := e.check(signal, sampleRate, "tkeo"); err != nil {
		return nil, err
	}

	raw := make([]float64, len(signal))
	for i := 2; i < len(signal)-2; i++ {
		x := signal[i]
		d := signal[i-1] - signal[i+1]
		raw[i] = math.Abs(2*x*x + d*d - x*(signal[i-2]+signal[i+2]))
	}

	return e.smooth(raw, sampleRate, "tkeo")
}

// RMS computes a sliding root-mean-square envelope with a centered window.
// The signal is edge-padded so every output sample sees a full window.
func (e *Envelope) RMS(signal []float64, sampleRate int) ([]float64, error) {
	if err := e.check(signal, sampleRate, "rms"); err != nil {
		return nil, err
	}

	half := e.rmsWindow / 2
	raw := make([]float64, len(signal))
	for i := range signal {
		sumSquares := 0.0
		for j := i - half; j < i-half+e.rmsWindow; j++ {
			v := signal[clampIndex(j, len(signal))]
			sumSquares += v * v
		}
		raw[i] = math.Sqrt(sumSquares / float64(e.rmsWindow))
	}

	return e.smooth(raw, sampleRate, "rms")
}

func (e *Envelope) check(signal []float64, sampleRate int, op string) error {
	if sampleRate <= 0 {
		return common.Errorf(common.KindEnvelope, op, "sample rate must be positive, got %d", sampleRate)
	}
	if len(signal) < 5 {
		return common.Errorf(common.KindEnvelope, op, "signal of %d samples is shorter than the operator support", len(signal))
	}
	return nil
}

// smooth applies the moving averages and the zero-phase low-pass.
func (e *Envelope) smooth(raw []float64, sampleRate int, op string) ([]float64, error) {
	out := raw
	for _, width := range e.smoothingWidths {
		out = common.CenteredMovingAverage(out, width)
	}

	sos, err := filters.ButterworthLowpass(e.lowpassOrder, e.lowpassCutoff, sampleRate)
	if err != nil {
		return nil, common.NewError(common.KindEnvelope, op, "low-pass design", err)
	}

	out, err = filters.FiltFilt(sos, out)
	if err != nil {
		return nil, common.NewError(common.KindEnvelope, op, "low-pass", err)
	}

	// Ringing from the low-pass can dip just below zero
	for i, v := range out {
		if v < 0 {
			out[i] = 0
		}
	}

	return out, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
