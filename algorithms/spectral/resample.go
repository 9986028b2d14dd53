package spectral

import (
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// Resampler changes the sample rate of a signal with the Fourier method:
// the spectrum is truncated or zero-extended to the new length and
// transformed back, which is ideal band-limited interpolation for a
// periodic signal.
type Resampler struct {
	fft *FFT
}

// NewResampler creates a new Fourier resampler
func NewResampler() *Resampler {
	return &Resampler{fft: NewFFT()}
}

// OutputLength is the number of samples produced when converting n samples
// from fromRate to toRate.
func OutputLength(n, fromRate, toRate int) int {
	return int(math.Ceil(float64(n) * float64(toRate) / float64(fromRate)))
}

// Resample converts signal from fromRate to toRate.
func (r *Resampler) Resample(signal []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, common.Errorf(common.KindConditioning, "resample",
			"invalid rates %d -> %d", fromRate, toRate)
	}
	if len(signal) == 0 {
		return nil, common.Errorf(common.KindConditioning, "resample", "empty signal")
	}

	out := make([]float64, len(signal))
	copy(out, signal)
	if fromRate == toRate {
		return out, nil
	}

	return r.ResampleTo(signal, OutputLength(len(signal), fromRate, toRate)), nil
}

// ResampleTo resamples signal to exactly num samples.
func (r *Resampler) ResampleTo(signal []float64, num int) []float64 {
	nx := len(signal)
	if num <= 0 || nx == 0 {
		return []float64{}
	}

	spectrum := r.fft.Compute(signal)

	// Positive-frequency half of the output spectrum
	half := make([]complex128, num/2+1)
	n := min(num, nx)
	copy(half, spectrum[:n/2+1])

	// The shared Nyquist bin is split or merged between the two halves
	if n%2 == 0 {
		if num < nx {
			half[n/2] *= 2
		} else if num > nx {
			half[n/2] *= 0.5
		}
	}

	full := make([]complex128, num)
	copy(full, half)
	for k := 1; k < (num+1)/2; k++ {
		full[num-k] = cmplx.Conj(half[k])
	}
	if num%2 == 0 {
		full[num/2] = complex(real(half[num/2]), 0)
	}

	out := r.fft.ComputeInverseReal(full)
	scale := float64(num) / float64(nx)
	for i := range out {
		out[i] *= scale
	}

	return out
}
