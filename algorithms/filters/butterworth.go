package filters

import (
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// Section is one second-order (biquad) stage of a cascaded IIR filter.
// A[0] is always 1.
type Section struct {
	B [3]float64 // Numerator coefficients
	A [3]float64 // Denominator coefficients
}

// SOS is a cascade of biquad sections applied in order.
type SOS []Section

// ButterworthLowpass designs a digital Butterworth low-pass filter.
//
// The analog prototype is pre-warped and mapped to the z-plane with the
// bilinear transform, then factored into second-order sections.
//
// Reference: S. Butterworth, "On the Theory of Filter Amplifiers", 1930;
// A. V. Oppenheim, R. W. Schafer, "Discrete-Time Signal Processing", §7.1.
func ButterworthLowpass(order int, cutoff float64, sampleRate int) (SOS, error) {
	if err := checkDesign(order, sampleRate); err != nil {
		return nil, err
	}
	nyquist := float64(sampleRate) / 2
	if cutoff <= 0 || cutoff >= nyquist {
		return nil, common.Errorf(common.KindConditioning, "butterworth lowpass",
			"cutoff %.2f Hz outside (0, %.2f)", cutoff, nyquist)
	}

	fs2 := 2 * float64(sampleRate)
	wc := fs2 * math.Tan(math.Pi*cutoff/float64(sampleRate))

	proto := prototypePoles(order)
	poles := make([]complex128, len(proto))
	for i, p := range proto {
		poles[i] = p * complex(wc, 0)
	}
	gain := math.Pow(wc, float64(order))

	digitalPoles, k := bilinear(poles, nil, gain, fs2)
	zeros := make([]complex128, order)
	for i := range zeros {
		zeros[i] = -1
	}

	return assemble(digitalPoles, zeros, k), nil
}

// ButterworthBandpass designs a digital Butterworth band-pass filter of the
// given prototype order. The result has 2*order poles.
func ButterworthBandpass(order int, low, high float64, sampleRate int) (SOS, error) {
	if err := checkDesign(order, sampleRate); err != nil {
		return nil, err
	}
	nyquist := float64(sampleRate) / 2
	if low <= 0 || high >= nyquist || low >= high {
		return nil, common.Errorf(common.KindConditioning, "butterworth bandpass",
			"band [%.2f, %.2f] Hz invalid for Nyquist %.2f", low, high, nyquist)
	}

	fs2 := 2 * float64(sampleRate)
	wl := fs2 * math.Tan(math.Pi*low/float64(sampleRate))
	wh := fs2 * math.Tan(math.Pi*high/float64(sampleRate))
	bw := wh - wl
	w0 := math.Sqrt(wl * wh)

	// Low-pass to band-pass: each prototype pole splits into two
	proto := prototypePoles(order)
	poles := make([]complex128, 0, 2*order)
	for _, p := range proto {
		pl := p * complex(bw/2, 0)
		root := cmplx.Sqrt(pl*pl - complex(w0*w0, 0))
		poles = append(poles, pl+root, pl-root)
	}
	analogZeros := make([]complex128, order) // at s = 0
	gain := math.Pow(bw, float64(order))

	digitalPoles, k := bilinear(poles, analogZeros, gain, fs2)

	// s = 0 maps to z = 1, the excess degree lands on z = -1
	zeros := make([]complex128, 0, 2*order)
	for range order {
		zeros = append(zeros, 1, -1)
	}

	return assemble(digitalPoles, zeros, k), nil
}

func checkDesign(order, sampleRate int) error {
	if order < 1 {
		return common.Errorf(common.KindConditioning, "butterworth", "order must be positive, got %d", order)
	}
	if sampleRate <= 0 {
		return common.Errorf(common.KindConditioning, "butterworth", "sample rate must be positive, got %d", sampleRate)
	}
	return nil
}

// prototypePoles returns the analog Butterworth poles on the unit circle
// in the left half plane.
func prototypePoles(order int) []complex128 {
	poles := make([]complex128, order)
	for k := range order {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		poles[k] = cmplx.Exp(complex(0, theta))
	}
	return poles
}

// bilinear maps analog poles to the z-plane and returns the digital gain.
func bilinear(poles, zeros []complex128, gain, fs2 float64) ([]complex128, float64) {
	fs := complex(fs2, 0)

	digital := make([]complex128, len(poles))
	den := complex(1, 0)
	for i, p := range poles {
		digital[i] = (fs + p) / (fs - p)
		den *= fs - p
	}

	num := complex(1, 0)
	for _, z := range zeros {
		num *= fs - z
	}

	return digital, gain * real(num/den)
}

// assemble groups conjugate pole pairs into biquads and assigns zeros in
// order, two per section. The overall gain goes into the first section.
func assemble(poles, zeros []complex128, gain float64) SOS {
	const eps = 1e-12

	var dens [][3]float64
	var reals []float64
	for _, p := range poles {
		switch {
		case imag(p) > eps:
			dens = append(dens, [3]float64{1, -2 * real(p), real(p)*real(p) + imag(p)*imag(p)})
		case math.Abs(imag(p)) <= eps:
			reals = append(reals, real(p))
		}
	}
	for i := 0; i+1 < len(reals); i += 2 {
		dens = append(dens, [3]float64{1, -(reals[i] + reals[i+1]), reals[i] * reals[i+1]})
	}
	if len(reals)%2 == 1 {
		dens = append(dens, [3]float64{1, -reals[len(reals)-1], 0})
	}

	sos := make(SOS, len(dens))
	zi := 0
	for i, a := range dens {
		num := [3]float64{1, 0, 0}
		switch {
		case zi+1 < len(zeros) && a[2] != 0:
			z1, z2 := real(zeros[zi]), real(zeros[zi+1])
			num = [3]float64{1, -(z1 + z2), z1 * z2}
			zi += 2
		case zi < len(zeros):
			num = [3]float64{1, -real(zeros[zi]), 0}
			zi++
		}
		sos[i] = Section{B: num, A: a}
	}

	if len(sos) > 0 {
		for j := range sos[0].B {
			sos[0].B[j] *= gain
		}
	}

	return sos
}

// Response evaluates the filter's magnitude response at a frequency in Hz.
func (s SOS) Response(freq float64, sampleRate int) float64 {
	w := 2 * math.Pi * freq / float64(sampleRate)
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1

	h := complex(1, 0)
	for _, sec := range s {
		num := complex(sec.B[0], 0) + complex(sec.B[1], 0)*z1 + complex(sec.B[2], 0)*z2
		den := complex(sec.A[0], 0) + complex(sec.A[1], 0)*z1 + complex(sec.A[2], 0)*z2
		h *= num / den
	}
	return cmplx.Abs(h)
}
