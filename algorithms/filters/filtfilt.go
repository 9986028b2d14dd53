package filters

import (
	"slices"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// PadLen is the number of samples FiltFilt reflects onto each end of the
// input before filtering.
func (s SOS) PadLen() int {
	zerosB, zerosA := 0, 0
	for _, sec := range s {
		if sec.B[2] == 0 {
			zerosB++
		}
		if sec.A[2] == 0 {
			zerosA++
		}
	}
	return 3 * (2*len(s) + 1 - min(zerosB, zerosA))
}

// ProcessBuffer runs the cascade forward once over input, starting from rest.
func (s SOS) ProcessBuffer(input []float64) []float64 {
	out := slices.Clone(input)
	for _, sec := range s {
		out = sec.run(out, 0, 0)
	}
	return out
}

// FiltFilt applies the cascade forward and then backward, giving zero phase
// distortion and a squared magnitude response.
//
// The signal is extended at both ends by odd reflection and each section
// starts from its step-response steady state, which suppresses the edge
// transients a plain forward-backward pass would leave.
//
// Reference: F. Gustafsson, "Determining the initial states in
// forward-backward filtering", IEEE Trans. Signal Processing, 1996.
func FiltFilt(s SOS, input []float64) ([]float64, error) {
	padLen := s.PadLen()
	if len(input) <= padLen {
		return nil, common.Errorf(common.KindEnvelope, "filtfilt",
			"input of %d samples must be longer than padding %d", len(input), padLen)
	}

	ext := oddExtend(input, padLen)
	zi := s.steadyState()

	y := s.runWithState(ext, zi, ext[0])
	slices.Reverse(y)
	y = s.runWithState(y, zi, y[0])
	slices.Reverse(y)

	return y[padLen : len(y)-padLen], nil
}

func (s SOS) runWithState(x []float64, zi [][2]float64, x0 float64) []float64 {
	out := x
	for i, sec := range s {
		out = sec.run(out, zi[i][0]*x0, zi[i][1]*x0)
	}
	return out
}

// steadyState computes the per-section initial conditions for a unit step,
// each scaled by the DC gain of the sections before it.
func (s SOS) steadyState() [][2]float64 {
	zi := make([][2]float64, len(s))
	scale := 1.0
	for i, sec := range s {
		sumB := sec.B[0] + sec.B[1] + sec.B[2]
		sumA := sec.A[0] + sec.A[1] + sec.A[2]
		y := sumB / sumA

		z1 := sec.B[2] - sec.A[2]*y
		z0 := sec.B[1] - sec.A[1]*y + z1
		zi[i] = [2]float64{z0 * scale, z1 * scale}

		scale *= y
	}
	return zi
}

// run filters x through one section in transposed direct form II.
//
//	y[n]  = b0*x[n] + z0
//	z0'   = b1*x[n] - a1*y[n] + z1
//	z1'   = b2*x[n] - a2*y[n]
func (sec Section) run(x []float64, z0, z1 float64) []float64 {
	y := make([]float64, len(x))
	for n, v := range x {
		out := sec.B[0]*v + z0
		z0 = sec.B[1]*v - sec.A[1]*out + z1
		z1 = sec.B[2]*v - sec.A[2]*out
		y[n] = out
	}
	return y
}

// oddExtend reflects n samples about each endpoint:
// 2*x[0] - x[n..1] in front and 2*x[N-1] - x[N-2..N-n-1] behind.
func oddExtend(x []float64, n int) []float64 {
	size := len(x)
	ext := make([]float64, size+2*n)
	for i := range n {
		ext[i] = 2*x[0] - x[n-i]
		ext[n+size+i] = 2*x[size-1] - x[size-2-i]
	}
	copy(ext[n:], x)
	return ext
}
