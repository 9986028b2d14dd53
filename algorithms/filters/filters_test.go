package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestButterworthLowpassResponse(t *testing.T) {
	sos, err := ButterworthLowpass(2, 10, 1000)
	require.NoError(t, err)
	require.Len(t, sos, 1)

	assert.InDelta(t, 1.0, sos.Response(0, 1000), 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, sos.Response(10, 1000), 1e-6)
	assert.Less(t, sos.Response(100, 1000), 0.02)
}

func TestButterworthBandpassResponse(t *testing.T) {
	sos, err := ButterworthBandpass(4, 10, 5000, 44100)
	require.NoError(t, err)
	require.Len(t, sos, 4)

	assert.InDelta(t, 1.0, sos.Response(1000, 44100), 1e-3)
	assert.InDelta(t, 1/math.Sqrt2, sos.Response(10, 44100), 1e-3)
	assert.InDelta(t, 1/math.Sqrt2, sos.Response(5000, 44100), 1e-3)
	assert.Less(t, sos.Response(0.5, 44100), 1e-3)
	assert.Less(t, sos.Response(15000, 44100), 0.01)
}

func TestButterworthRejectsInvalidBands(t *testing.T) {
	cases := []struct {
		name      string
		low, high float64
		rate      int
	}{
		{"inverted", 5000, 10, 44100},
		{"above nyquist", 10, 5000, 8000},
		{"zero low", 0, 5000, 44100},
		{"zero rate", 10, 5000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ButterworthBandpass(4, tc.low, tc.high, tc.rate)
			assert.ErrorIs(t, err, common.ErrConditioning)
		})
	}

	_, err := ButterworthLowpass(0, 10, 1000)
	assert.ErrorIs(t, err, common.ErrConditioning)
}

func TestFiltFiltPreservesPhase(t *testing.T) {
	sos, err := ButterworthLowpass(2, 50, 1000)
	require.NoError(t, err)

	x := sine(2, 1000, 2000)
	y, err := FiltFilt(sos, x)
	require.NoError(t, err)
	require.Len(t, y, len(x))

	// A 2 Hz tone sits deep in the passband: no delay, unit gain
	for i := 200; i < 1800; i++ {
		assert.InDelta(t, x[i], y[i], 1e-3)
	}
}

func TestFiltFiltConstantInput(t *testing.T) {
	sos, err := ButterworthLowpass(2, 10, 1000)
	require.NoError(t, err)

	x := make([]float64, 500)
	for i := range x {
		x[i] = 0.3
	}

	y, err := FiltFilt(sos, x)
	require.NoError(t, err)
	for _, v := range y {
		assert.InDelta(t, 0.3, v, 1e-9)
	}
}

func TestFiltFiltTooShort(t *testing.T) {
	sos, err := ButterworthLowpass(2, 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, 9, sos.PadLen())

	_, err = FiltFilt(sos, make([]float64, 9))
	assert.ErrorIs(t, err, common.ErrEnvelope)

	_, err = FiltFilt(sos, make([]float64, 10))
	assert.NoError(t, err)
}

func TestDCRemoval(t *testing.T) {
	// Interior is 2s of offset 0.5, the guard seconds carry a different offset
	rate := 100
	signal := make([]float64, 4*rate)
	for i := range signal {
		signal[i] = 0.5
		if i < rate || i >= 3*rate {
			signal[i] = 5
		}
	}

	dc := NewDCRemoval(rate)
	assert.InDelta(t, 0.5, dc.Offset(signal), 1e-12)

	out := dc.ProcessBuffer(signal)
	assert.InDelta(t, 0.0, out[2*rate], 1e-12)
	assert.InDelta(t, 4.5, out[0], 1e-12)

	// Too short for an interior: whole-buffer mean
	short := []float64{1, 3}
	assert.InDelta(t, 2.0, dc.Offset(short), 1e-12)
}
