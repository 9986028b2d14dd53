package common

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenteredMovingAverage(t *testing.T) {
	data := []float64{3, 3, 3, 3, 3}

	got := CenteredMovingAverage(data, 3)
	assert.InDeltaSlice(t, []float64{2, 3, 3, 3, 2}, got, 1e-12)

	got = CenteredMovingAverage(data, 5)
	assert.InDeltaSlice(t, []float64{1.8, 2.4, 3, 2.4, 1.8}, got, 1e-12)

	assert.Equal(t, []float64{1, 2}, CenteredMovingAverage([]float64{1, 2}, 1))
}

func TestLinRegression(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{3, 5, 7, 9}

	slope, intercept, r2 := LinRegression(x, y)
	assert.InDelta(t, 2.0, slope, 1e-12)
	assert.InDelta(t, 1.0, intercept, 1e-12)
	assert.InDelta(t, 1.0, r2, 1e-12)

	slope, _, _ = LinRegression([]float64{1}, []float64{1})
	assert.Zero(t, slope)
}

func TestEmptyAggregates(t *testing.T) {
	assert.True(t, math.IsNaN(MeanOrNaN(nil)))
	assert.True(t, math.IsNaN(MaxOrNaN(nil)))
	assert.Zero(t, Sum(nil))
	assert.Equal(t, 2.5, MeanOrNaN([]float64{2, 3}))
	assert.Equal(t, 3, DistinctCount([]float64{1, 1, 2, 3, 3}))
}

func TestPeakNormalize(t *testing.T) {
	got := PeakNormalize([]float64{0.5, -2, 1})
	assert.Equal(t, []float64{0.25, -1, 0.5}, got)

	silent := []float64{0, 0}
	assert.Equal(t, silent, PeakNormalize(silent))
	assert.Equal(t, 2.0, PeakAbs([]float64{1, -2}))
}

func TestAnalysisErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", NewError(KindParse, "parse", "bad token", cause))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrDetection)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindParse, kind)
	assert.Contains(t, err.Error(), "bad token")

	_, ok = KindOf(cause)
	assert.False(t, ok)
}
