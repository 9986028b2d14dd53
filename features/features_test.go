package features

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/algorithms/stats"
	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/segmentation"
)

var sr1 = segmentation.MustParseTask("SR1")

func compute(t *testing.T, task segmentation.Task, onsets, offsets []int) *Record {
	t.Helper()
	rec, err := NewEngine(nil, nil).Compute(task, 1000, onsets, offsets)
	require.NoError(t, err)
	return rec
}

func TestSyllableWindow(t *testing.T) {
	// The third onset starts after the 5 s window
	rec := compute(t, sr1, []int{0, 2000, 5500}, []int{500, 2500, 12000})

	assert.InDelta(t, 2.5, rec.Float(ColTST), 1e-12)
	assert.InDelta(t, 1.5, rec.Float(ColTPT), 1e-12)
	assert.InDelta(t, 1.0, rec.Float(ColNST), 1e-12)
	assert.InDelta(t, 60.0, rec.Float(ColPauseRatio), 1e-9)
	assert.Equal(t, 2.0, rec.Float(ColNRep))
	assert.InDelta(t, 2.0, rec.Float(ColRateNST), 1e-12)
	assert.InDelta(t, 0.8, rec.Float(ColRateTST), 1e-12)
	assert.InDelta(t, 2.0, rec.Float(ColIntDur), 1e-12)
	assert.InDelta(t, 0.5, rec.Float(ColMeanUtterance), 1e-12)
	assert.InDelta(t, 0.25, rec.Float(ColUtteranceRatio), 1e-12)

	// A single pause has no slope
	desc, _ := rec.Get(ColPauseSlopeDesc)
	assert.Equal(t, stats.TrendNotApplicable, desc.String())
	assert.True(t, math.IsNaN(rec.Float(ColPauseSlope)))

	// Speech resumes after 3.0 s, longer than the 1.5 s mean pause
	assert.Equal(t, 1.0, rec.Float(ColTaskFailure))
}

func TestSyllableWindowKeepsLateSegment(t *testing.T) {
	// The last onset is inside the window, so its segment counts in full
	rec := compute(t, sr1, []int{0, 2000, 4500}, []int{500, 2500, 12000})

	assert.InDelta(t, 12.0, rec.Float(ColTST), 1e-12)
	assert.InDelta(t, 3.5, rec.Float(ColTPT), 1e-12)
	assert.InDelta(t, 8.5, rec.Float(ColNST), 1e-12)
	assert.Equal(t, 3.0, rec.Float(ColNRep))
	assert.InDelta(t, 0.25, rec.Float(ColRateTST), 1e-12)
	assert.InDelta(t, 2.25, rec.Float(ColIntDur), 1e-12)
	assert.InDelta(t, 0.225, rec.Float(ColUtteranceRatio), 1e-12)
	assert.InDelta(t, 0.5, rec.Float(ColPauseSlope), 1e-9)
	assert.Equal(t, 0.0, rec.Float(ColTaskFailure))
}

func TestSyllableWindowStraddlingSegment(t *testing.T) {
	// 0.3 s syllables every 0.6 s up to 7.5 s; 4.8-5.1 s crosses the window
	var onsets, offsets []int
	for on := 0; on <= 7200; on += 600 {
		onsets = append(onsets, on)
		offsets = append(offsets, on+300)
	}
	rec := compute(t, sr1, onsets, offsets)

	assert.InDelta(t, 5.1, rec.Float(ColTST), 1e-12)
	assert.Equal(t, 9.0, rec.Float(ColNRep))
	assert.InDelta(t, 0.3, rec.Float(ColMeanPause), 1e-12)
	assert.Equal(t, 0.0, rec.Float(ColTaskFailure))
}

func TestSyllableTaskFailure(t *testing.T) {
	tests := []struct {
		name    string
		onsets  []int
		offsets []int
		want    float64
	}{
		{"gap longer than mean pause", []int{0, 1400, 2600, 5600}, []int{1000, 2200, 3000, 6000}, 1},
		{"gap within mean pause", []int{0, 2000, 4000, 5200}, []int{500, 2500, 4100, 6000}, 0},
		{"gap equal to mean pause",
			[]int{0, 650, 1300, 1950, 2600, 3250, 3900, 4550, 5200},
			[]int{350, 1000, 1650, 2300, 2950, 3600, 4250, 4900, 5550}, 0},
		{"nothing after the window", []int{0, 1400}, []int{1000, 2200}, 1},
		{"window filled", []int{0, 2000, 4000}, []int{1000, 3000, 5000}, 0},
		{"single segment resumes", []int{0, 7000}, []int{1000, 8000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := compute(t, sr1, tt.onsets, tt.offsets)
			assert.Equal(t, tt.want, rec.Float(ColTaskFailure))
		})
	}
}

func TestSyllableSlopes(t *testing.T) {
	// Pauses grow 0.2, 0.3, 0.4; utterances shrink 0.5, 0.4, 0.3, 0.2
	rec := compute(t, sr1,
		[]int{0, 700, 1400, 2100},
		[]int{500, 1100, 1700, 2300})

	assert.InDelta(t, 0.1, rec.Float(ColPauseSlope), 1e-9)
	desc, _ := rec.Get(ColPauseSlopeDesc)
	assert.Equal(t, stats.TrendIncreasing, desc.String())

	assert.InDelta(t, -0.1, rec.Float(ColUttSlope), 1e-9)
	desc, _ = rec.Get(ColUttSlopeDesc)
	assert.Equal(t, stats.TrendDecreasing, desc.String())
}

func TestSyllableEmpty(t *testing.T) {
	rec := compute(t, sr1, nil, nil)

	assert.Equal(t, TimingColumns, rec.Names())
	assert.Equal(t, 0.0, rec.Float(ColNRep))
	assert.Equal(t, 1.0, rec.Float(ColTaskFailure))
	for _, name := range []string{ColTST, ColNST, ColPauseRatio, ColMeanPause, ColUtteranceRatio} {
		v, ok := rec.Get(name)
		require.True(t, ok)
		assert.False(t, v.Defined(), name)
	}
}

func TestPassageRecord(t *testing.T) {
	rec := compute(t, segmentation.PR(), []int{0, 2000, 4500}, []int{500, 2500, 12000})

	assert.Equal(t, TimingColumns, rec.Names())
	assert.InDelta(t, 12.0, rec.Float(ColTST), 1e-12)
	assert.InDelta(t, 3.5, rec.Float(ColTPT), 1e-12)
	assert.InDelta(t, 8.5, rec.Float(ColNST), 1e-12)
	assert.InDelta(t, 1.75, rec.Float(ColMeanPause), 1e-12)
	assert.Equal(t, 0.0, rec.Float(ColTaskFailure))

	for _, name := range []string{ColPauseSlope, ColPauseSlopeDesc, ColUtteranceRatio, ColNRep, ColRateNST, ColRateTST} {
		v, _ := rec.Get(name)
		assert.False(t, v.Defined(), name)
	}

	desc, _ := rec.Get(ColUttSlopeDesc)
	assert.Equal(t, stats.TrendIncreasing, desc.String())
}

func TestVowelRecord(t *testing.T) {
	rec := compute(t, segmentation.SV(), []int{0, 3000}, []int{1500, 5500})
	assert.Equal(t, VowelColumns, rec.Names())
	assert.InDelta(t, 2.5, rec.Float(ColMaxPhonation), 1e-12)

	rec = compute(t, segmentation.SV(), nil, nil)
	assert.True(t, math.IsNaN(rec.Float(ColMaxPhonation)))
}

func TestComputeErrors(t *testing.T) {
	e := NewEngine(nil, nil)

	_, err := e.Compute(sr1, 1000, []int{0, 10}, []int{5})
	assert.ErrorIs(t, err, common.ErrDetection)

	_, err = e.Compute(sr1, 0, nil, nil)
	assert.ErrorIs(t, err, common.ErrDetection)

	_, err = e.Compute(segmentation.Task{}, 1000, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidTask)
}

func TestZeroLengthPauseRatio(t *testing.T) {
	// Touching segments: no pause and a defined ratio
	rec := compute(t, sr1, []int{0, 100}, []int{100, 200})
	assert.Equal(t, 0.0, rec.Float(ColTPT))
	assert.Equal(t, 0.0, rec.Float(ColPauseRatio))
}

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(buf conditioning.AudioBuffer, task segmentation.Task) ([]Field, error) {
	return []Field{{Name: "HNR", Value: Number(12.5)}}, nil
}

func TestAcousticFieldsAppended(t *testing.T) {
	e := NewEngine(nil, nil)
	rec, err := e.Compute(segmentation.SV(), 1000, []int{0}, []int{2000})
	require.NoError(t, err)

	require.NoError(t, e.Acoustic(rec, conditioning.AudioBuffer{}, segmentation.SV()))
	assert.Equal(t, 1, rec.Len())

	require.NoError(t, e.WithAcoustic(fixedAnalyzer{}).Acoustic(rec, conditioning.AudioBuffer{}, segmentation.SV()))
	assert.Equal(t, []string{ColMaxPhonation, "HNR"}, rec.Names())
	assert.Equal(t, 12.5, rec.Float("HNR"))
}

func TestRecordEncoding(t *testing.T) {
	rec := compute(t, segmentation.PR(), []int{0, 2000}, []int{500, 2500})

	assert.Equal(t, "", rec.Strings()[5])
	assert.Equal(t, "2.5", rec.Strings()[0])

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, 2.5, decoded[ColTST])
	assert.Nil(t, decoded[ColNRep])
	assert.Equal(t, "Not Applicable", decoded[ColUttSlopeDesc])

	out, err := yaml.Marshal(rec)
	require.NoError(t, err)
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal(out, &node))
	mapping := node.Content[0]
	assert.Equal(t, ColTST, mapping.Content[0].Value)
	assert.Equal(t, ColNST, mapping.Content[2].Value)
}
