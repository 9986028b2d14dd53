package segmentation

import (
	"math"
	"sort"
	"time"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/algorithms/temporal"
	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/logging"
)

// Params holds the detection constants. They are task specific and
// empirically tuned.
type Params struct {
	SVThresholdRatio float64 `json:"sv_threshold_ratio"` // Static threshold as a fraction of mean TKEO
	SVMinDuration    float64 `json:"sv_min_duration"`    // Seconds

	WindowSeconds  float64 `json:"window_seconds"`  // Otsu window
	WindowOverlap  float64 `json:"window_overlap"`  // Fraction shared by consecutive windows
	ThresholdScale float64 `json:"threshold_scale"` // Applied to the averaged window thresholds
	FloorRatio     float64 `json:"floor_ratio"`     // Global floor as a fraction of mean TKEO
	MinGapSeconds  float64 `json:"min_gap_seconds"` // Between a kept offset and the next onset

	SRMinDuration float64 `json:"sr_min_duration"`
	PRMinDuration float64 `json:"pr_min_duration"`

	SentenceBoundaries int `json:"sentence_boundaries"` // Longest PR pauses to report
}

// DefaultParams returns the tuned detection constants
func DefaultParams() *Params {
	return &Params{
		SVThresholdRatio:   0.15,
		SVMinDuration:      1.0,
		WindowSeconds:      0.10,
		WindowOverlap:      0.5,
		ThresholdScale:     0.65,
		FloorRatio:         0.45,
		MinGapSeconds:      0.020,
		SRMinDuration:      0.08,
		PRMinDuration:      0.05,
		SentenceBoundaries: 5,
	}
}

// Detection is the result of segmenting one recording
type Detection struct {
	Task       Task         `json:"task"`
	Source     string       `json:"source"`
	SampleRate int          `json:"sample_rate"`
	Boundaries BoundaryList `json:"boundaries"`

	// Static threshold for SV, global floor for SR and PR
	Threshold float64 `json:"threshold"`

	// SR only: mean RMS per segment and its slope against segment
	// midpoint time. RMSSlope is NaN with fewer than two segments.
	MeanRMS  []float64 `json:"mean_rms,omitempty"`
	RMSSlope float64   `json:"rms_slope"`

	// PR only: offsets ending the longest pauses, in time order
	SentenceBoundaries []int `json:"sentence_boundaries,omitempty"`

	DegenerateWindows int `json:"degenerate_windows"`
}

type detectFunc func(d *Detector, buf conditioning.AudioBuffer, task Task) (*Detection, error)

// Detector segments conditioned recordings into voiced regions
type Detector struct {
	params      *Params
	envelope    *temporal.Envelope
	thresholder *temporal.AdaptiveThresholder
	logger      logging.Logger
	dispatch    map[Kind]detectFunc
}

// NewDetector creates a detector. A nil params uses DefaultParams.
func NewDetector(params *Params, logger logging.Logger) *Detector {
	if params == nil {
		params = DefaultParams()
	}
	return &Detector{
		params:      params,
		envelope:    temporal.NewEnvelope(),
		thresholder: temporal.NewAdaptiveThresholder(params.WindowSeconds, params.WindowOverlap, params.ThresholdScale),
		logger:      logging.OrNoOp(logger),
		dispatch: map[Kind]detectFunc{
			SustainedVowel:     detectSustainedVowel,
			SyllableRepetition: detectSyllables,
			PassageReading:     detectPassage,
		},
	}
}

// Detect segments buf according to the task's paradigm
func (d *Detector) Detect(buf conditioning.AudioBuffer, task Task) (*Detection, error) {
	fn, ok := d.dispatch[task.Kind()]
	if !ok || !task.Valid() {
		return nil, common.Errorf(common.KindInvalidTask, "detect", "unsupported task %v", task)
	}

	start := time.Now()
	det, err := fn(d, buf, task)
	if err != nil {
		return nil, err
	}
	if err := det.Boundaries.Validate(len(buf.Samples)); err != nil {
		return nil, err
	}

	d.logger.Debug("Detected segments", logging.Fields{
		"task":               task.String(),
		"source":             buf.Source,
		"segments":           len(det.Boundaries),
		"degenerate_windows": det.DegenerateWindows,
		"elapsed":            time.Since(start).String(),
	})

	return det, nil
}

func newDetection(buf conditioning.AudioBuffer, task Task) *Detection {
	return &Detection{
		Task:       task,
		Source:     buf.Source,
		SampleRate: buf.SampleRate,
		Boundaries: BoundaryList{},
		RMSSlope:   math.NaN(),
	}
}

// detectSustainedVowel applies a static threshold with two-sample
// hysteresis and keeps segments longer than SVMinDuration.
func detectSustainedVowel(d *Detector, buf conditioning.AudioBuffer, task Task) (*Detection, error) {
	env, err := d.envelope.TKEO(buf.Samples, buf.SampleRate)
	if err != nil {
		return nil, err
	}

	det := newDetection(buf, task)
	det.Threshold = d.params.SVThresholdRatio * common.Mean(env)

	onsets, offsets := Hysteresis(env, det.Threshold)
	onsets, offsets = TrimEdges(onsets, offsets)

	// An unmatched trailing onset can survive when no offset was seen at all
	n := min(len(onsets), len(offsets))
	list, err := NewBoundaryList(onsets[:n], offsets[:n])
	if err != nil {
		return nil, err
	}

	det.Boundaries = list.LongerThan(d.params.SVMinDuration, buf.SampleRate)
	return det, nil
}

// Hysteresis scans env for threshold crossings confirmed by two consecutive
// samples. The scan starts in the below-threshold state.
func Hysteresis(env []float64, threshold float64) (onsets, offsets []int) {
	onsets, offsets = []int{}, []int{}
	below := true
	for i := 0; i+1 < len(env); i++ {
		switch {
		case below && env[i] > threshold && env[i+1] > threshold:
			onsets = append(onsets, i)
			below = false
		case !below && env[i] < threshold && env[i+1] < threshold:
			offsets = append(offsets, i)
			below = true
		}
	}
	return onsets, offsets
}

// adaptiveSegments runs the windowed Otsu detection shared by SR and PR.
func (d *Detector) adaptiveSegments(buf conditioning.AudioBuffer, task Task, minDuration float64) (*Detection, error) {
	env, err := d.envelope.TKEO(buf.Samples, buf.SampleRate)
	if err != nil {
		return nil, err
	}

	local, degenerate, err := d.thresholder.Thresholds(env, buf.SampleRate)
	if err != nil {
		return nil, err
	}
	if degenerate > 0 {
		d.logger.Debug("Zero variance threshold windows", logging.Fields{
			"task":    task.String(),
			"source":  buf.Source,
			"windows": degenerate,
		})
	}

	det := newDetection(buf, task)
	det.Threshold = d.params.FloorRatio * common.Mean(env)
	det.DegenerateWindows = degenerate

	rising, falling := temporal.Edges(temporal.Activity(env, local, det.Threshold))
	onsets, offsets := TrimEdges(rising, falling)

	minGap := int(d.params.MinGapSeconds * float64(buf.SampleRate))
	det.Boundaries = PairEdges(onsets, offsets, minGap).LongerThan(minDuration, buf.SampleRate)

	return det, nil
}

func detectSyllables(d *Detector, buf conditioning.AudioBuffer, task Task) (*Detection, error) {
	det, err := d.adaptiveSegments(buf, task, d.params.SRMinDuration)
	if err != nil {
		return nil, err
	}

	rms, err := d.envelope.RMS(buf.Samples, buf.SampleRate)
	if err != nil {
		return nil, err
	}

	det.MeanRMS = make([]float64, len(det.Boundaries))
	midpoints := make([]float64, len(det.Boundaries))
	fs := float64(buf.SampleRate)
	for i, b := range det.Boundaries {
		det.MeanRMS[i] = common.Mean(rms[b.Onset:b.Offset])
		midpoints[i] = (float64(b.Onset) + float64(b.Offset)) / 2 / fs
	}

	if len(det.MeanRMS) > 1 {
		det.RMSSlope, _, _ = common.LinRegression(midpoints, det.MeanRMS)
	}

	return det, nil
}

func detectPassage(d *Detector, buf conditioning.AudioBuffer, task Task) (*Detection, error) {
	det, err := d.adaptiveSegments(buf, task, d.params.PRMinDuration)
	if err != nil {
		return nil, err
	}

	det.SentenceBoundaries = LongestPauses(det.Boundaries, d.params.SentenceBoundaries)
	return det, nil
}

// LongestPauses returns the offsets that start the count longest pauses,
// in time order. Nothing is reported unless there are more than count
// segments.
func LongestPauses(list BoundaryList, count int) []int {
	if count <= 0 || len(list) <= count {
		return nil
	}

	idx := make([]int, len(list)-1)
	for i := range idx {
		idx[i] = i
	}
	pause := func(i int) int { return list[i+1].Onset - list[i].Offset }
	sort.SliceStable(idx, func(a, b int) bool { return pause(idx[a]) > pause(idx[b]) })

	if len(idx) > count {
		idx = idx[:count]
	}
	out := make([]int, len(idx))
	for i, k := range idx {
		out[i] = list[k].Offset
	}
	sort.Ints(out)
	return out
}
