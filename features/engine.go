package features

import (
	"math"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/algorithms/stats"
	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/logging"
	"github.com/RyanBlaney/sonido-motor/segmentation"
)

// Config holds the feature constants
type Config struct {
	// SR measures are taken over the segments that end within this many
	// seconds of the first onset. It is also the task failure limit.
	SRWindowSeconds float64 `json:"sr_window_seconds"`
}

// DefaultConfig returns the standard feature constants
func DefaultConfig() *Config {
	return &Config{SRWindowSeconds: 5}
}

// AcousticAnalyzer computes spectral voice measures (jitter, shimmer, HNR,
// formants, MFCC, ...) for a conditioned recording. Its fields are appended
// after the timing columns.
type AcousticAnalyzer interface {
	Analyze(buf conditioning.AudioBuffer, task segmentation.Task) ([]Field, error)
}

// Engine turns segment boundaries into timing metrics
type Engine struct {
	config   *Config
	acoustic AcousticAnalyzer
	logger   logging.Logger
}

// NewEngine creates a feature engine. A nil config uses DefaultConfig.
func NewEngine(config *Config, logger logging.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{config: config, logger: logging.OrNoOp(logger)}
}

// WithAcoustic attaches an acoustic analyzer
func (e *Engine) WithAcoustic(a AcousticAnalyzer) *Engine {
	e.acoustic = a
	return e
}

// Compute derives the task's metrics from parallel onset and offset lists
// in samples at sampleRate.
func (e *Engine) Compute(task segmentation.Task, sampleRate int, onsets, offsets []int) (*Record, error) {
	if len(onsets) != len(offsets) {
		return nil, common.Errorf(common.KindDetection, "features",
			"%d onsets but %d offsets", len(onsets), len(offsets))
	}
	list, err := segmentation.NewBoundaryList(onsets, offsets)
	if err != nil {
		return nil, err
	}
	return e.ComputeBoundaries(task, sampleRate, list)
}

// ComputeBoundaries is Compute on typed boundaries
func (e *Engine) ComputeBoundaries(task segmentation.Task, sampleRate int, list segmentation.BoundaryList) (*Record, error) {
	if sampleRate <= 0 {
		return nil, common.Errorf(common.KindDetection, "features", "invalid sample rate %d", sampleRate)
	}

	switch task.Kind() {
	case segmentation.SustainedVowel:
		return vowelRecord(list, float64(sampleRate)), nil
	case segmentation.SyllableRepetition:
		if !task.Valid() {
			break
		}
		rec := e.syllableRecord(list, float64(sampleRate))
		if rec.Float(ColTaskFailure) == 1 {
			e.logger.Debug("Task failure", logging.Fields{
				"task": task.String(),
				"tst":  rec.Float(ColTST),
			})
		}
		return rec, nil
	case segmentation.PassageReading:
		return passageRecord(list, float64(sampleRate)), nil
	}
	return nil, common.Errorf(common.KindInvalidTask, "features", "unsupported task %v", task)
}

// Acoustic runs the attached analyzer and appends its fields to rec. It
// is a no-op without an analyzer.
func (e *Engine) Acoustic(rec *Record, buf conditioning.AudioBuffer, task segmentation.Task) error {
	if e.acoustic == nil {
		return nil
	}
	fields, err := e.acoustic.Analyze(buf, task)
	if err != nil {
		return err
	}
	for _, f := range fields {
		rec.set(f.Name, f.Value)
	}
	return nil
}

// timing holds the measures shared by SR and PR over a valid segment set
type timing struct {
	tst, tpt, nst, pauseRatio float64
	meanPause, meanUtterance  float64
	intDur                    float64
	pauses, utterances        []float64
}

func measure(valid segmentation.BoundaryList, finalOffset int, fs float64) timing {
	var t timing
	t.tst = float64(finalOffset-valid[0].Onset) / fs

	t.pauses = make([]float64, 0, len(valid)-1)
	intervals := make([]float64, 0, len(valid)-1)
	for n := 0; n+1 < len(valid); n++ {
		t.pauses = append(t.pauses, float64(valid[n+1].Onset-valid[n].Offset)/fs)
		intervals = append(intervals, float64(valid[n+1].Onset-valid[n].Onset)/fs)
	}
	t.utterances = make([]float64, len(valid))
	for n, b := range valid {
		t.utterances[n] = b.Duration(int(fs))
	}

	t.tpt = common.Sum(t.pauses)
	t.pauseRatio = math.NaN()
	if t.tst > 0 {
		t.pauseRatio = 100 * t.tpt / t.tst
	}
	t.nst = t.tst - t.tpt
	t.meanPause = common.MeanOrNaN(t.pauses)
	t.meanUtterance = common.MeanOrNaN(t.utterances)
	t.intDur = common.MeanOrNaN(intervals)
	return t
}

func (t timing) fill(rec *Record) {
	uttSlope, uttDesc := stats.Trend(t.utterances)

	rec.set(ColTST, Number(t.tst))
	rec.set(ColNST, Number(t.nst))
	rec.set(ColTPT, Number(t.tpt))
	rec.set(ColMeanPause, Number(t.meanPause))
	rec.set(ColPauseRatio, Number(t.pauseRatio))
	rec.set(ColPauseSlope, Undefined())
	rec.set(ColPauseSlopeDesc, Undefined())
	rec.set(ColMeanUtterance, Number(t.meanUtterance))
	rec.set(ColUtteranceRatio, Undefined())
	rec.set(ColUttSlope, Number(uttSlope))
	rec.set(ColUttSlopeDesc, Text(uttDesc))
	rec.set(ColIntDur, Number(t.intDur))
	rec.set(ColNRep, Undefined())
	rec.set(ColRateNST, Undefined())
	rec.set(ColRateTST, Undefined())
	rec.set(ColTaskFailure, Number(0))
}

// emptyTiming is the record of a recording with no segments
func emptyTiming(failure float64) *Record {
	rec := newRecord(len(TimingColumns))
	for _, name := range TimingColumns {
		rec.set(name, Undefined())
	}
	rec.set(ColTaskFailure, Number(failure))
	return rec
}

// windowEnd returns the index of the last segment whose onset lies within
// window samples of the first onset.
func windowEnd(list segmentation.BoundaryList, window float64) int {
	last := 0
	for i, b := range list {
		if float64(b.Onset-list[0].Onset) <= window {
			last = i
		}
	}
	return last
}

func (e *Engine) syllableRecord(list segmentation.BoundaryList, fs float64) *Record {
	if len(list) == 0 {
		rec := emptyTiming(1)
		rec.set(ColNRep, Number(0))
		return rec
	}

	valid := list[:windowEnd(list, e.config.SRWindowSeconds*fs)+1]
	finalOffset := valid[len(valid)-1].Offset

	t := measure(valid, finalOffset, fs)
	rec := newRecord(len(TimingColumns))
	t.fill(rec)

	pauseSlope, pauseDesc := stats.Trend(t.pauses)
	rec.set(ColPauseSlope, Number(pauseSlope))
	rec.set(ColPauseSlopeDesc, Text(pauseDesc))
	rec.set(ColUtteranceRatio, Number(utteranceRatio(valid)))

	nRep := float64(len(valid))
	rec.set(ColNRep, Number(nRep))
	rec.set(ColRateNST, Number(rate(nRep, t.nst)))
	rec.set(ColRateTST, Number(rate(nRep, t.tst)))
	rec.set(ColTaskFailure, Number(e.taskFailure(list, valid, t)))
	return rec
}

// taskFailure flags a syllable repetition that stopped before the window
// closed. A stop is forgiven when speech resumes after a gap no longer than
// the mean pause. The comparison runs in samples.
func (e *Engine) taskFailure(all, valid segmentation.BoundaryList, t timing) float64 {
	if t.tst >= e.config.SRWindowSeconds {
		return 0
	}

	pauses := 0
	for n := 0; n+1 < len(valid); n++ {
		pauses += valid[n+1].Onset - valid[n].Offset
	}

	lastOffset := valid[len(valid)-1].Offset
	for _, b := range all[len(valid):] {
		if b.Onset > lastOffset {
			// gap exceeds the mean pause; with no pauses it never does
			if (b.Onset-lastOffset)*(len(valid)-1) > pauses {
				return 1
			}
			return 0
		}
	}
	return 1
}

// utteranceRatio averages utterance duration over onset-to-onset interval
// for every segment but the last.
func utteranceRatio(valid segmentation.BoundaryList) float64 {
	ratios := make([]float64, 0, len(valid))
	for i := 0; i+1 < len(valid); i++ {
		interval := valid[i+1].Onset - valid[i].Onset
		if interval > 0 {
			ratios = append(ratios, float64(valid[i].Offset-valid[i].Onset)/float64(interval))
		}
	}
	return common.MeanOrNaN(ratios)
}

func rate(count, seconds float64) float64 {
	if seconds <= 0 {
		return math.NaN()
	}
	return count / seconds
}

// passageRecord measures the whole recording; repetition measures do not
// apply to reading.
func passageRecord(list segmentation.BoundaryList, fs float64) *Record {
	if len(list) == 0 {
		return emptyTiming(0)
	}
	t := measure(list, list[len(list)-1].Offset, fs)
	rec := newRecord(len(TimingColumns))
	t.fill(rec)
	return rec
}

func vowelRecord(list segmentation.BoundaryList, fs float64) *Record {
	durations := make([]float64, len(list))
	for i, b := range list {
		durations[i] = float64(b.Offset-b.Onset) / fs
	}
	rec := newRecord(len(VowelColumns))
	rec.set(ColMaxPhonation, Number(common.MaxOrNaN(durations)))
	return rec
}

// Columns returns the column order of a task's records
func Columns(task segmentation.Task) []string {
	if task.Kind() == segmentation.SustainedVowel {
		return VowelColumns
	}
	return TimingColumns
}
