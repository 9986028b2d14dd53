package conditioning

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/algorithms/filters"
	"github.com/RyanBlaney/sonido-motor/algorithms/spectral"
	"github.com/RyanBlaney/sonido-motor/logging"
)

// AudioBuffer is a mono recording with its sample rate
type AudioBuffer struct {
	Samples    []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	Source     string    `json:"source"`
}

// Duration returns the buffer length in seconds
func (b AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Config holds the conditioning parameters
type Config struct {
	FilterOrder      int     `json:"filter_order"`
	LowCutoff        float64 `json:"low_cutoff_hz"`
	HighCutoff       float64 `json:"high_cutoff_hz"`
	TargetSampleRate int     `json:"target_sample_rate"`
	CropSeconds      float64 `json:"crop_seconds"`
	PadSeconds       float64 `json:"pad_seconds"`
}

// DefaultConfig returns the standard speech conditioning parameters
func DefaultConfig() *Config {
	return &Config{
		FilterOrder:      4,
		LowCutoff:        10,
		HighCutoff:       5000,
		TargetSampleRate: 44100,
		CropSeconds:      0.5,
		PadSeconds:       2,
	}
}

// Conditioner turns raw recordings into buffers ready for segmentation
type Conditioner struct {
	config    *Config
	resampler *spectral.Resampler
	logger    logging.Logger
}

// NewConditioner creates a conditioner. A nil config uses DefaultConfig.
func NewConditioner(config *Config, logger logging.Logger) *Conditioner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Conditioner{
		config:    config,
		resampler: spectral.NewResampler(),
		logger:    logging.OrNoOp(logger),
	}
}

// Config returns the conditioner's parameters
func (c *Conditioner) Config() Config {
	return *c.config
}

// Condition runs the full chain: DC removal, band-pass, resample to the
// target rate, DC removal, crop, pad, peak normalization.
func (c *Conditioner) Condition(raw AudioBuffer) (AudioBuffer, error) {
	return c.condition(raw, true)
}

// ConditionNoResample runs the same chain at the native sample rate.
func (c *Conditioner) ConditionNoResample(raw AudioBuffer) (AudioBuffer, error) {
	return c.condition(raw, false)
}

func (c *Conditioner) condition(raw AudioBuffer, resample bool) (AudioBuffer, error) {
	if len(raw.Samples) == 0 {
		return AudioBuffer{}, common.Errorf(common.KindConditioning, "condition", "empty buffer %q", raw.Source)
	}
	if raw.SampleRate <= 0 {
		return AudioBuffer{}, common.Errorf(common.KindConditioning, "condition", "invalid sample rate %d", raw.SampleRate)
	}

	fs := raw.SampleRate
	samples := filters.NewDCRemoval(fs).ProcessBuffer(raw.Samples)

	sos, err := filters.ButterworthBandpass(c.config.FilterOrder, c.config.LowCutoff, c.config.HighCutoff, fs)
	if err != nil {
		return AudioBuffer{}, err
	}
	samples, err = filters.FiltFilt(sos, samples)
	if err != nil {
		return AudioBuffer{}, common.NewError(common.KindConditioning, "condition", "band-pass", err)
	}

	if resample && c.config.TargetSampleRate != fs {
		samples, err = c.resampler.Resample(samples, fs, c.config.TargetSampleRate)
		if err != nil {
			return AudioBuffer{}, err
		}
		fs = c.config.TargetSampleRate
	}

	samples = filters.NewDCRemoval(fs).ProcessBuffer(samples)

	crop := int(c.config.CropSeconds * float64(fs))
	if len(samples) <= 2*crop {
		return AudioBuffer{}, common.Errorf(common.KindConditioning, "condition",
			"%d samples leave nothing after cropping %d from each end", len(samples), crop)
	}
	samples = samples[crop : len(samples)-crop]

	pad := int(c.config.PadSeconds * float64(fs))
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	out := AudioBuffer{
		Samples:    common.PeakNormalize(padded),
		SampleRate: fs,
		Source:     raw.Source,
	}

	c.logger.Debug("Conditioned recording", logging.Fields{
		"source":      raw.Source,
		"in_rate":     raw.SampleRate,
		"out_rate":    fs,
		"in_samples":  len(raw.Samples),
		"out_samples": len(out.Samples),
	})

	return out, nil
}

// ConditionEach conditions buffers on up to workers goroutines and returns
// per-buffer results and errors, both index-aligned with the input.
func (c *Conditioner) ConditionEach(ctx context.Context, raw []AudioBuffer, workers int, resample bool) ([]AudioBuffer, []error) {
	out := make([]AudioBuffer, len(raw))
	errs := make([]error, len(raw))

	it := iter.Iterator[AudioBuffer]{MaxGoroutines: max(1, workers)}
	it.ForEachIdx(raw, func(i int, b *AudioBuffer) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		out[i], errs[i] = c.condition(*b, resample)
	})

	return out, errs
}

// ConditionAll is ConditionEach that fails on the first error in input order.
func (c *Conditioner) ConditionAll(ctx context.Context, raw []AudioBuffer, workers int, resample bool) ([]AudioBuffer, error) {
	out, errs := c.ConditionEach(ctx, raw, workers, resample)
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("condition %s: %w", raw[i].Source, err)
		}
	}
	return out, nil
}
