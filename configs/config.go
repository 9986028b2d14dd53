package configs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/logging"
	"github.com/RyanBlaney/sonido-motor/segmentation"
)

// EnvPrefix prefixes every environment override, e.g. SONIDO_MOTOR_LOG_LEVEL
const EnvPrefix = "SONIDO_MOTOR"

// Config represents the application configuration
type Config struct {
	// Application settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	Conditioning ConditioningConfig `mapstructure:"conditioning" yaml:"conditioning"`
	Detection    DetectionConfig    `mapstructure:"detection" yaml:"detection"`
	Features     FeaturesConfig     `mapstructure:"features" yaml:"features"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline" yaml:"pipeline"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// ConditioningConfig contains the preprocessing settings
type ConditioningConfig struct {
	FilterOrder      int     `mapstructure:"filter_order" yaml:"filter_order"`
	LowCutoffHz      float64 `mapstructure:"low_cutoff_hz" yaml:"low_cutoff_hz"`
	HighCutoffHz     float64 `mapstructure:"high_cutoff_hz" yaml:"high_cutoff_hz"`
	TargetSampleRate int     `mapstructure:"target_sample_rate" yaml:"target_sample_rate"`
	CropSeconds      float64 `mapstructure:"crop_seconds" yaml:"crop_seconds"`
	PadSeconds       float64 `mapstructure:"pad_seconds" yaml:"pad_seconds"`
	Resample         bool    `mapstructure:"resample" yaml:"resample"`
}

// DetectionConfig contains the segmentation constants
type DetectionConfig struct {
	SVThresholdRatio float64 `mapstructure:"sv_threshold_ratio" yaml:"sv_threshold_ratio"`
	SVMinDuration    float64 `mapstructure:"sv_min_duration" yaml:"sv_min_duration"`
	WindowSeconds    float64 `mapstructure:"window_seconds" yaml:"window_seconds"`
	WindowOverlap    float64 `mapstructure:"window_overlap" yaml:"window_overlap"`
	ThresholdScale   float64 `mapstructure:"threshold_scale" yaml:"threshold_scale"`
	FloorRatio       float64 `mapstructure:"floor_ratio" yaml:"floor_ratio"`
	MinGapMs         float64 `mapstructure:"min_gap_ms" yaml:"min_gap_ms"`
	SRMinDuration    float64 `mapstructure:"sr_min_duration" yaml:"sr_min_duration"`
	PRMinDuration    float64 `mapstructure:"pr_min_duration" yaml:"pr_min_duration"`
	SentenceCount    int     `mapstructure:"sentence_boundaries" yaml:"sentence_boundaries"`
}

// FeaturesConfig contains the timing feature settings
type FeaturesConfig struct {
	SRWindowSeconds float64 `mapstructure:"sr_window_seconds" yaml:"sr_window_seconds"`
}

// PipelineConfig contains the batch run settings
type PipelineConfig struct {
	DataDir     string   `mapstructure:"data_dir" yaml:"data_dir"`
	OutputDir   string   `mapstructure:"output_dir" yaml:"output_dir"`
	Group       string   `mapstructure:"group" yaml:"group"`
	Tasks       []string `mapstructure:"tasks" yaml:"tasks"`
	TaskWorkers int      `mapstructure:"task_workers" yaml:"task_workers"`
	FileWorkers int      `mapstructure:"file_workers" yaml:"file_workers"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // empty disables the endpoint
}

// Load builds the configuration from v: defaults, then the config file if
// one is set, then SONIDO_MOTOR_* environment variables.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the configuration with every default applied
func Default() *Config {
	config, err := Load(viper.New())
	if err != nil {
		// Defaults always validate
		panic(err)
	}
	return config
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}

	cond := c.Conditioning
	if cond.FilterOrder <= 0 {
		errs = append(errs, fmt.Errorf("filter order must be positive"))
	}
	if cond.LowCutoffHz <= 0 || cond.HighCutoffHz <= cond.LowCutoffHz {
		errs = append(errs, fmt.Errorf("band edges must satisfy 0 < low < high"))
	}
	if cond.TargetSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("target sample rate must be positive"))
	}
	if cond.CropSeconds < 0 || cond.PadSeconds < 0 {
		errs = append(errs, fmt.Errorf("crop and pad must not be negative"))
	}

	det := c.Detection
	if det.WindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("threshold window must be positive"))
	}
	if det.WindowOverlap < 0 || det.WindowOverlap >= 1 {
		errs = append(errs, fmt.Errorf("window overlap must be in [0, 1)"))
	}
	if det.MinGapMs < 0 {
		errs = append(errs, fmt.Errorf("minimum gap must not be negative"))
	}

	if c.Features.SRWindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("syllable repetition window must be positive"))
	}

	if c.Pipeline.TaskWorkers <= 0 || c.Pipeline.FileWorkers <= 0 {
		errs = append(errs, fmt.Errorf("worker counts must be positive"))
	}
	if _, err := segmentation.ExpandTasks(c.Pipeline.Tasks...); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ConditioningParams maps the preprocessing section
func (c *Config) ConditioningParams() *conditioning.Config {
	return &conditioning.Config{
		FilterOrder:      c.Conditioning.FilterOrder,
		LowCutoff:        c.Conditioning.LowCutoffHz,
		HighCutoff:       c.Conditioning.HighCutoffHz,
		TargetSampleRate: c.Conditioning.TargetSampleRate,
		CropSeconds:      c.Conditioning.CropSeconds,
		PadSeconds:       c.Conditioning.PadSeconds,
	}
}

// DetectionParams maps the segmentation section
func (c *Config) DetectionParams() *segmentation.Params {
	d := c.Detection
	return &segmentation.Params{
		SVThresholdRatio:   d.SVThresholdRatio,
		SVMinDuration:      d.SVMinDuration,
		WindowSeconds:      d.WindowSeconds,
		WindowOverlap:      d.WindowOverlap,
		ThresholdScale:     d.ThresholdScale,
		FloorRatio:         d.FloorRatio,
		MinGapSeconds:      d.MinGapMs / 1000,
		SRMinDuration:      d.SRMinDuration,
		PRMinDuration:      d.PRMinDuration,
		SentenceBoundaries: d.SentenceCount,
	}
}

// FeatureParams maps the features section
func (c *Config) FeatureParams() *features.Config {
	return &features.Config{SRWindowSeconds: c.Features.SRWindowSeconds}
}

// YAML renders the configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
