package configs

import (
	"github.com/spf13/viper"
)

// SetDefaults sets default configuration values for all components. The
// detection and feature constants are empirically tuned per task and are
// not shared between tasks.
func SetDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_format", "text")

	// Conditioning defaults
	v.SetDefault("conditioning.filter_order", 4)
	v.SetDefault("conditioning.low_cutoff_hz", 10.0)
	v.SetDefault("conditioning.high_cutoff_hz", 5000.0)
	v.SetDefault("conditioning.target_sample_rate", 44100)
	v.SetDefault("conditioning.crop_seconds", 0.5)
	v.SetDefault("conditioning.pad_seconds", 2.0)
	v.SetDefault("conditioning.resample", true)

	// Detection defaults
	v.SetDefault("detection.sv_threshold_ratio", 0.15)
	v.SetDefault("detection.sv_min_duration", 1.0)
	v.SetDefault("detection.window_seconds", 0.10)
	v.SetDefault("detection.window_overlap", 0.5)
	v.SetDefault("detection.threshold_scale", 0.65)
	v.SetDefault("detection.floor_ratio", 0.45)
	v.SetDefault("detection.min_gap_ms", 20.0)
	v.SetDefault("detection.sr_min_duration", 0.08)
	v.SetDefault("detection.pr_min_duration", 0.05)
	v.SetDefault("detection.sentence_boundaries", 5)

	// Feature defaults
	v.SetDefault("features.sr_window_seconds", 5.0)

	// Pipeline defaults
	v.SetDefault("pipeline.data_dir", ".")
	v.SetDefault("pipeline.output_dir", "output")
	v.SetDefault("pipeline.group", "")
	v.SetDefault("pipeline.tasks", []string{"SR", "PR", "SV"})
	v.SetDefault("pipeline.task_workers", 5)
	v.SetDefault("pipeline.file_workers", 1)

	// Metrics defaults
	v.SetDefault("metrics.addr", "")
}
