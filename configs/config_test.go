package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/segmentation"
)

func TestDefaultsMatchComponents(t *testing.T) {
	config := Default()

	assert.Equal(t, conditioning.DefaultConfig(), config.ConditioningParams())
	assert.Equal(t, features.DefaultConfig(), config.FeatureParams())

	params := config.DetectionParams()
	want := segmentation.DefaultParams()
	assert.InDelta(t, want.MinGapSeconds, params.MinGapSeconds, 1e-15)
	params.MinGapSeconds = want.MinGapSeconds
	assert.Equal(t, want, params)

	assert.True(t, config.Conditioning.Resample)
	assert.Equal(t, 5, config.Pipeline.TaskWorkers)
	assert.Equal(t, 1, config.Pipeline.FileWorkers)
	assert.Equal(t, []string{"SR", "PR", "SV"}, config.Pipeline.Tasks)
	assert.Empty(t, config.Metrics.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonido.yaml")
	content := `
log_level: debug
conditioning:
  target_sample_rate: 16000
detection:
  min_gap_ms: 30
pipeline:
  group: HD
  tasks: [SR1, PR]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("SONIDO_MOTOR_PIPELINE_FILE_WORKERS", "3")

	v := viper.New()
	v.SetConfigFile(path)
	config, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 16000, config.Conditioning.TargetSampleRate)
	assert.InDelta(t, 0.03, config.DetectionParams().MinGapSeconds, 1e-12)
	assert.Equal(t, "HD", config.Pipeline.Group)
	assert.Equal(t, []string{"SR1", "PR"}, config.Pipeline.Tasks)
	assert.Equal(t, 3, config.Pipeline.FileWorkers)

	// Untouched keys keep their defaults
	assert.Equal(t, 4, config.Conditioning.FilterOrder)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"log_level", "loud"},
		{"log_format", "xml"},
		{"conditioning.high_cutoff_hz", 5.0},
		{"detection.window_overlap", 1.0},
		{"pipeline.task_workers", 0},
		{"pipeline.tasks", []string{"SR9"}},
		{"features.sr_window_seconds", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, *Default(), decoded)
	assert.Contains(t, string(out), "target_sample_rate: 44100")
}
