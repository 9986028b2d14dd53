package cmd

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-motor/configs"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/segmentation"
	"github.com/RyanBlaney/sonido-motor/transcode"
)

func useTestConfig(t *testing.T) {
	t.Helper()
	previous := appConfig
	t.Cleanup(func() { appConfig = previous })

	appConfig = configs.Default()
	appConfig.Conditioning.TargetSampleRate = 8000
	appConfig.Conditioning.HighCutoffHz = 3000
}

func writeVowel(t *testing.T) string {
	t.Helper()
	const rate = 8000
	samples := make([]float64, 5*rate)
	for i := rate; i < 7*rate/2; i++ {
		samples[i] = 0.5 * math.Sin(2*math.Pi*180*float64(i)/rate)
	}
	path := filepath.Join(t.TempDir(), "P01_SV.wav")
	require.NoError(t, transcode.WriteWAV(path, samples, rate))
	return path
}

func TestDetectFileReport(t *testing.T) {
	useTestConfig(t)
	path := writeVowel(t)

	report, err := detectFile(path, segmentation.SV(), true)
	require.NoError(t, err)

	assert.Equal(t, "SV", report.Task)
	assert.Equal(t, 8000, report.SampleRate)
	assert.InDelta(t, 5.0, report.Duration, 1e-3)
	require.Len(t, report.Onsets, 1)
	assert.Nil(t, report.RMSSlope)
	assert.InDelta(t, 2.5, report.Features.Float(features.ColMaxPhonation), 0.15)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report, "json"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "SV", decoded["task"])
	assert.Contains(t, decoded["features"], features.ColMaxPhonation)

	buf.Reset()
	require.NoError(t, writeReport(&buf, report, "yaml"))
	var node map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &node))
	assert.Equal(t, 8000, node["sample_rate"])
}

func TestDetectFileRejectsInvalid(t *testing.T) {
	useTestConfig(t)
	_, err := detectFile(filepath.Join(t.TempDir(), "missing.wav"), segmentation.PR(), true)
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "target_sample_rate: 44100")
	assert.Contains(t, out.String(), "sr_window_seconds: 5")
}
