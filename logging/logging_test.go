package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestDefaultLoggerLevelsAndFields(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewDefaultLoggerTo(&out, &errOut, false)

	logger.Debug("hidden")
	logger.WithFields(Fields{"task": "SR1"}).Info("detected", Fields{"segments": 3})
	logger.Error(errors.New("bad header"), "load failed", Fields{"file": "a.wav"})

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] detected segments=3 task=SR1")
	assert.Contains(t, errOut.String(), "[ERROR] load failed: bad header file=a.wav")
}

func TestDefaultLoggerWithContext(t *testing.T) {
	var out bytes.Buffer
	logger := NewDefaultLoggerTo(&out, &out, false)

	ctx := ContextWithFields(context.Background(), Fields{"group": "HD"})
	logger.WithContext(ctx).Info("start")
	assert.Contains(t, out.String(), "group=HD")
}

func TestLogrusLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLogger(&buf, InfoLevel, "json")

	logger.Debug("hidden")
	logger.WithFields(Fields{"task": "PR"}).Warn("no segments", Fields{"file": "p.wav"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "no segments", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "PR", entry["task"])
	assert.Equal(t, "p.wav", entry["file"])
}

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processing.log")
	var stderr bytes.Buffer

	logger, teardown, err := Setup(Options{Level: "info", File: path, Stderr: &stderr})
	require.NoError(t, err)

	logger.Info("hello", Fields{"stage": "detect"})
	require.NoError(t, teardown())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, stderr.String(), "stage=detect")

	_, _, err = Setup(Options{Level: "nope"})
	assert.Error(t, err)
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultLogger()
	assert.Same(t, l, OrNoOp(l))
}
