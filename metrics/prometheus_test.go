package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDetection("SR1", 4, 20*time.Millisecond)
	m.RecordDetection("SR1", 3, 10*time.Millisecond)
	m.RecordFile("SR1", StageFeatures)
	m.RecordError("PR", StageLoad)
	m.RecordTaskFailure("SR2")
	m.RecordCombine("HD", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("SR1", StageDetect)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("SR1", StageFeatures)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.SegmentsDetected.WithLabelValues("SR1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerErrors.WithLabelValues("PR", StageLoad)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskFailures.WithLabelValues("SR2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsCombined.WithLabelValues("HD", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DetectionTime))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDetection("SV", 1, time.Second)
		m.RecordFile("SV", StageLoad)
		m.RecordError("SV", StageLoad)
		m.RecordTaskFailure("SR1")
		m.RecordCombine("HD", "incomplete")
	})
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordError("SV", StageDetect)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.True(t, strings.Contains(body, "sonido_worker_errors_total"))

	cancel()
	assert.NoError(t, <-done)
}
