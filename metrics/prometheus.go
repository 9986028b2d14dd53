package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages used as label values
const (
	StageLoad      = "load"
	StageCondition = "condition"
	StageDetect    = "detect"
	StageFeatures  = "features"
	StagePersist   = "persist"
)

// Metrics contains the Prometheus metrics of a processing run. A nil
// *Metrics records nothing.
type Metrics struct {
	FilesProcessed   *prometheus.CounterVec
	SegmentsDetected *prometheus.CounterVec
	WorkerErrors     *prometheus.CounterVec
	DetectionTime    *prometheus.HistogramVec
	TaskFailures     *prometheus.CounterVec
	GroupsCombined   *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonido_files_processed_total",
			Help: "Total number of recordings that completed a pipeline stage",
		}, []string{"task", "stage"}),
		SegmentsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonido_segments_detected_total",
			Help: "Total number of voiced segments detected",
		}, []string{"task"}),
		WorkerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonido_worker_errors_total",
			Help: "Total number of per-file or per-task failures",
		}, []string{"task", "stage"}),
		DetectionTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sonido_detection_seconds",
			Help:    "Time spent segmenting one recording",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"task"}),
		TaskFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonido_task_failures_total",
			Help: "Total number of syllable repetition recordings flagged as task failures",
		}, []string{"task"}),
		GroupsCombined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sonido_groups_combined_total",
			Help: "Total number of group combination attempts by outcome",
		}, []string{"group", "result"}),
	}
}

// RecordFile counts a recording that completed stage
func (m *Metrics) RecordFile(task, stage string) {
	if m == nil {
		return
	}
	m.FilesProcessed.WithLabelValues(task, stage).Inc()
}

// RecordDetection records one segmentation
func (m *Metrics) RecordDetection(task string, segments int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FilesProcessed.WithLabelValues(task, StageDetect).Inc()
	m.SegmentsDetected.WithLabelValues(task).Add(float64(segments))
	m.DetectionTime.WithLabelValues(task).Observe(elapsed.Seconds())
}

// RecordError counts a failure at stage
func (m *Metrics) RecordError(task, stage string) {
	if m == nil {
		return
	}
	m.WorkerErrors.WithLabelValues(task, stage).Inc()
}

// RecordTaskFailure counts a flagged task failure
func (m *Metrics) RecordTaskFailure(task string) {
	if m == nil {
		return
	}
	m.TaskFailures.WithLabelValues(task).Inc()
}

// RecordCombine records a group combination outcome
func (m *Metrics) RecordCombine(group, result string) {
	if m == nil {
		return
	}
	m.GroupsCombined.WithLabelValues(group, result).Inc()
}

// Serve exposes gatherer on addr at /metrics until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
