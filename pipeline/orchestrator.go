package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/logging"
	"github.com/RyanBlaney/sonido-motor/metrics"
	"github.com/RyanBlaney/sonido-motor/segmentation"
	"github.com/RyanBlaney/sonido-motor/transcode"
)

// Options configures a group run
type Options struct {
	DataDir     string
	OutputDir   string
	TaskWorkers int  // Tasks processed concurrently
	FileWorkers int  // Recordings conditioned concurrently within a task
	Resample    bool // Resample to the conditioner's target rate
}

// TaskError records a task worker failure
type TaskError struct {
	Task  segmentation.Task
	Stage string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Task, e.Stage, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// TaskResult summarizes one completed task
type TaskResult struct {
	Task            segmentation.Task
	Files           int
	Segments        int
	TaskFailures    int
	OnsetOffsetPath string
	RMSPath         string
	FeaturesPath    string
}

// GroupResult summarizes a group run. Tasks holds the tasks that completed
// both phases, in request order.
type GroupResult struct {
	Group         string
	Tasks         []TaskResult
	TaskErrors    []*TaskError
	CombinedPaths []string
	Elapsed       time.Duration
}

// recording is one conditioned file kept between the two phases
type recording struct {
	buffer     conditioning.AudioBuffer
	sampleRate int // Rate the boundaries are expressed in
}

// taskRun is the state of one task across both phases. Each worker owns
// exactly one entry.
type taskRun struct {
	task       segmentation.Task
	recordings map[string]recording
	result     TaskResult
	err        *TaskError
}

// Orchestrator runs detection and feature extraction for groups of
// recordings
type Orchestrator struct {
	opts        Options
	decoder     *transcode.Decoder
	conditioner *conditioning.Conditioner
	detector    *segmentation.Detector
	engine      *features.Engine
	metrics     *metrics.Metrics
	logger      logging.Logger
}

// NewOrchestrator creates an orchestrator. Nil components use their
// defaults; a nil metrics records nothing.
func NewOrchestrator(opts Options, conditioner *conditioning.Conditioner, detector *segmentation.Detector,
	engine *features.Engine, m *metrics.Metrics, logger logging.Logger) *Orchestrator {
	logger = logging.OrNoOp(logger)
	if conditioner == nil {
		conditioner = conditioning.NewConditioner(nil, logger)
	}
	if detector == nil {
		detector = segmentation.NewDetector(nil, logger)
	}
	if engine == nil {
		engine = features.NewEngine(nil, logger)
	}
	opts.TaskWorkers = max(1, opts.TaskWorkers)
	opts.FileWorkers = max(1, opts.FileWorkers)

	return &Orchestrator{
		opts:        opts,
		decoder:     transcode.NewDecoder(logger),
		conditioner: conditioner,
		detector:    detector,
		engine:      engine,
		metrics:     m,
		logger:      logger,
	}
}

// RunGroup processes every task for group in two phases: detection writes
// the boundary tables, then feature extraction reads them back. Task
// failures are collected in the result without stopping sibling tasks.
// Multi-instance kinds are combined only when all their tables exist; the
// returned error reports incomplete combinations and cancellation.
func (o *Orchestrator) RunGroup(ctx context.Context, group string, tasks []segmentation.Task) (*GroupResult, error) {
	start := time.Now()
	logger := o.logger.WithFields(logging.Fields{"group": group})

	if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	runs := make([]*taskRun, len(tasks))
	for i, task := range tasks {
		runs[i] = &taskRun{task: task, result: TaskResult{Task: task}}
	}

	logger.Info("Starting detection", logging.Fields{"tasks": len(tasks)})
	o.each(runs, func(run *taskRun) {
		o.detectTask(ctx, group, run, logger)
	})

	logger.Info("Starting feature extraction", nil)
	o.each(runs, func(run *taskRun) {
		if run.err == nil {
			o.featuresTask(ctx, group, run, logger)
		}
		run.recordings = nil
	})

	result := &GroupResult{Group: group}
	for _, run := range runs {
		if run.err != nil {
			result.TaskErrors = append(result.TaskErrors, run.err)
			continue
		}
		result.Tasks = append(result.Tasks, run.result)
	}

	var errs []error
	for _, kind := range kindsOf(tasks) {
		path, err := Combine(o.opts.OutputDir, group, kind, logger)
		switch {
		case err != nil:
			logger.Error(err, "Combination skipped", logging.Fields{"task": kind.String()})
			o.metrics.RecordCombine(group, "incomplete")
			errs = append(errs, err)
		case path != "":
			o.metrics.RecordCombine(group, "ok")
			result.CombinedPaths = append(result.CombinedPaths, path)
		}
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	result.Elapsed = time.Since(start)
	logger.Info("Group complete", logging.Fields{
		"completed": len(result.Tasks),
		"failed":    len(result.TaskErrors),
		"elapsed":   result.Elapsed.String(),
	})
	return result, errors.Join(errs...)
}

// each runs fn for every task on the bounded task pool
func (o *Orchestrator) each(runs []*taskRun, fn func(*taskRun)) {
	p := pool.New().WithMaxGoroutines(o.opts.TaskWorkers)
	for _, run := range runs {
		p.Go(func() { fn(run) })
	}
	p.Wait()
}

func (o *Orchestrator) fail(run *taskRun, stage string, err error, logger logging.Logger) {
	run.err = &TaskError{Task: run.task, Stage: stage, Err: err}
	o.metrics.RecordError(run.task.String(), stage)
	logger.Error(err, "Task failed", logging.Fields{
		"task":  run.task.String(),
		"stage": stage,
	})
}

// detectTask loads, conditions and segments every recording of one task and
// writes its boundary table, plus the loudness table for SR.
func (o *Orchestrator) detectTask(ctx context.Context, group string, run *taskRun, logger logging.Logger) {
	task := run.task
	name := task.String()
	logger = logger.WithFields(logging.Fields{"task": name})

	files, err := transcode.DiscoverFiles(o.opts.DataDir, name)
	if err == nil && len(files) == 0 {
		err = common.Errorf(common.KindFileValidation, "discover", "no recordings for %s in %s", name, o.opts.DataDir)
	}
	if err != nil {
		o.fail(run, metrics.StageLoad, err, logger)
		return
	}

	raw := make([]conditioning.AudioBuffer, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			o.fail(run, metrics.StageLoad, err, logger)
			return
		}
		data, err := o.decoder.DecodeFile(path)
		if err != nil {
			o.fail(run, metrics.StageLoad, fmt.Errorf("%s: %w", path, err), logger)
			return
		}
		raw[i] = data.Buffer()
		o.metrics.RecordFile(name, metrics.StageLoad)
	}

	buffers, err := o.conditioner.ConditionAll(ctx, raw, o.opts.FileWorkers, o.opts.Resample)
	if err != nil {
		o.fail(run, metrics.StageCondition, err, logger)
		return
	}

	boundaryRows := make([]BoundaryRow, len(buffers))
	var rmsRows []RMSRow
	run.recordings = make(map[string]recording, len(buffers))

	for i, buf := range buffers {
		o.metrics.RecordFile(name, metrics.StageCondition)

		started := time.Now()
		det, err := o.detector.Detect(buf, task)
		if err != nil {
			o.fail(run, metrics.StageDetect, fmt.Errorf("%s: %w", buf.Source, err), logger)
			return
		}
		o.metrics.RecordDetection(name, len(det.Boundaries), time.Since(started))

		run.recordings[buf.Source] = recording{buffer: buf, sampleRate: buf.SampleRate}
		run.result.Segments += len(det.Boundaries)
		boundaryRows[i] = BoundaryRow{Participant: buf.Source, Boundaries: det.Boundaries}
		if task.Kind() == segmentation.SyllableRepetition {
			rmsRows = append(rmsRows, RMSRow{Participant: buf.Source, MeanRMS: det.MeanRMS, Slope: det.RMSSlope})
		}

		logger.Debug("Recording segmented", logging.Fields{
			"file":     buf.Source,
			"segments": len(det.Boundaries),
		})
	}
	run.result.Files = len(buffers)

	run.result.OnsetOffsetPath = OnsetOffsetPath(o.opts.OutputDir, group, task)
	if err := WriteBoundaries(run.result.OnsetOffsetPath, boundaryRows); err != nil {
		o.fail(run, metrics.StagePersist, err, logger)
		return
	}
	if task.Kind() == segmentation.SyllableRepetition {
		run.result.RMSPath = RMSPath(o.opts.OutputDir, group, task)
		if err := WriteRMS(run.result.RMSPath, rmsRows); err != nil {
			o.fail(run, metrics.StagePersist, err, logger)
			return
		}
	}

	logger.Info("Detection saved", logging.Fields{
		"files":    run.result.Files,
		"segments": run.result.Segments,
		"path":     run.result.OnsetOffsetPath,
	})
}

// featuresTask reads the task's boundary table back and writes its feature
// table.
func (o *Orchestrator) featuresTask(ctx context.Context, group string, run *taskRun, logger logging.Logger) {
	task := run.task
	name := task.String()
	logger = logger.WithFields(logging.Fields{"task": name})

	rows, err := ReadBoundaries(run.result.OnsetOffsetPath)
	if err != nil {
		o.fail(run, metrics.StageFeatures, err, logger)
		return
	}

	out := make([]FeatureRow, 0, len(rows))
	columns := features.Columns(task)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			o.fail(run, metrics.StageFeatures, err, logger)
			return
		}

		rec, ok := run.recordings[row.Participant]
		if !ok {
			o.fail(run, metrics.StageFeatures,
				fmt.Errorf("%s is not a recording of this run", row.Participant), logger)
			return
		}

		record, err := o.engine.ComputeBoundaries(task, rec.sampleRate, row.Boundaries)
		if err == nil {
			err = o.engine.Acoustic(record, rec.buffer, task)
		}
		if err != nil {
			o.fail(run, metrics.StageFeatures, fmt.Errorf("%s: %w", row.Participant, err), logger)
			return
		}

		if task.Kind() == segmentation.SyllableRepetition && record.Float(features.ColTaskFailure) == 1 {
			run.result.TaskFailures++
			o.metrics.RecordTaskFailure(name)
		}
		if record.Len() > len(columns) {
			columns = record.Names()
		}

		o.metrics.RecordFile(name, metrics.StageFeatures)
		out = append(out, FeatureRow{Filename: row.Participant, Group: group, Test: name, Record: record})
	}

	run.result.FeaturesPath = FeaturesPath(o.opts.OutputDir, group, task)
	if err := WriteFeatures(run.result.FeaturesPath, columns, out); err != nil {
		o.fail(run, metrics.StagePersist, err, logger)
		return
	}

	logger.Info("Features saved", logging.Fields{
		"files":         len(out),
		"task_failures": run.result.TaskFailures,
		"path":          run.result.FeaturesPath,
	})
}

// kindsOf lists the distinct paradigms of tasks in first-seen order
func kindsOf(tasks []segmentation.Task) []segmentation.Kind {
	var kinds []segmentation.Kind
	seen := make(map[segmentation.Kind]bool)
	for _, t := range tasks {
		if !seen[t.Kind()] {
			seen[t.Kind()] = true
			kinds = append(kinds, t.Kind())
		}
	}
	return kinds
}
