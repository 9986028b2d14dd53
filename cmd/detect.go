package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/logging"
	"github.com/RyanBlaney/sonido-motor/metrics"
	"github.com/RyanBlaney/sonido-motor/segmentation"
	"github.com/RyanBlaney/sonido-motor/transcode"
)

var (
	detectTask       string
	detectNoResample bool
	detectOutput     string
)

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Segment one recording and print its boundaries and features",
	Long: `Validates and decodes a single WAV recording, conditions it, detects voiced
segments for the given task and prints the boundaries with the timing features.

Examples:
  sonido-motor detect P01_SR3.wav --task SR3
  sonido-motor detect P01_SV.wav --task SV --no-resample -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&detectTask, "task", "t", "",
		"task of the recording (SV, SR1..SR5, PR)")
	detectCmd.Flags().BoolVar(&detectNoResample, "no-resample", false,
		"keep the native sample rate")
	detectCmd.Flags().StringVarP(&detectOutput, "output", "o", "json",
		"output format (json, yaml)")
	detectCmd.MarkFlagRequired("task")
}

// detectReport is the printed result of the detect command
type detectReport struct {
	File       string           `json:"file" yaml:"file"`
	Task       string           `json:"task" yaml:"task"`
	SampleRate int              `json:"sample_rate" yaml:"sample_rate"`
	Duration   float64          `json:"duration_seconds" yaml:"duration_seconds"`
	Onsets     []int            `json:"onsets" yaml:"onsets"`
	Offsets    []int            `json:"offsets" yaml:"offsets"`
	MeanRMS    []float64        `json:"mean_rms,omitempty" yaml:"mean_rms,omitempty"`
	RMSSlope   *float64         `json:"rms_slope,omitempty" yaml:"rms_slope,omitempty"`
	Sentences  []int            `json:"sentence_boundaries,omitempty" yaml:"sentence_boundaries,omitempty"`
	Features   *features.Record `json:"features" yaml:"features"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	task, err := segmentation.ParseTask(detectTask)
	if err != nil {
		return err
	}
	if detectOutput != "json" && detectOutput != "yaml" {
		return fmt.Errorf("unsupported output format %q", detectOutput)
	}

	rt, err := startRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.teardown()

	started := time.Now()
	report, err := detectFile(args[0], task, !detectNoResample && appConfig.Conditioning.Resample)
	if err != nil {
		rt.metrics.RecordError(task.String(), metrics.StageDetect)
		return err
	}
	rt.metrics.RecordDetection(task.String(), len(report.Onsets), time.Since(started))
	rt.logger.Debug("Recording segmented", logging.Fields{
		"file":     report.File,
		"task":     report.Task,
		"segments": len(report.Onsets),
		"elapsed":  time.Since(started).String(),
	})

	return writeReport(cmd.OutOrStdout(), report, detectOutput)
}

// detectFile runs the single-recording path: decode, condition, detect and
// compute features.
func detectFile(path string, task segmentation.Task, resample bool) (*detectReport, error) {
	data, err := transcode.NewDecoder(nil).DecodeFile(path)
	if err != nil {
		return nil, err
	}

	conditioner := conditioning.NewConditioner(appConfig.ConditioningParams(), nil)
	condition := conditioner.Condition
	if !resample {
		condition = conditioner.ConditionNoResample
	}
	buf, err := condition(data.Buffer())
	if err != nil {
		return nil, err
	}

	det, err := segmentation.NewDetector(appConfig.DetectionParams(), nil).Detect(buf, task)
	if err != nil {
		return nil, err
	}

	record, err := features.NewEngine(appConfig.FeatureParams(), nil).
		ComputeBoundaries(task, buf.SampleRate, det.Boundaries)
	if err != nil {
		return nil, err
	}

	report := &detectReport{
		File:       path,
		Task:       task.String(),
		SampleRate: buf.SampleRate,
		Duration:   data.Duration.Seconds(),
		Onsets:     det.Boundaries.Onsets(),
		Offsets:    det.Boundaries.Offsets(),
		MeanRMS:    det.MeanRMS,
		Sentences:  det.SentenceBoundaries,
		Features:   record,
	}
	if task.Kind() == segmentation.SyllableRepetition && len(det.Boundaries) > 1 {
		slope := det.RMSSlope
		report.RMSSlope = &slope
	}
	return report, nil
}

func writeReport(w io.Writer, report *detectReport, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
}
