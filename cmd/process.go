package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/logging"
	"github.com/RyanBlaney/sonido-motor/pipeline"
	"github.com/RyanBlaney/sonido-motor/segmentation"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Segment a group of recordings and write feature tables",
	Long: `Runs voiced segment detection for every requested task over the recordings
in the data directory, then computes timing features from the saved boundaries.

Recordings are matched to tasks by name: a file belongs to SR3 when its name
contains "SR3". For each task the output directory receives
onsetOffset_{group}_{task}.csv and features_{group}_{task}.csv, plus
rms_{group}_{task}.csv for syllable repetition. When all five syllable
repetition tasks complete, their features are combined into
features_{group}_SR.csv.

Examples:
  # Every task for the HD group
  sonido-motor process --data-dir ./audio/HD --output-dir ./out --group HD

  # Only syllable repetition, two tasks at a time
  sonido-motor process --group Control --tasks SR --task-workers 2`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("data-dir", "", "directory holding the recordings")
	processCmd.Flags().String("output-dir", "", "directory for the result tables")
	processCmd.Flags().String("group", "", "participant group label used in output names")
	processCmd.Flags().StringSlice("tasks", nil, "tasks to run (SV, SR, SR1..SR5, PR)")
	processCmd.Flags().Int("task-workers", 0, "tasks processed concurrently")
	processCmd.Flags().Int("file-workers", 0, "recordings conditioned concurrently within a task")
	processCmd.Flags().Bool("no-resample", false, "keep the native sample rate")

	bindFlags(processCmd.Flags(), map[string]string{
		"data-dir":     "pipeline.data_dir",
		"output-dir":   "pipeline.output_dir",
		"group":        "pipeline.group",
		"tasks":        "pipeline.tasks",
		"task-workers": "pipeline.task_workers",
		"file-workers": "pipeline.file_workers",
	})
}

func runProcess(cmd *cobra.Command, args []string) error {
	if appConfig.Pipeline.Group == "" {
		return fmt.Errorf("a group is required (--group or pipeline.group)")
	}

	tasks, err := segmentation.ExpandTasks(appConfig.Pipeline.Tasks...)
	if err != nil {
		return err
	}

	resample := appConfig.Conditioning.Resample
	if noResample, _ := cmd.Flags().GetBool("no-resample"); noResample {
		resample = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.teardown()

	orchestrator := pipeline.NewOrchestrator(pipeline.Options{
		DataDir:     appConfig.Pipeline.DataDir,
		OutputDir:   appConfig.Pipeline.OutputDir,
		TaskWorkers: appConfig.Pipeline.TaskWorkers,
		FileWorkers: appConfig.Pipeline.FileWorkers,
		Resample:    resample,
	},
		conditioning.NewConditioner(appConfig.ConditioningParams(), rt.logger),
		segmentation.NewDetector(appConfig.DetectionParams(), rt.logger),
		features.NewEngine(appConfig.FeatureParams(), rt.logger),
		rt.metrics,
		rt.logger,
	)

	result, err := orchestrator.RunGroup(ctx, appConfig.Pipeline.Group, tasks)
	if result != nil {
		printGroupResult(cmd, result)
	}
	if err != nil {
		return err
	}
	if len(result.TaskErrors) > 0 {
		rt.logger.Warn("Some tasks failed", logging.Fields{"failed": len(result.TaskErrors)})
		return fmt.Errorf("%d of %d tasks failed", len(result.TaskErrors), len(tasks))
	}
	return nil
}

func printGroupResult(cmd *cobra.Command, result *pipeline.GroupResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Group %s (%s)\n", result.Group, result.Elapsed.Round(time.Millisecond))
	for _, t := range result.Tasks {
		fmt.Fprintf(out, "  %-4s files=%d segments=%d task_failures=%d -> %s\n",
			t.Task, t.Files, t.Segments, t.TaskFailures, t.FeaturesPath)
	}
	for _, e := range result.TaskErrors {
		fmt.Fprintf(out, "  %-4s FAILED at %s: %v\n", e.Task, e.Stage, e.Err)
	}
	for _, p := range result.CombinedPaths {
		fmt.Fprintf(out, "  combined -> %s\n", p)
	}
}
