package pipeline

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/RyanBlaney/sonido-motor/logging"
	"github.com/RyanBlaney/sonido-motor/segmentation"
)

// ErrIncompleteGroup is returned when a combination is attempted while some
// of the expected per-task tables are missing.
var ErrIncompleteGroup = errors.New("incomplete group")

// Combine merges the per-instance feature tables of kind into one table.
// Only syllable repetition has several instances; other kinds have nothing
// to merge and return an empty path.
func Combine(dir, group string, kind segmentation.Kind, logger logging.Logger) (string, error) {
	logger = logging.OrNoOp(logger)
	if kind != segmentation.SyllableRepetition {
		logger.Info("Single instance task, nothing to combine", logging.Fields{
			"group": group,
			"task":  kind.String(),
		})
		return "", nil
	}
	return combineSyllables(dir, group, logger)
}

func syllableTasks() []segmentation.Task {
	tasks := make([]segmentation.Task, segmentation.SyllableInstances)
	for i := range tasks {
		tasks[i], _ = segmentation.SR(i + 1)
	}
	return tasks
}

// combineSyllables concatenates SR1..SR5 feature rows and left-joins each
// row's rms_slope by filename. Nothing is written unless every boundary,
// loudness and feature table exists.
func combineSyllables(dir, group string, logger logging.Logger) (string, error) {
	tasks := syllableTasks()

	var missing []string
	for _, task := range tasks {
		for _, path := range []string{
			OnsetOffsetPath(dir, group, task),
			RMSPath(dir, group, task),
			FeaturesPath(dir, group, task),
		} {
			if _, err := os.Stat(path); err != nil {
				missing = append(missing, path)
			}
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s is missing %d tables %v", ErrIncompleteGroup, group, len(missing), missing)
	}

	slopes := make(map[string]string)
	var header []string
	var rows [][]string

	for _, task := range tasks {
		s, err := readRMSSlopes(RMSPath(dir, group, task))
		if err != nil {
			return "", err
		}
		for k, v := range s {
			if _, seen := slopes[k]; !seen {
				slopes[k] = v
			}
		}

		path := FeaturesPath(dir, group, task)
		t, err := readTable(path)
		if err != nil {
			return "", err
		}
		if err := t.require(path, colFilename); err != nil {
			return "", err
		}
		if header == nil {
			header = t.header
		} else if !slices.Equal(header, t.header) {
			return "", fmt.Errorf("%s columns differ from SR1", path)
		}

		name := t.column[colFilename]
		for _, rec := range t.rows {
			rows = append(rows, append(slices.Clone(rec), slopes[rec[name]]))
		}
	}

	out := CombinedPath(dir, group, segmentation.SyllableRepetition)
	if err := writeTable(out, append(slices.Clone(header), colRMSSlope), rows, false); err != nil {
		return "", err
	}

	logger.Info("Combined syllable repetition features", logging.Fields{
		"group": group,
		"rows":  len(rows),
		"path":  out,
	})
	return out, nil
}
