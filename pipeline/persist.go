package pipeline

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/segmentation"
)

// Column names of the intermediate tables
const (
	colParticipant = "pID"
	colOnset       = "onset"
	colOffset      = "offset"
	colMeanRMS     = "meanRMS"
	colRMSSlope    = "rms_slope"
	colFilename    = "filename"
	colGroup       = "group"
	colTest        = "test"
)

// OnsetOffsetPath is the boundary table of one task
func OnsetOffsetPath(dir, group string, task segmentation.Task) string {
	return filepath.Join(dir, fmt.Sprintf("onsetOffset_%s_%s.csv", group, task))
}

// RMSPath is the SR loudness table of one task
func RMSPath(dir, group string, task segmentation.Task) string {
	return filepath.Join(dir, fmt.Sprintf("rms_%s_%s.csv", group, task))
}

// FeaturesPath is the feature table of one task
func FeaturesPath(dir, group string, task segmentation.Task) string {
	return filepath.Join(dir, fmt.Sprintf("features_%s_%s.csv", group, task))
}

// CombinedPath is the feature table of every instance of a paradigm
func CombinedPath(dir, group string, kind segmentation.Kind) string {
	return filepath.Join(dir, fmt.Sprintf("features_%s_%s.csv", group, kind))
}

// BoundaryRow is one recording's segments
type BoundaryRow struct {
	Participant string
	Boundaries  segmentation.BoundaryList
}

// RMSRow is one SR recording's per-segment loudness
type RMSRow struct {
	Participant string
	MeanRMS     []float64
	Slope       float64
}

// FeatureRow is one recording's metrics with its identifying columns
type FeatureRow struct {
	Filename string
	Group    string
	Test     string
	Record   *features.Record
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeTable writes rows under header. When indexed, a leading unnamed
// column numbers the rows from 0.
func writeTable(path string, header []string, rows [][]string, indexed bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if indexed {
		header = append([]string{""}, header...)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, row := range rows {
		if indexed {
			row = append([]string{strconv.Itoa(i)}, row...)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// table is a CSV file read into memory with its unnamed index column
// dropped.
type table struct {
	header []string
	rows   [][]string
	column map[string]int
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, common.NewError(common.KindParse, "read table", path, err)
	}
	if len(records) == 0 {
		return nil, common.Errorf(common.KindParse, "read table", "%s has no header", path)
	}

	header := records[0]
	skip := 0
	if len(header) > 0 && header[0] == "" {
		skip = 1
	}

	t := &table{header: header[skip:], column: make(map[string]int)}
	for i, name := range t.header {
		t.column[name] = i
	}
	for _, rec := range records[1:] {
		t.rows = append(t.rows, rec[skip:])
	}
	return t, nil
}

func (t *table) require(path string, names ...string) error {
	for _, name := range names {
		if _, ok := t.column[name]; !ok {
			return common.Errorf(common.KindParse, "read table", "%s has no %q column", path, name)
		}
	}
	return nil
}

// WriteBoundaries writes the boundary table: ,pID,onset,offset
func WriteBoundaries(path string, rows []BoundaryRow) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.Participant,
			segmentation.FormatIndices(r.Boundaries.Onsets()),
			segmentation.FormatIndices(r.Boundaries.Offsets()),
		}
	}
	return writeTable(path, []string{colParticipant, colOnset, colOffset}, out, true)
}

// ReadBoundaries reads a table written by WriteBoundaries
func ReadBoundaries(path string) ([]BoundaryRow, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(path, colParticipant, colOnset, colOffset); err != nil {
		return nil, err
	}

	rows := make([]BoundaryRow, len(t.rows))
	for i, rec := range t.rows {
		list, err := segmentation.ParseBoundaries(rec[t.column[colOnset]], rec[t.column[colOffset]])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i, err)
		}
		rows[i] = BoundaryRow{Participant: rec[t.column[colParticipant]], Boundaries: list}
	}
	return rows, nil
}

// WriteRMS writes the SR loudness table: ,pID,meanRMS,rms_slope
func WriteRMS(path string, rows []RMSRow) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.Participant, segmentation.FormatFloats(r.MeanRMS), formatFloat(r.Slope)}
	}
	return writeTable(path, []string{colParticipant, colMeanRMS, colRMSSlope}, out, true)
}

// readRMSSlopes maps participant to the raw rms_slope cell
func readRMSSlopes(path string) (map[string]string, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require(path, colParticipant, colRMSSlope); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(t.rows))
	for _, rec := range t.rows {
		out[rec[t.column[colParticipant]]] = rec[t.column[colRMSSlope]]
	}
	return out, nil
}

// WriteFeatures writes the feature table: ,filename,group,test,<columns>.
// Metrics a record lacks are left empty.
func WriteFeatures(path string, columns []string, rows []FeatureRow) error {
	header := append([]string{colFilename, colGroup, colTest}, columns...)

	out := make([][]string, len(rows))
	for i, r := range rows {
		line := make([]string, 0, len(header))
		line = append(line, r.Filename, r.Group, r.Test)
		for _, name := range columns {
			cell := ""
			if v, ok := r.Record.Get(name); ok {
				cell = v.String()
			}
			line = append(line, cell)
		}
		out[i] = line
	}
	return writeTable(path, header, out, true)
}
