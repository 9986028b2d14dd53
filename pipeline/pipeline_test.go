package pipeline

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/features"
	"github.com/RyanBlaney/sonido-motor/metrics"
	"github.com/RyanBlaney/sonido-motor/segmentation"
	"github.com/RyanBlaney/sonido-motor/transcode"
)

const testRate = 8000

// writeBursts writes a recording with tone bursts at the given [start, end)
// times in seconds.
func writeBursts(t *testing.T, dir, name string, total float64, spans [][2]float64) {
	t.Helper()
	samples := make([]float64, int(total*testRate))
	for _, s := range spans {
		for i := int(s[0] * testRate); i < int(s[1]*testRate); i++ {
			samples[i] = 0.6 * math.Sin(2*math.Pi*220*float64(i)/testRate)
		}
	}
	require.NoError(t, transcode.WriteWAV(filepath.Join(dir, name), samples, testRate))
}

var syllableSpans = [][2]float64{{0.6, 0.9}, {1.2, 1.5}, {1.8, 2.1}, {2.4, 2.7}, {3.0, 3.3}}

func newTestOrchestrator(dataDir, outDir string, m *metrics.Metrics) *Orchestrator {
	cfg := conditioning.DefaultConfig()
	cfg.TargetSampleRate = testRate
	cfg.HighCutoff = 3000

	return NewOrchestrator(Options{
		DataDir:     dataDir,
		OutputDir:   outDir,
		TaskWorkers: 3,
		FileWorkers: 2,
		Resample:    true,
	}, conditioning.NewConditioner(cfg, nil), nil, nil, m, nil)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunGroup(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	for i := 1; i <= segmentation.SyllableInstances; i++ {
		writeBursts(t, dataDir, "P01_SR"+strconv.Itoa(i)+"_phone.wav", 4, syllableSpans)
	}
	writeBursts(t, dataDir, "P01_PR_phone.wav", 4, [][2]float64{{0.6, 1.2}, {1.5, 2.2}, {2.6, 3.3}})
	writeBursts(t, dataDir, "P01_SV_phone.wav", 4, [][2]float64{{0.8, 3.0}})

	tasks, err := segmentation.ExpandTasks("SR", "PR", "SV")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	result, err := newTestOrchestrator(dataDir, outDir, m).RunGroup(context.Background(), "HD", tasks)
	require.NoError(t, err)
	require.Empty(t, result.TaskErrors)
	require.Len(t, result.Tasks, len(tasks))

	for _, task := range tasks {
		assert.FileExists(t, OnsetOffsetPath(outDir, "HD", task))
		assert.FileExists(t, FeaturesPath(outDir, "HD", task))
	}
	assert.NoFileExists(t, RMSPath(outDir, "HD", segmentation.PR()))

	rows, err := ReadBoundaries(OnsetOffsetPath(outDir, "HD", segmentation.MustParseTask("SR3")))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "P01_SR3_phone", rows[0].Participant)

	combined := CombinedPath(outDir, "HD", segmentation.SyllableRepetition)
	assert.Equal(t, []string{combined}, result.CombinedPaths)

	table := readCSV(t, combined)
	require.Len(t, table, 1+segmentation.SyllableInstances)
	header := table[0]
	assert.Equal(t, "filename", header[0])
	assert.Equal(t, "rms_slope", header[len(header)-1])
	assert.Equal(t, features.ColTST, header[3])
	assert.Equal(t, "SR1", table[1][2])

	sv := readCSV(t, FeaturesPath(outDir, "HD", segmentation.SV()))
	assert.Equal(t, []string{"", "filename", "group", "test", features.ColMaxPhonation}, sv[0])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("SR2", metrics.StageFeatures)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsCombined.WithLabelValues("HD", "ok")))
}

func TestRunGroupIncomplete(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeBursts(t, dataDir, "P02_SR1.wav", 4, syllableSpans)
	writeBursts(t, dataDir, "P02_SR2.wav", 4, syllableSpans)

	tasks, err := segmentation.ExpandTasks("SR")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	result, err := newTestOrchestrator(dataDir, outDir, m).RunGroup(context.Background(), "Control", tasks)
	assert.ErrorIs(t, err, ErrIncompleteGroup)
	require.NotNil(t, result)

	assert.Len(t, result.Tasks, 2)
	require.Len(t, result.TaskErrors, 3)
	for _, te := range result.TaskErrors {
		assert.Equal(t, metrics.StageLoad, te.Stage)
		assert.ErrorIs(t, te, common.ErrFileValidation)
	}

	assert.FileExists(t, FeaturesPath(outDir, "Control", segmentation.MustParseTask("SR1")))
	assert.NoFileExists(t, CombinedPath(outDir, "Control", segmentation.SyllableRepetition))
	for _, name := range []string{"SR3", "SR4", "SR5"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerErrors.WithLabelValues(name, metrics.StageLoad)))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsCombined.WithLabelValues("Control", "incomplete")))
}

func TestRunGroupRejectsInvalidRecording(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "P03_PR.wav"), []byte("not a wave file"), 0o644))

	result, err := newTestOrchestrator(dataDir, outDir, nil).RunGroup(context.Background(), "HD",
		[]segmentation.Task{segmentation.PR()})
	require.NoError(t, err)
	require.Len(t, result.TaskErrors, 1)
	assert.ErrorIs(t, result.TaskErrors[0], common.ErrFileValidation)
	assert.NoFileExists(t, OnsetOffsetPath(outDir, "HD", segmentation.PR()))
}

func TestBoundaryTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onsetOffset_HD_SR1.csv")
	rows := []BoundaryRow{
		{Participant: "a", Boundaries: segmentation.BoundaryList{{100, 250}, {400, 9000}}},
		{Participant: "b", Boundaries: segmentation.BoundaryList{}},
	}
	require.NoError(t, WriteBoundaries(path, rows))

	table := readCSV(t, path)
	assert.Equal(t, []string{"", "pID", "onset", "offset"}, table[0])
	assert.Equal(t, []string{"0", "a", "[100, 400]", "[250, 9000]"}, table[1])
	assert.Equal(t, []string{"1", "b", "[]", "[]"}, table[2])

	got, err := ReadBoundaries(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadBoundariesRejectsBadLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte(",pID,onset,offset\n0,a,\"[1.5]\",\"[2]\"\n"), 0o644))
	_, err := ReadBoundaries(path)
	assert.ErrorIs(t, err, common.ErrParse)

	require.NoError(t, os.WriteFile(path, []byte(",pID,start\n0,a,[1]\n"), 0o644))
	_, err = ReadBoundaries(path)
	assert.ErrorIs(t, err, common.ErrParse)
}

func TestCombineJoinsSlopes(t *testing.T) {
	dir := t.TempDir()
	engine := features.NewEngine(nil, nil)

	for i := 1; i <= segmentation.SyllableInstances; i++ {
		task, err := segmentation.SR(i)
		require.NoError(t, err)
		name := "P_" + task.String()

		list := segmentation.BoundaryList{{0, 500}, {1000, 1500}}
		require.NoError(t, WriteBoundaries(OnsetOffsetPath(dir, "HD", task), []BoundaryRow{{name, list}}))

		slope := float64(i)
		if i == 2 {
			slope = math.NaN()
		}
		require.NoError(t, WriteRMS(RMSPath(dir, "HD", task), []RMSRow{{name, []float64{0.1, 0.2}, slope}}))

		rec, err := engine.ComputeBoundaries(task, 1000, list)
		require.NoError(t, err)
		require.NoError(t, WriteFeatures(FeaturesPath(dir, "HD", task), features.TimingColumns,
			[]FeatureRow{{Filename: name, Group: "HD", Test: task.String(), Record: rec}}))
	}

	path, err := Combine(dir, "HD", segmentation.SyllableRepetition, nil)
	require.NoError(t, err)

	table := readCSV(t, path)
	require.Len(t, table, 6)
	last := len(table[0]) - 1
	assert.Equal(t, "1", table[1][last])
	assert.Equal(t, "", table[2][last])
	assert.Equal(t, "5", table[5][last])
	assert.Equal(t, "P_SR4", table[4][0])

	path, err = Combine(dir, "HD", segmentation.PassageReading, nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	require.NoError(t, os.Remove(RMSPath(dir, "HD", segmentation.MustParseTask("SR5"))))
	require.NoError(t, os.Remove(CombinedPath(dir, "HD", segmentation.SyllableRepetition)))
	_, err = Combine(dir, "HD", segmentation.SyllableRepetition, nil)
	assert.ErrorIs(t, err, ErrIncompleteGroup)
	assert.NoFileExists(t, CombinedPath(dir, "HD", segmentation.SyllableRepetition))
}
