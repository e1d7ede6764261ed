package report

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/range_analyzer/internal/analyzer"
	"github.com/relabs-tech/range_analyzer/internal/sample"
)

func sampleReport() *analyzer.Report {
	return &analyzer.Report{
		Dataset:   "sweep.csv",
		CreatedAt: time.Date(2026, 8, 12, 10, 30, 0, 0, time.UTC),
		EvalRange: sample.Range{Min: 1.5, Max: 3.0},
		Sensors: []analyzer.SensorInfo{
			{Sensor: "43220065 ROS1", Samples: 40},
		},
		Metrics: []analyzer.Metric{
			{Sensor: "43220065 ROS1", Scenario: "Far-1", RMSError: 0.0161, RSquared: 0.9995, Samples: 16},
			{Sensor: "43220065 ROS1", Scenario: "Standard", RMSError: 0.0320, RSquared: 0.9981, Samples: 16},
			{Sensor: "43220065 ROS1", Scenario: "Wide-1", RMSError: 0.1269, RSquared: 0.9712, Samples: 16},
		},
		Failures: []analyzer.Failure{
			{Sensor: "43220066 ROS2", Scenario: "Wide-1", Reason: "three-point solve is degenerate"},
		},
		Rankings: []analyzer.RankedResult{
			{Rank: 1, Scenario: "Far-1", Points: [3]float64{1.5, 2.25, 3.0}, MeanRMS: 0.0161, MeanR2: 0.9995, Improvement: 49.7},
			{Rank: 2, Scenario: "Standard", Points: [3]float64{1.0, 2.0, 3.0}, MeanRMS: 0.0320, MeanR2: 0.9981},
			{Rank: 3, Scenario: "Wide-1", Points: [3]float64{0.5, 2.0, 3.5}, MeanRMS: 0.1269, StdRMS: 0.01, MeanR2: 0.9712, Improvement: -296.6},
		},
	}
}

func TestWriteSummary(t *testing.T) {
	var sb strings.Builder
	WriteSummary(&sb, sampleReport())
	out := sb.String()

	assert.Contains(t, out, "sweep.csv")
	assert.Contains(t, out, "1.5–3.0 mm")
	assert.Contains(t, out, "Far-1")
	assert.Contains(t, out, "Best configuration:  Far-1")
	assert.Contains(t, out, "Worst configuration: Wide-1")
	assert.Contains(t, out, "+49.7%")
	assert.Contains(t, out, "Incomplete cells (1):")
	assert.Contains(t, out, "43220066 ROS2 / Wide-1")

	// Rank rows appear in order.
	assert.Less(t, strings.Index(out, "Far-1"), strings.Index(out, "Wide-1"))
}

func TestWriteSummaryEmptyRankings(t *testing.T) {
	rep := sampleReport()
	rep.Rankings = nil
	rep.Failures = nil

	var sb strings.Builder
	WriteSummary(&sb, rep) // must not panic on an empty table
	assert.Contains(t, sb.String(), "Scenarios ranked: 0")
}

func TestWriteJSONKeepsZoneOffset(t *testing.T) {
	rep := sampleReport()
	rep.CreatedAt = time.Date(2026, 8, 12, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	path, err := WriteJSON(t.TempDir(), rep)
	require.NoError(t, err)
	assert.Contains(t, path, "2026-08-12T12-30-00+0200")
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	rep := sampleReport()

	path, err := WriteJSON(dir, rep)
	require.NoError(t, err)
	assert.Contains(t, path, "2026-08-12T10-30-00Z")
	assert.True(t, strings.HasSuffix(path, "_range_report.json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got analyzer.Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rep.Dataset, got.Dataset)
	require.Len(t, got.Rankings, 3)
	assert.Equal(t, "Far-1", got.Rankings[0].Scenario)
	assert.InDelta(t, 0.0161, got.Rankings[0].MeanRMS, 1e-12)
}
