package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/range_analyzer/internal/scenario"
)

func rankScenarios() []scenario.Config {
	return []scenario.Config{
		{Name: "Standard", Points: [3]float64{1, 2, 3}},
		{Name: "Far-1", Points: [3]float64{1.5, 2.25, 3}},
		{Name: "Wide-1", Points: [3]float64{0.5, 2, 3.5}},
	}
}

func TestRankOrdersByMeanRMS(t *testing.T) {
	metrics := []Metric{
		{Sensor: "ROS1", Scenario: "Standard", RMSError: 0.020, RSquared: 0.999},
		{Sensor: "ROS2", Scenario: "Standard", RMSError: 0.030, RSquared: 0.998},
		{Sensor: "ROS1", Scenario: "Far-1", RMSError: 0.010, RSquared: 0.9999},
		{Sensor: "ROS2", Scenario: "Far-1", RMSError: 0.015, RSquared: 0.9998},
		{Sensor: "ROS1", Scenario: "Wide-1", RMSError: 0.120, RSquared: 0.97},
		{Sensor: "ROS2", Scenario: "Wide-1", RMSError: 0.130, RSquared: 0.96},
	}

	results := Rank(metrics, rankScenarios())
	require.Len(t, results, 3)

	assert.Equal(t, "Far-1", results[0].Scenario)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "Standard", results[1].Scenario)
	assert.Equal(t, "Wide-1", results[2].Scenario)
	assert.Equal(t, 3, results[2].Rank)

	assert.InDelta(t, 0.0125, results[0].MeanRMS, 1e-12)
	assert.InDelta(t, 0.0025, results[0].StdRMS, 1e-12) // population std
	assert.Equal(t, 2, results[0].Sensors)
}

func TestRankImprovementVsReference(t *testing.T) {
	metrics := []Metric{
		{Sensor: "ROS1", Scenario: "Standard", RMSError: 0.020},
		{Sensor: "ROS2", Scenario: "Standard", RMSError: 0.030},
		{Sensor: "ROS1", Scenario: "Far-1", RMSError: 0.010},
		{Sensor: "ROS2", Scenario: "Far-1", RMSError: 0.015},
	}

	results := Rank(metrics, rankScenarios())
	require.Len(t, results, 2)

	// Far-1: (0.025 - 0.0125) / 0.025 * 100 = 50% better than Standard.
	assert.InDelta(t, 50, results[0].Improvement, 1e-9)
	assert.InDelta(t, 0, results[1].Improvement, 1e-9)
}

func TestRankTieBreakByStd(t *testing.T) {
	metrics := []Metric{
		{Sensor: "ROS1", Scenario: "Standard", RMSError: 0.010},
		{Sensor: "ROS2", Scenario: "Standard", RMSError: 0.030},
		{Sensor: "ROS1", Scenario: "Far-1", RMSError: 0.019},
		{Sensor: "ROS2", Scenario: "Far-1", RMSError: 0.021},
	}

	results := Rank(metrics, rankScenarios())
	require.Len(t, results, 2)

	// Equal means (0.020); the tighter spread wins.
	assert.Equal(t, "Far-1", results[0].Scenario)
	assert.Equal(t, "Standard", results[1].Scenario)
}

func TestRankExcludesNonFiniteCells(t *testing.T) {
	metrics := []Metric{
		{Sensor: "ROS1", Scenario: "Standard", RMSError: 0.020},
		{Sensor: "ROS2", Scenario: "Standard", RMSError: math.NaN()},
		{Sensor: "ROS1", Scenario: "Wide-1", RMSError: math.Inf(1)},
	}

	results := Rank(metrics, rankScenarios())
	require.Len(t, results, 1)
	assert.Equal(t, "Standard", results[0].Scenario)
	assert.Equal(t, 1, results[0].Sensors)
	assert.InDelta(t, 0.020, results[0].MeanRMS, 1e-12)
}

func TestRankDeterministic(t *testing.T) {
	metrics := []Metric{
		{Sensor: "ROS1", Scenario: "Standard", RMSError: 0.020},
		{Sensor: "ROS1", Scenario: "Far-1", RMSError: 0.010},
		{Sensor: "ROS1", Scenario: "Wide-1", RMSError: 0.120},
	}

	first := Rank(metrics, rankScenarios())
	second := Rank(metrics, rankScenarios())
	assert.Equal(t, first, second)
}
