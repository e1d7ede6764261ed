package analyzer

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/relabs-tech/range_analyzer/internal/fit"
	"github.com/relabs-tech/range_analyzer/internal/sample"
	"github.com/relabs-tech/range_analyzer/internal/scenario"
)

// SensorInfo carries per-sensor diagnostics: sweep size and, when the dense
// least-squares fit converged, the full-sweep model and its R² in reading
// space. A poor dense fit usually means a contaminated sweep, not a bad
// calibration configuration.
type SensorInfo struct {
	Sensor   string     `json:"sensor"`
	Samples  int        `json:"samples"`
	DenseFit *fit.Model `json:"dense_fit,omitempty"`
	DenseR2  float64    `json:"dense_r_squared,omitempty"`
}

// Failure records a cell or sensor that produced no metric.
type Failure struct {
	Sensor   string `json:"sensor"`
	Scenario string `json:"scenario,omitempty"` // empty for sensor-level failures
	Reason   string `json:"reason"`
}

// Report is the full outcome of one analysis run, the unit handed to the
// report writers, the run-history store and the web viewer.
type Report struct {
	Dataset   string         `json:"dataset"`
	CreatedAt time.Time      `json:"created_at"`
	EvalRange sample.Range   `json:"eval_range"`
	Sensors   []SensorInfo   `json:"sensors"`
	Metrics   []Metric       `json:"metrics"`
	Failures  []Failure      `json:"failures,omitempty"`
	Rankings  []RankedResult `json:"rankings"`
}

// ErrNoResults is returned when no (sensor, scenario) cell produced a
// metric.
var ErrNoResults = errors.New("no scenario produced a usable metric")

// Analyze evaluates every (sensor, scenario) cell and ranks the scenarios.
// Failures are isolated per cell: a degenerate fit or an empty evaluation
// window excludes that cell from the ranking and the run continues.
func Analyze(dataset string, tables []sample.Table, scenarios []scenario.Config, eval sample.Range, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rep := &Report{
		Dataset:   dataset,
		CreatedAt: time.Now(),
		EvalRange: eval,
	}

	for _, t := range tables {
		if t.Len() == 0 {
			logger.Warn("sensor has no samples, skipping", "sensor", t.Sensor)
			rep.Failures = append(rep.Failures, Failure{Sensor: t.Sensor, Reason: "no samples"})
			continue
		}

		info := SensorInfo{Sensor: t.Sensor, Samples: t.Len()}
		if model, err := fit.LeastSquares(t.Distances, t.Readings, fit.DefaultLMOptions()); err != nil {
			logger.Warn("dense fit failed", "sensor", t.Sensor, "err", err)
		} else {
			model.Sensor = t.Sensor
			info.DenseFit = &model
			info.DenseR2 = readingR2(t, model)
		}
		rep.Sensors = append(rep.Sensors, info)

		for _, sc := range scenarios {
			metric, _, err := EvaluateScenario(t, sc, eval)
			if err != nil {
				logger.Warn("scenario evaluation failed",
					"sensor", t.Sensor, "scenario", sc.Name, "err", err)
				rep.Failures = append(rep.Failures, Failure{
					Sensor:   t.Sensor,
					Scenario: sc.Name,
					Reason:   err.Error(),
				})
				continue
			}
			logger.Info("scenario evaluated",
				"sensor", t.Sensor, "scenario", sc.Name,
				"rms_um", metric.RMSError*1000, "r2", metric.RSquared)
			rep.Metrics = append(rep.Metrics, metric)
		}
	}

	if len(rep.Metrics) == 0 {
		return nil, ErrNoResults
	}
	rep.Rankings = Rank(rep.Metrics, scenarios)
	return rep, nil
}

// readingR2 scores a model against the sweep it was fitted on, in reading
// space.
func readingR2(t sample.Table, m fit.Model) float64 {
	meanR := 0.0
	for _, r := range t.Readings {
		meanR += r
	}
	meanR /= float64(t.Len())

	ssRes, ssTot := 0.0, 0.0
	for i := 0; i < t.Len(); i++ {
		res := m.Reading(t.Distances[i]) - t.Readings[i]
		ssRes += res * res
		ssTot += (t.Readings[i] - meanR) * (t.Readings[i] - meanR)
	}
	if ssTot == 0 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if math.IsNaN(r2) {
		return 0
	}
	return r2
}
