// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package analyzer runs the calibration comparison: for every
// (sensor, scenario) cell it fits the range model on the scenario's three
// anchor points and scores the fit against the dense sweep inside the
// evaluation window. Fitting on the anchors but scoring on the window is
// deliberate: it measures how a sparse field calibration generalizes to the
// operating zone, not how well the curve passes through its own anchors.
package analyzer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/relabs-tech/range_analyzer/internal/fit"
	"github.com/relabs-tech/range_analyzer/internal/sample"
	"github.com/relabs-tech/range_analyzer/internal/scenario"
)

// ErrNoSamplesInRange is returned when no usable sample falls inside the
// evaluation window; the metric is undefined and the cell is flagged
// incomplete rather than divided by zero.
var ErrNoSamplesInRange = errors.New("no usable samples in evaluation range")

// Metric is the scored outcome of one (sensor, scenario) cell. RMSError is
// in mm; reports show it in μm.
type Metric struct {
	Sensor   string  `json:"sensor"`
	Scenario string  `json:"scenario"`
	RMSError float64 `json:"rms_error_mm"`
	RSquared float64 `json:"r_squared"`
	Samples  int     `json:"samples"` // samples that contributed to the metric
}

// AnchorReadings interpolates the sweep linearly at the three calibration
// distances. Points beyond the measured span are clamped to it.
func AnchorReadings(t sample.Table, points [3]float64) ([3]float64, error) {
	xs, ys := strictlyIncreasing(t.Distances, t.Readings)
	if len(xs) < 2 {
		return [3]float64{}, fmt.Errorf("sensor %s: sweep too short to interpolate (%d distinct distances)", t.Sensor, len(xs))
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return [3]float64{}, fmt.Errorf("sensor %s: %w", t.Sensor, err)
	}

	var out [3]float64
	for i, p := range points {
		x := math.Min(math.Max(p, xs[0]), xs[len(xs)-1])
		out[i] = pl.Predict(x)
	}
	return out, nil
}

// EvaluateScenario fits the model on the scenario's anchors and scores it
// over all sweep samples inside the evaluation window. The returned model is
// the anchor fit, for plotting.
func EvaluateScenario(t sample.Table, sc scenario.Config, eval sample.Range) (Metric, fit.Model, error) {
	anchors, err := AnchorReadings(t, sc.Points)
	if err != nil {
		return Metric{}, fit.Model{}, err
	}

	model, err := fit.ThreePoint(sc.Points, anchors)
	if err != nil {
		return Metric{}, fit.Model{}, fmt.Errorf("sensor %s scenario %s: %w", t.Sensor, sc.Name, err)
	}
	model.Sensor = t.Sensor
	model.Scenario = sc.Name

	// Predict a distance for every reading in the window; readings the model
	// cannot invert are excluded.
	var predicted, actual []float64
	for i := 0; i < t.Len(); i++ {
		d := t.Distances[i]
		if !eval.Contains(d) {
			continue
		}
		r := t.Readings[i]
		if math.IsNaN(r) {
			continue
		}
		p := model.Distance(r)
		if math.IsNaN(p) {
			continue
		}
		predicted = append(predicted, p)
		actual = append(actual, d)
	}
	if len(predicted) == 0 {
		return Metric{}, model, fmt.Errorf("sensor %s scenario %s: %w", t.Sensor, sc.Name, ErrNoSamplesInRange)
	}

	// Bias-removed error: a constant offset is absorbed by the zero reference
	// during deployment, so only the spread counts.
	meanErr := 0.0
	for i := range predicted {
		meanErr += predicted[i] - actual[i]
	}
	meanErr /= float64(len(predicted))

	ssRes := 0.0
	for i := range predicted {
		e := predicted[i] - actual[i] - meanErr
		ssRes += e * e
	}
	rms := math.Sqrt(ssRes / float64(len(predicted)))

	meanActual := 0.0
	for _, d := range actual {
		meanActual += d
	}
	meanActual /= float64(len(actual))
	ssTot := 0.0
	for _, d := range actual {
		ssTot += (d - meanActual) * (d - meanActual)
	}
	r2 := 0.0
	if ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}

	return Metric{
		Sensor:   t.Sensor,
		Scenario: sc.Name,
		RMSError: rms,
		RSquared: r2,
		Samples:  len(predicted),
	}, model, nil
}

// strictlyIncreasing collapses duplicate distances by averaging their
// readings, as the interpolator requires strictly increasing abscissae.
// The input must already be sorted ascending.
func strictlyIncreasing(dists, reads []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(dists))
	ys := make([]float64, 0, len(dists))
	for i := 0; i < len(dists); {
		j := i + 1
		sum := reads[i]
		for j < len(dists) && dists[j] == dists[i] {
			sum += reads[j]
			j++
		}
		xs = append(xs, dists[i])
		ys = append(ys, sum/float64(j-i))
		i = j
	}
	return xs, ys
}
