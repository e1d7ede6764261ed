// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scenario defines the candidate calibration-point configurations
// and the target evaluation range. The seven default sets mirror the
// configurations used during the ROS sensor qualification campaign; a YAML
// file can replace them without rebuilding.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/range_analyzer/internal/sample"
)

// PhysicalMax is the upper bound of the instrument span in mm. Calibration
// points beyond it cannot be commanded on the rig.
const PhysicalMax = 4.0

// Config is one named set of three calibration distances.
type Config struct {
	Name   string     `yaml:"name" json:"name"`
	Points [3]float64 `yaml:"points" json:"points_mm"`
}

// Span returns the distance covered by the set in mm.
func (c Config) Span() float64 {
	return c.Points[2] - c.Points[0]
}

// Validate checks that the three points are strictly increasing and inside
// the instrument span.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	for i, p := range c.Points {
		if p <= 0 || p > PhysicalMax {
			return fmt.Errorf("scenario %s: point %d (%.2f mm) outside (0, %.1f] mm", c.Name, i+1, p, PhysicalMax)
		}
	}
	if c.Points[0] >= c.Points[1] || c.Points[1] >= c.Points[2] {
		return fmt.Errorf("scenario %s: points %v not strictly increasing", c.Name, c.Points)
	}
	return nil
}

// Defaults returns the seven candidate configurations, Standard first.
// Standard is the reference the improvement column is computed against.
func Defaults() []Config {
	return []Config{
		{Name: "Standard", Points: [3]float64{1.0, 2.0, 3.0}},
		{Name: "Wide-1", Points: [3]float64{0.5, 2.0, 3.5}},
		{Name: "Wide-2", Points: [3]float64{0.5, 1.75, 3.0}},
		{Name: "Short", Points: [3]float64{0.5, 1.5, 2.5}},
		{Name: "Far-1", Points: [3]float64{1.5, 2.25, 3.0}},
		{Name: "Far-2", Points: [3]float64{1.5, 2.5, 3.5}},
		{Name: "Mid", Points: [3]float64{1.5, 2.15, 2.8}},
	}
}

// DefaultEvalRange is the target operating window errors are scored over,
// regardless of which calibration points were used for fitting.
func DefaultEvalRange() sample.Range {
	return sample.Range{Min: 1.5, Max: 3.0}
}

// file is the YAML document layout. Scenarios are a list so the file order
// is preserved in reports.
type file struct {
	Scenarios []Config   `yaml:"scenarios"`
	EvalRange [2]float64 `yaml:"eval_range"`
}

// LoadFile reads scenario configurations and the evaluation range from a
// YAML document. A missing eval_range falls back to the default window.
func LoadFile(path string) ([]Config, sample.Range, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sample.Range{}, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, sample.Range{}, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	if len(f.Scenarios) == 0 {
		return nil, sample.Range{}, fmt.Errorf("scenario file %s defines no scenarios", path)
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for _, c := range f.Scenarios {
		if err := c.Validate(); err != nil {
			return nil, sample.Range{}, err
		}
		if seen[c.Name] {
			return nil, sample.Range{}, fmt.Errorf("scenario %s defined twice", c.Name)
		}
		seen[c.Name] = true
	}

	eval := DefaultEvalRange()
	if f.EvalRange != [2]float64{} {
		if f.EvalRange[0] >= f.EvalRange[1] {
			return nil, sample.Range{}, fmt.Errorf("eval_range %v: min must be below max", f.EvalRange)
		}
		eval = sample.Range{Min: f.EvalRange[0], Max: f.EvalRange[1]}
	}
	return f.Scenarios, eval, nil
}
