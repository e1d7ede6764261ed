// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package detector turns a continuous raw reading stream into one sample per
// stable plateau. The rig holds the target at each commanded distance for a
// while before stepping to the next, so the stream looks like a staircase
// with noise on each tread.
package detector

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/range_analyzer/internal/sample"
)

// ErrPlateauCountMismatch is returned when the number of detected plateaus
// does not match the number of commanded distances. Misaligned data must not
// be emitted silently.
var ErrPlateauCountMismatch = errors.New("plateau count does not match commanded distances")

// Plateau is one stable segment of the raw stream.
type Plateau struct {
	Start int     // index of the first reading in the segment
	Count int     // number of readings in the segment
	Mean  float64 // average reading over the segment
}

// FindPlateaus segments the stream at every jump whose absolute difference
// between consecutive readings exceeds noiseThreshold. Segments shorter than
// minSamples are discarded as transition noise.
func FindPlateaus(readings []float64, noiseThreshold float64, minSamples int) []Plateau {
	if len(readings) == 0 {
		return nil
	}

	var plateaus []Plateau
	start := 0
	flush := func(end int) {
		count := end - start
		if count < minSamples {
			return
		}
		sum := 0.0
		for _, v := range readings[start:end] {
			sum += v
		}
		plateaus = append(plateaus, Plateau{
			Start: start,
			Count: count,
			Mean:  sum / float64(count),
		})
	}

	for i := 1; i < len(readings); i++ {
		if math.Abs(readings[i]-readings[i-1]) > noiseThreshold {
			flush(i)
			start = i
		}
	}
	flush(len(readings))

	return plateaus
}

// Detect pairs the plateaus found in the stream with the commanded distances,
// in order, and returns one sample per plateau. The commanded distances must
// be supplied in the same order the rig moved through them.
func Detect(sensor string, readings []float64, distances []float64, noiseThreshold float64, minSamples int) ([]sample.Sample, error) {
	plateaus := FindPlateaus(readings, noiseThreshold, minSamples)
	if len(plateaus) != len(distances) {
		return nil, fmt.Errorf("%w: detected %d, expected %d (sensor %s)",
			ErrPlateauCountMismatch, len(plateaus), len(distances), sensor)
	}

	samples := make([]sample.Sample, len(plateaus))
	for i, p := range plateaus {
		samples[i] = sample.Sample{
			Sensor:   sensor,
			Distance: distances[i],
			Reading:  p.Mean,
		}
	}
	return samples, nil
}
