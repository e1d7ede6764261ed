// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreePointRecoversKnownModel(t *testing.T) {
	truth := Model{A: 25000, B: 1.2, C: 300}
	distances := [3]float64{1.0, 2.0, 3.0}
	var readings [3]float64
	for i, d := range distances {
		readings[i] = truth.Reading(d)
	}

	m, err := ThreePoint(distances, readings)
	require.NoError(t, err)
	assert.InDelta(t, truth.A, m.A, 1e-6)
	assert.InDelta(t, truth.B, m.B, 1e-9)
	assert.InDelta(t, truth.C, m.C, 1e-6)

	// The exact solve must pass through all three anchors.
	for i, d := range distances {
		assert.InDelta(t, readings[i], m.Reading(d), 1e-6)
	}
}

func TestThreePointNonUnitStep(t *testing.T) {
	truth := Model{A: 18000, B: 0.9, C: 150}
	distances := [3]float64{1.5, 2.25, 3.0} // 0.75 mm anchor step
	var readings [3]float64
	for i, d := range distances {
		readings[i] = truth.Reading(d)
	}

	m, err := ThreePoint(distances, readings)
	require.NoError(t, err)

	// The log root is the decay per 0.75 mm step and is used as B directly.
	assert.InDelta(t, truth.B*0.75, m.B, 1e-9)

	// The middle anchor and the outer difference are always reproduced; the
	// outer anchors share a common offset.
	assert.InDelta(t, readings[1], m.Reading(distances[1]), 1e-6)
	assert.InDelta(t, readings[0]-readings[2],
		m.Reading(distances[0])-m.Reading(distances[2]), 1e-6)
	assert.InDelta(t,
		m.Reading(distances[0])-readings[0],
		m.Reading(distances[2])-readings[2], 1e-6)
	assert.Greater(t, math.Abs(m.Reading(distances[0])-readings[0]), 1.0)
}

func TestThreePointDegenerate(t *testing.T) {
	// Readings that grow with distance have no positive decay branch.
	_, err := ThreePoint([3]float64{1, 2, 3}, [3]float64{100, 200, 400})
	require.ErrorIs(t, err, ErrDegenerate)

	// S2 == S3 makes the quadratic denominator vanish.
	_, err = ThreePoint([3]float64{1, 2, 3}, [3]float64{500, 200, 200})
	require.ErrorIs(t, err, ErrDegenerate)
}

func TestDistanceInversion(t *testing.T) {
	m := Model{A: 25000, B: 1.2, C: 300}

	for _, d := range []float64{0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5} {
		assert.InDelta(t, d, m.Distance(m.Reading(d)), 1e-9, "distance %.1f", d)
	}
}

func TestDistanceOutOfDomain(t *testing.T) {
	m := Model{A: 25000, B: 1.2, C: 300}

	// Readings at or below the floor C have no finite pre-image.
	assert.True(t, math.IsNaN(m.Distance(300)))
	assert.True(t, math.IsNaN(m.Distance(250)))

	assert.True(t, math.IsNaN(Model{A: 0, B: 1, C: 0}.Distance(100)))
	assert.True(t, math.IsNaN(Model{A: 100, B: 0, C: 0}.Distance(50)))
}

func sweep(m Model, n int) (distances, readings []float64) {
	for i := 1; i <= n; i++ {
		d := float64(i) / 10.0
		distances = append(distances, d)
		readings = append(readings, m.Reading(d))
	}
	return distances, readings
}

func TestLeastSquaresRecoversKnownModel(t *testing.T) {
	truth := Model{A: 25000, B: 1.2, C: 300}
	distances, readings := sweep(truth, 40)

	m, err := LeastSquares(distances, readings, DefaultLMOptions())
	require.NoError(t, err)
	assert.InEpsilon(t, truth.A, m.A, 1e-4)
	assert.InDelta(t, truth.B, m.B, 1e-4)
	assert.InDelta(t, truth.C, m.C, 1)

	for i, d := range distances {
		assert.InDelta(t, readings[i], m.Reading(d), 1e-2)
	}
}

func TestLeastSquaresInsufficientData(t *testing.T) {
	_, err := LeastSquares([]float64{1, 2}, []float64{100, 50}, DefaultLMOptions())
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestLeastSquaresLengthMismatch(t *testing.T) {
	_, err := LeastSquares([]float64{1, 2, 3}, []float64{100, 50}, DefaultLMOptions())
	require.Error(t, err)
}

func TestLeastSquaresBudgetExhausted(t *testing.T) {
	truth := Model{A: 25000, B: 1.2, C: 300}
	distances, readings := sweep(truth, 40)
	for i := range readings {
		if i%2 == 0 {
			readings[i] += 50 // noise keeps the cost from ever reaching zero
		}
	}

	opts := LMOptions{MaxIterations: 1, Tolerance: 0, InitialLambda: 1e-3}
	_, err := LeastSquares(distances, readings, opts)
	require.ErrorIs(t, err, ErrNoConvergence)
}
