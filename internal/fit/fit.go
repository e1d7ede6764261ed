// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fit estimates the parameters of the exponential range model
//
//	reading = A*exp(-B*distance) + C
//
// Two fitters are provided. ThreePoint solves the model exactly through
// three anchor samples, which is how field calibrations are computed on the
// instrument itself. LeastSquares runs a damped Gauss-Newton
// (Levenberg-Marquardt) minimization over a full sweep and is used for
// sensor diagnostics.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDegenerate marks a three-point solve with no valid solution:
	// negative discriminant, no positive decay branch, or a vanishing
	// denominator. Readings that do not decrease with distance usually end
	// up here.
	ErrDegenerate = errors.New("three-point solve is degenerate")

	// ErrNoConvergence is returned when the iteration budget is exhausted
	// before the cost stabilizes.
	ErrNoConvergence = errors.New("fit did not converge")

	// ErrSingular is returned when the damped normal matrix cannot be
	// solved.
	ErrSingular = errors.New("normal matrix is singular")

	// ErrInsufficientData is returned when fewer samples than parameters
	// are supplied.
	ErrInsufficientData = errors.New("not enough samples to fit the model")
)

// Model holds the fitted parameters of reading = A*exp(-B*distance) + C.
type Model struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`

	Sensor   string `json:"sensor,omitempty"`
	Scenario string `json:"scenario,omitempty"`
}

// Reading predicts the sensor reading at a distance in mm.
func (m Model) Reading(distance float64) float64 {
	return m.A*math.Exp(-m.B*distance) + m.C
}

// Distance inverts the model: it returns the distance in mm that would
// produce the given reading, or NaN when the reading is outside the model's
// image (argument of the log not positive, or a degenerate model).
func (m Model) Distance(reading float64) float64 {
	if m.A == 0 || m.B == 0 {
		return math.NaN()
	}
	arg := (reading - m.C) / m.A
	if arg <= 0 {
		return math.NaN()
	}
	return -math.Log(arg) / m.B
}

// ThreePoint computes the model from three equally spaced anchor samples
// (X1,S1), (X2,S2), (X3,S3) with X1 < X2 < X3, using the same closed form
// as the instrument's own calibration routine.
//
// Eliminating A and C leaves a quadratic whose positive-log root is the
// decay per anchor step; it is used as B directly, without renormalizing by
// the step width, because deployed calibrations are computed that way and
// results must match them. Consequences: for a 1 mm step the model
// interpolates all three anchors exactly; for other steps it reproduces the
// middle anchor and the S1-S3 difference, with the outer anchors off by a
// common offset.
func ThreePoint(distances [3]float64, readings [3]float64) (Model, error) {
	s1, s2, s3 := readings[0], readings[1], readings[2]
	x1, x2, x3 := distances[0], distances[1], distances[2]

	term1 := s1 - s3
	term2 := s2 - s3
	term3 := s1 - s2

	discriminant := term1*term1 - 4*term2*term3
	if discriminant < 0 {
		return Model{}, fmt.Errorf("%w: negative discriminant %.4g", ErrDegenerate, discriminant)
	}
	sqrtDisc := math.Sqrt(discriminant)

	denom := 2 * term2
	if math.Abs(denom) < 1e-10 {
		return Model{}, fmt.Errorf("%w: S2 too close to S3", ErrDegenerate)
	}

	// Two candidate log arguments; keep the branch with positive decay.
	b := math.NaN()
	for _, num := range []float64{term1 + sqrtDisc, term1 - sqrtDisc} {
		if arg := num / denom; arg > 0 {
			if cand := math.Log(arg); cand > 0 {
				b = cand
				break
			}
		}
	}
	if math.IsNaN(b) {
		return Model{}, fmt.Errorf("%w: no positive decay branch", ErrDegenerate)
	}

	denomA := math.Exp(-b*x1) - math.Exp(-b*x3)
	if math.Abs(denomA) < 1e-10 {
		return Model{}, fmt.Errorf("%w: anchor distances too close", ErrDegenerate)
	}
	a := term1 / denomA
	c := s2 - a*math.Exp(-b*x2)

	return Model{A: a, B: b, C: c}, nil
}

// LMOptions controls the LeastSquares iteration.
type LMOptions struct {
	MaxIterations int     // iteration budget before ErrNoConvergence
	Tolerance     float64 // relative cost change considered converged
	InitialLambda float64 // starting damping factor
}

// DefaultLMOptions returns the options used by the analyzer.
func DefaultLMOptions() LMOptions {
	return LMOptions{
		MaxIterations: 200,
		Tolerance:     1e-10,
		InitialLambda: 1e-3,
	}
}

// LeastSquares fits the model to a full sweep by Levenberg-Marquardt,
// minimizing the sum of squared reading residuals. Initial guesses are
// seeded from the data range (A from the reading span, B = 1, C from the
// minimum reading); exponential decay fits are sensitive to the sign and
// scale of the starting point, so the seed keeps the solver inside its
// convergence basin.
func LeastSquares(distances, readings []float64, opts LMOptions) (Model, error) {
	n := len(distances)
	if n != len(readings) {
		return Model{}, fmt.Errorf("distances and readings length mismatch: %d vs %d", n, len(readings))
	}
	if n < 3 {
		return Model{}, fmt.Errorf("%w: %d samples, need at least 3", ErrInsufficientData, n)
	}

	minR, maxR := readings[0], readings[0]
	for _, r := range readings[1:] {
		minR = math.Min(minR, r)
		maxR = math.Max(maxR, r)
	}
	p := [3]float64{maxR - minR, 1, minR} // A, B, C

	residuals := func(p [3]float64) ([]float64, float64) {
		r := make([]float64, n)
		cost := 0.0
		for i := range r {
			r[i] = p[0]*math.Exp(-p[1]*distances[i])+p[2] - readings[i]
			cost += r[i] * r[i]
		}
		return r, cost
	}

	res, cost := residuals(p)
	lambda := opts.InitialLambda

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if cost < opts.Tolerance {
			return Model{A: p[0], B: p[1], C: p[2]}, nil
		}

		jac := mat.NewDense(n, 3, nil)
		rhs := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			e := math.Exp(-p[1] * distances[i])
			jac.Set(i, 0, e)
			jac.Set(i, 1, -p[0]*distances[i]*e)
			jac.Set(i, 2, 1)
			rhs.SetVec(i, res[i])
		}

		var normal mat.Dense
		normal.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), rhs)

		// Damped step; retry with a heavier damping when the cost rises.
		for {
			damped := mat.DenseCopyOf(&normal)
			for i := 0; i < 3; i++ {
				damped.Set(i, i, damped.At(i, i)+lambda)
			}

			var delta mat.VecDense
			if err := delta.SolveVec(damped, &grad); err != nil {
				return Model{}, fmt.Errorf("%w: %v", ErrSingular, err)
			}

			trial := [3]float64{
				p[0] - delta.AtVec(0),
				p[1] - delta.AtVec(1),
				p[2] - delta.AtVec(2),
			}
			trialRes, trialCost := residuals(trial)
			if trialCost < cost {
				improved := cost - trialCost
				p, res = trial, trialRes
				converged := improved <= opts.Tolerance*(cost+opts.Tolerance)
				cost = trialCost
				lambda = math.Max(lambda*0.5, 1e-12)
				if converged {
					return Model{A: p[0], B: p[1], C: p[2]}, nil
				}
				break
			}

			lambda *= 10
			if lambda > 1e12 {
				return Model{}, fmt.Errorf("%w: damping factor exhausted after %d iterations", ErrNoConvergence, iter+1)
			}
		}
	}

	return Model{}, fmt.Errorf("%w: %d iterations", ErrNoConvergence, opts.MaxIterations)
}
