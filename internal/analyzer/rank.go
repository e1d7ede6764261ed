package analyzer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/range_analyzer/internal/scenario"
)

// ReferenceScenario is the configuration the improvement column is computed
// against.
const ReferenceScenario = "Standard"

// RankedResult is one scenario's cross-sensor aggregate. Rank is a total
// order: ascending mean RMS, ties broken by ascending std.
type RankedResult struct {
	Scenario    string     `json:"scenario"`
	Points      [3]float64 `json:"points_mm"`
	Rank        int        `json:"rank"`
	MeanRMS     float64    `json:"mean_rms_mm"`
	StdRMS      float64    `json:"std_rms_mm"`
	MeanR2      float64    `json:"mean_r_squared"`
	StdR2       float64    `json:"std_r_squared"`
	Improvement float64    `json:"improvement_vs_ref_pct"` // positive is better than Standard
	Sensors     int        `json:"sensors"`                // sensors contributing finite metrics
}

// Rank aggregates per-cell metrics across sensors and orders the scenarios.
// Cells with non-finite RMS are excluded; a scenario with no finite cell is
// omitted entirely. Ranking is by point-estimate comparison only, no
// significance testing.
func Rank(metrics []Metric, scenarios []scenario.Config) []RankedResult {
	byScenario := make(map[string][]Metric)
	for _, m := range metrics {
		if math.IsNaN(m.RMSError) || math.IsInf(m.RMSError, 0) {
			continue
		}
		byScenario[m.Scenario] = append(byScenario[m.Scenario], m)
	}

	refMean := math.NaN()
	if ref := byScenario[ReferenceScenario]; len(ref) > 0 {
		refMean = stat.Mean(rmsValues(ref), nil)
	}

	results := make([]RankedResult, 0, len(scenarios))
	for _, sc := range scenarios {
		cells := byScenario[sc.Name]
		if len(cells) == 0 {
			continue
		}
		rms := rmsValues(cells)
		r2 := make([]float64, len(cells))
		for i, m := range cells {
			r2[i] = m.RSquared
		}

		res := RankedResult{
			Scenario: sc.Name,
			Points:   sc.Points,
			MeanRMS:  stat.Mean(rms, nil),
			StdRMS:   stat.PopStdDev(rms, nil),
			MeanR2:   stat.Mean(r2, nil),
			StdR2:    stat.PopStdDev(r2, nil),
			Sensors:  len(cells),
		}
		if !math.IsNaN(refMean) && refMean != 0 {
			res.Improvement = (refMean - res.MeanRMS) / refMean * 100
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MeanRMS != results[j].MeanRMS {
			return results[i].MeanRMS < results[j].MeanRMS
		}
		return results[i].StdRMS < results[j].StdRMS
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func rmsValues(ms []Metric) []float64 {
	out := make([]float64, len(ms))
	for i, m := range ms {
		out[i] = m.RMSError
	}
	return out
}
