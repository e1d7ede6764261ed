// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package report renders an analysis run for humans: console summary table,
// timestamped JSON file, and chart PNGs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/relabs-tech/range_analyzer/internal/analyzer"
)

// WriteSummary prints the cross-sensor comparison table and the best/worst
// callouts.
func WriteSummary(w io.Writer, rep *analyzer.Report) {
	fmt.Fprintf(w, "Calibration range analysis — %s\n", rep.Dataset)
	fmt.Fprintf(w, "Sensors: %d  Scenarios ranked: %d  Evaluation range: %.1f–%.1f mm\n\n",
		len(rep.Sensors), len(rep.Rankings), rep.EvalRange.Min, rep.EvalRange.Max)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Rank\tScenario\tPoints (mm)\tSpan\tRMS (μm)\tR²\tvs Ref")
	for _, r := range rep.Rankings {
		fmt.Fprintf(tw, "%d\t%s\t%.1f, %.2f, %.1f\t%.1f\t%.1f ± %.1f\t%.4f\t%+.1f%%\n",
			r.Rank, r.Scenario,
			r.Points[0], r.Points[1], r.Points[2],
			r.Points[2]-r.Points[0],
			r.MeanRMS*1000, r.StdRMS*1000,
			r.MeanR2, r.Improvement)
	}
	tw.Flush()

	if len(rep.Rankings) > 0 {
		best := rep.Rankings[0]
		worst := rep.Rankings[len(rep.Rankings)-1]
		fmt.Fprintf(w, "\nBest configuration:  %s (%.1f ± %.1f μm, %+.1f%% vs %s)\n",
			best.Scenario, best.MeanRMS*1000, best.StdRMS*1000, best.Improvement, analyzer.ReferenceScenario)
		fmt.Fprintf(w, "Worst configuration: %s (%.1f ± %.1f μm, %+.1f%% vs %s)\n",
			worst.Scenario, worst.MeanRMS*1000, worst.StdRMS*1000, worst.Improvement, analyzer.ReferenceScenario)

		if stable := lowestVariability(rep.Rankings); stable != nil && stable.Scenario != best.Scenario {
			fmt.Fprintf(w, "Most consistent:     %s (std %.1f μm)\n", stable.Scenario, stable.StdRMS*1000)
		}
	}

	if len(rep.Failures) > 0 {
		fmt.Fprintf(w, "\nIncomplete cells (%d):\n", len(rep.Failures))
		for _, f := range rep.Failures {
			if f.Scenario == "" {
				fmt.Fprintf(w, "  %s: %s\n", f.Sensor, f.Reason)
			} else {
				fmt.Fprintf(w, "  %s / %s: %s\n", f.Sensor, f.Scenario, f.Reason)
			}
		}
	}
}

// WriteJSON stores the full report under dir with a timestamped name and
// returns the path.
func WriteJSON(dir string, rep *analyzer.Report) (string, error) {
	ts := rep.CreatedAt.Format("2006-01-02T15-04-05Z0700")
	path := filepath.Join(dir, fmt.Sprintf("%s_range_report.json", ts))

	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func lowestVariability(rankings []analyzer.RankedResult) *analyzer.RankedResult {
	var best *analyzer.RankedResult
	for i := range rankings {
		if best == nil || rankings[i].StdRMS < best.StdRMS {
			best = &rankings[i]
		}
	}
	return best
}

// timestamp for chart filenames; separate from the report name so reruns in
// the same second do not clobber each other's charts.
func chartName(dir, stem string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", t.Format("2006-01-02T15-04-05"), stem))
}
