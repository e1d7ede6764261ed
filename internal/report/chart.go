package report

import (
	"fmt"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/relabs-tech/range_analyzer/internal/analyzer"
	"github.com/relabs-tech/range_analyzer/internal/fit"
	"github.com/relabs-tech/range_analyzer/internal/sample"
)

// RenderCharts writes the scenario comparison bar chart and one
// measured-vs-fitted curve chart per sensor that has a dense fit. Returns
// the paths written.
func RenderCharts(dir string, rep *analyzer.Report, tables []sample.Table) ([]string, error) {
	var paths []string

	p := chartName(dir, "scenario_rms", rep.CreatedAt)
	if err := RenderScenarioChart(p, rep.Rankings); err != nil {
		return paths, err
	}
	paths = append(paths, p)

	byName := make(map[string]sample.Table, len(tables))
	for _, t := range tables {
		byName[t.Sensor] = t
	}
	for _, s := range rep.Sensors {
		if s.DenseFit == nil {
			continue
		}
		t, ok := byName[s.Sensor]
		if !ok || t.Len() < 2 {
			continue
		}
		p := chartName(dir, "curve_"+sanitize(s.Sensor), rep.CreatedAt)
		if err := RenderSensorChart(p, t, *s.DenseFit); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// RenderScenarioChart writes a bar chart of mean RMS error per scenario, in
// ranked order.
func RenderScenarioChart(path string, rankings []analyzer.RankedResult) error {
	if len(rankings) == 0 {
		return fmt.Errorf("no rankings to chart")
	}

	bars := make([]chart.Value, 0, len(rankings))
	for _, r := range rankings {
		bars = append(bars, chart.Value{
			Value: r.MeanRMS * 1000,
			Label: r.Scenario,
			Style: chart.Style{
				FillColor:   barColor(r.Improvement),
				StrokeColor: chart.ColorBlack,
				StrokeWidth: 1,
			},
		})
	}

	graph := chart.BarChart{
		Title:      "Calibration accuracy by range scenario",
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Height:     512,
		BarWidth:   60,
		YAxis: chart.YAxis{
			Name: "RMS error (um)",
		},
		Bars: bars,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	return graph.Render(chart.PNG, f)
}

// RenderSensorChart writes the measured sweep and the fitted curve for one
// sensor.
func RenderSensorChart(path string, t sample.Table, m fit.Model) error {
	if t.Len() < 2 {
		return fmt.Errorf("sensor %s: sweep too short to chart", t.Sensor)
	}

	// Dense fitted curve over the measured span.
	const steps = 200
	lo := t.Distances[0]
	hi := t.Distances[t.Len()-1]
	fx := make([]float64, steps+1)
	fy := make([]float64, steps+1)
	for i := 0; i <= steps; i++ {
		x := lo + (hi-lo)*float64(i)/steps
		fx[i] = x
		fy[i] = m.Reading(x)
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s — measured vs fitted", t.Sensor),
		Height: 512,
		XAxis:  chart.XAxis{Name: "Distance (mm)"},
		YAxis:  chart.YAxis{Name: "Reading (counts)"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Measured",
				XValues: t.Distances,
				YValues: t.Readings,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    3,
					DotColor:    chart.ColorBlue,
				},
			},
			chart.ContinuousSeries{
				Name:    "Fitted",
				XValues: fx,
				YValues: fy,
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					StrokeWidth: 2,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	return graph.Render(chart.PNG, f)
}

// barColor codes the improvement column: red worse than reference, green
// clearly better, orange in between.
func barColor(improvement float64) drawing.Color {
	switch {
	case improvement < 0:
		return chart.ColorRed
	case improvement > 5:
		return chart.ColorGreen
	default:
		return chart.ColorOrange
	}
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
