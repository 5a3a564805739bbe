package charts

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/portfolio/testdashboard/internal/stats"
)

// Chart IDs are fixed so rendering the same stats twice gives the same markup.
const (
	PercentileChartID = "dashboard-percentiles"
	SuiteChartID      = "dashboard-suites"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// PercentileChart draws the request duration distribution of a load-test run.
func (g *Generator) PercentileChart(p stats.PerformanceStats) (string, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Request duration (ms)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithInitializationOpts(opts.Initialization{
			ChartID: PercentileChartID,
			Height:  "220px",
			Width:   "100%",
		}),
	)

	bar.SetXAxis([]string{"min", "med", "avg", "p(90)", "p(95)", "max"}).
		AddSeries("Duration", []opts.BarData{
			{Value: p.MinDurationMs},
			{Value: p.MedDurationMs},
			{Value: p.AvgDurationMs},
			{Value: p.P90DurationMs},
			{Value: p.P95DurationMs},
			{Value: p.MaxDurationMs},
		})

	return g.renderToString(bar)
}

// SuiteChart stacks passed and failed counts per suite, in report order.
func (g *Generator) SuiteChart(suites []stats.SuiteStats) (string, error) {
	if len(suites) == 0 {
		return "", nil
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Tests per suite"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			ChartID: SuiteChartID,
			Height:  "220px",
			Width:   "100%",
		}),
	)

	names := make([]string, len(suites))
	passed := make([]opts.BarData, len(suites))
	failed := make([]opts.BarData, len(suites))
	for i, s := range suites {
		names[i] = s.Name
		passed[i] = opts.BarData{Value: s.Passed}
		failed[i] = opts.BarData{Value: s.Failed}
	}

	bar.SetXAxis(names).
		AddSeries("Passed", passed).
		AddSeries("Failed", failed).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "tests"}))

	return g.renderToString(bar)
}

// Renderer is anything that can render itself to an io.Writer.
type Renderer interface {
	Render(w io.Writer) error
}

func (g *Generator) renderToString(c Renderer) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.String(), nil
}
