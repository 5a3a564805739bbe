package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/portfolio/testdashboard/internal/charts"
	"github.com/portfolio/testdashboard/internal/dashboard"
	"github.com/portfolio/testdashboard/internal/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	functionalHint  = "Run the test suite locally to regenerate the report, or wait for the next CI run to publish it."
	performanceHint = "Load-test results are published by the CI performance job. Check back after its next run."
)

// Renderer projects dashboard frames to HTML. It holds no state between
// calls: the same frame always renders to the same bytes.
type Renderer struct {
	templates map[string]*template.Template
	charts    *charts.Generator
}

func NewRenderer() (*Renderer, error) {
	templates := make(map[string]*template.Template)

	// Pages render inside the layout; fragments are swapped into a page.
	pages := []string{"index.html"}
	fragments := []string{"dashboard.html"}

	for _, page := range pages {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}
		templates[page] = t
	}
	for _, frag := range fragments {
		t, err := template.ParseFS(templateFS, "templates/"+frag)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", frag, err)
		}
		templates[frag] = t
	}

	return &Renderer{
		templates: templates,
		charts:    charts.NewGenerator(),
	}, nil
}

// PageData is what the host page shell shows around the dashboard opener.
type PageData struct {
	Title string
	Env   string
}

func (r *Renderer) RenderPage(w io.Writer, data PageData) error {
	return r.templates["index.html"].ExecuteTemplate(w, "layout", data)
}

// Render writes the dashboard dialog fragment for one session's frame. A
// closed frame renders the empty dialog slot.
func (r *Renderer) Render(w io.Writer, sessionID string, f dashboard.Frame) error {
	data, err := r.dialogData(sessionID, f)
	if err != nil {
		return err
	}
	return r.templates["dashboard.html"].ExecuteTemplate(w, "dashboard", data)
}

type tile struct {
	Label string
	Value string
}

type functionalPanel struct {
	Tiles    []tile
	PassRate string
	Fill     string
	Band     Band
	Suites   []suiteRow
	Chart    template.HTML
}

type suiteRow struct {
	Name     string
	Status   string
	Passed   int
	Failed   int
	Total    int
	Duration string
}

type performancePanel struct {
	Tiles           []tile
	ThresholdLabel  string
	ThresholdPassed bool
	Details         []tile
	Chart           template.HTML
}

type dialogData struct {
	SessionID   string
	Open        bool
	Loading     bool
	Pending     bool
	View        dashboard.ViewState
	Functional  *functionalPanel
	Performance *performancePanel
	Hints       struct{ Functional, Performance string }
	RunAt       string
	CommitID    string
	LoadedAt    string
}

func (r *Renderer) dialogData(sessionID string, f dashboard.Frame) (dialogData, error) {
	d := dialogData{
		SessionID: sessionID,
		Open:      f.State != dashboard.Closed,
		Loading:   f.State == dashboard.Loading,
		View:      f.View,
	}
	d.Hints.Functional = functionalHint
	d.Hints.Performance = performanceHint

	if !d.Open {
		return d, nil
	}
	m := f.Model
	if m == nil {
		d.Pending = true
		return d, nil
	}

	if m.Functional.IsAvailable() {
		p, err := r.functionalPanel(m.Functional.Stats, f.View.SuitesExpanded)
		if err != nil {
			return d, err
		}
		d.Functional = p
	}
	if m.Performance.IsAvailable() {
		p, err := r.performancePanel(m.Performance.Stats, f.View.PerformanceExpanded)
		if err != nil {
			return d, err
		}
		d.Performance = p
	}

	if m.Metadata.Timestamp != nil {
		d.RunAt = m.Metadata.Timestamp.UTC().Format(time.RFC3339)
	}
	d.CommitID = m.Metadata.CommitID
	if !m.LoadedAt.IsZero() {
		d.LoadedAt = m.LoadedAt.UTC().Format("15:04:05 UTC")
	}
	return d, nil
}

func (r *Renderer) functionalPanel(s stats.FunctionalStats, expanded bool) (*functionalPanel, error) {
	p := &functionalPanel{
		Tiles: []tile{
			{Label: "Tests passed", Value: fmt.Sprintf("%d/%d", s.Passed, s.TotalTests)},
			{Label: "Failed", Value: strconv.Itoa(s.Failed)},
			{Label: "Suites", Value: strconv.Itoa(s.SuiteCount)},
			{Label: "Pass rate", Value: formatPct(s.PassRatePct)},
		},
		PassRate: formatPct(s.PassRatePct),
		Fill:     fill(s.PassRatePct),
		Band:     BandFor(s.PassRatePct),
	}
	if s.AvgDurationMs > 0 {
		p.Tiles = append(p.Tiles, tile{Label: "Avg duration", Value: formatMs(s.AvgDurationMs)})
	}
	if !expanded {
		return p, nil
	}

	for _, suite := range s.Suites {
		p.Suites = append(p.Suites, suiteRow{
			Name:     suite.Name,
			Status:   suite.Status,
			Passed:   suite.Passed,
			Failed:   suite.Failed,
			Total:    suite.Total,
			Duration: formatMs(suite.DurationMs),
		})
	}
	chart, err := r.charts.SuiteChart(s.Suites)
	if err != nil {
		return nil, err
	}
	p.Chart = template.HTML(chart)
	return p, nil
}

func (r *Renderer) performancePanel(s stats.PerformanceStats, expanded bool) (*performancePanel, error) {
	p := &performancePanel{
		Tiles: []tile{
			{Label: "Requests", Value: strconv.Itoa(s.TotalRequests)},
			{Label: "p(95) duration", Value: formatMs(s.P95DurationMs)},
			{Label: "Checks passing", Value: formatPct(s.ChecksPassRatePct)},
			{Label: "HTTP success", Value: formatPct(s.HTTPSuccessRatePct)},
		},
		ThresholdLabel:  stats.ThresholdKey,
		ThresholdPassed: s.ThresholdPassed,
	}
	if !expanded {
		return p, nil
	}

	p.Details = []tile{
		{Label: "avg", Value: formatMs(s.AvgDurationMs)},
		{Label: "min", Value: formatMs(s.MinDurationMs)},
		{Label: "med", Value: formatMs(s.MedDurationMs)},
		{Label: "p(90)", Value: formatMs(s.P90DurationMs)},
		{Label: "p(95)", Value: formatMs(s.P95DurationMs)},
		{Label: "max", Value: formatMs(s.MaxDurationMs)},
		{Label: "Request rate", Value: formatRate(s.RequestRatePerSec)},
		{Label: "HTTP failures", Value: formatPct(s.HTTPFailureRatePct)},
		{Label: "Checks", Value: fmt.Sprintf("%d passed, %d failed", s.ChecksPassed, s.ChecksFailed)},
	}
	if s.MaxVirtualUsers != nil {
		p.Details = append(p.Details, tile{Label: "Max VUs", Value: strconv.Itoa(*s.MaxVirtualUsers)})
	}
	if s.Iterations != nil {
		p.Details = append(p.Details, tile{Label: "Iterations", Value: strconv.Itoa(*s.Iterations)})
	}
	if s.AvgIterationMs != nil {
		p.Details = append(p.Details, tile{Label: "Avg iteration", Value: formatMs(*s.AvgIterationMs)})
	}

	chart, err := r.charts.PercentileChart(s)
	if err != nil {
		return nil, err
	}
	p.Chart = template.HTML(chart)
	return p, nil
}
