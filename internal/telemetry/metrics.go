package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the dashboard's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// CycleTotal counts refresh cycles by result.
	CycleTotal *prometheus.CounterVec
	// CycleDurationSeconds: load + normalize time of one cycle (5ms ~ 30s)
	CycleDurationSeconds *prometheus.HistogramVec
	// FeedLoadsTotal counts loads by feed and by where the payload came from.
	FeedLoadsTotal *prometheus.CounterVec
	SessionsActive prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CycleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testdash_refresh_cycles_total",
				Help: "Total number of dashboard refresh cycles",
			},
			[]string{"result"},
		),
		CycleDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "testdash_refresh_cycle_duration_seconds",
				Help:    "Dashboard refresh cycle latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"result"},
		),
		FeedLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testdash_feed_loads_total",
				Help: "Total number of feed loads by feed and source (cache, primary, stale, none)",
			},
			[]string{"feed", "source"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "testdash_sessions_active",
				Help: "Number of open dashboard sessions",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CycleTotal,
		m.CycleDurationSeconds,
		m.FeedLoadsTotal,
		m.SessionsActive,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFeed(feed, source string) {
	if m == nil {
		return
	}
	m.FeedLoadsTotal.WithLabelValues(feed, source).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.CycleTotal.WithLabelValues(result).Inc()
	m.CycleDurationSeconds.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) SetSessionsActive(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}
