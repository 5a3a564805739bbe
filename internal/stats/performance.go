package stats

import (
	"github.com/spf13/cast"
)

// ThresholdKey names the latency threshold the dashboard reports on: the 95th
// percentile request duration must stay under 2000ms.
const ThresholdKey = "p(95)<2000"

// PerformanceStats is the display-ready summary of a k6 load-test run.
// Optional fields are nil when the run did not report the metric.
type PerformanceStats struct {
	TotalRequests      int      `json:"totalRequests"`
	AvgDurationMs      float64  `json:"avgDurationMs"`
	P90DurationMs      float64  `json:"p90DurationMs"`
	P95DurationMs      float64  `json:"p95DurationMs"`
	MinDurationMs      float64  `json:"minDurationMs"`
	MedDurationMs      float64  `json:"medDurationMs"`
	MaxDurationMs      float64  `json:"maxDurationMs"`
	RequestRatePerSec  float64  `json:"requestRatePerSec"`
	HTTPSuccessRatePct float64  `json:"httpSuccessRatePct"`
	HTTPFailureRatePct float64  `json:"httpFailureRatePct"`
	ChecksPassed       int      `json:"checksPassed"`
	ChecksFailed       int      `json:"checksFailed"`
	ChecksPassRatePct  float64  `json:"checksPassRatePct"`
	ThresholdPassed    bool     `json:"thresholdPassed"`
	MaxVirtualUsers    *int     `json:"maxVirtualUsers,omitempty"`
	Iterations         *int     `json:"iterations,omitempty"`
	AvgIterationMs     *float64 `json:"avgIterationMs,omitempty"`
}

// NormalizePerformance converts a raw k6 summary into PerformanceStats.
// Both the --summary-export layout and the handleSummary layout (values under
// "values", thresholds as {"ok": bool}) are accepted. A summary without a
// "metrics" object is unavailable.
func NormalizePerformance(raw map[string]any) Result[PerformanceStats] {
	if raw == nil {
		return Unavailable[PerformanceStats]()
	}
	metrics, ok := asMap(raw["metrics"])
	if !ok {
		return Unavailable[PerformanceStats]()
	}

	reqs := metric(metrics, "http_reqs")
	dur := metric(metrics, "http_req_duration")
	checks := metric(metrics, "checks")

	s := PerformanceStats{
		TotalRequests:     countOf(reqs, "count"),
		RequestRatePerSec: round2(numberOf(reqs, "rate")),
		AvgDurationMs:     round2(numberOf(dur, "avg")),
		P90DurationMs:     round2(numberOf(dur, "p(90)")),
		P95DurationMs:     round2(numberOf(dur, "p(95)")),
		MinDurationMs:     round2(numberOf(dur, "min")),
		MedDurationMs:     round2(numberOf(dur, "med")),
		MaxDurationMs:     round2(numberOf(dur, "max")),
		ChecksPassed:      countOf(checks, "passes"),
		ChecksFailed:      countOf(checks, "fails"),
		ThresholdPassed:   thresholdPassed(dur, ThresholdKey),
	}
	s.ChecksPassRatePct = percent(float64(s.ChecksPassed), float64(s.ChecksPassed+s.ChecksFailed), 0)

	if failed := metric(metrics, "http_req_failed"); failed != nil {
		s.HTTPFailureRatePct = round2(clampPct(numberOf(failed, "value", "rate") * 100))
		s.HTTPSuccessRatePct = round2(100 - s.HTTPFailureRatePct)
	}

	if vus := metric(metrics, "vus_max"); vus != nil {
		n := countOf(vus, "value", "max")
		s.MaxVirtualUsers = &n
	}
	if it := metric(metrics, "iterations"); it != nil {
		n := countOf(it, "count")
		s.Iterations = &n
	}
	if itd := metric(metrics, "iteration_duration"); itd != nil {
		avg := round2(numberOf(itd, "avg"))
		s.AvgIterationMs = &avg
	}

	return Available(s)
}

// metric flattens one k6 metric so fields read the same regardless of
// whether they sit on the metric itself or under "values". It returns nil
// when the metric is absent.
func metric(metrics map[string]any, name string) map[string]any {
	m, ok := asMap(metrics[name])
	if !ok {
		return nil
	}
	values, ok := asMap(m["values"])
	if !ok {
		return m
	}
	flat := make(map[string]any, len(m)+len(values))
	for k, v := range m {
		flat[k] = v
	}
	for k, v := range values {
		flat[k] = v
	}
	return flat
}

// thresholdPassed treats a missing or unreadable threshold as not met.
func thresholdPassed(m map[string]any, key string) bool {
	thresholds, ok := asMap(m["thresholds"])
	if !ok {
		return false
	}
	switch v := thresholds[key].(type) {
	case nil:
		return false
	case map[string]any:
		return cast.ToBool(v["ok"])
	default:
		return cast.ToBool(v)
	}
}
