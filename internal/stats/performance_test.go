package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePerformance_Unavailable(t *testing.T) {
	assert.False(t, NormalizePerformance(nil).IsAvailable())
	assert.False(t, NormalizePerformance(map[string]any{}).IsAvailable())
	assert.False(t, NormalizePerformance(decode(t, `{"metrics": "nope"}`)).IsAvailable())
	assert.False(t, NormalizePerformance(decode(t, `{"metrics": null}`)).IsAvailable())
}

func TestNormalizePerformance_EmptyMetricsDefaults(t *testing.T) {
	res := NormalizePerformance(decode(t, `{"metrics": {}}`))
	require.True(t, res.IsAvailable())
	assert.Equal(t, PerformanceStats{}, res.Stats)
}

func TestNormalizePerformance_Threshold(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{
			name: "threshold met",
			raw:  `{"metrics":{"http_req_duration":{"p(95)":1800,"thresholds":{"p(95)<2000":true}}}}`,
			want: true,
		},
		{
			name: "threshold missing with good latency",
			raw:  `{"metrics":{"http_req_duration":{"p(95)":1800}}}`,
			want: false,
		},
		{
			name: "other threshold only",
			raw:  `{"metrics":{"http_req_duration":{"p(95)":10,"thresholds":{"p(99)<5000":true}}}}`,
			want: false,
		},
		{
			name: "threshold failed",
			raw:  `{"metrics":{"http_req_duration":{"p(95)":2500,"thresholds":{"p(95)<2000":false}}}}`,
			want: false,
		},
		{
			name: "handleSummary ok object",
			raw:  `{"metrics":{"http_req_duration":{"values":{"p(95)":1800},"thresholds":{"p(95)<2000":{"ok":true}}}}}`,
			want: true,
		},
		{
			name: "unreadable threshold value",
			raw:  `{"metrics":{"http_req_duration":{"thresholds":{"p(95)<2000":"maybe"}}}}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NormalizePerformance(decode(t, tt.raw))
			require.True(t, res.IsAvailable())
			assert.Equal(t, tt.want, res.Stats.ThresholdPassed)
		})
	}
}

func TestNormalizePerformance_SummaryExport(t *testing.T) {
	raw := decode(t, `{
		"metrics": {
			"http_reqs": {"count": 300, "rate": 9.87654},
			"http_req_duration": {"avg": 4.5, "min": 1.2, "med": 3.9, "max": 40.123, "p(90)": 7.25, "p(95)": 8.5},
			"http_req_failed": {"passes": 3, "fails": 297, "value": 0.01},
			"checks": {"passes": 300, "fails": 0},
			"vus_max": {"value": 25, "min": 25, "max": 25},
			"iterations": {"count": 150, "rate": 4.9},
			"iteration_duration": {"avg": 1012.3456}
		}
	}`)

	res := NormalizePerformance(raw)
	require.True(t, res.IsAvailable())
	s := res.Stats

	assert.Equal(t, 300, s.TotalRequests)
	assert.Equal(t, 9.88, s.RequestRatePerSec)
	assert.Equal(t, 4.5, s.AvgDurationMs)
	assert.Equal(t, 1.2, s.MinDurationMs)
	assert.Equal(t, 3.9, s.MedDurationMs)
	assert.Equal(t, 40.12, s.MaxDurationMs)
	assert.Equal(t, 7.25, s.P90DurationMs)
	assert.Equal(t, 8.5, s.P95DurationMs)
	assert.Equal(t, 1.0, s.HTTPFailureRatePct)
	assert.Equal(t, 99.0, s.HTTPSuccessRatePct)
	assert.Equal(t, 300, s.ChecksPassed)
	assert.Equal(t, 0, s.ChecksFailed)
	assert.Equal(t, 100.0, s.ChecksPassRatePct)
	assert.False(t, s.ThresholdPassed)

	require.NotNil(t, s.MaxVirtualUsers)
	assert.Equal(t, 25, *s.MaxVirtualUsers)
	require.NotNil(t, s.Iterations)
	assert.Equal(t, 150, *s.Iterations)
	require.NotNil(t, s.AvgIterationMs)
	assert.Equal(t, 1012.35, *s.AvgIterationMs)
}

func TestNormalizePerformance_HandleSummaryLayout(t *testing.T) {
	raw := decode(t, `{
		"metrics": {
			"http_reqs": {"type": "counter", "values": {"count": 42, "rate": 2}},
			"http_req_duration": {"type": "trend", "values": {"avg": 12, "p(95)": 30}},
			"http_req_failed": {"type": "rate", "values": {"rate": 0.25, "passes": 1, "fails": 3}},
			"checks": {"type": "rate", "values": {"passes": 3, "fails": 1}}
		}
	}`)

	s := NormalizePerformance(raw).Stats
	assert.Equal(t, 42, s.TotalRequests)
	assert.Equal(t, 30.0, s.P95DurationMs)
	assert.Equal(t, 25.0, s.HTTPFailureRatePct)
	assert.Equal(t, 75.0, s.HTTPSuccessRatePct)
	assert.Equal(t, 75.0, s.ChecksPassRatePct)
	assert.Nil(t, s.MaxVirtualUsers)
	assert.Nil(t, s.Iterations)
	assert.Nil(t, s.AvgIterationMs)
}

func TestNormalizePerformance_PartialDistribution(t *testing.T) {
	raw := decode(t, `{"metrics": {"http_req_duration": {"avg": "3.333", "p(95)": "oops"}, "checks": {"passes": "x"}}}`)
	s := NormalizePerformance(raw).Stats
	assert.Equal(t, 3.33, s.AvgDurationMs)
	assert.Equal(t, 0.0, s.P95DurationMs)
	assert.Equal(t, 0.0, s.MaxDurationMs)
	assert.Equal(t, 0.0, s.ChecksPassRatePct)
	assert.Equal(t, 0.0, s.HTTPSuccessRatePct)
}

func TestExtractMetadata(t *testing.T) {
	functional := decode(t, `{"startTime": 1735725600000, "metadata": {"commit": "abc1234def"}}`)
	performance := decode(t, `{"timestamp": "2025-02-02T08:00:00Z", "commit": "ffff"}`)

	md := ExtractMetadata(functional, performance)
	require.NotNil(t, md.Timestamp)
	assert.True(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC).Equal(*md.Timestamp))
	assert.Equal(t, "abc1234def", md.CommitID)

	md = ExtractMetadata(nil, performance)
	require.NotNil(t, md.Timestamp)
	assert.True(t, time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC).Equal(*md.Timestamp))
	assert.Equal(t, "ffff", md.CommitID)

	md = ExtractMetadata(decode(t, `{"stats": {"startTime": "2025-03-01T10:00:00.000Z"}}`))
	require.NotNil(t, md.Timestamp)
	assert.True(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).Equal(*md.Timestamp))

	md = ExtractMetadata(decode(t, `{"timestamp": "yesterday"}`), nil)
	assert.Nil(t, md.Timestamp)
	assert.Empty(t, md.CommitID)

	md = ExtractMetadata(decode(t, `{"timestamp": "yesterday", "generatedAt": "2025-04-01T12:00:00Z"}`))
	require.NotNil(t, md.Timestamp)
	assert.True(t, time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC).Equal(*md.Timestamp))
}
