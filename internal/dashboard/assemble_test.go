package dashboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio/testdashboard/internal/feeds"
)

type loaderFunc func(ctx context.Context, kind feeds.Kind) feeds.Payload

func (f loaderFunc) Load(ctx context.Context, kind feeds.Kind) feeds.Payload {
	return f(ctx, kind)
}

func fixturePayloads() map[feeds.Kind]feeds.Payload {
	return map[feeds.Kind]feeds.Payload{
		feeds.Functional: {
			"numTotalTests":  989.0,
			"numPassedTests": 989.0,
			"numFailedTests": 0.0,
			"commit":         "4f2a9c1",
		},
		feeds.Performance: {
			"metrics": map[string]any{
				"http_reqs":         map[string]any{"count": 300.0},
				"http_req_duration": map[string]any{"avg": 4.5, "p(95)": 8.5},
				"checks":            map[string]any{"passes": 300.0, "fails": 0.0},
			},
		},
	}
}

func staticLoader(payloads map[feeds.Kind]feeds.Payload) loaderFunc {
	return func(ctx context.Context, kind feeds.Kind) feeds.Payload {
		return payloads[kind]
	}
}

func TestAssemble_BothFeeds(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m, err := Assemble(context.Background(), staticLoader(fixturePayloads()), now, nil)
	require.NoError(t, err)

	require.True(t, m.Functional.IsAvailable())
	assert.Equal(t, 989, m.Functional.Stats.TotalTests)
	assert.Equal(t, 989, m.Functional.Stats.Passed)
	assert.Equal(t, 100.0, m.Functional.Stats.PassRatePct)

	require.True(t, m.Performance.IsAvailable())
	assert.Equal(t, 300, m.Performance.Stats.TotalRequests)
	assert.Equal(t, 8.5, m.Performance.Stats.P95DurationMs)
	assert.Equal(t, 100.0, m.Performance.Stats.ChecksPassRatePct)

	assert.Equal(t, "4f2a9c1", m.Metadata.CommitID)
	assert.Equal(t, now, m.LoadedAt)
}

func TestAssemble_OneFeedFails(t *testing.T) {
	tests := []struct {
		name    string
		loader  loaderFunc
		wantErr bool
	}{
		{
			name: "performance unavailable",
			loader: func(ctx context.Context, kind feeds.Kind) feeds.Payload {
				if kind == feeds.Performance {
					return nil
				}
				return fixturePayloads()[kind]
			},
		},
		{
			name: "performance loader panics",
			loader: func(ctx context.Context, kind feeds.Kind) feeds.Payload {
				if kind == feeds.Performance {
					panic("gist client exploded")
				}
				return fixturePayloads()[kind]
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Assemble(context.Background(), tt.loader, time.Now(), nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "performance feed")
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, m)
			assert.True(t, m.Functional.IsAvailable())
			assert.Equal(t, 989, m.Functional.Stats.Passed)
			assert.False(t, m.Performance.IsAvailable())
		})
	}
}

func TestAssemble_LoadsFeedsConcurrently(t *testing.T) {
	perfStarted := make(chan struct{})
	var waited atomic.Bool

	loader := loaderFunc(func(ctx context.Context, kind feeds.Kind) feeds.Payload {
		switch kind {
		case feeds.Functional:
			select {
			case <-perfStarted:
				waited.Store(true)
			case <-time.After(2 * time.Second):
			}
		case feeds.Performance:
			close(perfStarted)
		}
		return fixturePayloads()[kind]
	})

	m, err := Assemble(context.Background(), loader, time.Now(), nil)
	require.NoError(t, err)
	assert.True(t, waited.Load(), "functional load should overlap the performance load")
	assert.True(t, m.Functional.IsAvailable())
	assert.True(t, m.Performance.IsAvailable())
}

func TestAssemble_BothUnavailable(t *testing.T) {
	m, err := Assemble(context.Background(), staticLoader(nil), time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, m.Functional.IsAvailable())
	assert.False(t, m.Performance.IsAvailable())
	assert.Nil(t, m.Metadata.Timestamp)
}

func TestParsePanel(t *testing.T) {
	p, err := ParsePanel("suites")
	require.NoError(t, err)
	assert.Equal(t, PanelSuites, p)

	_, err = ParsePanel("gallery")
	assert.ErrorIs(t, err, ErrUnknownPanel)
}
