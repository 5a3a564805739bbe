package feeds

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStrategy struct {
	calls   atomic.Int32
	payload Payload
	err     error
}

func (s *countingStrategy) Fetch(ctx context.Context) (Payload, error) {
	s.calls.Add(1)
	return s.payload, s.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObserveFeed(feed, source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, feed+":"+source)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLoader(strategies map[Kind]Strategy) (*Loader, *MemoryCache, *fakeClock, *recordingObserver) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache()
	cache.now = clock.Now
	obs := &recordingObserver{}
	l := NewLoader(cache, strategies, WithClock(clock.Now), WithObserver(obs), WithMaxAge(10*time.Second))
	return l, cache, clock, obs
}

func TestLoader_PrimaryFetchPopulatesCache(t *testing.T) {
	primary := &countingStrategy{payload: Payload{"numTotalTests": 3.0}}
	l, cache, _, obs := newTestLoader(map[Kind]Strategy{Functional: primary})

	p := l.Load(context.Background(), Functional)
	assert.Equal(t, Payload{"numTotalTests": 3.0}, p)

	e, ok := cache.Get(Functional)
	require.True(t, ok)
	assert.Equal(t, p, e.Payload)
	assert.Equal(t, []string{"functional:primary"}, obs.events)
}

func TestLoader_FreshCacheHitSkipsFetch(t *testing.T) {
	primary := &countingStrategy{payload: Payload{"v": 2.0}}
	l, cache, clock, obs := newTestLoader(map[Kind]Strategy{Performance: primary})
	cache.Set(Performance, Payload{"v": 1.0})

	clock.Advance(5 * time.Second)
	assert.Equal(t, Payload{"v": 1.0}, l.Load(context.Background(), Performance))
	assert.Equal(t, int32(0), primary.calls.Load())

	clock.Advance(6 * time.Second)
	assert.Equal(t, Payload{"v": 2.0}, l.Load(context.Background(), Performance))
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, []string{"performance:cache", "performance:primary"}, obs.events)
}

func TestLoader_PinnedEntryIsAlwaysFresh(t *testing.T) {
	primary := &countingStrategy{payload: Payload{"v": 2.0}}
	l, cache, clock, _ := newTestLoader(map[Kind]Strategy{Functional: primary})
	cache.Preload(Functional, Payload{"v": 1.0})

	clock.Advance(24 * time.Hour)
	assert.Equal(t, Payload{"v": 1.0}, l.Load(context.Background(), Functional))
	assert.Equal(t, int32(0), primary.calls.Load())
}

func TestLoader_StaleSnapshotOnFailure(t *testing.T) {
	primary := &countingStrategy{err: errors.New("gist unreachable")}
	l, cache, clock, obs := newTestLoader(map[Kind]Strategy{Performance: primary})
	cache.Set(Performance, Payload{"metrics": map[string]any{}})

	clock.Advance(time.Minute)
	p := l.Load(context.Background(), Performance)
	assert.Equal(t, Payload{"metrics": map[string]any{}}, p)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, []string{"performance:stale"}, obs.events)
}

func TestLoader_GivesUpWithNil(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
	}{
		{name: "error", strategy: &countingStrategy{err: errors.New("boom")}},
		{name: "nil document", strategy: &countingStrategy{}},
		{name: "panic", strategy: StrategyFunc(func(ctx context.Context) (Payload, error) { panic("script exploded") })},
		{name: "missing strategy", strategy: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategies := map[Kind]Strategy{}
			if tt.strategy != nil {
				strategies[Functional] = tt.strategy
			}
			l, cache, _, obs := newTestLoader(strategies)

			assert.Nil(t, l.Load(context.Background(), Functional))
			_, ok := cache.Get(Functional)
			assert.False(t, ok)
			assert.Equal(t, []string{"functional:none"}, obs.events)
		})
	}
}

func TestLoader_RefreshBypassesFreshCache(t *testing.T) {
	primary := &countingStrategy{payload: Payload{"v": 2.0}}
	l, cache, _, _ := newTestLoader(map[Kind]Strategy{Functional: primary})
	cache.Preload(Functional, Payload{"v": 1.0})

	assert.Equal(t, Payload{"v": 2.0}, l.Refresh(context.Background(), Functional))
	assert.Equal(t, int32(1), primary.calls.Load())

	e, ok := cache.Get(Functional)
	require.True(t, ok)
	assert.False(t, e.Pinned)
}

func TestMemoryCache_IgnoresNil(t *testing.T) {
	c := NewMemoryCache()
	c.Set(Functional, nil)
	_, ok := c.Get(Functional)
	assert.False(t, ok)
}
