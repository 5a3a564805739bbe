package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAge is how long a fetched snapshot is served without refetching.
// It is shorter than the dashboard poll interval so every poll fetches, while
// dashboards refreshing in the same window share one fetch.
const DefaultMaxAge = 15 * time.Second

// Source records where a Load result came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourcePrimary Source = "primary"
	SourceStale   Source = "stale"
	SourceNone    Source = "none"
)

// Observer is told the outcome of every load.
type Observer interface {
	ObserveFeed(feed, source string)
}

// Loader resolves each feed through a fixed chain: fresh cache entry,
// the feed's strategy, any older cache entry, nothing.
type Loader struct {
	cache      Cache
	strategies map[Kind]Strategy
	maxAge     time.Duration
	logger     *zap.SugaredLogger
	observer   Observer
	now        func() time.Time
}

type LoaderOption func(*Loader)

func WithMaxAge(d time.Duration) LoaderOption {
	return func(l *Loader) { l.maxAge = d }
}

func WithLogger(logger *zap.SugaredLogger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithObserver(o Observer) LoaderOption {
	return func(l *Loader) { l.observer = o }
}

func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

func NewLoader(cache Cache, strategies map[Kind]Strategy, opts ...LoaderOption) *Loader {
	l := &Loader{
		cache:      cache,
		strategies: strategies,
		maxAge:     DefaultMaxAge,
		logger:     zap.NewNop().Sugar(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the feed's payload, or nil when no source has it. It never
// fails; callers normalize nil into the unavailable state.
func (l *Loader) Load(ctx context.Context, kind Kind) Payload {
	return l.load(ctx, kind, true)
}

// Refresh is Load without the fresh-cache shortcut.
func (l *Loader) Refresh(ctx context.Context, kind Kind) Payload {
	return l.load(ctx, kind, false)
}

func (l *Loader) load(ctx context.Context, kind Kind, useCache bool) Payload {
	if useCache {
		if e, ok := l.cache.Get(kind); ok && l.fresh(e) {
			l.observe(kind, SourceCache)
			return e.Payload
		}
	}

	p, err := l.fetch(ctx, kind)
	if err == nil {
		l.cache.Set(kind, p)
		l.observe(kind, SourcePrimary)
		return p
	}
	l.logger.Warnw("feed fetch failed", "feed", kind, "error", err)

	if e, ok := l.cache.Get(kind); ok {
		l.logger.Infow("serving stale feed snapshot", "feed", kind, "age", l.now().Sub(e.StoredAt).Round(time.Second))
		l.observe(kind, SourceStale)
		return e.Payload
	}

	l.observe(kind, SourceNone)
	return nil
}

func (l *Loader) fresh(e Entry) bool {
	return e.Pinned || l.now().Sub(e.StoredAt) < l.maxAge
}

func (l *Loader) fetch(ctx context.Context, kind Kind) (p Payload, err error) {
	s, ok := l.strategies[kind]
	if !ok || s == nil {
		return nil, fmt.Errorf("no source configured for %s feed", kind)
	}

	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%s feed source panicked: %v", kind, r)
		}
	}()

	p, err = s.Fetch(ctx)
	if err == nil && p == nil {
		err = errors.New("source returned no document")
	}
	return p, err
}

func (l *Loader) observe(kind Kind, src Source) {
	if l.observer != nil {
		l.observer.ObserveFeed(string(kind), string(src))
	}
}
