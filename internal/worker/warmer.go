package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/portfolio/testdashboard/internal/feeds"
)

// Refresher forces a fetch of one feed, bypassing fresh cache entries.
type Refresher interface {
	Refresh(ctx context.Context, kind feeds.Kind) feeds.Payload
}

// Warmer refreshes the feed cache on a cron schedule, so a dashboard opened
// between CI runs finds a recent snapshot instead of waiting on the sources.
type Warmer struct {
	cron      *cron.Cron
	refresher Refresher
	schedule  string
	logger    *zap.SugaredLogger
}

func NewWarmer(r Refresher, schedule string, logger *zap.SugaredLogger) *Warmer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cl := cronLogger{logger}
	return &Warmer{
		cron:      cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		refresher: r,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start registers the warm job and starts the scheduler. An empty schedule
// disables warming.
func (w *Warmer) Start(ctx context.Context) error {
	if w.schedule == "" {
		w.logger.Infow("cache warmer disabled")
		return nil
	}

	if _, err := w.cron.AddFunc(w.schedule, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to add warm job %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.logger.Infow("cache warmer started", "schedule", w.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running warm to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Infow("cache warmer stopped")
}

// RunOnce refreshes every feed and reports which ones produced a payload.
func (w *Warmer) RunOnce(ctx context.Context) map[feeds.Kind]bool {
	loaded := make(map[feeds.Kind]bool, len(feeds.Kinds))
	for _, kind := range feeds.Kinds {
		if ctx.Err() != nil {
			break
		}
		loaded[kind] = w.refresher.Refresh(ctx, kind) != nil
	}
	w.logger.Debugw("cache warm finished", "functional", loaded[feeds.Functional], "performance", loaded[feeds.Performance])
	return loaded
}

// cronLogger routes the scheduler's own messages through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
