package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/portfolio/testdashboard/internal/feeds"
	"github.com/portfolio/testdashboard/internal/stats"
)

// Loader resolves one feed to its raw payload, or nil when it is unavailable.
type Loader interface {
	Load(ctx context.Context, kind feeds.Kind) feeds.Payload
}

// Assemble runs one refresh cycle: both feeds are loaded and normalized
// concurrently, then merged with the run metadata. A feed that panics is
// reported as unavailable and its failure is returned alongside the model;
// the model is never nil.
func Assemble(ctx context.Context, loader Loader, now time.Time, logger *zap.SugaredLogger) (*ViewModel, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var (
		g           multierror.Group
		functional  = stats.Unavailable[stats.FunctionalStats]()
		performance = stats.Unavailable[stats.PerformanceStats]()
		rawFunc     feeds.Payload
		rawPerf     feeds.Payload
	)

	g.Go(guarded(feeds.Functional, func() {
		raw := loader.Load(ctx, feeds.Functional)
		functional = stats.NormalizeFunctional(raw)
		rawFunc = raw
	}))
	g.Go(guarded(feeds.Performance, func() {
		raw := loader.Load(ctx, feeds.Performance)
		performance = stats.NormalizePerformance(raw)
		rawPerf = raw
	}))

	err := g.Wait().ErrorOrNil()
	if err != nil {
		logger.Errorw("refresh cycle recovered from feed failure", "error", err)
	}

	return &ViewModel{
		Functional:  functional,
		Performance: performance,
		Metadata:    stats.ExtractMetadata(rawFunc, rawPerf),
		LoadedAt:    now,
	}, err
}

func guarded(kind feeds.Kind, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s feed: %v", kind, r)
			}
		}()
		fn()
		return nil
	}
}
