package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/portfolio/testdashboard/internal/config"
	"github.com/portfolio/testdashboard/internal/dashboard"
	"github.com/portfolio/testdashboard/internal/feeds"
	"github.com/portfolio/testdashboard/internal/logging"
	"github.com/portfolio/testdashboard/internal/server"
	"github.com/portfolio/testdashboard/internal/sessions"
	"github.com/portfolio/testdashboard/internal/telemetry"
	"github.com/portfolio/testdashboard/internal/view"
	"github.com/portfolio/testdashboard/internal/worker"
)

func main() {
	configFile := flag.String("config", "", "config file (default: config/config.<env>.yml if present)")
	flag.Parse()

	cfg, err := config.Load(config.ReadConfigOption{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := telemetry.New()

	cache := feeds.NewMemoryCache()
	if path := cfg.Feeds.Functional.Preload; path != "" {
		if err := feeds.PreloadFile(cache, feeds.Functional, path, cfg.Feeds.Functional.Global); err != nil {
			logger.Warnw("functional preload skipped", "error", err)
		} else {
			logger.Infow("functional snapshot preloaded", "path", path)
		}
	}

	strategies, err := buildStrategies(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to configure feed sources", "error", err)
	}

	loader := feeds.NewLoader(cache, strategies,
		feeds.WithMaxAge(cfg.Feeds.CacheMaxAge),
		feeds.WithLogger(logger.Named("feeds")),
		feeds.WithObserver(metrics),
	)

	renderer, err := view.NewRenderer()
	if err != nil {
		logger.Fatalw("failed to load templates", "error", err)
	}

	mgr := sessions.NewManager(loader, renderer,
		sessions.WithIdleTTL(cfg.Dashboard.SessionIdleTTL),
		sessions.WithObserver(metrics),
		sessions.WithLogger(logger.Named("sessions")),
		sessions.WithControllerOptions(dashboard.WithObserver(metrics)),
	)
	go mgr.Run(ctx)

	warmer := worker.NewWarmer(loader, cfg.Feeds.WarmSchedule, logger.Named("warmer"))
	if err := warmer.Start(ctx); err != nil {
		logger.Fatalw("failed to start cache warmer", "error", err)
	}

	srv := server.NewServer(mgr, loader, renderer, cfg.Server.WebRoot,
		server.WithMetrics(metrics),
		server.WithLogger(logger.Named("http")),
		server.WithAppEnv(cfg.AppEnv),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Infow("received signal, shutting down", "signal", sig.String())

		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("graceful shutdown failed", "error", err)
		}
	}()

	logger.Infow("starting test results dashboard", "address", cfg.Server.Address, "env", cfg.AppEnv)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalw("server failed", "error", err)
	}

	warmer.Stop()
	mgr.CloseAll()
	logger.Infow("server stopped")
}

// buildStrategies picks one source per feed. The functional feed always comes
// from the data script; the performance feed comes from S3 when a bucket is
// configured, else from the HTTP URL, else it stays unavailable.
func buildStrategies(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (map[feeds.Kind]feeds.Strategy, error) {
	strategies := map[feeds.Kind]feeds.Strategy{
		feeds.Functional: feeds.NewScriptStrategy(
			cfg.Feeds.Functional.Script,
			cfg.Server.WebRoot,
			cfg.Feeds.Functional.Global,
			cfg.Feeds.Timeout,
		),
	}

	perf := cfg.Feeds.Performance
	switch {
	case cfg.UsesS3():
		client, err := feeds.NewS3Client(ctx, perf.S3.Region)
		if err != nil {
			return nil, err
		}
		strategies[feeds.Performance] = feeds.NewS3Strategy(client, perf.S3.Bucket, perf.S3.Key, "metrics")
		logger.Infow("performance feed from S3", "bucket", perf.S3.Bucket, "key", perf.S3.Key)
	case perf.URL != "":
		strategies[feeds.Performance] = feeds.NewHTTPStrategy(perf.URL, cfg.Feeds.Timeout,
			feeds.WithToken(perf.Token),
			feeds.WithRequiredKey("metrics"),
		)
		logger.Infow("performance feed from HTTP", "url", perf.URL)
	default:
		logger.Warnw("no performance feed source configured; the panel will show as unavailable")
	}

	return strategies, nil
}
