package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docvista/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/indexer/index"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/ingestion/watcher"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/cache"
	searchhandler "github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docvista/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docvista/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docvista/pkg/resilience"
)

const (
	refreshTimeout     = 5 * time.Minute
	analyticsBatchSize = 100
	analyticsFlush     = 2 * time.Second
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Index the document folder and serve the HTTP API. Optional backends
(Redis result cache, Kafka event streams, Postgres analytics history) are
enabled in the config file or through DV_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	slog.Info("starting docvista", "port", cfg.Server.Port, "dir", cfg.Documents.Dir)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker(2 * time.Second)
	var background errgroup.Group

	queryCache, closeCache, err := setupCache(ctx, cfg, m, checker)
	if err != nil {
		return err
	}
	defer closeCache()

	an := setupAnalytics(ctx, cfg, m, checker, &background)
	defer func() {
		stop()
		an.close()
	}()

	var engineOpts []indexer.Option
	if queryCache != nil {
		engineOpts = append(engineOpts, indexer.OnSwap(queryCache.OnSwap))
	}
	if an.tracker != nil {
		engineOpts = append(engineOpts, indexer.OnRefresh(trackRefresh(an.tracker)))
	}
	engine, loader := newEngine(cfg, m, true, engineOpts...)
	if _, err := engine.Refresh(ctx); err != nil {
		slog.Warn("initial indexing failed, serving an empty index", "dir", cfg.Documents.Dir, "error", err)
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := engine.Current()
		if !engine.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot built yet"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", snap.Generation, snap.Len()),
		}
	})

	var refreshPub ingesthandler.RefreshPublisher
	var pub *publisher.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusRefresh)
		defer producer.Close()
		breaker := resilience.NewCircuitBreaker("refresh-publisher", breakerConfig(m, 3, 30*time.Second))
		pub = publisher.New(producer, breaker)
		checker.RegisterOptional("refresh-publisher", health.PingCheck(breaker.Check))
		refreshPub = pub

		rc := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusRefresh, kafka.ReplicaGroup(cfg.Kafka.ConsumerGroup, "refresh"), consumer.HandleRefresh(engine)))
		background.Go(func() error {
			if err := rc.Start(ctx); err != nil {
				slog.Error("refresh consumer stopped", "error", err)
			}
			return nil
		})
	}

	var folderWatcher *watcher.Watcher
	if cfg.Documents.Watch {
		trigger := func(ctx context.Context, paths []string) error {
			if pub != nil {
				if err := pub.PublishRefresh(ctx, "watch", loaderDir(engine), paths); err == nil {
					return nil
				}
			}
			return resilience.WithTimeout(ctx, refreshTimeout, "watch-refresh", func(ctx context.Context) error {
				_, err := engine.Refresh(ctx)
				return err
			})
		}
		folderWatcher, err = watcher.New(watcher.Options{
			Dir:       loader.Dir(),
			Recursive: cfg.Documents.Recursive,
			Debounce:  cfg.Documents.Debounce,
			Match:     loader.Matches,
		}, trigger)
		if err != nil {
			slog.Warn("folder watcher disabled", "dir", loader.Dir(), "error", err)
		} else {
			background.Go(func() error { return folderWatcher.Run(ctx) })
		}
	}
	onFolder := func(dir string, recursive bool) {
		if folderWatcher == nil {
			return
		}
		if err := folderWatcher.Retarget(dir, recursive); err != nil {
			slog.Warn("folder watcher not moved", "dir", dir, "error", err)
		}
	}

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, time.Minute)
		background.Go(func() error {
			limiter.Cleanup(ctx, 5*time.Minute)
			return nil
		})
	}

	handlers := router.Handlers{
		Search: searchhandler.New(engine, searchhandler.Options{
			DefaultMethod: parser.ParseMethod(cfg.Search.DefaultMethod),
			DefaultLimit:  cfg.Search.DefaultLimit,
			MaxResults:    cfg.Search.MaxResults,
			KeywordCount:  cfg.Search.KeywordCount,
			Tracing:       cfg.Tracing.Enabled,
			Cache:         queryCache,
			Tracker:       an.tracker,
			Metrics:       m,
		}),
		Ingestion: ingesthandler.New(engine, loader, refreshPub, onFolder),
		Health:    checker,
	}
	if an.aggregator != nil {
		handlers.Analytics = analytics.NewHandler(an.aggregator)
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(handlers, router.Options{
			Metrics:               m,
			RequestTimeout:        cfg.Server.RequestTimeout,
			MaxConcurrentSearches: cfg.Search.MaxConcurrentQueries,
			Limiter:               limiter,
			CORSOrigins:           cfg.Server.CORSOrigins,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("docvista listening", "addr", server.Addr)
	serveErr := server.ListenAndServe()
	stop()
	_ = background.Wait()
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		slog.Error("server error", "error", serveErr)
		return serveErr
	}
	slog.Info("docvista stopped")
	return nil
}

// setupCache builds the result cache, backed by Redis when configured and
// reachable. The returned function releases the Redis connection.
func setupCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checker *health.Checker) (*cache.QueryCache, func(), error) {
	noop := func() {}
	if !cfg.Cache.Enabled {
		return nil, noop, nil
	}
	opts := []cache.Option{
		cache.WithMetrics(m),
		cache.WithBreaker(resilience.NewCircuitBreaker("redis-cache", breakerConfig(m, 3, 10*time.Second))),
	}
	closeFn := noop
	if cfg.Cache.UseRedis {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, caching in process only", "addr", cfg.Redis.Addr, "error", err)
		} else {
			opts = append(opts, cache.WithRemote(client, cfg.Redis.CacheTTL))
			checker.RegisterOptional("redis", health.PingCheck(client.Ping))
			closeFn = func() { _ = client.Close() }
			slog.Info("shared result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	qc, err := cache.New(cfg.Cache.Size, opts...)
	if err != nil {
		closeFn()
		return nil, noop, fmt.Errorf("creating result cache: %w", err)
	}
	return qc, closeFn, nil
}

// analyticsSetup is the running analytics pipeline. tracker and aggregator
// are nil when analytics are disabled.
type analyticsSetup struct {
	tracker    analytics.Tracker
	aggregator *analytics.Aggregator
	closers    []func()
}

// close releases the pipeline in reverse order of construction. The serve
// context must be cancelled first.
func (a *analyticsSetup) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setupAnalytics wires the aggregator. With Kafka, searches are batched
// onto the analytics topic and every replica aggregates the full stream;
// without it the aggregator is fed in process. With Postgres, history is
// restored at startup and snapshotted periodically.
func setupAnalytics(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checker *health.Checker, background *errgroup.Group) *analyticsSetup {
	a := &analyticsSetup{}
	if !cfg.Analytics.Enabled {
		return a
	}
	agg := analytics.NewAggregator(cfg.Analytics.RecentQueries)
	a.aggregator = agg
	a.tracker = agg

	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.AnalyticsEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		batch := collector.NewBatchCollector(producer, analyticsBatchSize, analyticsFlush, collector.WithOutcomeCounter(m.AnalyticsEvents))
		batch.Start(ctx)
		a.closers = append(a.closers, func() { _ = producer.Close() }, batch.Close)
		a.tracker = analytics.NewCollector(batch)

		group := kafka.ReplicaGroup(cfg.Kafka.ConsumerGroup, "analytics")
		background.Go(func() error {
			err := agg.Consume(ctx, func(h kafka.MessageHandler) *kafka.Consumer {
				return kafka.NewConsumer(cfg.Kafka, topic, group, h)
			})
			if err != nil {
				slog.Error("analytics consumer stopped", "error", err)
			}
			return nil
		})
		slog.Info("analytics streaming enabled", "topic", topic)
	}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics history disabled", "error", err)
			return a
		}
		a.closers = append(a.closers, func() { _ = pg.Close() })
		store := aggregator.NewStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("analytics schema not ready, history disabled", "error", err)
			return a
		}
		if err := store.Restore(ctx, agg); err != nil {
			slog.Warn("analytics history not restored", "error", err)
		}
		saved := store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		a.closers = append(a.closers, func() { <-saved })
		checker.RegisterOptional("postgres", health.PingCheck(pg.Ping))
	}
	return a
}

func trackRefresh(t analytics.Tracker) indexer.RefreshFunc {
	return func(snap *index.Snapshot, err error, took time.Duration) {
		event := analytics.RefreshEvent{
			Status:     "ok",
			DurationMs: took.Milliseconds(),
			Timestamp:  time.Now().UTC(),
		}
		if err != nil {
			event.Status = "error"
			event.Error = err.Error()
		} else {
			event.Generation = snap.Generation
			event.Documents = snap.Len()
		}
		t.TrackRefresh(event)
	}
}

// breakerConfig reports state changes of a circuit breaker to m.
func breakerConfig(m *metrics.Metrics, threshold int, reset time.Duration) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
		OnStateChange: func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}
