package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/api"
	"github.com/shubhsaxena/search-layout/internal/cache"
	"github.com/shubhsaxena/search-layout/internal/clickhouse"
	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/elasticsearch"
	"github.com/shubhsaxena/search-layout/internal/indexing"
	"github.com/shubhsaxena/search-layout/internal/kafka"
	"github.com/shubhsaxena/search-layout/internal/observability"
	"github.com/shubhsaxena/search-layout/internal/orchestrator"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("LAYOUT_CONFIG"), "Path to configuration file (defaults apply when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()
	defer logger.Info("shutdown complete")

	logger.Info("starting layout service",
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("clickhouse", cfg.ClickHouse.Enabled),
		zap.Bool("elasticsearch", cfg.Elasticsearch.Enabled),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)

	if cfg.Observability.TracingEnabled {
		tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
		if err != nil {
			logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
		} else {
			// Registered before any backend so it runs after their Close and
			// the pipeline's final flush.
			defer shutdownTracer(tracerShutdown, cfg.Server.ShutdownTimeout, logger)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.RegisterCritical("classifier", api.NewClassifierCheck())

	// Every analytics backend is optional. A backend that fails to start is
	// logged and left out; classification keeps serving without it.
	var backends orchestrator.Backends

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis initialization failed, trending will be unavailable", zap.Error(err))
		} else {
			defer redisCache.Close()
			backends.Stats = redisCache
			healthHandler.Register("redis", redisCache)
			logger.Info("redis cache initialized")
		}
	}

	var chClient *clickhouse.Client
	if cfg.ClickHouse.Enabled {
		chClient, err = clickhouse.NewClient(cfg.ClickHouse, cfg.Analytics, logger)
		if err != nil {
			logger.Warn("clickhouse initialization failed, breakdowns will be unavailable", zap.Error(err))
		} else {
			defer chClient.Close()
			if err := chClient.EnsureTables(ctx); err != nil {
				logger.Warn("clickhouse table creation failed", zap.Error(err))
			}
			backends.Breakdown = chClient
			healthHandler.Register("clickhouse", chClient)
			logger.Info("clickhouse client initialized")
		}
	}

	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.Enabled {
		esClient, err = elasticsearch.NewClient(cfg.Elasticsearch, cfg.Analytics, logger)
		if err != nil {
			logger.Warn("elasticsearch initialization failed, curation will be unavailable", zap.Error(err))
		} else {
			defer esClient.Close()
			backends.Curation = esClient
			healthHandler.RegisterES(esClient)
			logger.Info("elasticsearch client initialized")
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		backends.Publisher = producer

		if cfg.Kafka.ConsumeEnabled {
			consumer, stop, err := startPipeline(ctx, cfg, redisCache, chClient, esClient, logger)
			if err != nil {
				logger.Warn("analytics pipeline start failed", zap.Error(err))
			} else {
				defer stop()
				healthHandler.Register("kafka", consumer)
			}
		}
	}

	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}
	slowQueryDetector := observability.NewSlowQueryDetector(
		cfg.Analytics.SlowQuery.WarningThreshold,
		cfg.Analytics.SlowQuery.CriticalThreshold,
		logger,
		analyticsWriter,
	)

	orch := orchestrator.New(backends, slowQueryDetector, cfg.Analytics, logger)

	handler := api.NewHandler(orch, logger)
	router := api.NewRouter(handler, healthHandler, api.RouterConfig{
		MaxConcurrent:  cfg.Server.MaxConcurrent,
		RequestTimeout: cfg.Server.WriteTimeout,
	}, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()

	logger.Info("http server stopped, draining pipeline and backends")
	return nil
}

func shutdownTracer(shutdown func(context.Context) error, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", zap.Error(err))
	}
}

// startPipeline consumes classification events into whichever sinks came up.
// The returned stop func drains the consumer before the final flush.
func startPipeline(
	ctx context.Context,
	cfg *config.Config,
	redisCache *cache.RedisCache,
	chClient *clickhouse.Client,
	esClient *elasticsearch.Client,
	logger *zap.Logger,
) (*kafka.Consumer, func(), error) {
	var (
		trends  indexing.TrendCounter
		store   indexing.EventStore
		indexer indexing.UnmatchedIndexer
	)
	if redisCache != nil {
		trends = redisCache
	}
	if chClient != nil {
		store = chClient
	}
	if esClient != nil {
		indexer = esClient
	}

	processor, err := indexing.NewStreamProcessor(trends, store, indexer, cfg.Elasticsearch, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating stream processor: %w", err)
	}

	consumer := kafka.NewConsumer(cfg.Kafka, processor.HandleEvent, logger)
	if err := consumer.Start(ctx); err != nil {
		processor.Stop()
		return nil, nil, fmt.Errorf("starting consumer: %w", err)
	}

	stop := func() {
		if err := consumer.Stop(); err != nil {
			logger.Error("kafka consumer stop error", zap.Error(err))
		}
		if err := processor.Stop(); err != nil {
			logger.Error("stream processor final flush error", zap.Error(err))
		}
	}
	return consumer, stop, nil
}
