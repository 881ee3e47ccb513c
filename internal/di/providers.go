package di

import (
	"context"
	"fmt"
	"time"

	"AllocDesk/internal/domain/repository"
	"AllocDesk/internal/domain/service"
	"AllocDesk/internal/handler/api"
	mid "AllocDesk/internal/middleware"
	internalrepo "AllocDesk/internal/repository"
	svccache "AllocDesk/internal/service/cache"
	"AllocDesk/internal/service/ratelimit"
	"AllocDesk/internal/services/backtest"
	"AllocDesk/internal/services/marketdata"
	"AllocDesk/internal/session"
	"AllocDesk/internal/usecase"
	"AllocDesk/pkg/cache"
	pkgch "AllocDesk/pkg/clickhouse"
	"AllocDesk/pkg/config"
	xhttp "AllocDesk/pkg/http"
	pkgkafka "AllocDesk/pkg/kafka"
	applogger "AllocDesk/pkg/logger"
	"AllocDesk/pkg/metrics"
	"AllocDesk/pkg/server"
)

// ProvideLogger creates the application logger with an error collector.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	l, err := applogger.New(&applogger.Config{
		Level:  level,
		Format: format,
		Output: "stdout",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.SetCollector(applogger.NewCollector(200))
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRateLimiter creates the shared backtest rate limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideSessionStore creates the session registry with idle expiry
// feeding the active-sessions gauge. Evicted sessions drop their rate
// limit buckets along with their state.
func ProvideSessionStore(cfg *config.Config, m repository.Metrics, limiter *ratelimit.Limiter) *session.Store {
	return session.NewStore(
		session.WithTTL(cfg.Session.TTL),
		session.WithMaxSlots(cfg.Session.MaxSlots),
		session.WithOnCount(m.RecordActiveSessions),
		session.WithOnEvict(func(id string) {
			limiter.Forget(api.RunLimiterKey(id))
		}),
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled in config.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSnapshotPublisher creates the Kafka snapshot publisher.
func ProvideSnapshotPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.SnapshotTopic)
}

// ProvideSnapshotPipeline creates the snapshot fan-out pipeline.
func ProvideSnapshotPipeline(publisher repository.SnapshotPublisher, m repository.Metrics) *mid.SnapshotPipeline {
	return mid.NewSnapshotPipeline(publisher, m, mid.WithBufferSize(2000))
}

// ProvideClickHouseClient creates a ClickHouse client with the run
// history schema applied, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := append(
		[]string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database)},
		internalrepo.RunHistorySchema(cfg.ClickHouse.Database+".backtest_runs")...,
	)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideRunHistory creates the ClickHouse run history repository.
func ProvideRunHistory(chClient *pkgch.Client, cfg *config.Config) repository.RunHistory {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseRunHistory(chClient.DB(), cfg.ClickHouse.Database+".backtest_runs")
}

// ProvideRedisCache creates the Redis cache, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideResultCache picks the backtest result cache: layered over Redis
// when available, plain memory otherwise.
func ProvideResultCache(redisCache *cache.RedisCache, cfg *config.Config) cache.Service {
	memOpts := []cache.MemoryOption{cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)}
	if redisCache == nil {
		return cache.NewMemoryCache(memOpts...)
	}
	return cache.NewLayeredCache(redisCache, memOpts...)
}

// ProvideResponseCache picks the API response cache backend.
func ProvideResponseCache(redisCache *cache.RedisCache) svccache.BytesCache {
	if redisCache == nil {
		return svccache.NewTTLCache()
	}
	return svccache.NewRedisBytesCache(redisCache.Client(), "allocdesk:resp")
}

// ProvideMarketData creates the market data collaborator client.
func ProvideMarketData(cfg *config.Config) service.MarketData {
	return marketdata.NewClient(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.MarketData.Timeout)
}

// ProvideBacktestEngine creates the backtest engine collaborator client.
func ProvideBacktestEngine(cfg *config.Config) service.BacktestEngine {
	return backtest.NewClient(cfg.Backtest.EngineURL, cfg.Backtest.Timeout)
}

// ProvideAllocationUseCase wires the allocation usecase.
func ProvideAllocationUseCase(
	store *session.Store,
	pipeline *mid.SnapshotPipeline,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.AllocationUseCase {
	return usecase.NewAllocationUseCase(store, pipeline, m, l)
}

// ProvideBacktestUseCase wires the backtest usecase.
func ProvideBacktestUseCase(
	store *session.Store,
	market service.MarketData,
	engine service.BacktestEngine,
	results cache.Service,
	history repository.RunHistory,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(store, market, engine, results, history, m, l,
		usecase.WithCapitalBounds(cfg.Backtest.MinCapital, cfg.Backtest.MaxCapital),
		usecase.WithResultTTL(cfg.Backtest.ResultCacheTTL),
	)
}

// ProvideHandlers bundles all API handlers into one route registrar.
func ProvideHandlers(
	l *applogger.Logger,
	alloc *usecase.AllocationUseCase,
	bt *usecase.BacktestUseCase,
	pipeline *mid.SnapshotPipeline,
	limiter *ratelimit.Limiter,
	respCache svccache.BytesCache,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewSessionsHandler(l, alloc),
		api.NewBacktestHandler(l, bt, limiter, respCache),
		api.NewStreamHandler(l, alloc, pipeline),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store *session.Store,
	pipeline *mid.SnapshotPipeline,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	redisCache *cache.RedisCache,
	history repository.RunHistory,
) *server.App {
	app := server.New(cfg, l, store, pipeline, handler)
	if producer != nil {
		app.AddCloser("kafka producer", producer.Close)
	}
	if chClient != nil {
		app.AddCloser("clickhouse", chClient.Close)
	}
	if redisCache != nil {
		app.AddCloser("redis", redisCache.Close)
	}
	if history != nil {
		app.AddHealthCheck("clickhouse", history.Health)
	}
	return app
}
