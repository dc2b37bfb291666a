package di

import (
	"context"
	"fmt"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"
	"NetflowWatch/internal/handler/api"
	"NetflowWatch/internal/handler/ws"
	internalrepo "NetflowWatch/internal/repository"
	"NetflowWatch/internal/service/cache"
	"NetflowWatch/internal/service/etherscan"
	svcmetrics "NetflowWatch/internal/service/metrics"
	"NetflowWatch/internal/services/alerting"
	"NetflowWatch/internal/services/netflow"
	"NetflowWatch/internal/usecase"
	pkgch "NetflowWatch/pkg/clickhouse"
	"NetflowWatch/pkg/config"
	xhttp "NetflowWatch/pkg/http"
	pkgkafka "NetflowWatch/pkg/kafka"
	applogger "NetflowWatch/pkg/logger"
	"NetflowWatch/pkg/metrics"
	"NetflowWatch/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment), applogger.String("token", cfg.Token.Symbol)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithPingRetry(3, 2*time.Second),
		pkgch.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideNetflowStore creates the ClickHouse netflow store and its schema.
func ProvideNetflowStore(client *pkgch.Client, l *applogger.Logger) (repository.NetflowStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseNetflowStore(client.DB(), client.Database())
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideRedisClient creates a Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return cli, nil
}

// ProvideAlertMemoryStore selects the file or Redis memory backend.
func ProvideAlertMemoryStore(cfg *config.Config, rdb redis.UniversalClient) (repository.AlertMemoryStore, error) {
	switch cfg.Agent.Memory.Backend {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis memory backend requires redis.enabled")
		}
		// the lock must outlive the pause between passes; the agent renews it after each one
		ttl := max(cfg.Agent.Memory.LockTTL, 2*cfg.Agent.Interval)
		return internalrepo.NewRedisAlertMemory(rdb, cfg.Agent.Memory.Key, ttl), nil
	default:
		return internalrepo.NewFileAlertMemory(cfg.Agent.Memory.Path), nil
	}
}

// ProvideInstanceLock reuses the Redis store as lock, else a lock file next to the memory file.
func ProvideInstanceLock(cfg *config.Config, store repository.AlertMemoryStore) repository.InstanceLock {
	if lock, ok := store.(repository.InstanceLock); ok {
		return lock
	}
	return internalrepo.NewFileInstanceLock(cfg.Agent.Memory.Path)
}

func ProvideAlertMemory(store repository.AlertMemoryStore, l *applogger.Logger, m repository.Metrics) *alerting.Memory {
	return alerting.NewMemory(store, l, m)
}

func ProvideReportWriter(cfg *config.Config) repository.ReportWriter {
	return internalrepo.NewMarkdownReportWriter(cfg.Agent.ReportDir)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
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

func ProvideAlertHub(l *applogger.Logger) *ws.AlertHub {
	return ws.NewAlertHub(l)
}

// ProvideAlertSinks lists the best-effort alert destinations. With the relay on,
// websocket subscribers are fed from Kafka and the hub is not a direct sink.
func ProvideAlertSinks(cfg *config.Config, producer *pkgkafka.Producer, hub *ws.AlertHub) []usecase.AlertSink {
	var sinks []usecase.AlertSink
	if producer != nil {
		sinks = append(sinks, usecase.AlertSink{
			Name:      "kafka",
			Publisher: internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.Topic),
		})
	}
	if !cfg.Kafka.Relay.Enabled {
		sinks = append(sinks, usecase.AlertSink{Name: "websocket", Publisher: hub})
	}
	return sinks
}

// ProvideRelayConsumer subscribes the hub to the alert topic, or returns nil when the relay is off.
func ProvideRelayConsumer(cfg *config.Config, hub *ws.AlertHub, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Relay.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Relay.GroupID),
		pkgkafka.WithConsumerRetry(3, 100*time.Millisecond, 2*time.Second),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(ws.NewAlertRelay(hub, cfg.Kafka.Topic))
	return consumer, nil
}

func ProvideExchanges(cfg *config.Config) (models.ExchangeAddressMap, error) {
	return models.NewExchangeAddressMap(cfg.Exchanges)
}

// ProvideTransferSeriesSource derives daily series from stored transfers, or nil without ClickHouse.
func ProvideTransferSeriesSource(cfg *config.Config, store repository.NetflowStore, exchanges models.ExchangeAddressMap) *usecase.TransferSeriesSource {
	if store == nil {
		return nil
	}
	return usecase.NewTransferSeriesSource(store, exchanges, cfg.Agent.LookbackDays)
}

// ProvideSeriesSource feeds the agent from ClickHouse when available, else from agent.csv_total.
func ProvideSeriesSource(cfg *config.Config, ts *usecase.TransferSeriesSource) (repository.SeriesSource, error) {
	if ts != nil {
		return ts, nil
	}
	if cfg.Agent.CSVTotal != "" {
		return internalrepo.NewCSVSeriesSource(cfg.Agent.CSVTotal), nil
	}
	return nil, fmt.Errorf("no netflow source: enable clickhouse or set agent.csv_total")
}

func ProvideDailySource(ts *usecase.TransferSeriesSource, series repository.SeriesSource) usecase.DailySource {
	if ts != nil {
		return ts
	}
	return usecase.NewCSVDailySource(series)
}

func detectParams(cfg *config.Config) netflow.DetectParams {
	return netflow.DetectParams{Window: cfg.Netflow.Window, MinPeriods: cfg.Netflow.MinPeriods}
}

func ProvidePipeline(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.NetflowPipeline {
	return usecase.NewNetflowPipeline(detectParams(cfg), m, l)
}

func ProvideAgent(
	cfg *config.Config,
	series repository.SeriesSource,
	memory *alerting.Memory,
	reports repository.ReportWriter,
	lock repository.InstanceLock,
	sinks []usecase.AlertSink,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.NetflowAgent {
	return usecase.NewNetflowAgent(series, memory, reports, lock, sinks, m, l.With(applogger.String("component", "agent")), usecase.AgentOptions{
		Threshold:     cfg.Netflow.ZThreshold,
		Params:        detectParams(cfg),
		Interval:      cfg.Agent.Interval,
		RotateMonthly: cfg.Agent.RotateMonthly,
		DocsDir:       cfg.Agent.ReportDir,
	})
}

// ProvideEtherscanClient creates the transfer API client.
func ProvideEtherscanClient(cfg *config.Config, l *applogger.Logger) *etherscan.Client {
	return etherscan.New(cfg.Etherscan.APIKey, cfg.Token.Contract,
		etherscan.WithBaseURL(cfg.Etherscan.BaseURL),
		etherscan.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Etherscan.Timeout))),
		etherscan.WithDecimals(cfg.Token.Decimals),
		etherscan.WithPaging(cfg.Etherscan.PageSize, etherscan.HardMax/cfg.Etherscan.PageSize),
		etherscan.WithRate(cfg.Etherscan.RatePerSec),
		etherscan.WithRetry(cfg.Etherscan.MaxRetries, time.Second),
		etherscan.WithLogger(l),
	)
}

// ProvideTransferIngest keeps ClickHouse filled from Etherscan, or returns nil
// when there is no store, no API key or syncing is disabled.
func ProvideTransferIngest(
	cfg *config.Config,
	client *etherscan.Client,
	store repository.NetflowStore,
	exchanges models.ExchangeAddressMap,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TransferIngest {
	if store == nil || cfg.Etherscan.APIKey == "" || cfg.Etherscan.SyncDays == 0 || len(exchanges) == 0 {
		return nil
	}
	return usecase.NewTransferIngest(client, client, store, exchanges, etherscan.HardMax, m, l.With(applogger.String("component", "ingest")))
}

// ProvideResponseCache uses Redis when enabled, else an in-process TTL cache.
func ProvideResponseCache(rdb redis.UniversalClient) cache.BytesCache {
	if rdb != nil {
		return cache.NewRedisCache(rdb, "netflow:api:")
	}
	return cache.NewTTLCache(cache.DefaultMaxEntries)
}

func ProvideQuery(
	cfg *config.Config,
	daily usecase.DailySource,
	pipeline *usecase.NetflowPipeline,
	memory *alerting.Memory,
	c cache.BytesCache,
	l *applogger.Logger,
) *usecase.NetflowQueryUseCase {
	return usecase.NewNetflowQueryUseCase(daily, pipeline, memory, c, cfg.Redis.CacheTTL, cfg.Agent.LookbackDays, l)
}

func ProvideNetflowHandler(l *applogger.Logger, q *usecase.NetflowQueryUseCase) *api.NetflowEchoHandler {
	return api.NewNetflowEchoHandler(l, q)
}

// ProvideHTTPServer registers the API and websocket routes plus health checks.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.NetflowEchoHandler,
	hub *ws.AlertHub,
	store repository.NetflowStore,
	rdb redis.UniversalClient,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	}
	if store != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", store.Health))
	}
	if rdb != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}
	return xhttp.NewServer([]xhttp.Handler{h, hub}, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	agent *usecase.NetflowAgent,
	ingest *usecase.TransferIngest,
	consumer *pkgkafka.Consumer,
	hub *ws.AlertHub,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	rdb redis.UniversalClient,
) *server.App {
	opts := []server.Option{
		server.WithHTTPServer(httpServer),
		server.WithAgent(agent),
		server.WithClosers(hub),
	}
	if ingest != nil {
		opts = append(opts, server.WithIngest(ingest))
	}
	if consumer != nil {
		opts = append(opts, server.WithRelay(consumer))
	}
	// closed in order after the loops stop
	if producer != nil {
		opts = append(opts, server.WithClosers(producer))
	}
	if chClient != nil {
		opts = append(opts, server.WithClosers(chClient))
	}
	if rdb != nil {
		opts = append(opts, server.WithClosers(rdb))
	}
	return server.New(cfg, l, opts...)
}
