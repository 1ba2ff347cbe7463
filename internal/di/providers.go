package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"CloudCostIQ/internal/domain/repository"
	"CloudCostIQ/internal/handler/api"
	mid "CloudCostIQ/internal/middleware"
	"CloudCostIQ/internal/registry"
	internalrepo "CloudCostIQ/internal/repository"
	icache "CloudCostIQ/internal/service/cache"
	"CloudCostIQ/internal/services/credentials"
	"CloudCostIQ/internal/services/optimizer"
	"CloudCostIQ/internal/usecase"
	pkgcache "CloudCostIQ/pkg/cache"
	pkgch "CloudCostIQ/pkg/clickhouse"
	"CloudCostIQ/pkg/config"
	pkgkafka "CloudCostIQ/pkg/kafka"
	"CloudCostIQ/pkg/logger"
	"CloudCostIQ/pkg/metrics"
	"CloudCostIQ/pkg/queue"
	"CloudCostIQ/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return logger.New(&logger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS cloudcostiq",
		`CREATE TABLE IF NOT EXISTS cloudcostiq.cost_entries (
			org_id String,
			provider String,
			service String,
			region String,
			date DateTime,
			amount Float64,
			currency String
		) ENGINE=MergeTree ORDER BY (org_id, date)`,
		`CREATE TABLE IF NOT EXISTS cloudcostiq.cloud_providers (
			org_id String,
			provider String,
			credentials String,
			updated_at DateTime
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY (org_id, provider)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCostStorage creates the ClickHouse cost entry repository.
func ProvideCostStorage(chClient *pkgch.Client, lgr *logger.Logger) repository.Storage {
	store := internalrepo.NewCHCostStore(chClient.DB())
	store.SetLogger(lgr)
	return store
}

// ProvideProviderStore creates credential storage for cloud providers.
func ProvideProviderStore(chClient *pkgch.Client) repository.ProviderStore {
	return internalrepo.NewCHProviderStore(chClient.DB())
}

// ProvideEntryPublisher creates the Kafka publisher for billing entries,
// wrapped in the validating ingest pipeline.
func ProvideEntryPublisher(producer *pkgkafka.Producer, m repository.Metrics, cfg *config.Config) repository.Publisher {
	kafkaPub := internalrepo.NewKafkaEntryPublisher(producer, cfg.Kafka.Topic)
	pipe := mid.NewIngestPipeline(kafkaPub, m,
		mid.WithMaxRPS(100),
		mid.WithBufferSize(2000),
	)
	pipe.Start(context.Background())
	return pipe
}

// ProvideRegistry opens the model registry and loads active artifacts.
func ProvideRegistry(lgr *logger.Logger, cfg *config.Config) (*registry.Registry, error) {
	return registry.Open(lgr, cfg.ML.ModelDir)
}

// ProvideCostAnalyzer creates the training and inference orchestrator.
func ProvideCostAnalyzer(
	store repository.Storage,
	reg *registry.Registry,
	m repository.Metrics,
	cfg *config.Config,
	lgr *logger.Logger,
) *usecase.CostAnalyzer {
	return usecase.NewCostAnalyzer(store, reg, m, cfg, lgr)
}

// ProvideOptimizer creates the resource optimization service.
func ProvideOptimizer(lgr *logger.Logger) *optimizer.Optimizer {
	return optimizer.New(lgr)
}

// ProvideKafkaCostEntriesHandler registers the handler for the ingestion topic.
func ProvideKafkaCostEntriesHandler(store repository.Storage, m repository.Metrics, cfg *config.Config) *usecase.KafkaCostEntriesHandler {
	return usecase.NewKafkaCostEntriesHandler(cfg.Kafka.Topic, store, m)
}

// ProvideAlertsHub creates the websocket anomaly alert hub.
func ProvideAlertsHub(lgr *logger.Logger) *api.AlertsHub {
	return api.NewAlertsHub(lgr)
}

// ProvideRedisClient creates a shared Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideQueue creates the background retrain queue, or nil without Redis.
func ProvideQueue(lgr *logger.Logger, cfg *config.Config, rdb *redis.Client, analyzer *usecase.CostAnalyzer, m repository.Metrics) *queue.RedisQueue {
	if rdb == nil {
		return nil
	}

	job := usecase.NewRetrainJob(analyzer, lgr)
	host, port := splitAddr(cfg.Redis.Addr)
	locks, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("cloudcostiq:locks"),
	)
	if err != nil {
		// single-instance dedup still beats none
		lgr.Warn("retrain lock cache unavailable, using in-process locks", logger.Error(err))
		job.SetLocks(pkgcache.NewMemoryCache())
	} else {
		job.SetLocks(locks)
	}

	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	q := queue.NewRedisQueue(lgr, qcfg, rdb, queue.ModeProducerConsumer,
		queue.WithKeyPrefix("cloudcostiq:queue"))
	q.RegisterJob(job)
	q.RegisterJob(usecase.NewErrorLogsJob(lgr, m))
	return q
}

// ProvideResponseCache creates the HTTP response cache. Redis when available,
// in-process TTL cache otherwise.
func ProvideResponseCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideEncryptor creates the credential encryptor, or nil when no key is
// configured.
func ProvideEncryptor(cfg *config.Config) (*credentials.Encryptor, error) {
	if cfg.Security.EncryptionKey == "" {
		return nil, nil
	}
	return credentials.New(cfg.Security.EncryptionKey, cfg.Security.Salt)
}

// ProvideAnalyticsHandler creates the HTTP handler with its optional wiring.
func ProvideAnalyticsHandler(
	lgr *logger.Logger,
	analyzer *usecase.CostAnalyzer,
	opt *optimizer.Optimizer,
	respCache icache.BytesCache,
	q *queue.RedisQueue,
	enc *credentials.Encryptor,
	providers repository.ProviderStore,
	pub repository.Publisher,
	cfg *config.Config,
) *api.AnalyticsHandler {
	h := api.NewAnalyticsHandler(lgr, analyzer, opt)
	h.SetCache(respCache)
	h.SetPublisher(pub)
	h.SetStatusTTL(cfg.ML.CacheTTL.Status)
	if q != nil {
		h.SetQueue(q)
	}
	if enc != nil {
		h.SetCredentials(enc, providers)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	handler *api.AnalyticsHandler,
	hub *api.AlertsHub,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCostEntriesHandler,
	q *queue.RedisQueue,
	chClient *pkgch.Client,
	analyzer *usecase.CostAnalyzer,
) *server.App {
	analyzer.SetAlertSink(hub)
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if q != nil {
		// aggregate repeated error logs and ship them through the queue
		lgr.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          usecase.ErrorLogsType,
			Publisher:      q,
		})
	}
	return server.New(cfg, lgr, handler, hub, consumer, kh, q, chClient)
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}
