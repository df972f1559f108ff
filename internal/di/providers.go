package di

import (
	"context"
	"fmt"
	"net"
	"time"

	"WalletPulse/internal/domain/repository"
	domsvc "WalletPulse/internal/domain/service"
	"WalletPulse/internal/handler/api"
	mid "WalletPulse/internal/middleware"
	internalrepo "WalletPulse/internal/repository"
	icache "WalletPulse/internal/service/cache"
	"WalletPulse/internal/service/hyperliquid"
	alertsvc "WalletPulse/internal/services/alert"
	healthsvc "WalletPulse/internal/services/health"
	signalsvc "WalletPulse/internal/services/signal"
	"WalletPulse/internal/usecase"
	pkgcache "WalletPulse/pkg/cache"
	pkgch "WalletPulse/pkg/clickhouse"
	"WalletPulse/pkg/config"
	xhttp "WalletPulse/pkg/http"
	pkgkafka "WalletPulse/pkg/kafka"
	applogger "WalletPulse/pkg/logger"
	"WalletPulse/pkg/metrics"
	"WalletPulse/pkg/queue"
	"WalletPulse/pkg/server"
	"WalletPulse/pkg/util"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideObservationStore creates ClickHouse observation storage.
func ProvideObservationStore(chClient *pkgch.Client, l *applogger.Logger) repository.ObservationStore {
	s := internalrepo.NewCHObservationStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideSignalStore creates ClickHouse signal storage.
func ProvideSignalStore(chClient *pkgch.Client, l *applogger.Logger) repository.SignalStore {
	s := internalrepo.NewCHSignalStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvideAlertStore creates ClickHouse alert storage.
func ProvideAlertStore(chClient *pkgch.Client, l *applogger.Logger) repository.AlertStore {
	s := internalrepo.NewCHAlertStore(chClient)
	s.SetLogger(l)
	return s
}

// ProvidePublisher creates a Kafka publisher, or nil when Kafka is not
// configured. Signal and alert publishing degrade to storage-only.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer,
		cfg.Kafka.SignalTopic,
		cfg.Kafka.AlertTopic,
		cfg.Kafka.ObservationTopic,
	)
}

// ProvidePositionStream creates the Hyperliquid WebSocket stream.
func ProvidePositionStream(cfg *config.Config) repository.PositionStream {
	return hyperliquid.New(
		cfg.Hyperliquid.WebSocketURL,
		cfg.Hyperliquid.Wallets,
		cfg.Hyperliquid.Instruments,
		cfg.Hyperliquid.ReconnectDelay,
		cfg.Hyperliquid.PingInterval,
	)
}

// ProvideSnapshotFetcher creates the REST snapshot fetcher, or nil when no
// info endpoint is configured.
func ProvideSnapshotFetcher(cfg *config.Config) repository.SnapshotFetcher {
	if cfg.Hyperliquid.InfoURL == "" {
		return nil
	}
	return hyperliquid.NewInfoClient(
		cfg.Hyperliquid.InfoURL,
		cfg.Hyperliquid.Wallets,
		cfg.Hyperliquid.Instruments,
		10*time.Second,
	)
}

// ProvideRedisClient creates a go-redis client, or nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Signals.Redis.Enabled || cfg.Signals.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Signals.Redis.Addr,
		Password: cfg.Signals.Redis.Password,
		DB:       cfg.Signals.Redis.DB,
	})
}

// ProvideSharedCache creates the layered memory+Redis cache used for epsilon
// sharing across instances. Nil when Redis is disabled.
func ProvideSharedCache(cfg *config.Config) pkgcache.Service {
	if !cfg.Signals.Redis.Enabled || cfg.Signals.Redis.Addr == "" {
		return nil
	}
	host, port := splitHostPort(cfg.Signals.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Signals.Redis.Password),
		pkgcache.WithRedisDB(cfg.Signals.Redis.DB),
		pkgcache.WithRedisPrefix("walletpulse"),
	)
	if err != nil {
		// cache is an optimization; run without it
		return nil
	}
	return pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(4096))
}

// ProvideEpsilonResolver creates the classification threshold resolver.
func ProvideEpsilonResolver(obs repository.ObservationStore, shared pkgcache.Service, cfg *config.Config) *signalsvc.EpsilonResolver {
	floors := cfg.Signals.EpsilonFloors
	if len(floors) == 0 {
		floors = map[string]float64{
			"HYPE": 0.01,
			"BTC":  0.0001,
			"ETH":  0.001,
		}
	}
	opts := []signalsvc.ResolverOption{}
	if shared != nil {
		opts = append(opts, signalsvc.WithSharedCache(shared))
	}
	return signalsvc.NewEpsilonResolver(obs, floors, 0.01, opts...)
}

// ProvideGate creates the signal lock from health thresholds.
func ProvideGate(cfg *config.Config) *healthsvc.Gate {
	opts := []healthsvc.GateOption{}
	if cfg.Health.MaxStaleness > 0 {
		opts = append(opts, healthsvc.WithMaxStaleness(cfg.Health.MaxStaleness))
	}
	if cfg.Health.MinCoverage > 0 && cfg.Health.FullCoverage > 0 {
		opts = append(opts, healthsvc.WithCoverageThresholds(cfg.Health.MinCoverage, cfg.Health.FullCoverage))
	}
	return healthsvc.NewGate(opts...)
}

// ProvideAlertQueue creates the Redis-backed alert delivery queue, or nil
// when Redis is disabled.
func ProvideAlertQueue(rdb *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if rdb == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, rdb, queue.ModeProducerConsumer, queue.WithKeyPrefix("walletpulse:alerts"))
	q.RegisterJob(alertsvc.NewNotifyJob(l))
	return q
}

// ProvideNotifier wraps the alert queue as a Notifier, or nil without Redis.
func ProvideNotifier(q *queue.RedisQueue) domsvc.Notifier {
	if q == nil {
		return nil
	}
	return alertsvc.NewQueueNotifier(q)
}

// ProvideEvaluator creates the alert evaluator.
func ProvideEvaluator(
	store repository.AlertStore,
	m repository.Metrics,
	l *applogger.Logger,
	pub repository.Publisher,
	notifier domsvc.Notifier,
	cfg *config.Config,
) *alertsvc.Evaluator {
	opts := []alertsvc.EvaluatorOption{}
	if cfg.Alerts.RegimeCooldown > 0 || cfg.Alerts.ExitCooldown > 0 {
		opts = append(opts, alertsvc.WithCooldowns(cfg.Alerts.RegimeCooldown, cfg.Alerts.ExitCooldown))
	}
	if cfg.Alerts.DailyCap > 0 {
		opts = append(opts, alertsvc.WithDailyCap(cfg.Alerts.DailyCap))
	}
	if cfg.Alerts.StaleAfter > 0 {
		opts = append(opts, alertsvc.WithStaleAfter(cfg.Alerts.StaleAfter))
	}
	if pub != nil {
		opts = append(opts, alertsvc.WithPublisher(pub))
	}
	if notifier != nil {
		opts = append(opts, alertsvc.WithNotifier(notifier))
	}
	return alertsvc.NewEvaluator(store, m, l, opts...)
}

// ProvideObservationProcessor creates the ingest routing use case.
func ProvideObservationProcessor(
	pub repository.Publisher,
	store repository.ObservationStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ObservationProcessor {
	return usecase.NewObservationProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideSnapshotCollector creates the stream collector with its pipeline.
func ProvideSnapshotCollector(
	stream repository.PositionStream,
	processor *usecase.ObservationProcessor,
	obs repository.ObservationStore,
	m repository.Metrics,
	fetcher repository.SnapshotFetcher,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SnapshotCollector {
	pipe := mid.NewSnapshotPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	var opts []usecase.CollectorOption
	if fetcher != nil {
		opts = append(opts, usecase.WithFetcher(fetcher))
	}
	return usecase.NewSnapshotCollector(stream, processor, obs, m, pipe, l, cfg.Hyperliquid.UniverseSize, opts...)
}

// ProvideKafkaConsumer creates a Kafka consumer for the kafka backend, or nil
// for direct storage.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" || len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
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

// ProvideKafkaObservationsHandler creates the observation topic handler.
func ProvideKafkaObservationsHandler(
	store repository.ObservationStore,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.ObservationTopic, store, m, l)
}

// ProvideSignalRunner creates the periodic signal computation runner.
func ProvideSignalRunner(
	obs repository.ObservationStore,
	signals repository.SignalStore,
	eps *signalsvc.EpsilonResolver,
	gate *healthsvc.Gate,
	evaluator *alertsvc.Evaluator,
	m repository.Metrics,
	l *applogger.Logger,
	pub repository.Publisher,
	cfg *config.Config,
) *usecase.SignalRunner {
	opts := []usecase.RunnerOption{}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewSignalRunner(obs, signals, eps, gate, evaluator, m, l, cfg.Hyperliquid.Instruments, opts...)
}

// ProvideSignalReader creates the read API use case.
func ProvideSignalReader(
	signals repository.SignalStore,
	alerts repository.AlertStore,
	obs repository.ObservationStore,
) *usecase.SignalReader {
	return usecase.NewSignalReader(signals, alerts, obs)
}

// ProvideHTTPHandler creates the Echo handler with a response cache.
func ProvideHTTPHandler(l *applogger.Logger, reader *usecase.SignalReader, cfg *config.Config) xhttp.Handler {
	h := api.NewSignalsEchoHandler(l, reader)
	if cfg.Signals.Redis.Enabled && cfg.Signals.Redis.Addr != "" {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Signals.Redis.Addr,
			Password: cfg.Signals.Redis.Password,
			DB:       cfg.Signals.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.SnapshotCollector,
	runner *usecase.SignalRunner,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaObservationsHandler,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
	alertQueue *queue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	var mh pkgkafka.MessageHandler
	if kh != nil {
		mh = kh
	}
	app := server.New(cfg, l, collector, runner, consumer, mh, chClient)
	app.SetHTTPHandler(httpHandler)
	if alertQueue != nil {
		app.SetAlertQueue(alertQueue)
	}
	return app
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port := util.ParseIntDefault(portStr, 6379)
	if port <= 0 {
		port = 6379
	}
	return host, port
}
