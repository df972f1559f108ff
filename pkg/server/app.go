package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"WalletPulse/internal/usecase"
	pkgch "WalletPulse/pkg/clickhouse"
	"WalletPulse/pkg/config"
	xhttp "WalletPulse/pkg/http"
	pkgkafka "WalletPulse/pkg/kafka"
	applogger "WalletPulse/pkg/logger"
	"WalletPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle: ingestion collector,
// optional Kafka consumer, the periodic signal runner, the alert delivery
// queue, and the read API.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	collector   *usecase.SnapshotCollector
	runner      *usecase.SignalRunner
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	alertQueue  *queue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.SnapshotCollector,
	runner *usecase.SignalRunner,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		collector: collector,
		runner:    runner,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetAlertQueue allows DI to inject the alert delivery queue.
func (a *App) SetAlertQueue(q *queue.RedisQueue) { a.alertQueue = q }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.l
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start collector
	if err := a.collector.Start(ctx); err != nil {
		l.Error("collector start error", applogger.Error(err))
		return err
	}
	l.Info("collector started",
		applogger.Strings("instruments", a.cfg.Hyperliquid.Instruments),
		applogger.Int("wallets", len(a.cfg.Hyperliquid.Wallets)))

	// Start consumer if configured (kafka backend mirrors observations into storage)
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start alert delivery queue
	if a.alertQueue != nil {
		if err := a.alertQueue.Start(); err != nil {
			l.Error("alert queue start error", applogger.Error(err))
			return err
		}
		l.Info("alert queue started")
	}

	// Start signal runner on period boundaries
	go func() {
		if err := a.runner.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("signal runner error", applogger.Error(err))
		}
	}()

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.l
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
	}
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop alert delivery queue
	if a.alertQueue != nil {
		if err := a.alertQueue.Stop(ctx); err != nil {
			l.Warn("alert queue stop error", applogger.Error(err))
		}
	}

	// Close publisher/storage owned by the processor
	if p := a.collector.Processor(); p != nil {
		p.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
