package usecase

import (
	"context"
	"sync"
	"time"

	"WalletPulse/internal/domain/models"
	drepo "WalletPulse/internal/domain/repository"
	mid "WalletPulse/internal/middleware"
	applogger "WalletPulse/pkg/logger"
)

// SnapshotCollector consumes the position stream, routes observations to the
// processor, and publishes the HealthSummary the signal lock reads. Coverage
// is the share of the universe observed in the most recent reporting window.
type SnapshotCollector struct {
	stream       drepo.PositionStream
	proc         *ObservationProcessor
	obs          drepo.ObservationStore
	metrics      drepo.Metrics
	pipe         *mid.SnapshotPipeline
	l            *applogger.Logger
	universeSize int
	healthEvery  time.Duration

	fetcher drepo.SnapshotFetcher

	mu          sync.Mutex
	seen        map[string]bool
	lastSuccess time.Time
}

// CollectorOption configures SnapshotCollector.
type CollectorOption func(*SnapshotCollector)

// WithFetcher attaches a REST snapshot fetcher used to seed the current
// period at startup, before the first stream push arrives.
func WithFetcher(f drepo.SnapshotFetcher) CollectorOption {
	return func(c *SnapshotCollector) { c.fetcher = f }
}

// NewSnapshotCollector creates a new SnapshotCollector instance.
func NewSnapshotCollector(
	stream drepo.PositionStream,
	proc *ObservationProcessor,
	obs drepo.ObservationStore,
	metrics drepo.Metrics,
	pipe *mid.SnapshotPipeline,
	l *applogger.Logger,
	universeSize int,
	opts ...CollectorOption,
) *SnapshotCollector {
	if universeSize <= 0 {
		universeSize = 200
	}
	c := &SnapshotCollector{
		stream:       stream,
		proc:         proc,
		obs:          obs,
		metrics:      metrics,
		pipe:         pipe,
		l:            l,
		universeSize: universeSize,
		healthEvery:  time.Minute,
		seen:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConnected returns true if the position stream is connected.
func (c *SnapshotCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SnapshotCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	obCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, obCh, errCh)
	go c.reportHealth(ctx)
	if c.fetcher != nil {
		go c.seed(ctx)
	}
	return nil
}

// seed backfills the current period from the REST side so a fresh process
// has observations before the first stream push. Best-effort: a partial
// result still counts toward coverage.
func (c *SnapshotCollector) seed(ctx context.Context) {
	obs, err := c.fetcher.FetchAll(ctx)
	if err != nil {
		c.metrics.RecordError("seed_fetch")
		c.l.Warn("snapshot seed incomplete", applogger.Error(err))
	}
	for _, o := range obs {
		if c.pipe != nil {
			_ = c.pipe.Process(ctx, o)
		} else {
			_ = c.proc.Process(ctx, o)
		}
		c.mu.Lock()
		if o.Valid {
			c.seen[o.Subject] = true
			c.lastSuccess = time.Now().UTC()
		}
		c.mu.Unlock()
	}
	if len(obs) > 0 {
		c.l.Info("snapshot seed complete", applogger.Int("observations", len(obs)))
	}
}

func (c *SnapshotCollector) consume(ctx context.Context, obCh <-chan *models.PositionObservation, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case o := <-obCh:
			if o == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, o)
			} else {
				_ = c.proc.Process(ctx, o)
			}
			c.mu.Lock()
			if o.Valid {
				c.seen[o.Subject] = true
				c.lastSuccess = time.Now().UTC()
			}
			c.mu.Unlock()
		}
	}
}

// reportHealth writes one HealthSummary per window from the subjects seen in
// that window. The summary is what the gate and stale alarm consume.
func (c *SnapshotCollector) reportHealth(ctx context.Context) {
	ticker := time.NewTicker(c.healthEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			covered := len(c.seen)
			lastSuccess := c.lastSuccess
			c.seen = make(map[string]bool)
			c.mu.Unlock()

			coverage := float64(covered) / float64(c.universeSize) * 100
			if coverage > 100 {
				coverage = 100
			}
			status := models.HealthOK
			switch {
			case coverage < 80:
				status = models.HealthFailed
			case coverage < 95:
				status = models.HealthDegraded
			}
			h := &models.HealthSummary{
				TS:            time.Now().UTC(),
				LastSuccessTS: lastSuccess,
				Status:        status,
				CoveragePct:   coverage,
			}
			if err := c.obs.RecordHealth(ctx, h); err != nil {
				c.metrics.RecordError("health_write")
				c.l.Error("health write failed", applogger.Error(err))
				continue
			}
			c.l.Debug("health reported",
				applogger.String("status", string(status)),
				applogger.Float64("coverage_pct", coverage))
		}
	}
}

// Processor returns the underlying ObservationProcessor for lifecycle management.
func (c *SnapshotCollector) Processor() *ObservationProcessor { return c.proc }

// Shutdown stops pipeline and closes stream.
func (c *SnapshotCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
