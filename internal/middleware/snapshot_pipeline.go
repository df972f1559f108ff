package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"WalletPulse/internal/domain/models"
	domrepo "WalletPulse/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, o *models.PositionObservation) error
}

// SnapshotPipeline sits between the position stream and the backend. It
// validates, throttles per wallet, and buffers observations when the
// downstream is unavailable so a slow store never stalls the stream reader.
type SnapshotPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.PositionObservation
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-subject last accepted time
}

type PipelineOption func(*SnapshotPipeline)

// WithMaxRPS sets the max observations per second per subject.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewSnapshotPipeline creates a new pipeline.
func NewSnapshotPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.PositionObservation, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.PositionObservation, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered observations.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case o := <-p.bufCh:
				if o == nil {
					continue
				}
				if err := p.proc.Process(ctx, o); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- o:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SnapshotPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards an observation downstream,
// buffering on errors.
func (p *SnapshotPipeline) Process(ctx context.Context, o *models.PositionObservation) error {
	start := time.Now()
	if err := validateObservation(o); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(o.Subject, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, o); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- o:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateObservation(o *models.PositionObservation) error {
	if o == nil {
		return fmt.Errorf("observation nil")
	}
	if o.Subject == "" {
		return fmt.Errorf("subject empty")
	}
	if o.Instrument == "" {
		return fmt.Errorf("instrument empty")
	}
	if o.PeriodTS.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	return nil
}

func (p *SnapshotPipeline) allow(subject string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[subject]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[subject] = now
		return true
	}
	return false
}
