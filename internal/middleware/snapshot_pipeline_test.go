package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"WalletPulse/internal/domain/models"
)

type countingProc struct {
	calls int
	err   error
}

func (p *countingProc) Process(ctx context.Context, o *models.PositionObservation) error {
	p.calls++
	return p.err
}

type nopMetrics struct{}

func (nopMetrics) RecordPeriodComputed(string)         {}
func (nopMetrics) RecordGateSkip(string)               {}
func (nopMetrics) RecordAlert(string, bool)            {}
func (nopMetrics) RecordScore(string, string, float64) {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}

func validObs() *models.PositionObservation {
	return &models.PositionObservation{
		PeriodTS:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Subject:    "0xaaa",
		Instrument: "HYPE",
		SignedSize: 10,
		Valid:      true,
	}
}

func TestPipelineRejectsInvalidObservation(t *testing.T) {
	proc := &countingProc{}
	p := NewSnapshotPipeline(proc, nopMetrics{})

	cases := []*models.PositionObservation{
		nil,
		{Instrument: "HYPE", PeriodTS: time.Now()},
		{Subject: "0xaaa", PeriodTS: time.Now()},
		{Subject: "0xaaa", Instrument: "HYPE"},
	}
	for i, o := range cases {
		if err := p.Process(context.Background(), o); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if proc.calls != 0 {
		t.Fatalf("invalid observations must not reach downstream, got %d", proc.calls)
	}
}

func TestPipelineForwardsValidObservation(t *testing.T) {
	proc := &countingProc{}
	p := NewSnapshotPipeline(proc, nopMetrics{})

	if err := p.Process(context.Background(), validObs()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.calls != 1 {
		t.Fatalf("expected 1 downstream call, got %d", proc.calls)
	}
}

func TestPipelineThrottlesPerSubject(t *testing.T) {
	proc := &countingProc{}
	p := NewSnapshotPipeline(proc, nopMetrics{}, WithMaxRPS(1))

	// Two back-to-back observations for the same wallet: the second is
	// dropped silently, not errored.
	if err := p.Process(context.Background(), validObs()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Process(context.Background(), validObs()); err != nil {
		t.Fatalf("throttled process must not error: %v", err)
	}
	if proc.calls != 1 {
		t.Fatalf("expected 1 downstream call, got %d", proc.calls)
	}

	// A different wallet has its own budget.
	other := validObs()
	other.Subject = "0xbbb"
	if err := p.Process(context.Background(), other); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.calls != 2 {
		t.Fatalf("expected independent throttle per subject, got %d calls", proc.calls)
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &countingProc{err: errors.New("store down")}
	p := NewSnapshotPipeline(proc, nopMetrics{}, WithBufferSize(4))

	if err := p.Process(context.Background(), validObs()); err == nil {
		t.Fatalf("expected downstream error to surface")
	}
	// The observation was parked in the buffer for the flusher.
	if got := len(p.bufCh); got != 1 {
		t.Fatalf("expected 1 buffered observation, got %d", got)
	}
}

func TestPipelineStartStopIdempotent(t *testing.T) {
	p := NewSnapshotPipeline(&countingProc{}, nopMetrics{})
	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx) // no-op
	p.Stop()
	p.Stop() // no-op
}
