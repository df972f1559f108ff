package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	domrepo "WalletPulse/internal/domain/repository"
	domsvc "WalletPulse/internal/domain/service"
	alertsvc "WalletPulse/internal/services/alert"
	healthsvc "WalletPulse/internal/services/health"
	signalsvc "WalletPulse/internal/services/signal"
	applogger "WalletPulse/pkg/logger"
)

// ErrGateClosed marks a period skipped because the signal lock is engaged.
// It is a scheduled skip, not a failure.
var ErrGateClosed = errors.New("signal lock engaged")

// ErrInvariantViolation marks a computed period that failed its own output
// invariants. The write is aborted; this is a logic defect and must be loud.
var ErrInvariantViolation = errors.New("signal invariant violation")

// SignalRunner orchestrates the 5-minute computation cycle: health gate,
// classification, signal core, playbook, persistence, then the alert pass.
// One instrument's computation never depends on another's in-flight state.
type SignalRunner struct {
	obs         domrepo.ObservationStore
	signals     domrepo.SignalStore
	eps         domsvc.EpsilonResolver
	gate        *healthsvc.Gate
	alerts      *alertsvc.Evaluator
	pub         domrepo.Publisher
	metrics     domrepo.Metrics
	l           *applogger.Logger
	instruments []string
	interval    time.Duration
}

// RunnerOption configures SignalRunner.
type RunnerOption func(*SignalRunner)

// WithPublisher attaches a bus publisher for finished signal periods.
func WithPublisher(p domrepo.Publisher) RunnerOption {
	return func(r *SignalRunner) { r.pub = p }
}

// WithInterval overrides the period length (tests only; production is 5m).
func WithInterval(d time.Duration) RunnerOption {
	return func(r *SignalRunner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewSignalRunner creates the period orchestrator.
func NewSignalRunner(
	obs domrepo.ObservationStore,
	signals domrepo.SignalStore,
	eps domsvc.EpsilonResolver,
	gate *healthsvc.Gate,
	alerts *alertsvc.Evaluator,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	instruments []string,
	opts ...RunnerOption,
) *SignalRunner {
	r := &SignalRunner{
		obs:         obs,
		signals:     signals,
		eps:         eps,
		gate:        gate,
		alerts:      alerts,
		metrics:     metrics,
		l:           l,
		instruments: instruments,
		interval:    domrepo.PeriodLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCycle executes one full computation cycle at now: the global stale
// alarm, the gate, one SignalPeriod per instrument, then the behavioral
// alert pass over the periods that were written.
func (r *SignalRunner) RunCycle(ctx context.Context, now time.Time) error {
	periodTS := domrepo.FloorPeriod(now)

	h, err := r.obs.CurrentHealth(ctx)
	if err != nil {
		r.metrics.RecordError("health_read")
		r.l.Error("health read failed", applogger.Error(err))
		h = nil
	}

	staleActive, err := r.alerts.EvaluateSystemStale(ctx, h, now)
	if err != nil {
		r.metrics.RecordError("alert_system_stale")
		r.l.Error("system stale evaluation failed", applogger.Error(err))
	}

	decision := r.gate.Check(h, now)
	if !decision.Allowed {
		r.metrics.RecordGateSkip(decision.Reason)
		r.l.Warn("signal lock engaged, skipping period",
			applogger.Time("period_ts", periodTS),
			applogger.String("reason", decision.Reason))
		return nil
	}

	computed := make([]*models.SignalPeriod, 0, len(r.instruments))
	for _, instrument := range r.instruments {
		sp, err := r.ComputePeriod(ctx, periodTS, instrument, decision)
		switch {
		case errors.Is(err, ErrGateClosed):
			// Health dropped mid-cycle: the period was discarded whole.
			// Remaining instruments would fail the same re-check.
			r.metrics.RecordGateSkip("mid_cycle")
			r.l.Warn("health lost mid-cycle, discarding remaining instruments",
				applogger.Time("period_ts", periodTS),
				applogger.String("instrument", instrument))
			return nil
		case err != nil:
			r.metrics.RecordError("period_compute")
			r.l.Error("period computation failed",
				applogger.String("instrument", instrument),
				applogger.Error(err))
			continue
		}
		computed = append(computed, sp)
	}

	for _, sp := range computed {
		if err := r.alerts.EvaluatePeriod(ctx, sp, now, staleActive); err != nil {
			r.metrics.RecordError("alert_pass")
			r.l.Error("alert pass failed",
				applogger.String("instrument", sp.Instrument),
				applogger.Error(err))
		}
	}
	return nil
}

// ComputePeriod builds one instrument's SignalPeriod into a local value,
// re-validates the gate, then commits the write — or discards everything.
// No partial state ever reaches the store.
func (r *SignalRunner) ComputePeriod(ctx context.Context, periodTS time.Time, instrument string, decision healthsvc.Decision) (*models.SignalPeriod, error) {
	start := time.Now()

	current, err := r.obs.ObservationsAt(ctx, instrument, periodTS)
	if err != nil {
		return nil, fmt.Errorf("current observations: %w", err)
	}
	previous, err := r.obs.ObservationsAt(ctx, instrument, periodTS.Add(-r.interval))
	if err != nil {
		return nil, fmt.Errorf("previous observations: %w", err)
	}

	deltas, missing := BuildDeltas(current, previous)

	epsilons := make(map[string]float64, len(deltas))
	for _, d := range deltas {
		eps, err := r.eps.Resolve(ctx, d.Subject, instrument)
		if err != nil {
			// A missing epsilon degrades to the floor rather than dropping
			// the wallet: the classifier still needs a positive threshold.
			r.metrics.RecordError("epsilon_resolve")
			continue
		}
		epsilons[d.Subject] = eps
	}

	cls := signalsvc.ClassifyAll(instrument, deltas, epsilons, r.eps.Floor(instrument))
	counts := signalsvc.CountStates(cls)

	casHistory, err := r.signals.RecentAlignmentScores(ctx, instrument, periodTS, 3)
	if err != nil {
		return nil, fmt.Errorf("cas history: %w", err)
	}

	core := signalsvc.Compute(counts, cls, casHistory)
	dec := signalsvc.Resolve(core)

	sp := &models.SignalPeriod{
		PeriodTS:         periodTS,
		Instrument:       instrument,
		AlignmentScore:   core.AlignmentScore,
		AlignmentTrend:   core.AlignmentTrend,
		DispersionIndex:  core.DispersionIndex,
		ExitClusterScore: core.ExitClusterScore,
		AllowedPlaybook:  dec.Playbook,
		RiskMode:         dec.RiskMode,
		AddExposure:      dec.AddExposure,
		TightenStops:     dec.TightenStops,
		SubjectCount:     counts.Total,
		MissingCount:     missing,
		Breakdown:        counts.Percentages(),
	}
	r.applyDegradation(sp, counts, missing, decision)
	sp.ComputationMS = time.Since(start).Milliseconds()

	if err := sp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	// Two-phase commit: the gate is re-checked against fresh health before
	// anything is published. Closed now means the whole period is dropped.
	h, err := r.obs.CurrentHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("health re-check: %w", err)
	}
	if d := r.gate.Check(h, time.Now().UTC()); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrGateClosed, d.Reason)
	}

	if err := r.signals.Upsert(ctx, sp); err != nil {
		return nil, fmt.Errorf("upsert signal: %w", err)
	}
	if r.pub != nil {
		if err := r.pub.PublishSignal(ctx, sp); err != nil {
			r.metrics.RecordError("signal_publish")
			r.l.Error("signal publish failed",
				applogger.String("instrument", instrument),
				applogger.Error(err))
		}
	}

	r.metrics.RecordPeriodComputed(instrument)
	r.metrics.RecordScore(instrument, "alignment", sp.AlignmentScore)
	r.metrics.RecordScore(instrument, "dispersion", sp.DispersionIndex)
	r.metrics.RecordScore(instrument, "exit_cluster", sp.ExitClusterScore)
	r.metrics.RecordLatency("period_compute", time.Since(start).Seconds())

	r.l.Info("signal period written",
		applogger.String("instrument", instrument),
		applogger.Time("period_ts", periodTS),
		applogger.String("playbook", string(sp.AllowedPlaybook)),
		applogger.String("risk_mode", string(sp.RiskMode)),
		applogger.Float64("cas", sp.AlignmentScore),
		applogger.Bool("degraded", sp.Degraded),
		applogger.Int64("duration_ms", sp.ComputationMS))
	return sp, nil
}

// applyDegradation marks the period degraded and forces a conservative
// playbook when data quality is impaired, whatever the raw scores imply.
func (r *SignalRunner) applyDegradation(sp *models.SignalPeriod, counts models.StateCounts, missing int, decision healthsvc.Decision) {
	reason := ""
	switch {
	case counts.Total == 0:
		reason = "no classifiable subjects"
	case missing > 0:
		reason = fmt.Sprintf("%d subjects missing", missing)
	case decision.Degraded:
		reason = decision.Reason
	default:
		return
	}

	sp.Degraded = true
	sp.DegradedReason = reason
	sp.AllowedPlaybook = models.PlaybookNoTrade
	if sp.RiskMode == models.RiskNormal {
		sp.RiskMode = models.RiskReduced
	}
}

// Run drives the cycle on 5-minute boundaries until the context is
// cancelled. A cycle that overruns its boundary is logged and the next
// boundary is skipped rather than ever overlapping computation.
func (r *SignalRunner) Run(ctx context.Context) error {
	r.l.Info("signal runner started",
		applogger.Strings("instruments", r.instruments),
		applogger.Duration("interval", r.interval))

	for {
		next := domrepo.NextPeriod(time.Now().UTC())
		select {
		case <-ctx.Done():
			r.l.Info("signal runner stopped")
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		cycleStart := time.Now().UTC()
		if err := r.RunCycle(ctx, cycleStart); err != nil {
			r.l.Error("cycle failed", applogger.Error(err))
		}
		if took := time.Since(cycleStart); took > r.interval {
			r.metrics.RecordError("cycle_overrun")
			r.l.Warn("cycle overran period boundary",
				applogger.Duration("took", took))
		}
	}
}
