package alert

import (
	"context"
	"sync"
	"time"

	"WalletPulse/internal/domain/models"
	domrepo "WalletPulse/internal/domain/repository"
	domsvc "WalletPulse/internal/domain/service"
	applogger "WalletPulse/pkg/logger"
)

// Evaluator runs the per-(subject, kind) alert state machines after each
// signal period write. It exclusively owns AlertState mutation and
// AlertEvent creation. Each key is evaluated under its own lock so two
// near-simultaneous passes cannot double-fire or corrupt counters; different
// keys are independent.
type Evaluator struct {
	store    domrepo.AlertStore
	metrics  domrepo.Metrics
	l        *applogger.Logger
	pub      domrepo.Publisher
	notifier domsvc.Notifier

	regimeCooldown time.Duration
	exitCooldown   time.Duration
	dailyCap       int
	staleAfter     time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EvaluatorOption configures Evaluator.
type EvaluatorOption func(*Evaluator)

// WithCooldowns overrides the per-kind cooldown durations.
func WithCooldowns(regime, exit time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		if regime >= 0 {
			e.regimeCooldown = regime
		}
		if exit >= 0 {
			e.exitCooldown = exit
		}
	}
}

// WithDailyCap overrides the rolling-24h unsuppressed event cap per subject.
func WithDailyCap(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.dailyCap = n
		}
	}
}

// WithStaleAfter overrides the ingestion staleness threshold for the global
// stale alarm.
func WithStaleAfter(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

// WithPublisher attaches a bus publisher for fired events.
func WithPublisher(p domrepo.Publisher) EvaluatorOption {
	return func(e *Evaluator) { e.pub = p }
}

// WithNotifier attaches an out-of-band notifier for fired events.
func WithNotifier(n domsvc.Notifier) EvaluatorOption {
	return func(e *Evaluator) { e.notifier = n }
}

// NewEvaluator builds an evaluator with the production defaults: 30m regime
// cooldown, 60m exit-cluster cooldown, 4 events per subject per 24h, 10m
// staleness.
func NewEvaluator(store domrepo.AlertStore, metrics domrepo.Metrics, l *applogger.Logger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		store:          store,
		metrics:        metrics,
		l:              l,
		regimeCooldown: 30 * time.Minute,
		exitCooldown:   60 * time.Minute,
		dailyCap:       4,
		staleAfter:     10 * time.Minute,
		locks:          make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluatePeriod runs the behavioral state machines for one finished signal
// period. systemStale short-circuits them entirely: while the stale alarm is
// active the behavioral kinds are not evaluated, not merely throttled.
func (e *Evaluator) EvaluatePeriod(ctx context.Context, sp *models.SignalPeriod, now time.Time, systemStale bool) error {
	if systemStale {
		e.l.Warn("behavioral alerts suppressed, system stale",
			applogger.String("instrument", sp.Instrument))
		return nil
	}
	if err := e.evaluateRegimeChange(ctx, sp, now); err != nil {
		e.metrics.RecordError("alert_regime_change")
		e.l.Error("regime change evaluation failed",
			applogger.String("instrument", sp.Instrument), applogger.Error(err))
	}
	if err := e.evaluateExitCluster(ctx, sp, now); err != nil {
		e.metrics.RecordError("alert_exit_cluster")
		e.l.Error("exit cluster evaluation failed",
			applogger.String("instrument", sp.Instrument), applogger.Error(err))
	}
	return nil
}

// keyLock returns the mutex serializing one (subject, kind).
func (e *Evaluator) keyLock(subject string, kind models.AlertKind) *sync.Mutex {
	key := subject + "|" + string(kind)
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	return m
}

// emit persists the event (suppressed attempts included, for audit) and, for
// fired events, pushes them to the bus and notifier. Delivery is
// best-effort; the persisted row is the record of truth.
func (e *Evaluator) emit(ctx context.Context, ev *models.AlertEvent) error {
	if err := e.store.AppendEvent(ctx, ev); err != nil {
		return err
	}
	e.metrics.RecordAlert(string(ev.Kind), ev.Suppressed)
	if ev.Suppressed {
		e.l.Info("alert suppressed",
			applogger.String("subject", ev.Subject),
			applogger.String("kind", string(ev.Kind)))
		return nil
	}
	e.l.Warn("alert fired",
		applogger.String("subject", ev.Subject),
		applogger.String("kind", string(ev.Kind)),
		applogger.String("severity", string(ev.Severity)))
	if e.pub != nil {
		if err := e.pub.PublishAlert(ctx, ev); err != nil {
			e.metrics.RecordError("alert_publish")
			e.l.Error("alert publish failed", applogger.Error(err))
		}
	}
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.metrics.RecordError("alert_notify")
			e.l.Error("alert notify failed", applogger.Error(err))
		}
	}
	return nil
}
