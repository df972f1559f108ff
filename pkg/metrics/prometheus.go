package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	periodsComputed *prometheus.CounterVec
	gateSkips       *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	scores          *prometheus.GaugeVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		periodsComputed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletpulse_periods_computed_total",
				Help: "Total number of signal periods computed and committed",
			},
			[]string{"instrument"},
		),
		gateSkips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletpulse_gate_skips_total",
				Help: "Total number of computation cycles skipped by the signal lock",
			},
			[]string{"reason"},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletpulse_alerts_total",
				Help: "Total alert attempts by kind and suppression outcome",
			},
			[]string{"kind", "suppressed"},
		),
		scores: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "walletpulse_signal_score",
				Help: "Latest computed value per instrument and score",
			},
			[]string{"instrument", "name"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPeriodComputed records one committed signal period.
func (r *Recorder) RecordPeriodComputed(instrument string) {
	r.periodsComputed.WithLabelValues(instrument).Inc()
}

// RecordGateSkip records a cycle skipped by the signal lock.
func (r *Recorder) RecordGateSkip(reason string) {
	r.gateSkips.WithLabelValues(reason).Inc()
}

// RecordAlert records an alert attempt.
func (r *Recorder) RecordAlert(kind string, suppressed bool) {
	s := "false"
	if suppressed {
		s = "true"
	}
	r.alertsTotal.WithLabelValues(kind, s).Inc()
}

// RecordScore records the latest value of a named score.
func (r *Recorder) RecordScore(instrument, name string, value float64) {
	r.scores.WithLabelValues(instrument, name).Set(value)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
