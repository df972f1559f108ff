package health

import (
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
)

// Gate is the signal lock: the precondition check that suppresses signal
// computation entirely when upstream data quality is insufficient. It is a
// hard gate — no placeholder output is ever written while it is closed.
type Gate struct {
	maxStaleness time.Duration
	minCoverage  float64
	fullCoverage float64
}

// GateOption configures Gate.
type GateOption func(*Gate)

// WithMaxStaleness sets the maximum accepted age of the last successful
// ingestion.
func WithMaxStaleness(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.maxStaleness = d
		}
	}
}

// WithCoverageThresholds sets the closed-below and degraded-below coverage
// percentages.
func WithCoverageThresholds(min, full float64) GateOption {
	return func(g *Gate) {
		if min > 0 {
			g.minCoverage = min
		}
		if full > 0 {
			g.fullCoverage = full
		}
	}
}

// NewGate builds a gate with the default thresholds: 10 minute staleness,
// closed below 80% coverage, degraded below 90%.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		maxStaleness: 10 * time.Minute,
		minCoverage:  80,
		fullCoverage: 90,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decision is the gate's verdict for one period.
type Decision struct {
	Allowed  bool
	Degraded bool
	Reason   string
}

// Check decides whether computation may proceed right now. A nil summary
// means the ingestion layer has never reported: closed.
func (g *Gate) Check(h *models.HealthSummary, now time.Time) Decision {
	if h == nil {
		return Decision{Reason: "no health summary"}
	}
	if h.Status == models.HealthFailed {
		return Decision{Reason: "ingestion status failed"}
	}
	if age := h.Age(now); age > g.maxStaleness {
		return Decision{Reason: fmt.Sprintf("data stale for %s", age.Truncate(time.Second))}
	}
	if h.CoveragePct < g.minCoverage {
		return Decision{Reason: fmt.Sprintf("coverage %.1f%% below %.0f%%", h.CoveragePct, g.minCoverage)}
	}
	d := Decision{Allowed: true}
	if h.CoveragePct < g.fullCoverage {
		d.Degraded = true
		d.Reason = fmt.Sprintf("coverage %.1f%% below %.0f%%", h.CoveragePct, g.fullCoverage)
	}
	return d
}

// MaxStaleness exposes the staleness threshold for the stale alarm, which
// shares it by contract.
func (g *Gate) MaxStaleness() time.Duration { return g.maxStaleness }
