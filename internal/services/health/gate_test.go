package health

import (
	"testing"
	"time"

	"WalletPulse/internal/domain/models"
)

var gateNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func summary(status models.HealthStatus, coverage float64, age time.Duration) *models.HealthSummary {
	return &models.HealthSummary{
		TS:            gateNow,
		LastSuccessTS: gateNow.Add(-age),
		Status:        status,
		CoveragePct:   coverage,
	}
}

func TestGateNilSummary(t *testing.T) {
	g := NewGate()
	d := g.Check(nil, gateNow)
	if d.Allowed {
		t.Fatalf("expected closed gate on nil summary")
	}
}

func TestGateFailedStatus(t *testing.T) {
	g := NewGate()
	d := g.Check(summary(models.HealthFailed, 100, time.Minute), gateNow)
	if d.Allowed {
		t.Fatalf("expected closed gate on failed status")
	}
}

func TestGateStaleData(t *testing.T) {
	g := NewGate()
	d := g.Check(summary(models.HealthOK, 100, 11*time.Minute), gateNow)
	if d.Allowed {
		t.Fatalf("expected closed gate on stale data")
	}
	// At exactly the threshold the gate stays open.
	d = g.Check(summary(models.HealthOK, 100, 10*time.Minute), gateNow)
	if !d.Allowed {
		t.Fatalf("expected open gate at exact threshold: %s", d.Reason)
	}
}

func TestGateCoverageBands(t *testing.T) {
	g := NewGate()

	d := g.Check(summary(models.HealthOK, 75, time.Minute), gateNow)
	if d.Allowed {
		t.Fatalf("expected closed gate below 80%%")
	}

	d = g.Check(summary(models.HealthDegraded, 85, time.Minute), gateNow)
	if !d.Allowed {
		t.Fatalf("expected open gate at 85%%: %s", d.Reason)
	}
	if !d.Degraded {
		t.Fatalf("expected degraded at 85%%")
	}

	d = g.Check(summary(models.HealthOK, 95, time.Minute), gateNow)
	if !d.Allowed || d.Degraded {
		t.Fatalf("expected clean open gate at 95%%, got %+v", d)
	}

	// Band edges: 80 opens degraded, 90 opens clean.
	d = g.Check(summary(models.HealthOK, 80, time.Minute), gateNow)
	if !d.Allowed || !d.Degraded {
		t.Fatalf("expected degraded open at 80%%, got %+v", d)
	}
	d = g.Check(summary(models.HealthOK, 90, time.Minute), gateNow)
	if !d.Allowed || d.Degraded {
		t.Fatalf("expected clean open at 90%%, got %+v", d)
	}
}

func TestGateOptions(t *testing.T) {
	g := NewGate(WithMaxStaleness(2*time.Minute), WithCoverageThresholds(50, 70))
	if g.MaxStaleness() != 2*time.Minute {
		t.Fatalf("unexpected staleness threshold %v", g.MaxStaleness())
	}
	d := g.Check(summary(models.HealthOK, 60, time.Minute), gateNow)
	if !d.Allowed || !d.Degraded {
		t.Fatalf("expected degraded open at 60%% with custom thresholds, got %+v", d)
	}
	d = g.Check(summary(models.HealthOK, 60, 3*time.Minute), gateNow)
	if d.Allowed {
		t.Fatalf("expected closed gate with custom staleness")
	}
}
