package models

import "time"

// HealthStatus is the ingestion layer's self-reported condition.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
	HealthFailed   HealthStatus = "failed"
)

// HealthSummary is the single logical "current" health value consumed by the
// signal lock. Produced by the ingestion collaborator, never by the engine.
type HealthSummary struct {
	TS            time.Time
	LastSuccessTS time.Time
	Status        HealthStatus
	CoveragePct   float64
}

// Age returns how long ago the last successful ingestion completed.
func (h *HealthSummary) Age(now time.Time) time.Duration {
	return now.Sub(h.LastSuccessTS)
}
