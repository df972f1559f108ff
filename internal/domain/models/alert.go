package models

import "time"

// AlertKind identifies one of the three alert state machines.
type AlertKind string

const (
	AlertRegimeChange AlertKind = "regime_change"
	AlertExitCluster  AlertKind = "exit_cluster"
	AlertSystemStale  AlertKind = "system_stale"
)

// Severity grades an alert for the consumer.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SystemSubject is the synthetic subject used by the global stale alarm.
const SystemSubject = "system"

// AlertState is the long-lived hysteresis/throttle memory for one
// (subject, kind). It must survive restarts; it is the sole source of truth
// for whether a new AlertEvent may be emitted.
type AlertState struct {
	Subject          string
	Kind             AlertKind
	Active           bool
	LastTriggered    time.Time
	CooldownUntil    time.Time
	DailyCount       int
	DailyWindowStart time.Time
	// Regime-change tracking: the last confirmed playbook, the candidate
	// playbook awaiting persistence, and how many periods it has held.
	ConfirmedPlaybook string
	PendingPlaybook   string
	PendingPeriods    int
	UpdatedAt         time.Time
}

// AlertEvent is one append-only row per emitted or suppressed alert attempt.
type AlertEvent struct {
	TS         time.Time
	Subject    string
	Kind       AlertKind
	Severity   Severity
	Message    string
	Snapshot   *SignalPeriod
	Suppressed bool
}
