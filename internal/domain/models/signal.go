package models

import (
	"fmt"
	"time"
)

// Trend is the direction of the alignment score versus its 3-period average.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFlat    Trend = "flat"
	TrendFalling Trend = "falling"
)

// Playbook is the allowed trading posture for one (instrument, period).
type Playbook string

const (
	PlaybookLongOnly  Playbook = "Long-only"
	PlaybookShortOnly Playbook = "Short-only"
	PlaybookNoTrade   Playbook = "No-trade"
)

// RiskMode qualifies the playbook with a sizing posture.
type RiskMode string

const (
	RiskNormal    RiskMode = "Normal"
	RiskReduced   RiskMode = "Reduced"
	RiskDefensive RiskMode = "Defensive"
)

// SignalPeriod is the engine's primary output: one row per
// (instrument, 5-minute period), immutable after write. The upsert key
// (PeriodTS, Instrument) exists for retry-safety, not mutation.
type SignalPeriod struct {
	PeriodTS         time.Time
	Instrument       string
	AlignmentScore   float64
	AlignmentTrend   Trend
	DispersionIndex  float64
	ExitClusterScore float64
	AllowedPlaybook  Playbook
	RiskMode         RiskMode
	AddExposure      bool
	TightenStops     bool
	SubjectCount     int
	MissingCount     int
	Degraded         bool
	DegradedReason   string
	Breakdown        StateBreakdown
	ComputationMS    int64
}

// Validate enforces the output invariants. A violation here is a logic
// defect, not a data-quality issue: the caller must abort the write.
func (s *SignalPeriod) Validate() error {
	if s.Instrument == "" {
		return fmt.Errorf("signal period: instrument is empty")
	}
	if s.PeriodTS.IsZero() {
		return fmt.Errorf("signal period: period_ts is zero")
	}
	for _, b := range []struct {
		name string
		v    float64
	}{
		{"alignment_score", s.AlignmentScore},
		{"dispersion_index", s.DispersionIndex},
		{"exit_cluster_score", s.ExitClusterScore},
	} {
		if b.v < 0 || b.v > 100 {
			return fmt.Errorf("signal period: %s=%.4f out of [0,100]", b.name, b.v)
		}
	}
	switch s.AlignmentTrend {
	case TrendRising, TrendFlat, TrendFalling:
	default:
		return fmt.Errorf("signal period: unknown trend %q", s.AlignmentTrend)
	}
	switch s.AllowedPlaybook {
	case PlaybookLongOnly, PlaybookShortOnly, PlaybookNoTrade:
	default:
		return fmt.Errorf("signal period: unknown playbook %q", s.AllowedPlaybook)
	}
	switch s.RiskMode {
	case RiskNormal, RiskReduced, RiskDefensive:
	default:
		return fmt.Errorf("signal period: unknown risk mode %q", s.RiskMode)
	}
	if s.SubjectCount < 0 || s.MissingCount < 0 {
		return fmt.Errorf("signal period: negative counts (%d/%d)", s.SubjectCount, s.MissingCount)
	}
	return nil
}
