package usecase

import (
	"context"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	drepo "WalletPulse/internal/domain/repository"
)

// SignalReader serves the read-only API: latest signal, signal history,
// alert log, and current ingest health.
type SignalReader struct {
	signals drepo.SignalStore
	alerts  drepo.AlertStore
	obs     drepo.ObservationStore
}

// NewSignalReader creates a new SignalReader instance.
func NewSignalReader(signals drepo.SignalStore, alerts drepo.AlertStore, obs drepo.ObservationStore) *SignalReader {
	return &SignalReader{signals: signals, alerts: alerts, obs: obs}
}

// SignalView is the JSON shape of one signal period.
type SignalView struct {
	PeriodTS         time.Time `json:"period_ts"`
	Instrument       string    `json:"instrument"`
	AlignmentScore   float64   `json:"alignment_score"`
	AlignmentTrend   string    `json:"alignment_trend"`
	DispersionIndex  float64   `json:"dispersion_index"`
	ExitClusterScore float64   `json:"exit_cluster_score"`
	AllowedPlaybook  string    `json:"allowed_playbook"`
	RiskMode         string    `json:"risk_mode"`
	AddExposure      bool      `json:"add_exposure"`
	TightenStops     bool      `json:"tighten_stops"`
	SubjectCount     int       `json:"subject_count"`
	MissingCount     int       `json:"missing_count"`
	Degraded         bool      `json:"degraded"`
	DegradedReason   string    `json:"degraded_reason,omitempty"`
	PctAdderLong     float64   `json:"pct_adder_long"`
	PctAdderShort    float64   `json:"pct_adder_short"`
	PctReducer       float64   `json:"pct_reducer"`
	PctFlat          float64   `json:"pct_flat"`
	ComputationMS    int64     `json:"computation_ms"`
}

// AlertView is the JSON shape of one alert event.
type AlertView struct {
	TS         time.Time `json:"ts"`
	Subject    string    `json:"subject"`
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	Suppressed bool      `json:"suppressed"`
}

// HealthView is the JSON shape of the ingest health summary.
type HealthView struct {
	TS            time.Time `json:"ts"`
	LastSuccessTS time.Time `json:"last_success_ts"`
	Status        string    `json:"status"`
	CoveragePct   float64   `json:"coverage_pct"`
	AgeSeconds    float64   `json:"age_seconds"`
}

func toSignalView(sp *models.SignalPeriod) *SignalView {
	return &SignalView{
		PeriodTS:         sp.PeriodTS,
		Instrument:       sp.Instrument,
		AlignmentScore:   sp.AlignmentScore,
		AlignmentTrend:   string(sp.AlignmentTrend),
		DispersionIndex:  sp.DispersionIndex,
		ExitClusterScore: sp.ExitClusterScore,
		AllowedPlaybook:  string(sp.AllowedPlaybook),
		RiskMode:         string(sp.RiskMode),
		AddExposure:      sp.AddExposure,
		TightenStops:     sp.TightenStops,
		SubjectCount:     sp.SubjectCount,
		MissingCount:     sp.MissingCount,
		Degraded:         sp.Degraded,
		DegradedReason:   sp.DegradedReason,
		PctAdderLong:     sp.Breakdown.PctAdderLong,
		PctAdderShort:    sp.Breakdown.PctAdderShort,
		PctReducer:       sp.Breakdown.PctReducer,
		PctFlat:          sp.Breakdown.PctFlat,
		ComputationMS:    sp.ComputationMS,
	}
}

// Latest returns the most recent signal period for an instrument, or nil when
// none has been computed yet.
func (r *SignalReader) Latest(ctx context.Context, instrument string) (*SignalView, error) {
	sp, err := r.signals.Latest(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("latest signal: %w", err)
	}
	if sp == nil {
		return nil, nil
	}
	return toSignalView(sp), nil
}

// History returns up to n recent signal periods, most recent first.
func (r *SignalReader) History(ctx context.Context, instrument string, n int) ([]*SignalView, error) {
	rows, err := r.signals.History(ctx, instrument, n)
	if err != nil {
		return nil, fmt.Errorf("signal history: %w", err)
	}
	out := make([]*SignalView, 0, len(rows))
	for i := range rows {
		out = append(out, toSignalView(&rows[i]))
	}
	return out, nil
}

// Alerts returns the recent alert log, optionally filtered by subject.
func (r *SignalReader) Alerts(ctx context.Context, subject string, n int) ([]*AlertView, error) {
	events, err := r.alerts.RecentEvents(ctx, subject, n)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	out := make([]*AlertView, 0, len(events))
	for _, ev := range events {
		out = append(out, &AlertView{
			TS:         ev.TS,
			Subject:    ev.Subject,
			Kind:       string(ev.Kind),
			Severity:   string(ev.Severity),
			Message:    ev.Message,
			Suppressed: ev.Suppressed,
		})
	}
	return out, nil
}

// Health returns the current ingest health, or nil when none was recorded.
func (r *SignalReader) Health(ctx context.Context) (*HealthView, error) {
	h, err := r.obs.CurrentHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("current health: %w", err)
	}
	if h == nil {
		return nil, nil
	}
	return &HealthView{
		TS:            h.TS,
		LastSuccessTS: h.LastSuccessTS,
		Status:        string(h.Status),
		CoveragePct:   h.CoveragePct,
		AgeSeconds:    h.Age(time.Now().UTC()).Seconds(),
	}, nil
}
