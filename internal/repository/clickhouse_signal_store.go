package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	pkgch "WalletPulse/pkg/clickhouse"
	applogger "WalletPulse/pkg/logger"
)

const signalColumns = `period_ts, instrument, alignment_score, alignment_trend,
        dispersion_index, exit_cluster_score, allowed_playbook, risk_mode,
        add_exposure, tighten_stops, subject_count, missing_count,
        degraded, degraded_reason,
        pct_adder_long, pct_adder_short, pct_reducer, pct_flat, computation_ms`

// CHSignalStore persists SignalPeriod rows in ClickHouse. The table is a
// ReplacingMergeTree keyed on (instrument, period_ts), so a retried insert
// of the same period replaces rather than duplicates.
type CHSignalStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHSignalStore creates ClickHouse-backed signal storage.
func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalStore) Upsert(ctx context.Context, sp *models.SignalPeriod) error {
	q := `INSERT INTO signal_periods (` + signalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		sp.PeriodTS,
		sp.Instrument,
		sp.AlignmentScore,
		string(sp.AlignmentTrend),
		sp.DispersionIndex,
		sp.ExitClusterScore,
		string(sp.AllowedPlaybook),
		string(sp.RiskMode),
		sp.AddExposure,
		sp.TightenStops,
		uint32(sp.SubjectCount),
		uint32(sp.MissingCount),
		sp.Degraded,
		sp.DegradedReason,
		sp.Breakdown.PctAdderLong,
		sp.Breakdown.PctAdderShort,
		sp.Breakdown.PctReducer,
		sp.Breakdown.PctFlat,
		sp.ComputationMS,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse signal upsert error",
				applogger.String("instrument", sp.Instrument),
				applogger.Time("period_ts", sp.PeriodTS),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert signal period: %w", err)
	}
	return nil
}

func (s *CHSignalStore) Latest(ctx context.Context, instrument string) (*models.SignalPeriod, error) {
	q := `SELECT ` + signalColumns + ` FROM signal_periods FINAL WHERE instrument = ? ORDER BY period_ts DESC LIMIT 1`
	sp, err := s.scanOne(s.db.QueryRowContext(ctx, q, instrument))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest signal: %w", err)
	}
	return sp, nil
}

func (s *CHSignalStore) RecentAlignmentScores(ctx context.Context, instrument string, before time.Time, n int) ([]float64, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `
        SELECT alignment_score
        FROM signal_periods FINAL
        WHERE instrument = ? AND period_ts < ?
        ORDER BY period_ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, instrument, before, n)
	if err != nil {
		return nil, fmt.Errorf("recent alignment scores: %w", err)
	}
	defer rows.Close()

	out := make([]float64, 0, n)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("recent alignment scores scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *CHSignalStore) History(ctx context.Context, instrument string, n int) ([]models.SignalPeriod, error) {
	if n <= 0 {
		n = 100
	}
	q := `SELECT ` + signalColumns + ` FROM signal_periods FINAL WHERE instrument = ? ORDER BY period_ts DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, instrument, n)
	if err != nil {
		return nil, fmt.Errorf("signal history: %w", err)
	}
	defer rows.Close()

	out := make([]models.SignalPeriod, 0, n)
	for rows.Next() {
		sp, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("signal history scan: %w", err)
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *CHSignalStore) scanOne(r rowScanner) (*models.SignalPeriod, error) {
	var (
		sp                         models.SignalPeriod
		trend, playbook, riskMode  string
		subjectCount, missingCount uint32
	)
	err := r.Scan(
		&sp.PeriodTS,
		&sp.Instrument,
		&sp.AlignmentScore,
		&trend,
		&sp.DispersionIndex,
		&sp.ExitClusterScore,
		&playbook,
		&riskMode,
		&sp.AddExposure,
		&sp.TightenStops,
		&subjectCount,
		&missingCount,
		&sp.Degraded,
		&sp.DegradedReason,
		&sp.Breakdown.PctAdderLong,
		&sp.Breakdown.PctAdderShort,
		&sp.Breakdown.PctReducer,
		&sp.Breakdown.PctFlat,
		&sp.ComputationMS,
	)
	if err != nil {
		return nil, err
	}
	sp.AlignmentTrend = models.Trend(trend)
	sp.AllowedPlaybook = models.Playbook(playbook)
	sp.RiskMode = models.RiskMode(riskMode)
	sp.SubjectCount = int(subjectCount)
	sp.MissingCount = int(missingCount)
	return &sp, nil
}
