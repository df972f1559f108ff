package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"WalletPulse/internal/domain/models"
	pkgch "WalletPulse/pkg/clickhouse"
	applogger "WalletPulse/pkg/logger"
)

// CHObservationStore persists wallet position snapshots and the ingest health
// feed in ClickHouse.
type CHObservationStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHObservationStore creates ClickHouse-backed observation storage.
func NewCHObservationStore(ch *pkgch.Client) *CHObservationStore {
	return &CHObservationStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHObservationStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHObservationStore) Store(ctx context.Context, o *models.PositionObservation) error {
	const q = `INSERT INTO wallet_snapshots (period_ts, subject, instrument, signed_size, valid) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, o.PeriodTS, o.Subject, o.Instrument, o.SignedSize, o.Valid)
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *CHObservationStore) StoreBatch(ctx context.Context, obs []*models.PositionObservation) error {
	if len(obs) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips. 2000 rows per chunk.
	const chunkSize = 2000
	for start := 0; start < len(obs); start += chunkSize {
		end := start + chunkSize
		if end > len(obs) {
			end = len(obs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, o := range obs[start:end] {
			if o == nil || o.Subject == "" || o.PeriodTS.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, o.PeriodTS, o.Subject, o.Instrument, o.SignedSize, o.Valid)
		}
		if len(values) == 0 {
			continue
		}
		q := "INSERT INTO wallet_snapshots (period_ts, subject, instrument, signed_size, valid) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store snapshot batch: %w", err)
		}
	}
	return nil
}

func (s *CHObservationStore) ObservationsAt(ctx context.Context, instrument string, periodTS time.Time) ([]models.PositionObservation, error) {
	const q = `
        SELECT period_ts, subject, instrument, signed_size, valid
        FROM wallet_snapshots FINAL
        WHERE instrument = ? AND period_ts = ?
        ORDER BY subject ASC
    `
	rows, err := s.db.QueryContext(ctx, q, instrument, periodTS)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse observations_at query error",
				applogger.String("instrument", instrument),
				applogger.Time("period_ts", periodTS),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("observations at: %w", err)
	}
	defer rows.Close()

	out := make([]models.PositionObservation, 0, 256)
	for rows.Next() {
		var o models.PositionObservation
		if err := rows.Scan(&o.PeriodTS, &o.Subject, &o.Instrument, &o.SignedSize, &o.Valid); err != nil {
			return nil, fmt.Errorf("observations at scan: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *CHObservationStore) History24h(ctx context.Context, subject, instrument string, until time.Time) ([]float64, error) {
	const q = `
        SELECT abs(signed_size)
        FROM wallet_snapshots FINAL
        WHERE subject = ? AND instrument = ?
          AND period_ts > ? AND period_ts <= ?
          AND valid = true
        ORDER BY period_ts ASC
    `
	rows, err := s.db.QueryContext(ctx, q, subject, instrument, until.Add(-24*time.Hour), until)
	if err != nil {
		return nil, fmt.Errorf("history 24h: %w", err)
	}
	defer rows.Close()

	out := make([]float64, 0, 288)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("history 24h scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *CHObservationStore) RecordHealth(ctx context.Context, h *models.HealthSummary) error {
	const q = `INSERT INTO ingest_health (ts, last_success_ts, status, coverage_pct) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, h.TS, h.LastSuccessTS, string(h.Status), h.CoveragePct)
	if err != nil {
		return fmt.Errorf("record health: %w", err)
	}
	return nil
}

func (s *CHObservationStore) CurrentHealth(ctx context.Context) (*models.HealthSummary, error) {
	const q = `
        SELECT ts, last_success_ts, status, coverage_pct
        FROM ingest_health
        ORDER BY ts DESC
        LIMIT 1
    `
	var (
		h      models.HealthSummary
		status string
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&h.TS, &h.LastSuccessTS, &status, &h.CoveragePct)
	if errors.Is(err, sql.ErrNoRows) {
		// no health ever recorded; the gate treats this as closed
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current health: %w", err)
	}
	h.Status = models.HealthStatus(status)
	return &h, nil
}

func (s *CHObservationStore) Close() error {
	return nil // pool owned by pkg client
}
