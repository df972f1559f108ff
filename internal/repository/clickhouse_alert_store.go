package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	pkgch "WalletPulse/pkg/clickhouse"
	applogger "WalletPulse/pkg/logger"
)

// CHAlertStore persists alert hysteresis state and the append-only event log
// in ClickHouse. State rows live in a ReplacingMergeTree versioned by
// updated_at, so UpsertState is a plain insert and readers use FINAL.
type CHAlertStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHAlertStore creates ClickHouse-backed alert storage.
func NewCHAlertStore(ch *pkgch.Client) *CHAlertStore {
	return &CHAlertStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHAlertStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHAlertStore) GetState(ctx context.Context, subject string, kind models.AlertKind) (*models.AlertState, error) {
	const q = `
        SELECT subject, kind, active, last_triggered, cooldown_until,
               daily_count, daily_window_start,
               confirmed_playbook, pending_playbook, pending_periods, updated_at
        FROM alert_state FINAL
        WHERE subject = ? AND kind = ?
        LIMIT 1
    `
	var (
		st             models.AlertState
		kindStr        string
		dailyCount     uint32
		pendingPeriods uint32
	)
	err := s.db.QueryRowContext(ctx, q, subject, string(kind)).Scan(
		&st.Subject,
		&kindStr,
		&st.Active,
		&st.LastTriggered,
		&st.CooldownUntil,
		&dailyCount,
		&st.DailyWindowStart,
		&st.ConfirmedPlaybook,
		&st.PendingPlaybook,
		&pendingPeriods,
		&st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert state: %w", err)
	}
	st.Kind = models.AlertKind(kindStr)
	st.DailyCount = int(dailyCount)
	st.PendingPeriods = int(pendingPeriods)
	return &st, nil
}

func (s *CHAlertStore) UpsertState(ctx context.Context, st *models.AlertState) error {
	const q = `
        INSERT INTO alert_state
            (subject, kind, active, last_triggered, cooldown_until,
             daily_count, daily_window_start,
             confirmed_playbook, pending_playbook, pending_periods, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		st.Subject,
		string(st.Kind),
		st.Active,
		st.LastTriggered,
		st.CooldownUntil,
		uint32(st.DailyCount),
		st.DailyWindowStart,
		st.ConfirmedPlaybook,
		st.PendingPlaybook,
		uint32(st.PendingPeriods),
		st.UpdatedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse alert state upsert error",
				applogger.String("subject", st.Subject),
				applogger.String("kind", string(st.Kind)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert alert state: %w", err)
	}
	return nil
}

func (s *CHAlertStore) AppendEvent(ctx context.Context, ev *models.AlertEvent) error {
	snapshot := ""
	if ev.Snapshot != nil {
		b, err := json.Marshal(ev.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal alert snapshot: %w", err)
		}
		snapshot = string(b)
	}
	const q = `INSERT INTO alert_events (ts, subject, kind, severity, message, snapshot, suppressed) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		ev.TS,
		ev.Subject,
		string(ev.Kind),
		string(ev.Severity),
		ev.Message,
		snapshot,
		ev.Suppressed,
	)
	if err != nil {
		return fmt.Errorf("append alert event: %w", err)
	}
	return nil
}

func (s *CHAlertStore) UnsuppressedCount(ctx context.Context, subject string, since time.Time) (int, error) {
	const q = `
        SELECT count()
        FROM alert_events
        WHERE subject = ? AND ts >= ? AND suppressed = false
    `
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, subject, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("unsuppressed count: %w", err)
	}
	return int(n), nil
}

func (s *CHAlertStore) RecentEvents(ctx context.Context, subject string, limit int) ([]models.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
        SELECT ts, subject, kind, severity, message, snapshot, suppressed
        FROM alert_events
    `
	args := []interface{}{}
	if subject != "" {
		q += ` WHERE subject = ?`
		args = append(args, subject)
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	out := make([]models.AlertEvent, 0, limit)
	for rows.Next() {
		var (
			ev             models.AlertEvent
			kind, severity string
			snapshot       string
		)
		if err := rows.Scan(&ev.TS, &ev.Subject, &kind, &severity, &ev.Message, &snapshot, &ev.Suppressed); err != nil {
			return nil, fmt.Errorf("recent events scan: %w", err)
		}
		ev.Kind = models.AlertKind(kind)
		ev.Severity = models.Severity(severity)
		if snapshot != "" {
			var sp models.SignalPeriod
			if err := json.Unmarshal([]byte(snapshot), &sp); err == nil {
				ev.Snapshot = &sp
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
