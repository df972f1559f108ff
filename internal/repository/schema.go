package repository

// Schema returns the idempotent DDL for all engine tables. ReplacingMergeTree
// gives retry-safe upserts: re-inserting the same key replaces the row at
// merge time, and readers query with FINAL.
func Schema(database string) []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS ` + database,
		`CREATE TABLE IF NOT EXISTS ` + database + `.wallet_snapshots (
            period_ts   DateTime,
            subject     String,
            instrument  String,
            signed_size Float64,
            valid       Bool
        ) ENGINE = ReplacingMergeTree()
        PARTITION BY toYYYYMMDD(period_ts)
        ORDER BY (instrument, period_ts, subject)
        TTL period_ts + INTERVAL 30 DAY`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.signal_periods (
            period_ts          DateTime,
            instrument         String,
            alignment_score    Float64,
            alignment_trend    String,
            dispersion_index   Float64,
            exit_cluster_score Float64,
            allowed_playbook   String,
            risk_mode          String,
            add_exposure       Bool,
            tighten_stops      Bool,
            subject_count      UInt32,
            missing_count      UInt32,
            degraded           Bool,
            degraded_reason    String,
            pct_adder_long     Float64,
            pct_adder_short    Float64,
            pct_reducer        Float64,
            pct_flat           Float64,
            computation_ms     Int64
        ) ENGINE = ReplacingMergeTree()
        PARTITION BY toYYYYMM(period_ts)
        ORDER BY (instrument, period_ts)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.alert_state (
            subject            String,
            kind               String,
            active             Bool,
            last_triggered     DateTime,
            cooldown_until     DateTime,
            daily_count        UInt32,
            daily_window_start DateTime,
            confirmed_playbook String,
            pending_playbook   String,
            pending_periods    UInt32,
            updated_at         DateTime64(3)
        ) ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY (subject, kind)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.alert_events (
            ts         DateTime64(3),
            subject    String,
            kind       String,
            severity   String,
            message    String,
            snapshot   String,
            suppressed Bool
        ) ENGINE = MergeTree()
        PARTITION BY toYYYYMM(ts)
        ORDER BY (subject, ts)
        TTL toDateTime(ts) + INTERVAL 90 DAY`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.ingest_health (
            ts              DateTime64(3),
            last_success_ts DateTime64(3),
            status          String,
            coverage_pct    Float64
        ) ENGINE = MergeTree()
        ORDER BY ts
        TTL toDateTime(ts) + INTERVAL 7 DAY`,
	}
}
