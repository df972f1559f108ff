package repository

import (
	"context"
	"time"

	"WalletPulse/internal/domain/models"
)

// PositionStream is the upstream feed of wallet position snapshots.
type PositionStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PositionObservation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SnapshotFetcher pulls the current position snapshot of every tracked
// wallet on demand, outside the streaming subscription. A partial result may
// come back alongside a non-nil error.
type SnapshotFetcher interface {
	FetchAll(ctx context.Context) ([]*models.PositionObservation, error)
}

// ObservationStore provides read/write access to position observations and
// the ingestion health summary.
type ObservationStore interface {
	Store(ctx context.Context, o *models.PositionObservation) error
	StoreBatch(ctx context.Context, obs []*models.PositionObservation) error
	// ObservationsAt returns the latest observation per subject for the
	// window ending at periodTS. Every universe subject has an explicit row;
	// subjects with no row at all count as missing, not flat.
	ObservationsAt(ctx context.Context, instrument string, periodTS time.Time) ([]models.PositionObservation, error)
	// History24h returns the absolute signed sizes observed for one
	// (subject, instrument) in the 24 hours before until.
	History24h(ctx context.Context, subject, instrument string, until time.Time) ([]float64, error)
	RecordHealth(ctx context.Context, h *models.HealthSummary) error
	CurrentHealth(ctx context.Context) (*models.HealthSummary, error)
	Close() error
}

// SignalStore persists SignalPeriod rows. Upsert is keyed by
// (period_ts, instrument) and must be idempotent under retry.
type SignalStore interface {
	Upsert(ctx context.Context, s *models.SignalPeriod) error
	Latest(ctx context.Context, instrument string) (*models.SignalPeriod, error)
	// RecentAlignmentScores returns up to n alignment scores for periods
	// strictly before the given timestamp, most recent first.
	RecentAlignmentScores(ctx context.Context, instrument string, before time.Time, n int) ([]float64, error)
	History(ctx context.Context, instrument string, n int) ([]models.SignalPeriod, error)
}

// AlertStore persists alert hysteresis state and the append-only event log.
type AlertStore interface {
	GetState(ctx context.Context, subject string, kind models.AlertKind) (*models.AlertState, error)
	UpsertState(ctx context.Context, st *models.AlertState) error
	AppendEvent(ctx context.Context, ev *models.AlertEvent) error
	// UnsuppressedCount counts emitted (non-suppressed) events for a subject
	// since the cutoff, across all kinds. Used by the rolling daily cap.
	UnsuppressedCount(ctx context.Context, subject string, since time.Time) (int, error)
	RecentEvents(ctx context.Context, subject string, limit int) ([]models.AlertEvent, error)
}

// Publisher pushes finished records to the downstream bus.
type Publisher interface {
	PublishSignal(ctx context.Context, s *models.SignalPeriod) error
	PublishAlert(ctx context.Context, ev *models.AlertEvent) error
	PublishObservation(ctx context.Context, o *models.PositionObservation) error
	Close() error
}

// Metrics is the engine's instrumentation surface.
type Metrics interface {
	RecordPeriodComputed(instrument string)
	RecordGateSkip(reason string)
	RecordAlert(kind string, suppressed bool)
	RecordScore(instrument, name string, value float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
