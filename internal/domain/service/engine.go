package service

import (
	"context"

	"WalletPulse/internal/domain/models"
)

// EpsilonResolver computes the per-wallet noise threshold used by the
// behavior classifier.
type EpsilonResolver interface {
	Resolve(ctx context.Context, subject, instrument string) (float64, error)
	// Floor is the per-instrument absolute threshold used when no history
	// is available.
	Floor(instrument string) float64
}

// Notifier delivers fired alerts to an out-of-band channel (queue, webhook).
// Best-effort: delivery failure never blocks or reverts the alert write.
type Notifier interface {
	Notify(ctx context.Context, ev *models.AlertEvent) error
}
