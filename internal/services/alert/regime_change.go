package alert

import (
	"context"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	applogger "WalletPulse/pkg/logger"
)

// evaluateRegimeChange requires a playbook flip to persist for two
// consecutive periods before firing. A flip that reverts after one period
// produces nothing; a different flip restarts the count at one.
func (e *Evaluator) evaluateRegimeChange(ctx context.Context, sp *models.SignalPeriod, now time.Time) error {
	subject := sp.Instrument
	kind := models.AlertRegimeChange

	lock := e.keyLock(subject, kind)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.store.GetState(ctx, subject, kind)
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	current := string(sp.AllowedPlaybook)

	if st == nil {
		// First sight of this subject: adopt the playbook as confirmed,
		// never fire on a cold start.
		st = &models.AlertState{
			Subject:           subject,
			Kind:              kind,
			ConfirmedPlaybook: current,
			UpdatedAt:         now,
		}
		return e.store.UpsertState(ctx, st)
	}

	switch {
	case current == st.ConfirmedPlaybook:
		// Reverted (or never left). Cancel any pending candidate.
		if st.PendingPlaybook != "" {
			e.l.Info("regime change cancelled",
				applogger.String("subject", subject),
				applogger.String("playbook", current))
		}
		st.PendingPlaybook = ""
		st.PendingPeriods = 0
		st.UpdatedAt = now
		return e.store.UpsertState(ctx, st)

	case current == st.PendingPlaybook:
		st.PendingPeriods++
		if st.PendingPeriods < 2 {
			st.UpdatedAt = now
			return e.store.UpsertState(ctx, st)
		}
		return e.fireRegimeChange(ctx, sp, st, now)

	default:
		// A fresh candidate: restart the persistence count.
		st.PendingPlaybook = current
		st.PendingPeriods = 1
		st.UpdatedAt = now
		e.l.Info("regime change pending",
			applogger.String("subject", subject),
			applogger.String("from", st.ConfirmedPlaybook),
			applogger.String("to", current))
		return e.store.UpsertState(ctx, st)
	}
}

func (e *Evaluator) fireRegimeChange(ctx context.Context, sp *models.SignalPeriod, st *models.AlertState, now time.Time) error {
	subject := st.Subject
	suppressed, reason, err := e.shouldSuppress(ctx, st, subject, now)
	if err != nil {
		return err
	}

	snap := *sp
	ev := &models.AlertEvent{
		TS:       now,
		Subject:  subject,
		Kind:     models.AlertRegimeChange,
		Severity: models.SeverityMedium,
		Message: fmt.Sprintf("[%s] Regime Change: Playbook switched to %s. Risk Mode: %s.",
			subject, sp.AllowedPlaybook, sp.RiskMode),
		Snapshot:   &snap,
		Suppressed: suppressed,
	}
	if err := e.emit(ctx, ev); err != nil {
		return fmt.Errorf("emit: %w", err)
	}

	if suppressed {
		// Pending state stays as-is: once the throttle clears, a still-held
		// playbook fires on a later period.
		e.l.Info("regime change throttled",
			applogger.String("subject", subject),
			applogger.String("reason", reason))
		return e.store.UpsertState(ctx, st)
	}

	st.ConfirmedPlaybook = string(sp.AllowedPlaybook)
	st.PendingPlaybook = ""
	st.PendingPeriods = 0
	e.markFired(st, now, e.regimeCooldown)
	return e.store.UpsertState(ctx, st)
}
