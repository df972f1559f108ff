package alert

import (
	"context"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
)

// EvaluateSystemStale runs the global dead-man's switch once per cycle,
// before any behavioral evaluation. It fires once when ingestion has not
// succeeded within the staleness threshold and clears only when fresh data
// restores health — a level alarm, not a rate-limited notification, so no
// cooldown and no daily cap apply. The returned flag reports whether the
// alarm is active after this evaluation; callers must skip behavioral
// alerts entirely while it is.
func (e *Evaluator) EvaluateSystemStale(ctx context.Context, h *models.HealthSummary, now time.Time) (bool, error) {
	subject := models.SystemSubject
	kind := models.AlertSystemStale

	lock := e.keyLock(subject, kind)
	lock.Lock()
	defer lock.Unlock()

	stale := h == nil || now.Sub(h.LastSuccessTS) > e.staleAfter

	st, err := e.store.GetState(ctx, subject, kind)
	if err != nil {
		return false, fmt.Errorf("get state: %w", err)
	}
	if st == nil {
		st = &models.AlertState{Subject: subject, Kind: kind}
	}

	switch {
	case stale && !st.Active:
		var minutes int
		if h != nil {
			minutes = int(now.Sub(h.LastSuccessTS) / time.Minute)
		}
		ev := &models.AlertEvent{
			TS:       now,
			Subject:  subject,
			Kind:     kind,
			Severity: models.SeverityCritical,
			Message: fmt.Sprintf("[%s] Data Stale: Ingestion has not succeeded for %d minutes. All behavioral alerts suppressed. Do not trade until resolved.",
				subject, minutes),
			Suppressed: false,
		}
		// Mark active before emitting so a crash between the two cannot
		// re-fire on the next cycle without a recovery in between.
		st.Active = true
		e.markFired(st, now, 0)
		if err := e.store.UpsertState(ctx, st); err != nil {
			return true, fmt.Errorf("upsert state: %w", err)
		}
		if err := e.emit(ctx, ev); err != nil {
			return true, fmt.Errorf("emit: %w", err)
		}
		return true, nil

	case !stale && st.Active:
		st.Active = false
		st.UpdatedAt = now
		e.l.Info("system recovered from stale state")
		return false, e.store.UpsertState(ctx, st)

	default:
		return st.Active, nil
	}
}

// SystemStaleActive reports whether the global alarm is currently latched,
// without evaluating it.
func (e *Evaluator) SystemStaleActive(ctx context.Context) (bool, error) {
	st, err := e.store.GetState(ctx, models.SystemSubject, models.AlertSystemStale)
	if err != nil {
		return false, err
	}
	return st != nil && st.Active, nil
}
