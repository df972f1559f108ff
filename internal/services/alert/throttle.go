package alert

import (
	"context"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
)

// dailyWindow is the rolling window for the per-subject event cap.
const dailyWindow = 24 * time.Hour

// shouldSuppress applies the throttle rules to a would-be event, after the
// kind-specific trigger logic has already decided to fire. Cooldown is
// checked first, then the rolling daily cap. A suppressed attempt must not
// mutate hysteresis or cooldown state as if it had fired.
func (e *Evaluator) shouldSuppress(ctx context.Context, st *models.AlertState, subject string, now time.Time) (bool, string, error) {
	if st != nil && now.Before(st.CooldownUntil) {
		return true, "cooldown", nil
	}
	count, err := e.store.UnsuppressedCount(ctx, subject, now.Add(-dailyWindow))
	if err != nil {
		return false, "", fmt.Errorf("daily cap count %s: %w", subject, err)
	}
	if count >= e.dailyCap {
		return true, "daily_cap", nil
	}
	return false, "", nil
}

// markFired updates the throttle bookkeeping on a state after an
// unsuppressed emission.
func (e *Evaluator) markFired(st *models.AlertState, now time.Time, cooldown time.Duration) {
	st.LastTriggered = now
	if cooldown > 0 {
		st.CooldownUntil = now.Add(cooldown)
	}
	if st.DailyWindowStart.IsZero() || now.Sub(st.DailyWindowStart) >= dailyWindow {
		st.DailyWindowStart = now
		st.DailyCount = 0
	}
	st.DailyCount++
	st.UpdatedAt = now
}
