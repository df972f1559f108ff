package alert

import (
	"context"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	applogger "WalletPulse/pkg/logger"
)

const (
	exitClusterTrigger = 25.0
	exitClusterReset   = 20.0
)

// evaluateExitCluster is level-crossing hysteresis: fire once when the score
// crosses above 25 while inactive, re-arm only when it drops below 20.
// Scores in the 20-25 buffer never change state.
func (e *Evaluator) evaluateExitCluster(ctx context.Context, sp *models.SignalPeriod, now time.Time) error {
	subject := sp.Instrument
	kind := models.AlertExitCluster

	lock := e.keyLock(subject, kind)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.store.GetState(ctx, subject, kind)
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	if st == nil {
		st = &models.AlertState{Subject: subject, Kind: kind}
	}
	score := sp.ExitClusterScore

	switch {
	case !st.Active && score > exitClusterTrigger:
		suppressed, reason, err := e.shouldSuppress(ctx, st, subject, now)
		if err != nil {
			return err
		}
		snap := *sp
		ev := &models.AlertEvent{
			TS:       now,
			Subject:  subject,
			Kind:     kind,
			Severity: models.SeverityHigh,
			Message: fmt.Sprintf("[%s] Smart Money De-risking: Exit Cluster elevated (%.1f%%). Stop adding exposure. Tighten stops.",
				subject, score),
			Snapshot:   &snap,
			Suppressed: suppressed,
		}
		if err := e.emit(ctx, ev); err != nil {
			return fmt.Errorf("emit: %w", err)
		}
		if suppressed {
			// Not armed: the trigger retries on a later period once the
			// throttle clears, as long as the score stays elevated.
			e.l.Info("exit cluster throttled",
				applogger.String("subject", subject),
				applogger.String("reason", reason))
			return nil
		}
		st.Active = true
		e.markFired(st, now, e.exitCooldown)
		return e.store.UpsertState(ctx, st)

	case st.Active && score < exitClusterReset:
		st.Active = false
		st.UpdatedAt = now
		e.l.Info("exit cluster re-armed",
			applogger.String("subject", subject))
		return e.store.UpsertState(ctx, st)

	default:
		return nil
	}
}
