package alert

import (
	"context"
	"testing"
	"time"

	"WalletPulse/internal/domain/models"
	applogger "WalletPulse/pkg/logger"
)

// memAlertStore is an in-memory AlertStore. States are stored by value so a
// caller mutating its copy without UpsertState changes nothing, matching the
// persistence contract.
type memAlertStore struct {
	states map[string]models.AlertState
	events []models.AlertEvent
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{states: make(map[string]models.AlertState)}
}

func stateKey(subject string, kind models.AlertKind) string {
	return subject + "|" + string(kind)
}

func (s *memAlertStore) GetState(ctx context.Context, subject string, kind models.AlertKind) (*models.AlertState, error) {
	st, ok := s.states[stateKey(subject, kind)]
	if !ok {
		return nil, nil
	}
	cp := st
	return &cp, nil
}

func (s *memAlertStore) UpsertState(ctx context.Context, st *models.AlertState) error {
	s.states[stateKey(st.Subject, st.Kind)] = *st
	return nil
}

func (s *memAlertStore) AppendEvent(ctx context.Context, ev *models.AlertEvent) error {
	s.events = append(s.events, *ev)
	return nil
}

func (s *memAlertStore) UnsuppressedCount(ctx context.Context, subject string, since time.Time) (int, error) {
	n := 0
	for _, ev := range s.events {
		if ev.Subject == subject && !ev.Suppressed && !ev.TS.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memAlertStore) RecentEvents(ctx context.Context, subject string, limit int) ([]models.AlertEvent, error) {
	out := make([]models.AlertEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if subject == "" || s.events[i].Subject == subject {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *memAlertStore) fired() []models.AlertEvent {
	out := make([]models.AlertEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !ev.Suppressed {
			out = append(out, ev)
		}
	}
	return out
}

func (s *memAlertStore) suppressed() []models.AlertEvent {
	out := make([]models.AlertEvent, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Suppressed {
			out = append(out, ev)
		}
	}
	return out
}

type nopMetrics struct{}

func (nopMetrics) RecordPeriodComputed(string)         {}
func (nopMetrics) RecordGateSkip(string)               {}
func (nopMetrics) RecordAlert(string, bool)            {}
func (nopMetrics) RecordScore(string, string, float64) {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestEvaluator(t *testing.T, opts ...EvaluatorOption) (*Evaluator, *memAlertStore) {
	t.Helper()
	store := newMemAlertStore()
	return NewEvaluator(store, nopMetrics{}, testLogger(t), opts...), store
}

func period(instrument string, playbook models.Playbook, exitCluster float64) *models.SignalPeriod {
	return &models.SignalPeriod{
		PeriodTS:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Instrument:       instrument,
		AlignmentScore:   50,
		AlignmentTrend:   models.TrendFlat,
		DispersionIndex:  20,
		ExitClusterScore: exitCluster,
		AllowedPlaybook:  playbook,
		RiskMode:         models.RiskReduced,
	}
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestExitClusterHysteresis(t *testing.T) {
	e, store := newTestEvaluator(t, WithCooldowns(0, 0))
	ctx := context.Background()

	// Crosses up once at 26, stays in the 20-25 buffer without re-firing,
	// re-arms below 20, then crosses up again at 27.
	scores := []float64{10, 24, 26, 22, 19, 27}
	for i, sc := range scores {
		sp := period("HYPE", models.PlaybookNoTrade, sc)
		now := baseTime.Add(time.Duration(i) * 5 * time.Minute)
		if err := e.EvaluatePeriod(ctx, sp, now, false); err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}

	fired := store.fired()
	if len(fired) != 2 {
		t.Fatalf("expected 2 fired events, got %d", len(fired))
	}
	for _, ev := range fired {
		if ev.Kind != models.AlertExitCluster {
			t.Fatalf("unexpected kind %s", ev.Kind)
		}
		if ev.Severity != models.SeverityHigh {
			t.Fatalf("unexpected severity %s", ev.Severity)
		}
		if ev.Snapshot == nil {
			t.Fatalf("expected snapshot attached")
		}
	}
}

func TestExitClusterBufferZoneNoOp(t *testing.T) {
	e, store := newTestEvaluator(t, WithCooldowns(0, 0))
	ctx := context.Background()

	// 24 while inactive, then 22 after activation: neither touches state.
	if err := e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 24), baseTime, false); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(store.events) != 0 {
		t.Fatalf("expected no events in the buffer zone, got %d", len(store.events))
	}
	st, _ := store.GetState(ctx, "HYPE", models.AlertExitCluster)
	if st != nil && st.Active {
		t.Fatalf("expected inactive state")
	}
}

func TestExitClusterCooldownSuppression(t *testing.T) {
	e, store := newTestEvaluator(t) // default 60m exit cooldown
	ctx := context.Background()

	steps := []struct {
		score float64
		at    time.Duration
	}{
		{30, 0},                // fires, cooldown until +60m
		{10, 5 * time.Minute},  // re-arms
		{30, 10 * time.Minute}, // trigger inside cooldown: suppressed
		{10, 15 * time.Minute}, // still re-armed
		{30, 61 * time.Minute}, // cooldown over: fires
	}
	for i, s := range steps {
		sp := period("HYPE", models.PlaybookNoTrade, s.score)
		if err := e.EvaluatePeriod(ctx, sp, baseTime.Add(s.at), false); err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}

	if got := len(store.fired()); got != 2 {
		t.Fatalf("expected 2 fired, got %d", got)
	}
	sup := store.suppressed()
	if len(sup) != 1 {
		t.Fatalf("expected 1 suppressed, got %d", len(sup))
	}
	if sup[0].Kind != models.AlertExitCluster {
		t.Fatalf("unexpected suppressed kind %s", sup[0].Kind)
	}
}

func TestExitClusterSuppressedAttemptDoesNotArm(t *testing.T) {
	e, store := newTestEvaluator(t)
	ctx := context.Background()

	// Fire and re-arm, then a suppressed in-cooldown trigger.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), baseTime, false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 10), baseTime.Add(5*time.Minute), false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), baseTime.Add(10*time.Minute), false)

	st, err := store.GetState(ctx, "HYPE", models.AlertExitCluster)
	if err != nil || st == nil {
		t.Fatalf("expected state, err=%v", err)
	}
	if st.Active {
		t.Fatalf("suppressed attempt must not arm the hysteresis")
	}
	// Score still elevated once the cooldown clears: the trigger retries.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), baseTime.Add(61*time.Minute), false)
	if got := len(store.fired()); got != 2 {
		t.Fatalf("expected retry to fire, got %d fired", got)
	}
}

func TestRegimeChangeColdStart(t *testing.T) {
	e, store := newTestEvaluator(t)
	ctx := context.Background()

	if err := e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime, false); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(store.events) != 0 {
		t.Fatalf("cold start must not fire, got %d events", len(store.events))
	}
	st, _ := store.GetState(ctx, "HYPE", models.AlertRegimeChange)
	if st == nil || st.ConfirmedPlaybook != string(models.PlaybookLongOnly) {
		t.Fatalf("expected adopted playbook, got %+v", st)
	}
}

func TestRegimeChangeTwoPeriodConfirm(t *testing.T) {
	e, store := newTestEvaluator(t)
	ctx := context.Background()

	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime, false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 5), baseTime.Add(5*time.Minute), false)
	if len(store.events) != 0 {
		t.Fatalf("single-period flip must not fire")
	}
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 5), baseTime.Add(10*time.Minute), false)

	fired := store.fired()
	if len(fired) != 1 {
		t.Fatalf("expected 1 fired event, got %d", len(fired))
	}
	if fired[0].Kind != models.AlertRegimeChange || fired[0].Severity != models.SeverityMedium {
		t.Fatalf("unexpected event %+v", fired[0])
	}

	st, _ := store.GetState(ctx, "HYPE", models.AlertRegimeChange)
	if st.ConfirmedPlaybook != string(models.PlaybookNoTrade) {
		t.Fatalf("expected confirmed No-trade, got %q", st.ConfirmedPlaybook)
	}
	if st.PendingPlaybook != "" || st.PendingPeriods != 0 {
		t.Fatalf("expected cleared pending state, got %+v", st)
	}
}

func TestRegimeChangeSinglePeriodRevert(t *testing.T) {
	e, store := newTestEvaluator(t)
	ctx := context.Background()

	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime, false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 5), baseTime.Add(5*time.Minute), false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime.Add(10*time.Minute), false)

	if len(store.events) != 0 {
		t.Fatalf("reverted flip must not fire, got %d events", len(store.events))
	}
	st, _ := store.GetState(ctx, "HYPE", models.AlertRegimeChange)
	if st.ConfirmedPlaybook != string(models.PlaybookLongOnly) || st.PendingPlaybook != "" {
		t.Fatalf("expected Long-only confirmed with no pending, got %+v", st)
	}
}

func TestRegimeChangeCandidateSwitchRestartsCount(t *testing.T) {
	e, store := newTestEvaluator(t)
	ctx := context.Background()

	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime, false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 5), baseTime.Add(5*time.Minute), false)
	// Different candidate: the count restarts, nothing fires yet.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookShortOnly, 5), baseTime.Add(10*time.Minute), false)
	if len(store.events) != 0 {
		t.Fatalf("candidate switch must not fire")
	}
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookShortOnly, 5), baseTime.Add(15*time.Minute), false)

	fired := store.fired()
	if len(fired) != 1 {
		t.Fatalf("expected 1 fired event, got %d", len(fired))
	}
	st, _ := store.GetState(ctx, "HYPE", models.AlertRegimeChange)
	if st.ConfirmedPlaybook != string(models.PlaybookShortOnly) {
		t.Fatalf("expected Short-only confirmed, got %q", st.ConfirmedPlaybook)
	}
}

func TestRegimeChangeSuppressedKeepsPending(t *testing.T) {
	e, store := newTestEvaluator(t) // default 30m regime cooldown
	ctx := context.Background()

	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime, false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 5), baseTime.Add(5*time.Minute), false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 5), baseTime.Add(10*time.Minute), false)
	if got := len(store.fired()); got != 1 {
		t.Fatalf("expected first confirm to fire, got %d", got)
	}

	// Flip back toward Long-only inside the cooldown window.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime.Add(15*time.Minute), false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime.Add(20*time.Minute), false)

	sup := store.suppressed()
	if len(sup) != 1 {
		t.Fatalf("expected 1 suppressed attempt, got %d", len(sup))
	}
	st, _ := store.GetState(ctx, "HYPE", models.AlertRegimeChange)
	if st.ConfirmedPlaybook != string(models.PlaybookNoTrade) {
		t.Fatalf("suppression must not confirm the flip, got %q", st.ConfirmedPlaybook)
	}
	if st.PendingPlaybook != string(models.PlaybookLongOnly) {
		t.Fatalf("suppression must keep pending, got %+v", st)
	}

	// Still held after the cooldown clears: fires on the next period.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookLongOnly, 5), baseTime.Add(45*time.Minute), false)
	if got := len(store.fired()); got != 2 {
		t.Fatalf("expected deferred fire after cooldown, got %d", got)
	}
	st, _ = store.GetState(ctx, "HYPE", models.AlertRegimeChange)
	if st.ConfirmedPlaybook != string(models.PlaybookLongOnly) {
		t.Fatalf("expected Long-only confirmed after deferred fire, got %q", st.ConfirmedPlaybook)
	}
}

func TestDailyCapAcrossKinds(t *testing.T) {
	e, store := newTestEvaluator(t, WithCooldowns(0, 0), WithDailyCap(2))
	ctx := context.Background()

	// Two exit-cluster fires exhaust the subject's cap.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), baseTime, false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 10), baseTime.Add(5*time.Minute), false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), baseTime.Add(10*time.Minute), false)
	if got := len(store.fired()); got != 2 {
		t.Fatalf("expected 2 fired, got %d", got)
	}

	// Third trigger is capped.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 10), baseTime.Add(15*time.Minute), false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), baseTime.Add(20*time.Minute), false)
	if got := len(store.fired()); got != 2 {
		t.Fatalf("expected cap to hold at 2, got %d fired", got)
	}
	if got := len(store.suppressed()); got != 1 {
		t.Fatalf("expected 1 suppressed, got %d", got)
	}

	// A different subject has its own budget.
	e.EvaluatePeriod(ctx, period("BTC", models.PlaybookNoTrade, 30), baseTime.Add(20*time.Minute), false)
	if got := len(store.fired()); got != 3 {
		t.Fatalf("expected independent budget per subject, got %d fired", got)
	}

	// The window rolls: 25 hours later the subject can fire again.
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 10), baseTime.Add(25*time.Hour), false)
	e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), baseTime.Add(25*time.Hour+5*time.Minute), false)
	if got := len(store.fired()); got != 4 {
		t.Fatalf("expected fire after window rolled, got %d fired", got)
	}
}

func TestDailyCapDefaultFourOfSix(t *testing.T) {
	e, store := newTestEvaluator(t, WithCooldowns(0, 0)) // default cap of 4
	ctx := context.Background()

	// Six genuine trigger crossings inside one day, re-armed in between.
	now := baseTime
	for i := 0; i < 6; i++ {
		e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 30), now, false)
		now = now.Add(5 * time.Minute)
		e.EvaluatePeriod(ctx, period("HYPE", models.PlaybookNoTrade, 10), now, false)
		now = now.Add(5 * time.Minute)
	}

	if got := len(store.fired()); got != 4 {
		t.Fatalf("expected exactly 4 fired, got %d", got)
	}
	if got := len(store.suppressed()); got != 2 {
		t.Fatalf("expected exactly 2 suppressed, got %d", got)
	}
}

func TestSystemStaleLifecycle(t *testing.T) {
	e, store := newTestEvaluator(t, WithStaleAfter(10*time.Minute))
	ctx := context.Background()

	// No health at all: fires critical.
	active, err := e.EvaluateSystemStale(ctx, nil, baseTime)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !active {
		t.Fatalf("expected active alarm")
	}
	if got := len(store.fired()); got != 1 {
		t.Fatalf("expected 1 fired, got %d", got)
	}
	if store.events[0].Severity != models.SeverityCritical || store.events[0].Subject != models.SystemSubject {
		t.Fatalf("unexpected event %+v", store.events[0])
	}

	// Still stale: latched, no second event.
	active, err = e.EvaluateSystemStale(ctx, nil, baseTime.Add(5*time.Minute))
	if err != nil || !active {
		t.Fatalf("expected latched alarm, active=%v err=%v", active, err)
	}
	if got := len(store.events); got != 1 {
		t.Fatalf("latched alarm must not re-fire, got %d events", got)
	}

	// Fresh data clears it silently.
	h := &models.HealthSummary{
		TS:            baseTime.Add(10 * time.Minute),
		LastSuccessTS: baseTime.Add(10 * time.Minute),
		Status:        models.HealthOK,
		CoveragePct:   100,
	}
	active, err = e.EvaluateSystemStale(ctx, h, baseTime.Add(10*time.Minute))
	if err != nil || active {
		t.Fatalf("expected cleared alarm, active=%v err=%v", active, err)
	}
	if got := len(store.events); got != 1 {
		t.Fatalf("recovery must not emit, got %d events", got)
	}

	// Goes stale again: a fresh fire.
	active, err = e.EvaluateSystemStale(ctx, h, baseTime.Add(25*time.Minute))
	if err != nil || !active {
		t.Fatalf("expected re-fire, active=%v err=%v", active, err)
	}
	if got := len(store.fired()); got != 2 {
		t.Fatalf("expected 2 fired, got %d", got)
	}
}

func TestEvaluatePeriodSkipsWhenSystemStale(t *testing.T) {
	e, store := newTestEvaluator(t)
	ctx := context.Background()

	// Even a blatant trigger is ignored while the stale alarm is active.
	sp := period("HYPE", models.PlaybookShortOnly, 90)
	if err := e.EvaluatePeriod(ctx, sp, baseTime, true); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(store.events) != 0 {
		t.Fatalf("expected no events, got %d", len(store.events))
	}
	if len(store.states) != 0 {
		t.Fatalf("expected no state writes, got %d", len(store.states))
	}
}
