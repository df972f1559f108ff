package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"WalletPulse/internal/domain/models"
	alertsvc "WalletPulse/internal/services/alert"
	healthsvc "WalletPulse/internal/services/health"
	applogger "WalletPulse/pkg/logger"
)

// fakeObsStore serves canned observations per period and health via a
// callback so tests can flip it between calls.
type fakeObsStore struct {
	obsByPeriod map[int64][]models.PositionObservation
	health      func(call int) *models.HealthSummary
	healthCalls int
}

func (s *fakeObsStore) Store(ctx context.Context, o *models.PositionObservation) error { return nil }
func (s *fakeObsStore) StoreBatch(ctx context.Context, obs []*models.PositionObservation) error {
	return nil
}
func (s *fakeObsStore) ObservationsAt(ctx context.Context, instrument string, periodTS time.Time) ([]models.PositionObservation, error) {
	return s.obsByPeriod[periodTS.Unix()], nil
}
func (s *fakeObsStore) History24h(ctx context.Context, subject, instrument string, until time.Time) ([]float64, error) {
	return nil, nil
}
func (s *fakeObsStore) RecordHealth(ctx context.Context, h *models.HealthSummary) error { return nil }
func (s *fakeObsStore) CurrentHealth(ctx context.Context) (*models.HealthSummary, error) {
	s.healthCalls++
	if s.health == nil {
		return nil, nil
	}
	return s.health(s.healthCalls), nil
}
func (s *fakeObsStore) Close() error { return nil }

type fakeSignalStore struct {
	upserts    []models.SignalPeriod
	casHistory []float64
}

func (s *fakeSignalStore) Upsert(ctx context.Context, sp *models.SignalPeriod) error {
	s.upserts = append(s.upserts, *sp)
	return nil
}
func (s *fakeSignalStore) Latest(ctx context.Context, instrument string) (*models.SignalPeriod, error) {
	if len(s.upserts) == 0 {
		return nil, nil
	}
	cp := s.upserts[len(s.upserts)-1]
	return &cp, nil
}
func (s *fakeSignalStore) RecentAlignmentScores(ctx context.Context, instrument string, before time.Time, n int) ([]float64, error) {
	return s.casHistory, nil
}
func (s *fakeSignalStore) History(ctx context.Context, instrument string, n int) ([]models.SignalPeriod, error) {
	return s.upserts, nil
}

type fakeAlertStore struct {
	states map[string]models.AlertState
	events []models.AlertEvent
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{states: make(map[string]models.AlertState)}
}

func (s *fakeAlertStore) GetState(ctx context.Context, subject string, kind models.AlertKind) (*models.AlertState, error) {
	st, ok := s.states[subject+"|"+string(kind)]
	if !ok {
		return nil, nil
	}
	cp := st
	return &cp, nil
}
func (s *fakeAlertStore) UpsertState(ctx context.Context, st *models.AlertState) error {
	s.states[st.Subject+"|"+string(st.Kind)] = *st
	return nil
}
func (s *fakeAlertStore) AppendEvent(ctx context.Context, ev *models.AlertEvent) error {
	s.events = append(s.events, *ev)
	return nil
}
func (s *fakeAlertStore) UnsuppressedCount(ctx context.Context, subject string, since time.Time) (int, error) {
	n := 0
	for _, ev := range s.events {
		if ev.Subject == subject && !ev.Suppressed && !ev.TS.Before(since) {
			n++
		}
	}
	return n, nil
}
func (s *fakeAlertStore) RecentEvents(ctx context.Context, subject string, limit int) ([]models.AlertEvent, error) {
	return s.events, nil
}

// fixedEps resolves every wallet to the same epsilon.
type fixedEps struct{ eps float64 }

func (f fixedEps) Resolve(ctx context.Context, subject, instrument string) (float64, error) {
	return f.eps, nil
}
func (f fixedEps) Floor(instrument string) float64 { return f.eps }

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

func goodHealth() *models.HealthSummary {
	now := time.Now().UTC()
	return &models.HealthSummary{
		TS:            now,
		LastSuccessTS: now,
		Status:        models.HealthOK,
		CoveragePct:   95,
	}
}

func staleHealth() *models.HealthSummary {
	now := time.Now().UTC()
	return &models.HealthSummary{
		TS:            now.Add(-30 * time.Minute),
		LastSuccessTS: now.Add(-30 * time.Minute),
		Status:        models.HealthOK,
		CoveragePct:   95,
	}
}

var runnerPeriod = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func runnerObs(subject string, size float64, valid bool, ts time.Time) models.PositionObservation {
	return models.PositionObservation{
		PeriodTS:   ts,
		Subject:    subject,
		Instrument: "HYPE",
		SignedSize: size,
		Valid:      valid,
	}
}

// mixedUniverse builds one adder_long, one adder_short, one reducer and one
// flat wallet across the two periods.
func mixedUniverse(periodTS time.Time) map[int64][]models.PositionObservation {
	prev := periodTS.Add(-5 * time.Minute)
	return map[int64][]models.PositionObservation{
		periodTS.Unix(): {
			runnerObs("0xlong", 11, true, periodTS),
			runnerObs("0xshort", -11, true, periodTS),
			runnerObs("0xout", 9, true, periodTS),
			runnerObs("0xhold", 10, true, periodTS),
		},
		prev.Unix(): {
			runnerObs("0xlong", 10, true, prev),
			runnerObs("0xshort", -10, true, prev),
			runnerObs("0xout", 10, true, prev),
			runnerObs("0xhold", 10, true, prev),
		},
	}
}

func newRunner(t *testing.T, obsStore *fakeObsStore, sigStore *fakeSignalStore, alertStore *fakeAlertStore, opts ...RunnerOption) *SignalRunner {
	t.Helper()
	l := testLogger(t)
	ev := alertsvc.NewEvaluator(alertStore, nopMetrics{}, l)
	gate := healthsvc.NewGate()
	return NewSignalRunner(obsStore, sigStore, fixedEps{eps: 0.01}, gate, ev, nopMetrics{}, l, []string{"HYPE"}, opts...)
}

func TestComputePeriodWritesSignal(t *testing.T) {
	obsStore := &fakeObsStore{
		obsByPeriod: mixedUniverse(runnerPeriod),
		health:      func(int) *models.HealthSummary { return goodHealth() },
	}
	sigStore := &fakeSignalStore{}
	r := newRunner(t, obsStore, sigStore, newFakeAlertStore())

	sp, err := r.ComputePeriod(context.Background(), runnerPeriod, "HYPE", healthsvc.Decision{Allowed: true})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(sigStore.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(sigStore.upserts))
	}
	if sp.SubjectCount != 4 || sp.MissingCount != 0 {
		t.Fatalf("unexpected counts %d/%d", sp.SubjectCount, sp.MissingCount)
	}
	// 1 long vs 1 short of 4: dead even.
	if sp.AlignmentScore != 50 {
		t.Fatalf("expected CAS 50, got %v", sp.AlignmentScore)
	}
	// 1 reducer of 4.
	if sp.ExitClusterScore != 25 {
		t.Fatalf("expected exit cluster 25, got %v", sp.ExitClusterScore)
	}
	if sp.AlignmentTrend != models.TrendFlat {
		t.Fatalf("expected flat trend, got %s", sp.AlignmentTrend)
	}
	if sp.AllowedPlaybook != models.PlaybookNoTrade || sp.RiskMode != models.RiskDefensive {
		t.Fatalf("expected neutral-zone No-trade/Defensive, got %s/%s", sp.AllowedPlaybook, sp.RiskMode)
	}
	if sp.Degraded {
		t.Fatalf("did not expect degraded period: %s", sp.DegradedReason)
	}
	if sp.Breakdown.PctReducer != 25 || sp.Breakdown.PctFlat != 25 {
		t.Fatalf("unexpected breakdown %+v", sp.Breakdown)
	}
}

func TestComputePeriodMidFlightHealthDrop(t *testing.T) {
	obsStore := &fakeObsStore{
		obsByPeriod: mixedUniverse(runnerPeriod),
		health:      func(int) *models.HealthSummary { return staleHealth() },
	}
	sigStore := &fakeSignalStore{}
	r := newRunner(t, obsStore, sigStore, newFakeAlertStore())

	// The caller's gate decision was open, but health is gone by the
	// re-check: the whole period is discarded.
	_, err := r.ComputePeriod(context.Background(), runnerPeriod, "HYPE", healthsvc.Decision{Allowed: true})
	if !errors.Is(err, ErrGateClosed) {
		t.Fatalf("expected ErrGateClosed, got %v", err)
	}
	if len(sigStore.upserts) != 0 {
		t.Fatalf("discarded period must not be written, got %d upserts", len(sigStore.upserts))
	}
}

func TestComputePeriodMissingSubjectsDegrade(t *testing.T) {
	universe := mixedUniverse(runnerPeriod)
	universe[runnerPeriod.Unix()] = append(universe[runnerPeriod.Unix()],
		runnerObs("0xbroken", 0, false, runnerPeriod))

	obsStore := &fakeObsStore{
		obsByPeriod: universe,
		health:      func(int) *models.HealthSummary { return goodHealth() },
	}
	sigStore := &fakeSignalStore{}
	r := newRunner(t, obsStore, sigStore, newFakeAlertStore())

	sp, err := r.ComputePeriod(context.Background(), runnerPeriod, "HYPE", healthsvc.Decision{Allowed: true})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !sp.Degraded {
		t.Fatalf("expected degraded period")
	}
	if sp.MissingCount != 1 {
		t.Fatalf("expected 1 missing, got %d", sp.MissingCount)
	}
	if sp.AllowedPlaybook != models.PlaybookNoTrade {
		t.Fatalf("degraded period must read No-trade, got %s", sp.AllowedPlaybook)
	}
	// The period is still written: degraded output beats no output.
	if len(sigStore.upserts) != 1 {
		t.Fatalf("expected degraded period written, got %d upserts", len(sigStore.upserts))
	}
}

func TestComputePeriodEmptyUniverseDegrades(t *testing.T) {
	obsStore := &fakeObsStore{
		obsByPeriod: map[int64][]models.PositionObservation{},
		health:      func(int) *models.HealthSummary { return goodHealth() },
	}
	sigStore := &fakeSignalStore{}
	r := newRunner(t, obsStore, sigStore, newFakeAlertStore())

	sp, err := r.ComputePeriod(context.Background(), runnerPeriod, "HYPE", healthsvc.Decision{Allowed: true})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !sp.Degraded || sp.AllowedPlaybook != models.PlaybookNoTrade {
		t.Fatalf("expected degraded No-trade, got %+v", sp)
	}
	if sp.AlignmentScore != 50 {
		t.Fatalf("empty universe reads neutral, got %v", sp.AlignmentScore)
	}
	if sp.SubjectCount != 0 {
		t.Fatalf("expected zero subjects, got %d", sp.SubjectCount)
	}
}

func TestComputePeriodDegradedGateDecision(t *testing.T) {
	obsStore := &fakeObsStore{
		obsByPeriod: mixedUniverse(runnerPeriod),
		health:      func(int) *models.HealthSummary { return goodHealth() },
	}
	sigStore := &fakeSignalStore{}
	r := newRunner(t, obsStore, sigStore, newFakeAlertStore())

	sp, err := r.ComputePeriod(context.Background(), runnerPeriod, "HYPE",
		healthsvc.Decision{Allowed: true, Degraded: true, Reason: "coverage 85.0% below 90%"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !sp.Degraded || sp.DegradedReason == "" {
		t.Fatalf("expected degraded with reason, got %+v", sp)
	}
	if sp.AllowedPlaybook != models.PlaybookNoTrade {
		t.Fatalf("expected forced No-trade, got %s", sp.AllowedPlaybook)
	}
}

func TestRunCycleGateClosedSkips(t *testing.T) {
	obsStore := &fakeObsStore{
		obsByPeriod: mixedUniverse(runnerPeriod),
		health:      func(int) *models.HealthSummary { return staleHealth() },
	}
	sigStore := &fakeSignalStore{}
	alertStore := newFakeAlertStore()
	r := newRunner(t, obsStore, sigStore, alertStore)

	if err := r.RunCycle(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(sigStore.upserts) != 0 {
		t.Fatalf("closed gate must not write, got %d upserts", len(sigStore.upserts))
	}
	// The dead-man's switch fired before the gate check.
	if len(alertStore.events) != 1 || alertStore.events[0].Kind != models.AlertSystemStale {
		t.Fatalf("expected one system_stale event, got %+v", alertStore.events)
	}
}

func TestRunCycleComputesAndEvaluatesAlerts(t *testing.T) {
	now := time.Now().UTC()
	periodTS := now.Truncate(5 * time.Minute)
	prev := periodTS.Add(-5 * time.Minute)

	// 2 of 4 wallets reducing: exit cluster 50, well above the trigger.
	universe := map[int64][]models.PositionObservation{
		periodTS.Unix(): {
			runnerObs("0xlong", 11, true, periodTS),
			runnerObs("0xoutA", 5, true, periodTS),
			runnerObs("0xoutB", -5, true, periodTS),
			runnerObs("0xhold", 10, true, periodTS),
		},
		prev.Unix(): {
			runnerObs("0xlong", 10, true, prev),
			runnerObs("0xoutA", 10, true, prev),
			runnerObs("0xoutB", -10, true, prev),
			runnerObs("0xhold", 10, true, prev),
		},
	}
	obsStore := &fakeObsStore{
		obsByPeriod: universe,
		health:      func(int) *models.HealthSummary { return goodHealth() },
	}
	sigStore := &fakeSignalStore{}
	alertStore := newFakeAlertStore()
	r := newRunner(t, obsStore, sigStore, alertStore)

	if err := r.RunCycle(context.Background(), now); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(sigStore.upserts) != 1 {
		t.Fatalf("expected 1 signal written, got %d", len(sigStore.upserts))
	}
	sp := sigStore.upserts[0]
	if sp.ExitClusterScore != 50 {
		t.Fatalf("expected exit cluster 50, got %v", sp.ExitClusterScore)
	}

	var exitEvents int
	for _, ev := range alertStore.events {
		if ev.Kind == models.AlertExitCluster && !ev.Suppressed {
			exitEvents++
		}
	}
	if exitEvents != 1 {
		t.Fatalf("expected exit cluster alert, got %+v", alertStore.events)
	}
	// Regime state was adopted on first sight without firing.
	st, _ := alertStore.GetState(context.Background(), "HYPE", models.AlertRegimeChange)
	if st == nil || st.ConfirmedPlaybook == "" {
		t.Fatalf("expected adopted regime state, got %+v", st)
	}
}
