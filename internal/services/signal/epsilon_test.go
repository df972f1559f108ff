package signal

import (
	"context"
	"testing"
	"time"

	"WalletPulse/internal/domain/models"
)

// historyStore is an ObservationStore stub that serves canned 24h history
// and counts lookups.
type historyStore struct {
	history []float64
	err     error
	calls   int
}

func (s *historyStore) Store(ctx context.Context, o *models.PositionObservation) error { return nil }
func (s *historyStore) StoreBatch(ctx context.Context, obs []*models.PositionObservation) error {
	return nil
}
func (s *historyStore) ObservationsAt(ctx context.Context, instrument string, periodTS time.Time) ([]models.PositionObservation, error) {
	return nil, nil
}
func (s *historyStore) History24h(ctx context.Context, subject, instrument string, until time.Time) ([]float64, error) {
	s.calls++
	return s.history, s.err
}
func (s *historyStore) RecordHealth(ctx context.Context, h *models.HealthSummary) error { return nil }
func (s *historyStore) CurrentHealth(ctx context.Context) (*models.HealthSummary, error) {
	return nil, nil
}
func (s *historyStore) Close() error { return nil }

func TestEpsilonFloorDominates(t *testing.T) {
	// Median 0.2 gives a relative component of 0.004, below the floor.
	if got := Epsilon(0.01, []float64{0.1, 0.2, 0.3}); got != 0.01 {
		t.Fatalf("expected floor 0.01, got %v", got)
	}
}

func TestEpsilonRelativeDominates(t *testing.T) {
	// Median 100 gives 2.0, well above the floor.
	if got := Epsilon(0.01, []float64{50, 100, 150}); got != 2.0 {
		t.Fatalf("expected 2.0, got %v", got)
	}
}

func TestEpsilonEmptyHistory(t *testing.T) {
	if got := Epsilon(0.0001, nil); got != 0.0001 {
		t.Fatalf("expected floor on empty history, got %v", got)
	}
}

func TestEpsilonZeroMedian(t *testing.T) {
	if got := Epsilon(0.01, []float64{0, 0, 0}); got != 0.01 {
		t.Fatalf("expected floor on zero median, got %v", got)
	}
}

func TestEpsilonEvenCountMedian(t *testing.T) {
	// Median of {10, 20, 30, 40} is 25: relative 0.5.
	if got := Epsilon(0.01, []float64{40, 10, 30, 20}); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestResolverFloor(t *testing.T) {
	r := NewEpsilonResolver(&historyStore{}, map[string]float64{"HYPE": 0.01, "BTC": 0.0001}, 0.05)
	if got := r.Floor("HYPE"); got != 0.01 {
		t.Fatalf("expected 0.01, got %v", got)
	}
	if got := r.Floor("BTC"); got != 0.0001 {
		t.Fatalf("expected 0.0001, got %v", got)
	}
	if got := r.Floor("SOL"); got != 0.05 {
		t.Fatalf("expected fallback 0.05, got %v", got)
	}
}

func TestResolveCachesResult(t *testing.T) {
	store := &historyStore{history: []float64{100, 100, 100}}
	r := NewEpsilonResolver(store, map[string]float64{"HYPE": 0.01}, 0.01)

	got, err := r.Resolve(context.Background(), "0xaaa", "HYPE")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != 2.0 {
		t.Fatalf("expected 2.0, got %v", got)
	}

	// Second resolve is served from cache, not the store.
	if _, err := r.Resolve(context.Background(), "0xaaa", "HYPE"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected 1 history lookup, got %d", store.calls)
	}

	// A different subject is its own cache entry.
	if _, err := r.Resolve(context.Background(), "0xbbb", "HYPE"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected 2 history lookups, got %d", store.calls)
	}
}
