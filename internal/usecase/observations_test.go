package usecase

import (
	"testing"
	"time"

	"WalletPulse/internal/domain/models"
)

var obsTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func obs(subject string, size float64, valid bool, ts time.Time) models.PositionObservation {
	return models.PositionObservation{
		PeriodTS:   ts,
		Subject:    subject,
		Instrument: "HYPE",
		SignedSize: size,
		Valid:      valid,
	}
}

func TestBuildDeltasPairsObservations(t *testing.T) {
	prev := obsTime.Add(-5 * time.Minute)
	current := []models.PositionObservation{
		obs("0xbbb", 20, true, obsTime),
		obs("0xaaa", 10, true, obsTime),
	}
	previous := []models.PositionObservation{
		obs("0xaaa", 8, true, prev),
		obs("0xbbb", 25, true, prev),
	}

	deltas, missing := BuildDeltas(current, previous)
	if missing != 0 {
		t.Fatalf("expected no missing, got %d", missing)
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	// Output is sorted by subject.
	if deltas[0].Subject != "0xaaa" || deltas[1].Subject != "0xbbb" {
		t.Fatalf("expected sorted subjects, got %s, %s", deltas[0].Subject, deltas[1].Subject)
	}
	if deltas[0].Previous == nil || *deltas[0].Previous != 8 {
		t.Fatalf("expected previous 8, got %v", deltas[0].Previous)
	}
	d := deltas[0].Delta()
	if d == nil || *d != 2 {
		t.Fatalf("expected delta 2, got %v", d)
	}
}

func TestBuildDeltasInvalidCurrentIsMissing(t *testing.T) {
	current := []models.PositionObservation{
		obs("0xaaa", 10, true, obsTime),
		obs("0xbbb", 0, false, obsTime),
	}
	deltas, missing := BuildDeltas(current, nil)
	if missing != 1 {
		t.Fatalf("expected 1 missing, got %d", missing)
	}
	if len(deltas) != 1 || deltas[0].Subject != "0xaaa" {
		t.Fatalf("expected only 0xaaa classified, got %+v", deltas)
	}
}

func TestBuildDeltasColdStart(t *testing.T) {
	current := []models.PositionObservation{obs("0xaaa", 10, true, obsTime)}
	deltas, missing := BuildDeltas(current, nil)
	if missing != 0 || len(deltas) != 1 {
		t.Fatalf("unexpected result: %d deltas, %d missing", len(deltas), missing)
	}
	if deltas[0].Previous != nil {
		t.Fatalf("expected nil previous on cold start")
	}
	if deltas[0].Delta() != nil {
		t.Fatalf("expected nil delta on cold start")
	}
}

func TestBuildDeltasInvalidPreviousIsColdStart(t *testing.T) {
	prev := obsTime.Add(-5 * time.Minute)
	current := []models.PositionObservation{obs("0xaaa", 10, true, obsTime)}
	previous := []models.PositionObservation{obs("0xaaa", 8, false, prev)}

	deltas, missing := BuildDeltas(current, previous)
	if missing != 0 || len(deltas) != 1 {
		t.Fatalf("unexpected result: %d deltas, %d missing", len(deltas), missing)
	}
	if deltas[0].Previous != nil {
		t.Fatalf("an invalid prior must not be diffed against")
	}
}

func TestBuildDeltasDroppedSubjectIsMissing(t *testing.T) {
	prev := obsTime.Add(-5 * time.Minute)
	current := []models.PositionObservation{obs("0xaaa", 10, true, obsTime)}
	previous := []models.PositionObservation{
		obs("0xaaa", 8, true, prev),
		obs("0xgone", 50, true, prev),
	}

	deltas, missing := BuildDeltas(current, previous)
	if missing != 1 {
		t.Fatalf("expected dropped subject counted missing, got %d", missing)
	}
	if len(deltas) != 1 {
		t.Fatalf("expected 1 delta, got %d", len(deltas))
	}
}
