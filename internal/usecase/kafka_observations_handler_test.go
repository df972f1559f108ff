package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"WalletPulse/internal/domain/models"
)

type recordingObsStore struct {
	fakeObsStore
	stored   []models.PositionObservation
	storeErr error
}

func (s *recordingObsStore) Store(ctx context.Context, o *models.PositionObservation) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.stored = append(s.stored, *o)
	return nil
}

func TestKafkaHandlerStoresObservation(t *testing.T) {
	store := &recordingObsStore{}
	h := NewKafkaObservationsHandler("walletpulse.observations", store, nopMetrics{}, testLogger(t))

	if h.Topic() != "walletpulse.observations" {
		t.Fatalf("unexpected topic %q", h.Topic())
	}

	o := models.PositionObservation{
		PeriodTS:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Subject:    "0xaaa",
		Instrument: "HYPE",
		SignedSize: 12.5,
		Valid:      true,
	}
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.stored) != 1 {
		t.Fatalf("expected 1 stored observation, got %d", len(store.stored))
	}
	if store.stored[0] != o {
		t.Fatalf("stored observation differs: %+v", store.stored[0])
	}
}

func TestKafkaHandlerDropsMalformedPayload(t *testing.T) {
	store := &recordingObsStore{}
	h := NewKafkaObservationsHandler("walletpulse.observations", store, nopMetrics{}, testLogger(t))

	// Garbage is not retryable: the handler acks it by returning nil.
	if err := h.Handle(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("malformed payload must not error: %v", err)
	}
	if len(store.stored) != 0 {
		t.Fatalf("malformed payload must not be stored")
	}
}

func TestKafkaHandlerDropsIncompleteObservation(t *testing.T) {
	store := &recordingObsStore{}
	h := NewKafkaObservationsHandler("walletpulse.observations", store, nopMetrics{}, testLogger(t))

	data, _ := json.Marshal(models.PositionObservation{Subject: "0xaaa"})
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("incomplete payload must not error: %v", err)
	}
	if len(store.stored) != 0 {
		t.Fatalf("incomplete payload must not be stored")
	}
}

func TestKafkaHandlerSurfacesStoreError(t *testing.T) {
	store := &recordingObsStore{storeErr: errors.New("clickhouse down")}
	h := NewKafkaObservationsHandler("walletpulse.observations", store, nopMetrics{}, testLogger(t))

	o := models.PositionObservation{
		PeriodTS:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Subject:    "0xaaa",
		Instrument: "HYPE",
		Valid:      true,
	}
	data, _ := json.Marshal(o)
	// A store failure is retryable and must propagate for redelivery.
	if err := h.Handle(context.Background(), data); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}
