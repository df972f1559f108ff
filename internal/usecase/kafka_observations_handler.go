package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	drepo "WalletPulse/internal/domain/repository"
	applogger "WalletPulse/pkg/logger"
)

// KafkaObservationsHandler consumes position observations from the Kafka bus
// and persists them to the observation store. Used when the ingest backend is
// "kafka" so the collector and the store can run in separate processes.
type KafkaObservationsHandler struct {
	topic   string
	store   drepo.ObservationStore
	metrics drepo.Metrics
	l       *applogger.Logger
}

// NewKafkaObservationsHandler creates a new KafkaObservationsHandler instance.
func NewKafkaObservationsHandler(
	topic string,
	store drepo.ObservationStore,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *KafkaObservationsHandler {
	return &KafkaObservationsHandler{
		topic:   topic,
		store:   store,
		metrics: metrics,
		l:       l,
	}
}

// Topic returns the Kafka topic this handler consumes.
func (h *KafkaObservationsHandler) Topic() string { return h.topic }

// Handle decodes a single observation payload and stores it.
func (h *KafkaObservationsHandler) Handle(ctx context.Context, data []byte) error {
	start := time.Now()

	var o models.PositionObservation
	if err := json.Unmarshal(data, &o); err != nil {
		h.metrics.RecordError("kafka_decode")
		// malformed payload is not retryable; drop it
		h.l.Warn("observation decode failed", applogger.Error(err))
		return nil
	}
	if o.Subject == "" || o.Instrument == "" || o.PeriodTS.IsZero() {
		h.metrics.RecordError("kafka_invalid")
		h.l.Warn("observation missing required fields",
			applogger.String("subject", o.Subject),
			applogger.String("instrument", o.Instrument))
		return nil
	}

	if err := h.store.Store(ctx, &o); err != nil {
		h.metrics.RecordError("kafka_store")
		return fmt.Errorf("store observation: %w", err)
	}

	h.metrics.RecordLatency("kafka_handle", time.Since(start).Seconds())
	return nil
}
