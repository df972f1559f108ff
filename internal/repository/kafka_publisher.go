package repository

import (
	"context"
	"fmt"

	"WalletPulse/internal/domain/models"
	pkgkafka "WalletPulse/pkg/kafka"
)

// KafkaPublisher pushes finished signals, alert events, and raw observations
// onto the Kafka bus. Keys are chosen so that one instrument (or subject)
// always lands on one partition and downstream consumers see ordered streams.
type KafkaPublisher struct {
	producer         *pkgkafka.Producer
	signalTopic      string
	alertTopic       string
	observationTopic string
}

// NewKafkaPublisher creates a publisher over an existing producer.
func NewKafkaPublisher(producer *pkgkafka.Producer, signalTopic, alertTopic, observationTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer:         producer,
		signalTopic:      signalTopic,
		alertTopic:       alertTopic,
		observationTopic: observationTopic,
	}
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s *models.SignalPeriod) error {
	if err := p.producer.Publish(ctx, p.signalTopic, []byte(s.Instrument), s); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishAlert(ctx context.Context, ev *models.AlertEvent) error {
	if err := p.producer.Publish(ctx, p.alertTopic, []byte(ev.Subject), ev); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishObservation(ctx context.Context, o *models.PositionObservation) error {
	if err := p.producer.Publish(ctx, p.observationTopic, []byte(o.Subject), o); err != nil {
		return fmt.Errorf("publish observation: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
