package alert

import (
	"context"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	"WalletPulse/pkg/queue"

	applogger "WalletPulse/pkg/logger"
)

// NotifyMessageType is the queue message type carrying emitted alerts.
const NotifyMessageType = "alert.notify"

// NotifyPayload is the queue payload for one emitted alert.
type NotifyPayload struct {
	TS       time.Time `json:"ts"`
	Subject  string    `json:"subject"`
	Kind     string    `json:"kind"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
}

// QueueNotifier hands emitted alerts to the Redis-backed job queue so
// delivery retries happen outside the evaluation path.
type QueueNotifier struct {
	q queue.QueueService
}

// NewQueueNotifier creates a notifier over a queue service.
func NewQueueNotifier(q queue.QueueService) *QueueNotifier {
	return &QueueNotifier{q: q}
}

func (n *QueueNotifier) Notify(ctx context.Context, ev *models.AlertEvent) error {
	p := NotifyPayload{
		TS:       ev.TS,
		Subject:  ev.Subject,
		Kind:     string(ev.Kind),
		Severity: string(ev.Severity),
		Message:  ev.Message,
	}
	if err := n.q.PublishMessage(ctx, NotifyMessageType, p); err != nil {
		return fmt.Errorf("enqueue alert notification: %w", err)
	}
	return nil
}

// NotifyJob is the consumer side: it delivers queued alerts to the operator
// channel. Delivery is a structured log line today; the job boundary is where
// a webhook or pager integration would slot in.
type NotifyJob struct {
	l *applogger.Logger
}

// NewNotifyJob creates the alert delivery job.
func NewNotifyJob(l *applogger.Logger) *NotifyJob {
	return &NotifyJob{l: l}
}

func (j *NotifyJob) Name() string { return "alert-notify" }

func (j *NotifyJob) Type() string { return NotifyMessageType }

func (j *NotifyJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[NotifyPayload](payload)
	if err != nil {
		return fmt.Errorf("parse alert payload: %w", err)
	}
	j.l.Info("alert delivered",
		applogger.String("subject", p.Subject),
		applogger.String("kind", p.Kind),
		applogger.String("severity", p.Severity),
		applogger.String("message", p.Message),
	)
	return nil
}
