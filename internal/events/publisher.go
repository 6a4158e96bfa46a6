// Package events publishes reconciliation outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/invoice-pay/internal/domain"
)

// ReconciliationEvent is the message body. The session id is also the message
// key so every event for a session lands on the same partition.
type ReconciliationEvent struct {
	Type       string                `json:"type"`
	JobID      string                `json:"job_id"`
	SessionID  string                `json:"session_id"`
	Status     domain.JobStatus      `json:"status"`
	State      domain.ReconcileState `json:"state"`
	PaymentRef string                `json:"payment_ref,omitempty"`
	Attempt    int                   `json:"attempt"`
	Error      string                `json:"error,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

func EventType(status domain.JobStatus) string {
	return "reconciliation." + string(status)
}

type Publisher interface {
	PublishReconciliation(ctx context.Context, ev ReconciliationEvent) error
	Close() error
}

// Writer is the subset of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishReconciliation(ctx context.Context, ev ReconciliationEvent) error {
	if ev.Type == "" {
		ev.Type = EventType(ev.Status)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("PublishReconciliation: marshal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("PublishReconciliation: write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishReconciliation(context.Context, ReconciliationEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
