package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

const flushTimeout = 5 * time.Second

// KafkaPublisher emits audit events to a Kafka topic, keyed by actor so all
// events for one account land in the same partition. Delivery is
// asynchronous and fail-open: production errors are logged, never returned
// to the authentication path.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers and returns a publisher.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// Emit serializes the event and hands it to the producer. The only error
// returned is serialization failure; broker errors surface in the log via
// the produce callback.
func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	fill(ctx, &event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ActorID),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.ErrorContext(ctx, "audit event delivery failed",
				"action", event.Action, "audit_id", event.ID, "error", err)
		}
	})
	return nil
}

// Close flushes pending records and closes the client.
func (p *KafkaPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Error("audit flush on close failed", "error", err)
	}
	p.client.Close()
	return nil
}
