package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of *kgo.Client used by KafkaPublisher.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher forwards lifecycle events to a Kafka topic. Records are keyed
// by account ID so that events of one account stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaClient creates a franz-go client for brokers producing to topic.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// NewKafkaPublisher creates a publisher writing to topic through producer.
func NewKafkaPublisher(producer Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With("component", "kafka_publisher", "topic", topic),
	}
}

// HandleEvent implements EventHandler by producing the event synchronously.
func (p *KafkaPublisher) HandleEvent(ctx context.Context, event *LifecycleEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.AccountID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}

	p.logger.DebugContext(ctx, "published lifecycle event",
		"event_id", event.ID,
		"event_type", event.Type)
	return nil
}
