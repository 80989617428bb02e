package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka publishes events to a Kafka topic, keyed by listing id so all
// events for one item land on one partition in order.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects to the brokers and ensures the topic exists.
func NewKafka(ctx context.Context, brokers, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1 << 20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	topics, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}
	if _, err := adm.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

func (k *Kafka) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.ListingID.String()),
		Value: payload,
	}

	// Fire-and-forget: event delivery must not extend the ledger commit
	// path. Failed deliveries are logged for operator follow-up.
	k.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("event publish failed",
				"kind", string(event.Kind),
				"listing_id", event.ListingID.String(),
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (k *Kafka) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := k.client.Flush(ctx); err != nil {
		k.logger.Error("flush kafka producer", "error", err)
	}
	k.client.Close()
}
