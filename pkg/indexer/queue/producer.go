package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes bulk index requests.
type Producer struct {
	client *kgo.Client
	topic  string
	logger hclog.Logger
}

// ProducerConfig holds configuration for the producer.
type ProducerConfig struct {
	Brokers []string
	Topic   string
	Logger  hclog.Logger
}

// NewProducer creates a new Producer.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),

		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.GzipCompression()),

		kgo.RetryBackoffFn(func(tries int) time.Duration {
			backoff := time.Duration(tries) * 100 * time.Millisecond
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			return backoff
		}),
		kgo.RequestRetries(10),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Producer{
		client: client,
		topic:  cfg.Topic,
		logger: cfg.Logger.Named("index-producer"),
	}, nil
}

// BulkIndex queues the records for indexing.
func (p *Producer) BulkIndex(ctx context.Context, ids []uuid.UUID) error {
	return p.publish(ctx, ActionIndex, ids)
}

// BulkDelete queues the records for removal from the index.
func (p *Producer) BulkDelete(ctx context.Context, ids []uuid.UUID) error {
	return p.publish(ctx, ActionDelete, ids)
}

func (p *Producer) publish(ctx context.Context, action Action, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	kafkaRecords, err := buildRecords(p.topic, action, ids)
	if err != nil {
		return err
	}

	if err := p.client.ProduceSync(ctx, kafkaRecords...).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish index requests: %w", err)
	}

	p.logger.Info("queued records",
		"action", action,
		"count", len(ids),
		"topic", p.topic,
	)
	return nil
}

// Close flushes and closes the Kafka client.
func (p *Producer) Close() {
	p.client.Close()
}

// buildRecords keys each request by record ID so requests for the same
// record land on the same partition in order.
func buildRecords(topic string, action Action, ids []uuid.UUID) ([]*kgo.Record, error) {
	out := make([]*kgo.Record, 0, len(ids))
	for _, id := range ids {
		value, err := Request{ID: id, Action: action}.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal index request: %w", err)
		}
		out = append(out, &kgo.Record{
			Topic: topic,
			Key:   []byte(id.String()),
			Value: value,
		})
	}
	return out, nil
}
