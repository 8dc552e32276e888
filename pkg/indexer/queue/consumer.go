package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Consumer consumes bulk index requests from Kafka and processes them.
type Consumer struct {
	kafkaClient *kgo.Client
	processor   *Processor
	logger      hclog.Logger
	stopCh      chan struct{}
}

// ConsumerConfig holds configuration for the consumer.
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string

	// ConsumeFromStart starts new consumer groups at the oldest offset.
	ConsumeFromStart bool

	Processor *Processor
	Logger    hclog.Logger
}

// NewConsumer creates a new bulk index consumer.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("consumer group is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	offset := kgo.NewOffset().AtEnd()
	if cfg.ConsumeFromStart {
		offset = kgo.NewOffset().AtStart()
	}

	kafkaClient, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topic),

		kgo.ConsumeResetOffset(offset),
		kgo.SessionTimeout(10*time.Second),
		kgo.RebalanceTimeout(30*time.Second),

		// Offsets are committed after successful processing.
		kgo.DisableAutoCommit(),

		kgo.FetchMaxWait(500*time.Millisecond),
		kgo.FetchMinBytes(1),
		kgo.FetchMaxBytes(5<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Consumer{
		kafkaClient: kafkaClient,
		processor:   cfg.Processor,
		logger:      cfg.Logger.Named("index-consumer"),
		stopCh:      make(chan struct{}),
	}, nil
}

// Run polls and processes index requests until ctx is done or Stop is
// called.
func (c *Consumer) Run(ctx context.Context) error {
	group, _ := c.kafkaClient.GroupMetadata()
	c.logger.Info("starting index consumer", "consumer_group", group)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("index consumer stopped by context")
			return ctx.Err()

		case <-c.stopCh:
			c.logger.Info("index consumer stopped")
			return nil

		default:
			fetches := c.kafkaClient.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return nil
			}

			if errs := fetches.Errors(); len(errs) > 0 {
				for _, err := range errs {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					c.logger.Error("kafka fetch error", "error", err.Err)
				}
				continue
			}

			fetches.EachPartition(func(p kgo.FetchTopicPartition) {
				done, failed := drainPartition(ctx, p.Records, c.handle, c.logger)
				if done != nil {
					if err := c.kafkaClient.CommitRecords(ctx, done); err != nil {
						c.logger.Warn("failed to commit Kafka offset",
							"partition", done.Partition,
							"offset", done.Offset,
							"error", err)
					}
				}
				if failed != nil {
					// Rewind so the failed request is fetched again.
					c.kafkaClient.SetOffsets(map[string]map[int32]kgo.EpochOffset{
						p.Topic: {p.Partition: {Epoch: failed.LeaderEpoch, Offset: failed.Offset}},
					})
				}
			})
		}
	}
}

// drainPartition handles records in offset order. It returns the last record
// whose offset may be committed and the first record that failed, if any.
// Unprocessable requests are logged and acknowledged. Any other failure stops
// the partition so that no later offset acknowledges it.
func drainPartition(
	ctx context.Context,
	records []*kgo.Record,
	handle func(context.Context, *kgo.Record) error,
	logger hclog.Logger,
) (done, failed *kgo.Record) {
	for _, record := range records {
		if err := handle(ctx, record); err != nil {
			if !errors.Is(err, ErrUnprocessable) {
				logger.Error("failed to process index request, will retry",
					"partition", record.Partition,
					"offset", record.Offset,
					"error", err,
				)
				return done, record
			}
			logger.Error("dropping unprocessable index request",
				"partition", record.Partition,
				"offset", record.Offset,
				"error", err,
			)
		}
		done = record
	}
	return done, nil
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) error {
	req, err := DecodeRequest(record.Value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}

	c.logger.Debug("processing index request",
		"record_id", req.ID,
		"action", req.Action,
		"offset", record.Offset,
	)
	return c.processor.Process(ctx, req)
}

// Stop gracefully stops the consumer.
func (c *Consumer) Stop() {
	select {
	case <-c.stopCh:
		return
	default:
		close(c.stopCh)
		c.kafkaClient.Close()
	}
}
