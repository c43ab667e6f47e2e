package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// KafkaCommitter commits ledger records to a Kafka topic. The batch id is
// the record key, so all records for one batch land on one partition and
// keep their order.
type KafkaCommitter struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

type KafkaOption func(*KafkaCommitter)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(c *KafkaCommitter) {
		c.logger = logger
	}
}

// WithCommitTimeout bounds each produce call. External ledger calls are the
// only I/O-bound step in a mutation and must not hang it.
func WithCommitTimeout(d time.Duration) KafkaOption {
	return func(c *KafkaCommitter) {
		c.timeout = d
	}
}

// NewKafka connects a committer to the given brokers and topic.
func NewKafka(brokers []string, topic string, opts ...KafkaOption) (*KafkaCommitter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	c := &KafkaCommitter{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *KafkaCommitter) CommitRecord(ctx context.Context, batchID domain.BatchID, recordType RecordType, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	record := &kgo.Record{
		Topic: c.topic,
		Key:   []byte(batchID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "record_type", Value: []byte(recordType)},
		},
	}
	if err := c.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "ledger commit failed",
				"batch_id", batchID.String(),
				"record_type", string(recordType),
				"error", err,
			)
		}
		return fmt.Errorf("%w: produce ledger record: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (c *KafkaCommitter) Close() error {
	c.client.Close()
	return nil
}
