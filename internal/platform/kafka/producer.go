// Package kafka wraps the franz-go client used to ship audit events.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"certify/internal/platform/config"
	audit "certify/pkg/platform/audit"
)

// Message is one record to publish.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes records synchronously to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the configured brokers. Returns nil when no
// brokers are configured.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: cfg.AuditTopic}, nil
}

// EnsureTopic creates the audit topic when it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}

// Publish produces all messages and waits for broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		rec := &kgo.Record{Topic: p.topic, Key: m.Key, Value: m.Value}
		for k, v := range m.Headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		records = append(records, rec)
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit records: %w", err)
	}
	return nil
}

// Health pings the brokers.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}

// PublishOutbox publishes outbox entries keyed by aggregate so events about
// one certificate stay ordered within a partition.
func (p *Producer) PublishOutbox(ctx context.Context, entries []audit.OutboxEntry) error {
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: map[string]string{
				"event_id":       e.ID.String(),
				"event_type":     e.EventType,
				"aggregate_type": e.AggregateType,
			},
		})
	}
	return p.Publish(ctx, msgs...)
}
