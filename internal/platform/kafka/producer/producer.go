// Package producer wraps the franz-go client for publishing audit events.
package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// New creates a producer connected to the given brokers.
func New(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic if it does not exist yet. Safe to call on
// every startup.
func (p *Producer) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %q: %w", p.topic, resp.Err)
	}
	return nil
}

// Publish synchronously produces one record keyed by key.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %q: %w", p.topic, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
