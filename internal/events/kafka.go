package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"actionplan/pkg/platform/circuit"
)

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher is the fallback target while the broker is unreachable.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// KafkaPublisher writes events as JSON records keyed by subject. After
// repeated produce failures its breaker opens and events go to the fallback
// until a probe succeeds.
type KafkaPublisher struct {
	producer Producer
	client   *kgo.Client
	topic    string
	breaker  *circuit.Breaker
	fallback Publisher
	logger   *slog.Logger
}

type KafkaOption func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithFallback(fallback Publisher) KafkaOption {
	return func(p *KafkaPublisher) {
		p.fallback = fallback
	}
}

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(p *KafkaPublisher) {
		p.breaker = b
	}
}

// NewKafkaPublisher connects a franz-go client to brokers.
func NewKafkaPublisher(brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := NewProducerPublisher(client, topic, opts...)
	p.client = client
	return p, nil
}

// NewProducerPublisher wraps an existing producer.
func NewProducerPublisher(producer Producer, topic string, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuit.New("kafka")
	}
	if p.fallback == nil {
		p.fallback = NewLogPublisher(p.logger)
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if !p.breaker.Allow() {
		return p.fallback.Publish(ctx, e)
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.Subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "request_id", Value: []byte(e.RequestID)},
		},
	}

	if err := p.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		_, change := p.breaker.RecordFailure()
		if change.Opened {
			p.logger.WarnContext(ctx, "kafka breaker opened, publishing to fallback",
				"topic", p.topic,
				"error", err,
			)
		}
		if ferr := p.fallback.Publish(ctx, e); ferr != nil {
			return fmt.Errorf("produce event: %w", err)
		}
		return nil
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "kafka breaker closed", "topic", p.topic)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	return p.client.Ping(ctx)
}

// Close releases the broker connections.
func (p *KafkaPublisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
