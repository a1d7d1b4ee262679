// Package live fans booking updates out to connected clients over Redis Pub/Sub or Kafka.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"eventbooking/internal/domain"
)

// Message is the JSON envelope written for every update.
type Message struct {
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Publisher is a LivePublisher that holds a connection and must be closed on shutdown.
type Publisher interface {
	domain.LivePublisher
	Close() error
}

// Config selects and configures the live-update transport.
type Config struct {
	Provider     string // redis, kafka or noop
	Redis        *redis.Client
	KafkaBrokers []string
	KafkaTopic   string
}

// New builds the publisher named by cfg.Provider. Unknown providers fall back to noop.
func New(cfg Config, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("live updates: redis provider needs a redis client")
		}
		return NewRedisPublisher(cfg.Redis), nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
			return nil, fmt.Errorf("live updates: kafka provider needs brokers and a topic")
		}
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "noop", "":
		return NewNoopPublisher(logger), nil
	default:
		logger.Warn("unknown live updates provider, using noop", "provider", cfg.Provider)
		return NewNoopPublisher(logger), nil
	}
}

func encode(topic string, payload any, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return json.Marshal(Message{Topic: topic, Payload: raw, PublishedAt: now.UTC()})
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes each topic on the Redis channel of the same name.
type RedisPublisher struct {
	client redisPublisher
	now    func() time.Time
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: rdb, now: time.Now}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	b, err := encode(topic, payload, p.now())
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, topic, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Close is a no-op: the redis client is shared and closed by its owner.
func (p *RedisPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes every update to one Kafka topic, keyed by the live topic so updates for
// the same topic stay ordered within a partition.
type KafkaPublisher struct {
	w   messageWriter
	now func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		now: time.Now,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, payload any) error {
	now := p.now()
	b, err := encode(topic, payload, now)
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(topic),
		Value:   b,
		Time:    now,
		Headers: []kafka.Header{{Key: "topic", Value: []byte(topic)}},
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// NoopPublisher logs updates at debug level and drops them.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, topic string, payload any) error {
	p.logger.DebugContext(ctx, "live update dropped (noop)", "topic", topic)
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
