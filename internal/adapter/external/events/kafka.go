package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

const eventLookupCompleted = "lookup.completed"

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher streams completed lookup summaries to a Kafka topic
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// KafkaConfig holds Kafka publisher configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LookupEvent is the message value written for each lookup
type LookupEvent struct {
	Event     string               `json:"event"`
	Lookup    *entity.LookupRecord `json:"lookup"`
	EmittedAt time.Time            `json:"emittedAt"`
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		topic:  cfg.Topic,
		logger: logger,
	}
}

// PublishLookup writes one lookup event keyed by the queried indicator, so
// every lookup of the same indicator lands on the same partition
func (p *KafkaPublisher) PublishLookup(ctx context.Context, rec *entity.LookupRecord) error {
	value, err := json.Marshal(LookupEvent{
		Event:     eventLookupCompleted,
		Lookup:    rec,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal lookup event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(string(rec.Type) + ":" + rec.Query),
		Value: value,
		Time:  rec.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(eventLookupCompleted)},
			{Key: "risk_level", Value: []byte(rec.RiskLevel)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published lookup event", "topic", p.topic, "query", rec.Query)
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
