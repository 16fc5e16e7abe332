// Package events publishes charge status changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/config"
	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaWriter builds an async writer: WriteMessages returns immediately
// and delivery failures are reported through the logger.
func NewKafkaWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to deliver status changes",
					zap.Int("count", len(messages)),
					zap.Error(err))
			}
		},
	}
}

func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish keys messages by charge id so changes to one charge stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, change domain.StatusChange) {
	msg, err := encode(change)
	if err != nil {
		p.logger.Error("failed to encode status change",
			zap.String("charge_id", change.ChargeExternalID),
			zap.Error(err))
		return
	}

	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.logger.Warn("failed to publish status change",
			zap.String("charge_id", change.ChargeExternalID),
			zap.String("to", string(change.To)),
			zap.Error(err))
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(change domain.StatusChange) (kafka.Message, error) {
	value, err := json.Marshal(change)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(change.ChargeExternalID),
		Value: value,
		Time:  change.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("charge_status_changed")},
		},
	}, nil
}
