// Package audit defines the append-only audit sink collaborator and a
// Kafka-backed implementation for deployments that publish audit events
// onto a shared event bus.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"reconcore/internal/domain"
	"reconcore/pkg/logger"
)

// Sink is the append-only audit collaborator. Implementations must never
// delete or mutate a previously written event.
type Sink interface {
	Append(ctx context.Context, event domain.AuditEvent) error
}

// KafkaSink publishes audit events onto a Kafka topic, one message per
// event, keyed by entity ID so a consumer can replay one entity's
// history in order.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink constructs a KafkaSink writing to the given brokers/topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (s *KafkaSink) Append(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EntityID),
		Value: payload,
	})
	if err != nil {
		logger.GetLogger().WithError(err).Error("audit: failed to publish event to kafka")
	}
	return err
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// LogSink is a Sink that writes audit events through the structured
// logger, used as the zero-configuration default.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Append(_ context.Context, event domain.AuditEvent) error {
	logger.GetLogger().WithFields(map[string]interface{}{
		"entity_type": event.EntityType,
		"entity_id":   event.EntityID,
		"action":      event.Action,
		"from_state":  event.FromState,
		"to_state":    event.ToState,
	}).Info("audit event")
	return nil
}
