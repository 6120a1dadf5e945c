// Package notify defines the optional notification sink collaborator
// used to alert operators about exceptions and degraded extractions.
package notify

import (
	"context"

	"github.com/segmentio/kafka-go"

	"reconcore/pkg/logger"
)

// Alert is one operator-facing notification.
type Alert struct {
	OrganizationID string
	Severity       string
	Title          string
	Body           string
}

// Sink dispatches operator alerts to chat/email.
type Sink interface {
	Notify(ctx context.Context, alert Alert) error
}

// KafkaSink publishes alerts onto a topic for a downstream chat/email
// bridge to consume, reusing the same client as the audit sink.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic, Balancer: &kafka.LeastBytes{}}}
}

func (s *KafkaSink) Notify(ctx context.Context, alert Alert) error {
	payload := []byte(alert.Severity + ": " + alert.Title + " - " + alert.Body)
	return s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(alert.OrganizationID), Value: payload})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// LogSink logs alerts instead of dispatching them, used as the
// zero-configuration default.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Notify(_ context.Context, alert Alert) error {
	logger.GetLogger().WithField("organization_id", alert.OrganizationID).
		WithField("severity", alert.Severity).
		Warn(alert.Title + ": " + alert.Body)
	return nil
}
