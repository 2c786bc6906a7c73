package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/models"
)

// MessageWriter is the subset of *kafka.Writer the Kafka sender uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSender publishes digests as JSON, keyed by query, for the mail relay.
type KafkaSender struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter builds the writer KafkaSender publishes through.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	})
}

// NewKafkaSender wraps writer.
func NewKafkaSender(writer MessageWriter, topic string) *KafkaSender {
	return &KafkaSender{writer: writer, topic: topic}
}

func (s *KafkaSender) Send(ctx context.Context, d models.Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(d.Query),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "digest_id", Value: []byte(d.ID)},
			{Key: "subject", Value: []byte(d.Subject)},
			{Key: "generated_at", Value: []byte(d.GeneratedAt.Format(time.RFC3339))},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish digest to %s: %w", s.topic, err)
	}
	return nil
}

// LogSender writes a digest summary to the log instead of delivering it.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: logger.OrDiscard(log)}
}

func (s *LogSender) Send(_ context.Context, d models.Digest) error {
	s.log.Info("digest ready",
		slog.String("id", d.ID),
		slog.String("query", d.Query),
		slog.String("subject", d.Subject),
		slog.Int("items", len(d.Items)),
	)
	return nil
}
