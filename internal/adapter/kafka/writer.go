// Package kafka publishes check-in events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/safesea/internal/config"
	"github.com/couchcryptid/safesea/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces check-in messages to a Kafka topic.
// It implements dispatch.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured check-in topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaCheckinTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// RecordBatch serializes and publishes the check-ins in a single
// WriteMessages call. Messages are keyed by check-in ID.
func (w *Writer) RecordBatch(ctx context.Context, checkins []domain.Checkin) error {
	if len(checkins) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(checkins))
	for i := range checkins {
		msg, err := serializeToMessage(checkins[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish checkins: %w", err)
	}
	w.logger.DebugContext(ctx, "checkins published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Checkin into a Kafka message.
func serializeToMessage(c domain.Checkin) (kafkago.Message, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize checkin: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(c.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "role", Value: []byte(c.Role)},
			{Key: "created_at", Value: []byte(c.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
