package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
)

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer builds an async writer. WriteMessages returns once the message
// is queued; delivery failures are reported through the completion callback
// so classification latency never waits on the brokers.
func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	p := &Producer{logger: logger}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicEvents,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxRetries,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.onCompletion,
	}

	logger.Info("kafka producer created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.TopicEvents))

	return p
}

func (p *Producer) PublishClassification(ctx context.Context, event *models.ClassificationEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing classification event: %w", err)
	}

	return nil
}

func (p *Producer) onCompletion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	observability.EventsPublishedTotal.WithLabelValues("delivery_error").Add(float64(len(messages)))
	p.logger.Error("classification events not delivered",
		zap.Int("count", len(messages)),
		zap.Error(err),
	)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// buildMessage keys by query hash so every occurrence of a query lands on the
// same partition.
func buildMessage(event *models.ClassificationEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling classification event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.QueryHash),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "intent", Value: []byte(event.Intent)},
			{Key: "region", Value: []byte(event.Region)},
		},
	}, nil
}
