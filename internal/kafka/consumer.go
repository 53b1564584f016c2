package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/observability"
	"github.com/shubhsaxena/search-layout/internal/resilience"
)

type MessageHandler func(ctx context.Context, event *models.ClassificationEvent) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	dlqWriter  messageWriter
	handler    MessageHandler
	cfg        config.KafkaConfig
	retry      resilience.RetryConfig
	logger     *zap.Logger
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.TopicEvents,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,  // 1KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.TopicDLQ,
		Balancer: &kafka.Hash{},
	}

	logger.Info("kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.TopicEvents),
		zap.String("group", cfg.ConsumerGroup),
	)

	return newConsumer(reader, dlqWriter, cfg, handler, logger)
}

func newConsumer(reader messageReader, dlq messageWriter, cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	return &Consumer{
		reader:    reader,
		dlqWriter: dlq,
		handler:   handler,
		cfg:       cfg,
		retry: resilience.RetryConfig{
			MaxAttempts: attempts,
			InitialWait: 100 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Multiplier:  2.0,
		},
		logger: logger,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()

	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer shutting down")
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetching kafka message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	start := time.Now()

	var event models.ClassificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("unmarshaling kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
		observability.PipelineEventsTotal.WithLabelValues("decode", "dlq").Inc()
		if c.sendToDLQ(ctx, msg, fmt.Sprintf("unmarshal error: %v", err)) != nil {
			return
		}
		c.commitMessage(ctx, msg)
		return
	}

	if !event.Timestamp.IsZero() {
		observability.PipelineLag.Set(time.Since(event.Timestamp).Seconds())
	}

	err := resilience.Retry(ctx, c.retry, func() error {
		return c.handler(ctx, &event)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Left uncommitted so the group redelivers it after restart.
			return
		}
		reason := fmt.Sprintf("handler error after retries: %v", err)
		status := "dlq"
		if resilience.IsPermanent(err) {
			reason = fmt.Sprintf("rejected: %v", err)
			status = "rejected"
		}
		c.logger.Error("handler failed, sending to DLQ",
			zap.Error(err),
			zap.String("event_id", event.EventID),
			zap.String("status", status),
		)
		observability.PipelineEventsTotal.WithLabelValues("handle", status).Inc()
		if c.sendToDLQ(ctx, msg, reason) != nil {
			return
		}
	} else {
		observability.PipelineEventsTotal.WithLabelValues("handle", "success").Inc()
	}

	c.commitMessage(ctx, msg)

	c.logger.Debug("message processed",
		zap.String("event_id", event.EventID),
		zap.Duration("duration", time.Since(start)),
	)
}

// sendToDLQ parks msg on the dead-letter topic. It keeps retrying until the
// write lands or ctx ends, holding the partition so a failed event is never
// committed past. A non-nil error means msg must stay uncommitted.
func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, reason string) error {
	if c.cfg.TopicDLQ == "" {
		return nil
	}
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "original_topic", Value: []byte(c.cfg.TopicEvents)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		),
	}

	for {
		err := resilience.Retry(ctx, c.retry, func() error {
			return c.dlqWriter.WriteMessages(ctx, dlqMsg)
		})
		if err == nil {
			return nil
		}
		observability.PipelineEventsTotal.WithLabelValues("dlq", "error").Inc()
		if ctx.Err() != nil {
			c.logger.Warn("DLQ write abandoned on shutdown, leaving message uncommitted",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
			)
			return err
		}
		c.logger.Error("DLQ write failed, holding partition",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
	}
}

func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("committing kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) HealthCheck(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka health check dial: %w", err)
	}
	defer conn.Close()

	_, err = conn.Brokers()
	if err != nil {
		return fmt.Errorf("kafka health check brokers: %w", err)
	}
	return nil
}

func (c *Consumer) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()

	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing reader: %w", err))
	}
	if err := c.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing dlq writer: %w", err))
	}

	return errors.Join(errs...)
}
