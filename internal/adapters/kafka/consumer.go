package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/pkg/observability"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
)

const (
	MessageTypeStockMovement    = "stock_movement"
	MessageTypeOrderLineCreated = "order_line_created"
)

// ConsumerConfig contains configuration for the commerce events consumer
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// MessageReader is the part of kafka.Reader the consumer uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher hands decoded commerce events to their handlers and reports whether they succeeded
type EventPublisher interface {
	DeliverStockMovement(ctx context.Context, event domain.StockMovementEvent) error
	DeliverOrderLineCreated(ctx context.Context, event domain.OrderLineCreatedEvent) error
}

// envelope is the wire format on the commerce events topic
type envelope struct {
	Data json.RawMessage `json:"data"`
	Type string          `json:"type"`
}

// Consumer reads commerce events and hands them to the event bus. An offset is committed only
// after the handlers succeeded; a failed message is retried in place so later offsets never
// commit past it. Undecodable messages are committed and dropped.
type Consumer struct {
	reader    MessageReader
	publisher EventPublisher
	logger    ports.Logger
	retry     resilience.BackoffStrategy
	backoff   time.Duration
}

// NewConsumer creates a consumer-group reader for the topic
func NewConsumer(cfg ConsumerConfig, publisher EventPublisher, logger ports.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return NewConsumerWithReader(reader, publisher, logger)
}

// NewConsumerWithReader creates a consumer on an existing reader
func NewConsumerWithReader(reader MessageReader, publisher EventPublisher, logger ports.Logger) *Consumer {
	return &Consumer{
		reader:    reader,
		publisher: publisher,
		logger:    logger,
		retry:     &resilience.ExponentialBackoff{Initial: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.1},
		backoff:   time.Second,
	}
}

// Run consumes until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Commerce events consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Failed to fetch message", ports.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		if err := c.handleWithRetry(ctx, msg); err != nil {
			// uncommitted, redelivered after a rebalance or restart
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to commit offset", ports.Int64("offset", msg.Offset), ports.Err(err))
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// handleWithRetry returns only once msg was handled or ctx is done
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	for attempt := 0; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		observability.RecordStockUpdate("failed")
		delay := c.retry.NextDelay(attempt)
		c.logger.Error("Failed to handle commerce event, retrying",
			ports.Int64("offset", msg.Offset),
			ports.Int("partition", msg.Partition),
			ports.Int("attempt", attempt+1),
			ports.Duration("retry_in", delay),
			ports.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.dropInvalid(msg, err)
		return nil
	}

	switch env.Type {
	case MessageTypeStockMovement:
		var event domain.StockMovementEvent
		if err := json.Unmarshal(env.Data, &event); err != nil || event.ChannelToken == "" {
			c.dropInvalid(msg, fmt.Errorf("invalid stock movement: %v", err))
			return nil
		}
		if err := c.publisher.DeliverStockMovement(ctx, event); err != nil {
			return err
		}
		observability.RecordStockUpdate("applied")
		return nil

	case MessageTypeOrderLineCreated:
		var event domain.OrderLineCreatedEvent
		if err := json.Unmarshal(env.Data, &event); err != nil || event.OrderLineID == "" {
			c.dropInvalid(msg, fmt.Errorf("invalid order line event: %v", err))
			return nil
		}
		return c.publisher.DeliverOrderLineCreated(ctx, event)

	default:
		c.logger.Debug("Ignoring commerce event", ports.String("type", env.Type))
		return nil
	}
}

func (c *Consumer) dropInvalid(msg kafka.Message, err error) {
	observability.RecordStockUpdate("invalid")
	c.logger.Warn("Dropping undecodable commerce event",
		ports.Int64("offset", msg.Offset),
		ports.String("key", string(msg.Key)),
		ports.Err(err))
}
