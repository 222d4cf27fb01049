package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Sources stamped on event log entries, by producing service
const (
	sourceReservationService = "reservation-service"
	sourceInventoryService   = "inventory-service"
)

// SagaHandler is the set of saga steps the consumer drives. Each handler must
// be idempotent: the broker delivers at least once.
type SagaHandler interface {
	HandleReservationRequested(ctx context.Context, env *Envelope, event *ReservationRequested) error
	HandleCancellationRequested(ctx context.Context, env *Envelope, event *CancellationRequested) error
	HandleInventoryReceived(ctx context.Context, env *Envelope, event *InventoryReceived) error
}

// Consumer reads the three inbound topics with one reader per topic. Within a
// partition messages are handled strictly sequentially; offsets are committed
// only after the handler returns without error, and a failing message is
// retried in place rather than fetched past, so a crash mid-step causes full
// redelivery and a safe replay through the idempotency ledger.
type Consumer struct {
	readers []*kafka.Reader
	handler SagaHandler
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewConsumer creates readers for the reservation choreography's inbound topics
func NewConsumer(brokers []string, groupID string, handler SagaHandler, log *zap.Logger) *Consumer {
	topics := []string{
		TopicReservationRequested,
		TopicCancellationRequested,
		TopicInventoryReceived,
	}

	readers := make([]*kafka.Reader, 0, len(topics))
	for _, topic := range topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // synchronous commits
		}))
	}

	return &Consumer{
		readers: readers,
		handler: handler,
		log:     log,
	}
}

// Start launches one consuming goroutine per topic and returns
func (c *Consumer) Start(ctx context.Context) {
	for _, reader := range c.readers {
		c.wg.Add(1)
		go func(r *kafka.Reader) {
			defer c.wg.Done()
			c.run(ctx, r)
		}(reader)
	}
}

func (c *Consumer) run(ctx context.Context, reader *kafka.Reader) {
	topic := reader.Config().Topic
	c.log.Info("Consumer started", zap.String("topic", topic))

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			// io.EOF means the reader was closed
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.log.Info("Consumer shutting down", zap.String("topic", topic))
				return
			}
			c.log.Error("Failed to fetch message", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := c.processWithRetry(ctx, msg); err != nil {
			c.log.Info("Consumer shutting down", zap.String("topic", topic))
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("Failed to commit offset",
				zap.String("topic", topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// processWithRetry retries a failed message in place instead of advancing.
// Committing any later offset on the partition would implicitly acknowledge
// this one, so a message that keeps failing blocks its partition until it
// succeeds or the consumer shuts down. Returns non-nil only when the context
// is done.
func (c *Consumer) processWithRetry(ctx context.Context, msg kafka.Message) error {
	backoff := initialBackoff
	for {
		err := c.dispatch(ctx, msg)
		if err == nil {
			return nil
		}

		c.log.Error("Failed to handle message, retrying in place",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// dispatch decodes the message for its topic and invokes the matching saga
// handler. A payload that cannot be decoded is skipped and acknowledged: it
// can never succeed, and retrying it forever would wedge the partition.
func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case TopicReservationRequested:
		var event ReservationRequested
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logMalformed(msg, err)
			return nil
		}
		env := c.envelope(msg, event.CorrelationID, TypeReservationRequested, sourceReservationService)
		return c.handler.HandleReservationRequested(ctx, env, &event)

	case TopicCancellationRequested:
		var event CancellationRequested
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logMalformed(msg, err)
			return nil
		}
		env := c.envelope(msg, event.CorrelationID, TypeCancellationRequested, sourceReservationService)
		return c.handler.HandleCancellationRequested(ctx, env, &event)

	case TopicInventoryReceived:
		var event InventoryReceived
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logMalformed(msg, err)
			return nil
		}
		env := c.envelope(msg, event.CorrelationID, TypeInventoryReceived, sourceInventoryService)
		return c.handler.HandleInventoryReceived(ctx, env, &event)
	}

	c.log.Warn("Message on unexpected topic", zap.String("topic", msg.Topic))
	return nil
}

// envelope builds the canonical envelope for an inbound message, deriving the
// event id from the message's physical coordinates because the producers do
// not embed one.
func (c *Consumer) envelope(msg kafka.Message, correlationID uuid.UUID, eventType, source string) *Envelope {
	return &Envelope{
		EventID:       DeriveEventID(msg.Topic, msg.Partition, msg.Offset, correlationID),
		CorrelationID: correlationID,
		EventType:     eventType,
		EventVersion:  EventVersion,
		Timestamp:     time.Now(),
		Source:        source,
		Payload:       msg.Value,
	}
}

func (c *Consumer) logMalformed(msg kafka.Message, err error) {
	c.log.Error("Malformed event payload, skipping message",
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Error(err),
	)
}

// Close stops all readers and waits for the consuming goroutines to exit
func (c *Consumer) Close() {
	for _, reader := range c.readers {
		reader.Close()
	}
	c.wg.Wait()
	c.log.Info("Consumer stopped")
}
