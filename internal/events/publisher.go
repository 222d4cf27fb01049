package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// Retry configuration
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second

	dialTimeout = 2 * time.Second
)

// Publisher sends outcome events to Kafka. Messages are keyed by the saga's
// correlation id and partitioned by key hash, so all events of one saga
// instance stay in order relative to each other. No ordering is guaranteed
// across sagas.
type Publisher struct {
	writer  *kafka.Writer
	brokers []string
	log     *zap.Logger
}

// NewPublisher creates a new event publisher backed by a shared Kafka writer
func NewPublisher(brokers []string, log *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}

	log.Info("Kafka publisher created", zap.Strings("brokers", brokers))

	return &Publisher{
		writer:  writer,
		brokers: brokers,
		log:     log,
	}
}

// PublishReservationCreated publishes a reservation created event
func (p *Publisher) PublishReservationCreated(ctx context.Context, event *ReservationCreated) error {
	return p.publishWithRetry(ctx, TopicReservationCreated, TypeReservationCreated, event.CorrelationID, event)
}

// PublishReservationFailed publishes a reservation failed event
func (p *Publisher) PublishReservationFailed(ctx context.Context, event *ReservationFailed) error {
	return p.publishWithRetry(ctx, TopicReservationFailed, TypeReservationFailed, event.CorrelationID, event)
}

// PublishCancellationSuccessful publishes a cancellation successful event
func (p *Publisher) PublishCancellationSuccessful(ctx context.Context, event *CancellationSuccessful) error {
	return p.publishWithRetry(ctx, TopicCancellationSuccessful, TypeCancellationSuccessful, event.CorrelationID, event)
}

// publishWithRetry publishes an event with exponential backoff retry.
// A failure after all attempts is fatal for the triggering saga step.
func (p *Publisher) publishWithRetry(ctx context.Context, topic, eventType string, key uuid.UUID, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to marshal event", zap.String("event_type", eventType), zap.Error(err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key.String()),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_version", Value: []byte(EventVersion)},
		},
	}

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}

		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			lastErr = err
			p.log.Warn("Failed to publish event, retrying",
				zap.String("topic", topic),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		fields := []zap.Field{
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.String("key", key.String()),
		}
		if correlationID, ok := CorrelationIDFrom(ctx); ok {
			fields = append(fields, zap.String("correlation_id", correlationID.String()))
		}
		p.log.Info("Event published", fields...)
		return nil
	}

	p.log.Error("Failed to publish event after retries",
		zap.String("topic", topic),
		zap.String("event_type", eventType),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr),
	)
	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

// IsHealthy checks that at least one broker accepts connections
func (p *Publisher) IsHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	for _, broker := range p.brokers {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", broker)
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}

// Close closes the underlying Kafka writer
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		p.log.Error("Failed to close Kafka writer", zap.Error(err))
		return err
	}
	p.log.Info("Publisher closed")
	return nil
}
