package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	reservations  []*ReservationRequested
	cancellations []*CancellationRequested
	receipts      []*InventoryReceived
	envelopes     []*Envelope
}

func (h *recordingHandler) HandleReservationRequested(ctx context.Context, env *Envelope, event *ReservationRequested) error {
	h.envelopes = append(h.envelopes, env)
	h.reservations = append(h.reservations, event)
	return nil
}

func (h *recordingHandler) HandleCancellationRequested(ctx context.Context, env *Envelope, event *CancellationRequested) error {
	h.envelopes = append(h.envelopes, env)
	h.cancellations = append(h.cancellations, event)
	return nil
}

func (h *recordingHandler) HandleInventoryReceived(ctx context.Context, env *Envelope, event *InventoryReceived) error {
	h.envelopes = append(h.envelopes, env)
	h.receipts = append(h.receipts, event)
	return nil
}

func testConsumer(handler SagaHandler) *Consumer {
	return &Consumer{
		handler: handler,
		log:     zap.NewNop(),
	}
}

func TestDispatchReservationRequested(t *testing.T) {
	handler := &recordingHandler{}
	consumer := testConsumer(handler)

	event := ReservationRequested{
		CorrelationID:           uuid.New(),
		UserID:                  "user-1",
		InventoryItemQuantities: map[string]int{"item1": 2},
		ReservationDate:         time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Timestamp:               time.Now(),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	msg := kafka.Message{
		Topic:     TopicReservationRequested,
		Partition: 3,
		Offset:    99,
		Value:     value,
	}

	require.NoError(t, consumer.dispatch(context.Background(), msg))
	require.Len(t, handler.reservations, 1)
	assert.Equal(t, "user-1", handler.reservations[0].UserID)

	env := handler.envelopes[0]
	assert.Equal(t, DeriveEventID(TopicReservationRequested, 3, 99, event.CorrelationID), env.EventID)
	assert.Equal(t, event.CorrelationID, env.CorrelationID)
	assert.Equal(t, TypeReservationRequested, env.EventType)
	assert.Equal(t, "reservation-service", env.Source)
	assert.Equal(t, json.RawMessage(value), env.Payload)
}

func TestDispatchSameMessageDerivesSameEventID(t *testing.T) {
	handler := &recordingHandler{}
	consumer := testConsumer(handler)

	event := CancellationRequested{
		CorrelationID:      uuid.New(),
		ConfirmationNumber: "conf-1",
		Timestamp:          time.Now(),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	msg := kafka.Message{Topic: TopicCancellationRequested, Partition: 1, Offset: 7, Value: value}

	require.NoError(t, consumer.dispatch(context.Background(), msg))
	require.NoError(t, consumer.dispatch(context.Background(), msg))

	require.Len(t, handler.envelopes, 2)
	assert.Equal(t, handler.envelopes[0].EventID, handler.envelopes[1].EventID)
}

func TestDispatchMalformedPayloadIsSkipped(t *testing.T) {
	handler := &recordingHandler{}
	consumer := testConsumer(handler)

	msg := kafka.Message{
		Topic: TopicInventoryReceived,
		Value: []byte("not json"),
	}

	// No error: the message is acknowledged and skipped
	require.NoError(t, consumer.dispatch(context.Background(), msg))
	assert.Empty(t, handler.receipts)
}

// flakyHandler fails its cancellation handler a fixed number of times before
// delegating to the recording handler
type flakyHandler struct {
	recordingHandler
	failures int
	attempts int
}

func (h *flakyHandler) HandleCancellationRequested(ctx context.Context, env *Envelope, event *CancellationRequested) error {
	h.attempts++
	if h.attempts <= h.failures {
		return errors.New("transient failure")
	}
	return h.recordingHandler.HandleCancellationRequested(ctx, env, event)
}

func TestFailedMessageIsRetriedInPlace(t *testing.T) {
	handler := &flakyHandler{failures: 2}
	consumer := testConsumer(handler)

	event := CancellationRequested{
		CorrelationID:      uuid.New(),
		ConfirmationNumber: "conf-1",
		Timestamp:          time.Now(),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	msg := kafka.Message{Topic: TopicCancellationRequested, Partition: 0, Offset: 5, Value: value}

	// The same message is redispatched until the handler succeeds; the loop
	// never advances to a later offset over a failure
	require.NoError(t, consumer.processWithRetry(context.Background(), msg))
	assert.Equal(t, 3, handler.attempts)
	require.Len(t, handler.cancellations, 1)
}

func TestRetryInPlaceStopsOnShutdown(t *testing.T) {
	handler := &flakyHandler{failures: 1 << 30}
	consumer := testConsumer(handler)

	event := CancellationRequested{
		CorrelationID:      uuid.New(),
		ConfirmationNumber: "conf-1",
		Timestamp:          time.Now(),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	msg := kafka.Message{Topic: TopicCancellationRequested, Partition: 0, Offset: 5, Value: value}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = consumer.processWithRetry(ctx, msg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, handler.cancellations)
}

func TestCloseUnblocksRunLoops(t *testing.T) {
	handler := &recordingHandler{}
	consumer := NewConsumer([]string{"localhost:1"}, "test-group", handler, zap.NewNop())
	consumer.Start(context.Background())

	// Close without cancelling the context: the closed readers return io.EOF
	// and the run loops must exit
	done := make(chan struct{})
	go func() {
		consumer.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return while run loops were still blocked")
	}
}

func TestDispatchInventoryReceived(t *testing.T) {
	handler := &recordingHandler{}
	consumer := testConsumer(handler)

	name := "Projector"
	event := InventoryReceived{
		CorrelationID: uuid.New(),
		ReceiveRecords: []InventoryReceiveRecord{
			{InventoryItemID: "item1", Quantity: 5, Name: &name},
		},
		Timestamp: time.Now(),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	msg := kafka.Message{Topic: TopicInventoryReceived, Partition: 0, Offset: 12, Value: value}

	require.NoError(t, consumer.dispatch(context.Background(), msg))
	require.Len(t, handler.receipts, 1)
	require.Len(t, handler.receipts[0].ReceiveRecords, 1)
	assert.Equal(t, "item1", handler.receipts[0].ReceiveRecords[0].InventoryItemID)
	require.NotNil(t, handler.receipts[0].ReceiveRecords[0].Name)
	assert.Equal(t, "Projector", *handler.receipts[0].ReceiveRecords[0].Name)
	assert.Equal(t, "inventory-service", handler.envelopes[0].Source)
}
