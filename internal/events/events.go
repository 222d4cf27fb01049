package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kafka topics of the reservation choreography
const (
	TopicReservationRequested   = "reservation-requested"
	TopicReservationCreated     = "reservation-created"
	TopicReservationFailed      = "reservation-failed"
	TopicCancellationRequested  = "cancellation-requested"
	TopicCancellationSuccessful = "cancellation-successful"
	TopicInventoryReceived      = "inventory-received"
)

// Event types recorded in the idempotency ledger and the event log
const (
	TypeReservationRequested   = "ReservationRequestedEvent"
	TypeReservationCreated     = "ReservationCreatedEvent"
	TypeReservationFailed      = "ReservationFailedEvent"
	TypeCancellationRequested  = "CancellationRequestedEvent"
	TypeCancellationSuccessful = "CancellationSuccessfulEvent"
	TypeInventoryReceived      = "InventoryReceivedEvent"
)

// EventVersion is the schema version stamped on every ledger and log entry
const EventVersion = "1.0"

// Envelope is the canonical shape of an inbound message once the consumer has
// derived its identity. EventID is globally unique per logical occurrence;
// redelivery of the same physical message yields the same EventID.
type Envelope struct {
	EventID       uuid.UUID       `json:"eventId"`
	CorrelationID uuid.UUID       `json:"correlationId"`
	EventType     string          `json:"eventType"`
	EventVersion  string          `json:"eventVersion"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// ReservationRequested asks for a set of items to be reserved on a date
type ReservationRequested struct {
	CorrelationID           uuid.UUID      `json:"correlationId"`
	UserID                  string         `json:"userId"`
	InventoryItemQuantities map[string]int `json:"inventoryItemQuantities"`
	ReservationDate         time.Time      `json:"reservationDate"`
	Timestamp               time.Time      `json:"timestamp"`
}

// ReservationCreated is published after a reservation has been persisted
type ReservationCreated struct {
	CorrelationID           uuid.UUID      `json:"correlationId"`
	ConfirmationNumber      string         `json:"confirmationNumber"`
	UserID                  string         `json:"userId"`
	InventoryItemQuantities map[string]int `json:"inventoryItemQuantities"`
	ReservationDate         time.Time      `json:"reservationDate"`
	Timestamp               time.Time      `json:"timestamp"`
}

// ReservationFailed is published when a request cannot be satisfied. This is a
// domain outcome, not an error: the inbound event is still marked processed.
type ReservationFailed struct {
	CorrelationID           uuid.UUID      `json:"correlationId"`
	UserID                  string         `json:"userId"`
	InventoryItemQuantities map[string]int `json:"inventoryItemQuantities"`
	ReservationDate         time.Time      `json:"reservationDate"`
	Reason                  string         `json:"reason"`
	Timestamp               time.Time      `json:"timestamp"`
}

// CancellationRequested asks for a confirmed reservation to be cancelled
type CancellationRequested struct {
	CorrelationID      uuid.UUID `json:"correlationId"`
	ConfirmationNumber string    `json:"confirmationNumber"`
	Timestamp          time.Time `json:"timestamp"`
}

// CancellationSuccessful is published after a reservation has been cancelled
type CancellationSuccessful struct {
	CorrelationID      uuid.UUID `json:"correlationId"`
	ConfirmationNumber string    `json:"confirmationNumber"`
	UserID             string    `json:"userId"`
	Timestamp          time.Time `json:"timestamp"`
}

// InventoryReceiveRecord is one received stock line. Metadata fields are
// optional; nil means "leave the stored value alone".
type InventoryReceiveRecord struct {
	InventoryItemID string  `json:"inventoryItemId"`
	Quantity        int     `json:"quantity"`
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Category        *string `json:"category,omitempty"`
}

// InventoryReceived reports stock arriving at the warehouse
type InventoryReceived struct {
	CorrelationID  uuid.UUID                `json:"correlationId"`
	ReceiveRecords []InventoryReceiveRecord `json:"receiveRecords"`
	Timestamp      time.Time                `json:"timestamp"`
}
