package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation statuses. A reservation is created CONFIRMED and the only
// transition out of it is to CANCELLED.
const (
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
)

// Reservation represents a confirmed reservation owned by the persistence service
type Reservation struct {
	ConfirmationNumber string            `gorm:"primaryKey;type:varchar(64)" json:"confirmation_number"`
	UserID             string            `gorm:"type:varchar(255);not null;index:idx_reservations_user_id" json:"user_id"`
	ReservationDate    time.Time         `gorm:"not null;index:idx_reservations_date" json:"reservation_date"`
	Status             string            `gorm:"type:varchar(20);not null;index:idx_reservations_status" json:"status"`
	Items              []ReservationItem `gorm:"foreignKey:ConfirmationNumber;references:ConfirmationNumber" json:"items,omitempty"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for Reservation model
func (Reservation) TableName() string {
	return "reservations"
}

// BeforeCreate hook to set timestamps
func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate hook to update timestamp
func (r *Reservation) BeforeUpdate(tx *gorm.DB) error {
	r.UpdatedAt = time.Now()
	return nil
}

// ReservationItem is one line of a reservation. Rows are written together with
// the parent Reservation and never mutated afterwards.
type ReservationItem struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	ConfirmationNumber string `gorm:"type:varchar(64);not null;index:idx_reservation_items_confirmation" json:"confirmation_number"`
	InventoryItemID    string `gorm:"type:varchar(255);not null;index:idx_reservation_items_item" json:"inventory_item_id"`
	Quantity           int    `gorm:"not null" json:"quantity"`
}

// TableName specifies the table name for ReservationItem model
func (ReservationItem) TableName() string {
	return "reservation_items"
}

// InventoryItem represents the stock record for one reservable item.
// AvailableQuantity only ever grows here; committed reservations are
// subtracted at read time, never from this column.
type InventoryItem struct {
	ID                string    `gorm:"primaryKey;type:varchar(255)" json:"id"`
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`
	Description       string    `gorm:"type:text" json:"description,omitempty"`
	Category          string    `gorm:"type:varchar(100);index:idx_inventory_items_category" json:"category,omitempty"`
	AvailableQuantity int       `gorm:"not null;default:0;check:available_quantity >= 0" json:"available_quantity"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for InventoryItem model
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// BeforeCreate hook to set timestamps
func (i *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate hook to update timestamp
func (i *InventoryItem) BeforeUpdate(tx *gorm.DB) error {
	i.UpdatedAt = time.Now()
	return nil
}

// ProcessedEvent is the idempotency ledger. One row per event id, written once,
// never updated or deleted. Existence of a row is the idempotency gate.
type ProcessedEvent struct {
	EventID        uuid.UUID `gorm:"primaryKey;type:varchar(36)" json:"event_id"`
	CorrelationID  uuid.UUID `gorm:"type:varchar(36);not null;index:idx_processed_events_correlation" json:"correlation_id"`
	EventType      string    `gorm:"type:varchar(100);not null" json:"event_type"`
	HandlerService string    `gorm:"type:varchar(100);not null" json:"handler_service"`
	ProcessedAt    time.Time `gorm:"not null" json:"processed_at"`
}

// TableName specifies the table name for ProcessedEvent model
func (ProcessedEvent) TableName() string {
	return "processed_events"
}

// EventLog is the append-only audit record of every event received, kept
// independently of the idempotency ledger for replay and audit.
type EventLog struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	EventID       uuid.UUID  `gorm:"type:varchar(36);not null;uniqueIndex:idx_event_log_event_id" json:"event_id"`
	CorrelationID uuid.UUID  `gorm:"type:varchar(36);not null;index:idx_event_log_correlation" json:"correlation_id"`
	EventType     string     `gorm:"type:varchar(100);not null" json:"event_type"`
	EventVersion  string     `gorm:"type:varchar(20);not null" json:"event_version"`
	Source        string     `gorm:"type:varchar(100)" json:"source"`
	Payload       string     `gorm:"type:text" json:"payload"`
	Processed     bool       `gorm:"not null;default:false" json:"processed"`
	Timestamp     time.Time  `gorm:"not null" json:"timestamp"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// TableName specifies the table name for EventLog model
func (EventLog) TableName() string {
	return "event_log"
}
