package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lharkness/EDRS/internal/db"
	"github.com/lharkness/EDRS/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const handlerService = "persistence-service"

// EventStore owns the idempotency ledger (processed_events) and the
// append-only event log (event_log). The two are independent: the ledger is
// the idempotency gate, the log is for audit and replay.
type EventStore struct {
	db  *db.DB
	log *zap.Logger
}

// NewEventStore creates a new event store
func NewEventStore(database *db.DB, logger *zap.Logger) *EventStore {
	return &EventStore{
		db:  database,
		log: logger,
	}
}

// WithTx returns a copy of the store scoped to the given transaction
func (s *EventStore) WithTx(tx *gorm.DB) *EventStore {
	return &EventStore{
		db:  &db.DB{DB: tx},
		log: s.log,
	}
}

// IsProcessed reports whether an event id already exists in the ledger
func (s *EventStore) IsProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&db.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		s.log.Error("Failed to check processed event", zap.String("event_id", eventID.String()), zap.Error(err))
		return false, err
	}

	return count > 0, nil
}

// MarkProcessed inserts a ledger record for the event id if none exists.
// A failure here is fatal to the enclosing saga step: the message stays
// unacknowledged and the broker redelivers it.
func (s *EventStore) MarkProcessed(ctx context.Context, eventID, correlationID uuid.UUID, eventType string) error {
	processed, err := s.IsProcessed(ctx, eventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	record := db.ProcessedEvent{
		EventID:        eventID,
		CorrelationID:  correlationID,
		EventType:      eventType,
		HandlerService: handlerService,
		ProcessedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.log.Error("Failed to mark event as processed",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
		return err
	}

	s.log.Debug("Marked event as processed", zap.String("event_id", eventID.String()))
	return nil
}

// AppendLog appends an event to the event log. Failures are logged and
// swallowed: audit logging must never block the primary business effect.
func (s *EventStore) AppendLog(ctx context.Context, env *events.Envelope) {
	entry := db.EventLog{
		EventID:       env.EventID,
		CorrelationID: env.CorrelationID,
		EventType:     env.EventType,
		EventVersion:  env.EventVersion,
		Source:        env.Source,
		Payload:       string(env.Payload),
		Processed:     false,
		Timestamp:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Error("Failed to append event to event log",
			zap.String("event_id", env.EventID.String()),
			zap.Error(err),
		)
	}
}

// MarkLogProcessed flips the event log entry's processed flag. Best effort:
// a missing entry or a write failure is logged and ignored.
func (s *EventStore) MarkLogProcessed(ctx context.Context, eventID uuid.UUID) {
	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&db.EventLog{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": &now,
		}).Error
	if err != nil {
		s.log.Error("Failed to mark event log entry as processed",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}
}

// FindLogEntry retrieves an event log entry by event id
func (s *EventStore) FindLogEntry(ctx context.Context, eventID uuid.UUID) (*db.EventLog, error) {
	var entry db.EventLog
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
