package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lharkness/EDRS/internal/db"
	"github.com/lharkness/EDRS/internal/events"
	"github.com/lharkness/EDRS/internal/metrics"
	"github.com/lharkness/EDRS/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Item defaults applied when stock arrives for an unknown item id
const (
	defaultItemNamePrefix  = "Item "
	defaultItemDescription = "Auto-created item"
	defaultItemCategory    = "General"
)

// EventPublisher publishes outcome events of the saga steps
type EventPublisher interface {
	PublishReservationCreated(ctx context.Context, event *events.ReservationCreated) error
	PublishReservationFailed(ctx context.Context, event *events.ReservationFailed) error
	PublishCancellationSuccessful(ctx context.Context, event *events.CancellationSuccessful) error
}

// EventProcessor runs the persistence side of the reservation choreography.
// Each handler is idempotent against redelivery: the first thing it does is
// consult the processed-events ledger, and the last thing it does before the
// message is acknowledged is publish exactly one outcome event.
//
// The ledger write and the business-state mutation share one local database
// transaction. The event-log writes sit outside it because audit logging is
// best effort, and the publish sits outside it because there is no outbox:
// a crash between commit and publish loses the outbound event.
type EventProcessor struct {
	database     *db.DB
	reservations *repo.ReservationRepository
	inventory    *repo.InventoryRepository
	store        *repo.EventStore
	publisher    EventPublisher
	log          *zap.Logger
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(
	database *db.DB,
	reservations *repo.ReservationRepository,
	inventory *repo.InventoryRepository,
	store *repo.EventStore,
	publisher EventPublisher,
	logger *zap.Logger,
) *EventProcessor {
	return &EventProcessor{
		database:     database,
		reservations: reservations,
		inventory:    inventory,
		store:        store,
		publisher:    publisher,
		log:          logger,
	}
}

// HandleReservationRequested processes a reservation request. The request
// either becomes a CONFIRMED reservation with one line item per requested
// quantity, or fails as a whole on the first item that is missing or short.
// Insufficient availability is a domain outcome, not an error: the event is
// marked processed and a ReservationFailed event goes out.
func (p *EventProcessor) HandleReservationRequested(ctx context.Context, env *events.Envelope, event *events.ReservationRequested) error {
	ctx = events.WithCorrelationID(ctx, event.CorrelationID)
	p.log.Info("Processing reservation request",
		zap.String("correlation_id", event.CorrelationID.String()),
		zap.String("event_id", env.EventID.String()),
		zap.String("user_id", event.UserID),
	)

	processed, err := p.store.IsProcessed(ctx, env.EventID)
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return err
	}
	if processed {
		p.log.Info("Event already processed, skipping",
			zap.String("event_id", env.EventID.String()),
		)
		return nil
	}

	p.store.AppendLog(ctx, env)

	reason, err := p.checkAvailability(ctx, event.InventoryItemQuantities, event.ReservationDate)
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return err
	}

	if reason != "" {
		err := p.database.Transaction(func(tx *gorm.DB) error {
			return p.store.WithTx(tx).MarkProcessed(ctx, env.EventID, event.CorrelationID, env.EventType)
		})
		if err != nil {
			metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
			return err
		}
		p.store.MarkLogProcessed(ctx, env.EventID)

		failedEvent := &events.ReservationFailed{
			CorrelationID:           event.CorrelationID,
			UserID:                  event.UserID,
			InventoryItemQuantities: event.InventoryItemQuantities,
			ReservationDate:         event.ReservationDate,
			Reason:                  reason,
			Timestamp:               time.Now(),
		}
		if err := p.publisher.PublishReservationFailed(ctx, failedEvent); err != nil {
			metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
			return err
		}

		p.log.Warn("Reservation failed due to unavailability", zap.String("reason", reason))
		metrics.EventsProcessed.WithLabelValues(env.EventType, "failed").Inc()
		metrics.ReservationsFailed.Inc()
		return nil
	}

	confirmationNumber := uuid.New().String()

	reservation := &db.Reservation{
		ConfirmationNumber: confirmationNumber,
		UserID:             event.UserID,
		ReservationDate:    event.ReservationDate,
		Status:             db.StatusConfirmed,
	}
	for itemID, quantity := range event.InventoryItemQuantities {
		reservation.Items = append(reservation.Items, db.ReservationItem{
			ConfirmationNumber: confirmationNumber,
			InventoryItemID:    itemID,
			Quantity:           quantity,
		})
	}

	err = p.database.Transaction(func(tx *gorm.DB) error {
		if err := p.reservations.WithTx(tx).Create(ctx, reservation); err != nil {
			return err
		}
		return p.store.WithTx(tx).MarkProcessed(ctx, env.EventID, event.CorrelationID, env.EventType)
	})
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return fmt.Errorf("failed to persist reservation: %w", err)
	}
	p.store.MarkLogProcessed(ctx, env.EventID)

	createdEvent := &events.ReservationCreated{
		CorrelationID:           event.CorrelationID,
		ConfirmationNumber:      confirmationNumber,
		UserID:                  event.UserID,
		InventoryItemQuantities: event.InventoryItemQuantities,
		ReservationDate:         event.ReservationDate,
		Timestamp:               time.Now(),
	}
	if err := p.publisher.PublishReservationCreated(ctx, createdEvent); err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return err
	}

	p.log.Info("Reservation confirmed",
		zap.String("confirmation_number", confirmationNumber),
		zap.String("correlation_id", event.CorrelationID.String()),
	)
	metrics.EventsProcessed.WithLabelValues(env.EventType, "success").Inc()
	metrics.ReservationsCreated.Inc()
	return nil
}

// HandleCancellationRequested processes a cancellation. An unknown
// confirmation number is fatal: nothing is marked processed and the message
// is left for broker redelivery.
func (p *EventProcessor) HandleCancellationRequested(ctx context.Context, env *events.Envelope, event *events.CancellationRequested) error {
	ctx = events.WithCorrelationID(ctx, event.CorrelationID)
	p.log.Info("Processing cancellation request",
		zap.String("correlation_id", event.CorrelationID.String()),
		zap.String("event_id", env.EventID.String()),
		zap.String("confirmation_number", event.ConfirmationNumber),
	)

	processed, err := p.store.IsProcessed(ctx, env.EventID)
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return err
	}
	if processed {
		p.log.Info("Event already processed, skipping",
			zap.String("event_id", env.EventID.String()),
		)
		return nil
	}

	p.store.AppendLog(ctx, env)

	reservation, err := p.reservations.FindByConfirmationNumber(ctx, event.ConfirmationNumber)
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		if errors.Is(err, repo.ErrReservationNotFound) {
			return fmt.Errorf("reservation not found: %s", event.ConfirmationNumber)
		}
		return err
	}

	err = p.database.Transaction(func(tx *gorm.DB) error {
		if err := p.reservations.WithTx(tx).UpdateStatus(ctx, reservation, db.StatusCancelled); err != nil {
			return err
		}
		return p.store.WithTx(tx).MarkProcessed(ctx, env.EventID, event.CorrelationID, env.EventType)
	})
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	p.store.MarkLogProcessed(ctx, env.EventID)

	successfulEvent := &events.CancellationSuccessful{
		CorrelationID:      event.CorrelationID,
		ConfirmationNumber: event.ConfirmationNumber,
		UserID:             reservation.UserID,
		Timestamp:          time.Now(),
	}
	if err := p.publisher.PublishCancellationSuccessful(ctx, successfulEvent); err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return err
	}

	p.log.Info("Reservation cancelled",
		zap.String("confirmation_number", event.ConfirmationNumber),
		zap.String("correlation_id", event.CorrelationID.String()),
	)
	metrics.EventsProcessed.WithLabelValues(env.EventType, "success").Inc()
	metrics.CancellationsProcessed.Inc()
	return nil
}

// HandleInventoryReceived applies received stock records. Unknown items are
// created with metadata from the record or defaults; known items get any
// provided metadata merged and the received quantity added. No outcome event
// is published.
func (p *EventProcessor) HandleInventoryReceived(ctx context.Context, env *events.Envelope, event *events.InventoryReceived) error {
	ctx = events.WithCorrelationID(ctx, event.CorrelationID)
	p.log.Info("Processing inventory received",
		zap.String("correlation_id", event.CorrelationID.String()),
		zap.String("event_id", env.EventID.String()),
		zap.Int("records", len(event.ReceiveRecords)),
	)

	processed, err := p.store.IsProcessed(ctx, env.EventID)
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return err
	}
	if processed {
		p.log.Info("Event already processed, skipping",
			zap.String("event_id", env.EventID.String()),
		)
		return nil
	}

	p.store.AppendLog(ctx, env)

	var updates int
	err = p.database.Transaction(func(tx *gorm.DB) error {
		inventory := p.inventory.WithTx(tx)
		for _, record := range event.ReceiveRecords {
			item, err := inventory.FindByID(ctx, record.InventoryItemID)
			if errors.Is(err, repo.ErrItemNotFound) {
				item = &db.InventoryItem{
					ID:          record.InventoryItemID,
					Name:        defaultItemNamePrefix + record.InventoryItemID,
					Description: defaultItemDescription,
					Category:    defaultItemCategory,
				}
			} else if err != nil {
				return err
			}

			if record.Name != nil {
				item.Name = *record.Name
			}
			if record.Description != nil {
				item.Description = *record.Description
			}
			if record.Category != nil {
				item.Category = *record.Category
			}
			item.AvailableQuantity += record.Quantity

			if err := inventory.Save(ctx, item); err != nil {
				return err
			}
			updates++
		}
		return p.store.WithTx(tx).MarkProcessed(ctx, env.EventID, event.CorrelationID, env.EventType)
	})
	if err != nil {
		metrics.EventsFailed.WithLabelValues(env.EventType).Inc()
		return fmt.Errorf("failed to persist inventory: %w", err)
	}
	p.store.MarkLogProcessed(ctx, env.EventID)

	p.log.Info("Inventory persisted",
		zap.String("correlation_id", event.CorrelationID.String()),
		zap.Int("items_updated", updates),
	)
	metrics.EventsProcessed.WithLabelValues(env.EventType, "success").Inc()
	metrics.InventoryUpdates.Add(float64(updates))
	return nil
}

// checkAvailability validates every requested (item, quantity) against the
// item's stock minus already committed quantity on the exact reservation date.
// The comparison is unclamped, so an oversold item fails the request even for
// a zero-quantity line. It returns an
// empty reason when everything fits, the failure reason for the first item
// that does not, or an error on infrastructure failure. The first short item
// fails the whole request; nothing has been committed at that point, so no
// compensation is needed.
func (p *EventProcessor) checkAvailability(ctx context.Context, itemQuantities map[string]int, reservationDate time.Time) (string, error) {
	for itemID, requested := range itemQuantities {
		item, err := p.inventory.FindByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, repo.ErrItemNotFound) {
				return fmt.Sprintf("Inventory item not found: %s", itemID), nil
			}
			return "", err
		}

		reserved, err := p.reservations.SumConfirmedQuantitiesForItemOnDate(ctx, itemID, reservationDate)
		if err != nil {
			return "", err
		}

		if int64(item.AvailableQuantity)-reserved < int64(requested) {
			return fmt.Sprintf("Insufficient availability for item %s on %s. Available: %d, Reserved: %d, Requested: %d",
				itemID, reservationDate.Format(time.RFC3339), item.AvailableQuantity, reserved, requested), nil
		}
	}
	return "", nil
}
