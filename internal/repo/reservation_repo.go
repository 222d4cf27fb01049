package repo

import (
	"context"
	"errors"
	"time"

	"github.com/lharkness/EDRS/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrReservationNotFound is returned when a reservation is not found
	ErrReservationNotFound = errors.New("reservation not found")
)

// ReservationRepository handles reservation persistence
type ReservationRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(database *db.DB, logger *zap.Logger) *ReservationRepository {
	return &ReservationRepository{
		db:  database,
		log: logger,
	}
}

// WithTx returns a copy of the repository scoped to the given transaction
func (r *ReservationRepository) WithTx(tx *gorm.DB) *ReservationRepository {
	return &ReservationRepository{
		db:  &db.DB{DB: tx},
		log: r.log,
	}
}

// Create persists a reservation together with its line items
func (r *ReservationRepository) Create(ctx context.Context, reservation *db.Reservation) error {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		r.log.Error("Failed to create reservation",
			zap.String("confirmation_number", reservation.ConfirmationNumber),
			zap.Error(err),
		)
		return err
	}

	r.log.Info("Reservation created",
		zap.String("confirmation_number", reservation.ConfirmationNumber),
		zap.String("user_id", reservation.UserID),
		zap.Int("items", len(reservation.Items)),
	)
	return nil
}

// FindByConfirmationNumber retrieves a reservation with its line items
func (r *ReservationRepository) FindByConfirmationNumber(ctx context.Context, confirmationNumber string) (*db.Reservation, error) {
	var reservation db.Reservation
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("confirmation_number = ?", confirmationNumber).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		r.log.Error("Failed to get reservation",
			zap.String("confirmation_number", confirmationNumber),
			zap.Error(err),
		)
		return nil, err
	}

	return &reservation, nil
}

// UpdateStatus sets a reservation's status
func (r *ReservationRepository) UpdateStatus(ctx context.Context, reservation *db.Reservation, status string) error {
	reservation.Status = status
	reservation.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).
		Model(&db.Reservation{}).
		Where("confirmation_number = ?", reservation.ConfirmationNumber).
		Updates(map[string]interface{}{
			"status":     reservation.Status,
			"updated_at": reservation.UpdatedAt,
		}).Error
	if err != nil {
		r.log.Error("Failed to update reservation status",
			zap.String("confirmation_number", reservation.ConfirmationNumber),
			zap.Error(err),
		)
		return err
	}

	r.log.Info("Reservation status updated",
		zap.String("confirmation_number", reservation.ConfirmationNumber),
		zap.String("status", status),
	)
	return nil
}

// SumConfirmedQuantitiesForItemOnDate sums line-item quantities over all
// CONFIRMED reservations for an item on an exact reservation date
func (r *ReservationRepository) SumConfirmedQuantitiesForItemOnDate(ctx context.Context, itemID string, reservationDate time.Time) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&db.ReservationItem{}).
		Select("COALESCE(SUM(reservation_items.quantity), 0)").
		Joins("JOIN reservations ON reservations.confirmation_number = reservation_items.confirmation_number").
		Where("reservation_items.inventory_item_id = ?", itemID).
		Where("reservations.status = ?", db.StatusConfirmed).
		Where("reservations.reservation_date = ?", reservationDate).
		Scan(&sum).Error
	if err != nil {
		r.log.Error("Failed to sum reserved quantities",
			zap.String("item_id", itemID),
			zap.Time("reservation_date", reservationDate),
			zap.Error(err),
		)
		return 0, err
	}

	return sum, nil
}

// SumConfirmedQuantitiesForItemInRange sums line-item quantities over all
// CONFIRMED reservations for an item with a reservation date inside
// [startDate, endDate]
func (r *ReservationRepository) SumConfirmedQuantitiesForItemInRange(ctx context.Context, itemID string, startDate, endDate time.Time) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&db.ReservationItem{}).
		Select("COALESCE(SUM(reservation_items.quantity), 0)").
		Joins("JOIN reservations ON reservations.confirmation_number = reservation_items.confirmation_number").
		Where("reservation_items.inventory_item_id = ?", itemID).
		Where("reservations.status = ?", db.StatusConfirmed).
		Where("reservations.reservation_date BETWEEN ? AND ?", startDate, endDate).
		Scan(&sum).Error
	if err != nil {
		r.log.Error("Failed to sum reserved quantities in range",
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return 0, err
	}

	return sum, nil
}

// CountConfirmedForItemInRange counts CONFIRMED reservations for an item in a
// date range.
//
// Deprecated: counts ignore line-item quantities; use
// SumConfirmedQuantitiesForItemInRange instead.
func (r *ReservationRepository) CountConfirmedForItemInRange(ctx context.Context, itemID string, startDate, endDate time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ReservationItem{}).
		Joins("JOIN reservations ON reservations.confirmation_number = reservation_items.confirmation_number").
		Where("reservation_items.inventory_item_id = ?", itemID).
		Where("reservations.status = ?", db.StatusConfirmed).
		Where("reservations.reservation_date BETWEEN ? AND ?", startDate, endDate).
		Count(&count).Error
	if err != nil {
		r.log.Error("Failed to count reservations in range",
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return 0, err
	}

	return count, nil
}
