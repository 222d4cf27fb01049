package service

import (
	"context"
	"time"

	"github.com/lharkness/EDRS/internal/db"
)

// EffectiveAvailable computes remaining capacity from raw stock and already
// committed reservation quantities. The result never goes below zero even
// when commitments exceed stock.
func EffectiveAvailable(availableQuantity, reservedQuantity int64) int64 {
	if reservedQuantity >= availableQuantity {
		return 0
	}
	return availableQuantity - reservedQuantity
}

// reservedQuantitySource is the slice of the reservation repository the
// calculator needs
type reservedQuantitySource interface {
	SumConfirmedQuantitiesForItemInRange(ctx context.Context, itemID string, startDate, endDate time.Time) (int64, error)
}

// itemSource is the slice of the inventory repository the calculator needs
type itemSource interface {
	FindByID(ctx context.Context, id string) (*db.InventoryItem, error)
}

// ItemAvailability returns the effective availability of an item over
// [windowStart, windowEnd]: stock minus confirmed commitments, floored at
// zero. A missing
// item surfaces as repo.ErrItemNotFound, never as zero availability.
func ItemAvailability(ctx context.Context, items itemSource, reservations reservedQuantitySource, itemID string, windowStart, windowEnd time.Time) (int64, error) {
	item, err := items.FindByID(ctx, itemID)
	if err != nil {
		return 0, err
	}

	reserved, err := reservations.SumConfirmedQuantitiesForItemInRange(ctx, itemID, windowStart, windowEnd)
	if err != nil {
		return 0, err
	}

	return EffectiveAvailable(int64(item.AvailableQuantity), reserved), nil
}
