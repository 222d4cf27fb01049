package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(
		&Reservation{},
		&ReservationItem{},
		&InventoryItem{},
		&ProcessedEvent{},
		&EventLog{},
	); err != nil {
		return err
	}

	return createIndexes(db.DB)
}

func createIndexes(db *gorm.DB) error {
	// Composite indexes for the hot availability queries
	indexes := []string{
		// Confirmed reservations for an item on a date drive every availability check
		`CREATE INDEX IF NOT EXISTS idx_reservations_status_date ON reservations(status, reservation_date)`,

		// Line-item sums join on (item, confirmation)
		`CREATE INDEX IF NOT EXISTS idx_reservation_items_item_confirmation ON reservation_items(inventory_item_id, confirmation_number)`,

		// Unprocessed audit entries are the replay/reconciliation worklist
		`CREATE INDEX IF NOT EXISTS idx_event_log_unprocessed ON event_log(processed) WHERE processed = false`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
