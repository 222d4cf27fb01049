package repo

import (
	"context"
	"errors"

	"github.com/lharkness/EDRS/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrItemNotFound is returned when an inventory item is not found
	ErrItemNotFound = errors.New("inventory item not found")
)

// InventoryRepository handles inventory item persistence
type InventoryRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(database *db.DB, logger *zap.Logger) *InventoryRepository {
	return &InventoryRepository{
		db:  database,
		log: logger,
	}
}

// WithTx returns a copy of the repository scoped to the given transaction
func (r *InventoryRepository) WithTx(tx *gorm.DB) *InventoryRepository {
	return &InventoryRepository{
		db:  &db.DB{DB: tx},
		log: r.log,
	}
}

// FindByID retrieves an inventory item by id
func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*db.InventoryItem, error) {
	var item db.InventoryItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		r.log.Error("Failed to get inventory item", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &item, nil
}

// Save upserts an inventory item
func (r *InventoryRepository) Save(ctx context.Context, item *db.InventoryItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		r.log.Error("Failed to save inventory item", zap.String("id", item.ID), zap.Error(err))
		return err
	}

	r.log.Info("Inventory item saved",
		zap.String("id", item.ID),
		zap.String("name", item.Name),
		zap.Int("available_quantity", item.AvailableQuantity),
	)
	return nil
}
