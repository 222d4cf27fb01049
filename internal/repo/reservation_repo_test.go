package repo

import (
	"context"
	"testing"
	"time"

	"github.com/lharkness/EDRS/internal/db"
	"github.com/lharkness/EDRS/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *db.DB {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = gormDB.AutoMigrate(
		&db.Reservation{},
		&db.ReservationItem{},
		&db.InventoryItem{},
		&db.ProcessedEvent{},
		&db.EventLog{},
	)
	require.NoError(t, err)

	return &db.DB{DB: gormDB}
}

func testReservation(confirmation, userID string, date time.Time, status string, items map[string]int) *db.Reservation {
	reservation := &db.Reservation{
		ConfirmationNumber: confirmation,
		UserID:             userID,
		ReservationDate:    date,
		Status:             status,
	}
	for itemID, quantity := range items {
		reservation.Items = append(reservation.Items, db.ReservationItem{
			ConfirmationNumber: confirmation,
			InventoryItemID:    itemID,
			Quantity:           quantity,
		})
	}
	return reservation
}

func TestCreateAndFindReservation(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	repo := NewReservationRepository(database, log)

	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	err := repo.Create(ctx, testReservation("conf-1", "user-1", date, db.StatusConfirmed, map[string]int{"item1": 3, "item2": 1}))
	require.NoError(t, err)

	reservation, err := repo.FindByConfirmationNumber(ctx, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", reservation.UserID)
	assert.Equal(t, db.StatusConfirmed, reservation.Status)
	assert.Len(t, reservation.Items, 2)
	assert.False(t, reservation.CreatedAt.IsZero())
}

func TestFindReservationNotFound(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	repo := NewReservationRepository(database, log)

	_, err := repo.FindByConfirmationNumber(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestUpdateReservationStatus(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	repo := NewReservationRepository(database, log)

	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, testReservation("conf-1", "user-1", date, db.StatusConfirmed, map[string]int{"item1": 1})))

	reservation, err := repo.FindByConfirmationNumber(ctx, "conf-1")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, reservation, db.StatusCancelled))

	updated, err := repo.FindByConfirmationNumber(ctx, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusCancelled, updated.Status)
}

func TestSumConfirmedQuantitiesForItemOnDate(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	repo := NewReservationRepository(database, log)

	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	otherDate := date.AddDate(0, 0, 1)

	require.NoError(t, repo.Create(ctx, testReservation("conf-1", "user-1", date, db.StatusConfirmed, map[string]int{"item1": 3})))
	require.NoError(t, repo.Create(ctx, testReservation("conf-2", "user-2", date, db.StatusConfirmed, map[string]int{"item1": 2, "item2": 5})))
	// Different date and cancelled reservations do not count
	require.NoError(t, repo.Create(ctx, testReservation("conf-3", "user-3", otherDate, db.StatusConfirmed, map[string]int{"item1": 4})))
	require.NoError(t, repo.Create(ctx, testReservation("conf-4", "user-4", date, db.StatusCancelled, map[string]int{"item1": 9})))

	sum, err := repo.SumConfirmedQuantitiesForItemOnDate(ctx, "item1", date)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)

	sum, err = repo.SumConfirmedQuantitiesForItemOnDate(ctx, "item2", date)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)

	sum, err = repo.SumConfirmedQuantitiesForItemOnDate(ctx, "unknown", date)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
}

func TestSumConfirmedQuantitiesForItemInRange(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	repo := NewReservationRepository(database, log)

	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, testReservation("conf-1", "user-1", date, db.StatusConfirmed, map[string]int{"item1": 3})))
	require.NoError(t, repo.Create(ctx, testReservation("conf-2", "user-2", date.AddDate(0, 0, 2), db.StatusConfirmed, map[string]int{"item1": 2})))
	require.NoError(t, repo.Create(ctx, testReservation("conf-3", "user-3", date.AddDate(0, 0, 10), db.StatusConfirmed, map[string]int{"item1": 7})))

	sum, err := repo.SumConfirmedQuantitiesForItemInRange(ctx, "item1", date, date.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)
}

func TestCountConfirmedForItemInRange(t *testing.T) {
	database := setupTestDB(t)
	log := logger.NewLogger("test", "info")
	repo := NewReservationRepository(database, log)

	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, testReservation("conf-1", "user-1", date, db.StatusConfirmed, map[string]int{"item1": 3})))
	require.NoError(t, repo.Create(ctx, testReservation("conf-2", "user-2", date, db.StatusConfirmed, map[string]int{"item1": 2})))
	require.NoError(t, repo.Create(ctx, testReservation("conf-3", "user-3", date, db.StatusCancelled, map[string]int{"item1": 2})))

	count, err := repo.CountConfirmedForItemInRange(ctx, "item1", date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
