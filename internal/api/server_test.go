package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lharkness/EDRS/internal/db"
	"github.com/lharkness/EDRS/internal/repo"
	"github.com/lharkness/EDRS/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type healthyPublisher struct{ healthy bool }

func (p *healthyPublisher) IsHealthy() bool { return p.healthy }

func setupServer(t *testing.T) (*Server, *repo.ReservationRepository) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = gormDB.AutoMigrate(&db.Reservation{}, &db.ReservationItem{})
	require.NoError(t, err)

	database := &db.DB{DB: gormDB}
	log := logger.NewLogger("test", "info")
	reservations := repo.NewReservationRepository(database, log)

	return NewServer(database, reservations, &healthyPublisher{healthy: true}, log), reservations
}

func TestReservationQuantityQuery(t *testing.T) {
	server, reservations := setupServer(t)

	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, reservations.Create(context.Background(), &db.Reservation{
		ConfirmationNumber: "conf-1",
		UserID:             "user-1",
		ReservationDate:    date,
		Status:             db.StatusConfirmed,
		Items: []db.ReservationItem{
			{ConfirmationNumber: "conf-1", InventoryItemID: "item1", Quantity: 4},
		},
	}))

	url := "/api/persistence/reservations/quantity?itemId=item1" +
		"&startDate=" + date.Add(-time.Hour).Format(time.RFC3339) +
		"&endDate=" + date.Add(time.Hour).Format(time.RFC3339)

	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4", rec.Body.String())
}

func TestReservationQuantityQueryValidation(t *testing.T) {
	server, _ := setupServer(t)

	tests := []struct {
		name string
		url  string
	}{
		{"missing itemId", "/api/persistence/reservations/quantity?startDate=2026-09-01T00:00:00Z&endDate=2026-09-02T00:00:00Z"},
		{"bad startDate", "/api/persistence/reservations/quantity?itemId=item1&startDate=yesterday&endDate=2026-09-02T00:00:00Z"},
		{"missing endDate", "/api/persistence/reservations/quantity?itemId=item1&startDate=2026-09-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHealthzReportsBrokerFailure(t *testing.T) {
	server, _ := setupServer(t)
	server.publisher = &healthyPublisher{healthy: false}

	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
