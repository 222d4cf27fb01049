package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lharkness/EDRS/internal/db"
	"github.com/lharkness/EDRS/internal/repo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// healthChecker reports whether the broker connection is usable
type healthChecker interface {
	IsHealthy() bool
}

// Server is the synchronous HTTP surface of the persistence service: health,
// metrics, and the reservation-quantity query other services use to compute
// effective stock.
type Server struct {
	database     *db.DB
	reservations *repo.ReservationRepository
	publisher    healthChecker
	log          *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(database *db.DB, reservations *repo.ReservationRepository, publisher healthChecker, log *zap.Logger) *Server {
	return &Server{
		database:     database,
		reservations: reservations,
		publisher:    publisher,
		log:          log,
	}
}

// Routes returns the HTTP handler for all routes
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/persistence/reservations/quantity", s.handleReservationQuantity)
	mux.HandleFunc("/api/persistence/reservations/count", s.handleReservationCount)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.database.Ping(); err != nil {
		s.log.Error("Database health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: database connection failed"))
		return
	}

	if !s.publisher.IsHealthy() {
		s.log.Error("Kafka health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("unhealthy: kafka connection failed"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("healthy"))
}

// handleReservationQuantity returns the sum of confirmed reservation
// quantities for an item between two timestamps. The result is never
// negative.
func (s *Server) handleReservationQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, startDate, endDate, ok := s.rangeParams(w, r)
	if !ok {
		return
	}

	quantity, err := s.reservations.SumConfirmedQuantitiesForItemInRange(r.Context(), itemID, startDate, endDate)
	if err != nil {
		s.log.Error("Failed to sum reservation quantities", zap.String("item_id", itemID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, "%d", quantity)
}

// handleReservationCount counts confirmed reservations for an item in a date
// range. Kept for callers that have not moved to the quantity query yet.
func (s *Server) handleReservationCount(w http.ResponseWriter, r *http.Request) {
	itemID, startDate, endDate, ok := s.rangeParams(w, r)
	if !ok {
		return
	}

	count, err := s.reservations.CountConfirmedForItemInRange(r.Context(), itemID, startDate, endDate)
	if err != nil {
		s.log.Error("Failed to count reservations", zap.String("item_id", itemID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, "%d", count)
}

func (s *Server) rangeParams(w http.ResponseWriter, r *http.Request) (itemID string, startDate, endDate time.Time, ok bool) {
	itemID = r.URL.Query().Get("itemId")
	if itemID == "" {
		http.Error(w, "itemId is required", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}

	startDate, err := time.Parse(time.RFC3339, r.URL.Query().Get("startDate"))
	if err != nil {
		http.Error(w, "startDate must be RFC 3339", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}

	endDate, err = time.Parse(time.RFC3339, r.URL.Query().Get("endDate"))
	if err != nil {
		http.Error(w, "endDate must be RFC 3339", http.StatusBadRequest)
		return "", time.Time{}, time.Time{}, false
	}

	return itemID, startDate, endDate, true
}
