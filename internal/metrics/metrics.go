package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters mirroring the persistence service's processing outcomes
var (
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edrs_events_processed_total",
		Help: "Total number of events processed",
	}, []string{"event_type", "status"})

	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edrs_events_failed_total",
		Help: "Total number of events that failed processing",
	}, []string{"event_type"})

	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edrs_reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edrs_reservations_failed_total",
		Help: "Total number of reservations that failed",
	})

	CancellationsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edrs_cancellations_processed_total",
		Help: "Total number of cancellations processed",
	})

	InventoryUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edrs_inventory_updates_total",
		Help: "Total number of inventory item updates",
	})
)
