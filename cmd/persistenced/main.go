package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lharkness/EDRS/internal/api"
	"github.com/lharkness/EDRS/internal/config"
	"github.com/lharkness/EDRS/internal/db"
	"github.com/lharkness/EDRS/internal/events"
	grpcserver "github.com/lharkness/EDRS/internal/grpc"
	"github.com/lharkness/EDRS/internal/repo"
	"github.com/lharkness/EDRS/internal/service"
	"github.com/lharkness/EDRS/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Persistence service starting")

	// Connect to database
	log.Info("Connecting to database...")
	database, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run migrations
	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	reservationRepo := repo.NewReservationRepository(database, log)
	inventoryRepo := repo.NewInventoryRepository(database, log)
	eventStore := repo.NewEventStore(database, log)

	// Connect to Kafka
	log.Info("Connecting to Kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	publisher := events.NewPublisher(cfg.KafkaBrokers, log)
	defer publisher.Close()

	// Wire the saga handlers
	processor := service.NewEventProcessor(database, reservationRepo, inventoryRepo, eventStore, publisher, log)

	// Start consuming the choreography topics
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, processor, log)
	consumer.Start(ctx)

	// Create gRPC server with health service
	grpcServer := grpc.NewServer()
	healthServer := grpcserver.NewHealthServer(database, publisher, log)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	go func() {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	// Start HTTP server for health, metrics and the reservation quantity query
	apiServer := api.NewServer(database, reservationRepo, publisher, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPHealthPort),
		Handler:      apiServer.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Stop fetching before tearing anything else down
	cancel()
	consumer.Close()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Stop gRPC server
	grpcServer.GracefulStop()

	log.Info("Server stopped")
}
