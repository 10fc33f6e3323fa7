package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/api/router"
	"github.com/not-nullexception/team-classifier/internal/classifier"
	"github.com/not-nullexception/team-classifier/internal/db"
	"github.com/not-nullexception/team-classifier/internal/db/postgres"
	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/not-nullexception/team-classifier/internal/metrics"
	"github.com/not-nullexception/team-classifier/internal/queue/rabbitmq"
	"github.com/not-nullexception/team-classifier/internal/tracing"
)

func main() {
	// Create a context that will be canceled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	logger.Setup(&cfg.Log)

	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer shutdownTracing()

	metrics.Init()

	// The API classifies synchronously with the same model the workers build
	model, err := classifier.Train(cfg.Classifier.Samples, cfg.Classifier.Seed, cfg.Classifier.K)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build classifier")
	}

	// Stored results are only served when workers persist them
	var repo db.Repository
	if cfg.Sink.DatabaseEnabled {
		repo, err = postgres.NewRepository(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create database repository")
		}
		defer repo.Close()
	}

	// Create RabbitMQ client
	queueClient, err := rabbitmq.NewClient(&cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
	}
	defer queueClient.Close()

	// Setup router
	r := router.Setup(cfg, repo, queueClient, model)

	// Configure HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info().Str("address", server.Addr).Msg("Starting API server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	// Set up signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interruption signal
	<-quit
	log.Info().Msg("Shutting down API server...")

	// Cancel the context to signal all services to shut down
	cancel()

	// Create a deadline for the shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shut down the server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server forced to shutdown")
	}

	log.Info().Msg("API server stopped")
}
