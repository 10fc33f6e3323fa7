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
	"github.com/not-nullexception/team-classifier/internal/api/handlers"
	"github.com/not-nullexception/team-classifier/internal/api/router"
	"github.com/not-nullexception/team-classifier/internal/classifier"
	"github.com/not-nullexception/team-classifier/internal/db"
	"github.com/not-nullexception/team-classifier/internal/db/postgres"
	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/not-nullexception/team-classifier/internal/metrics"
	"github.com/not-nullexception/team-classifier/internal/minio/minio"
	"github.com/not-nullexception/team-classifier/internal/queue/rabbitmq"
	"github.com/not-nullexception/team-classifier/internal/sink"
	"github.com/not-nullexception/team-classifier/internal/tracing"
	"github.com/not-nullexception/team-classifier/internal/worker"
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

	// Build the model before touching the broker so a bad configuration never consumes
	start := time.Now()
	model, err := classifier.Train(cfg.Classifier.Samples, cfg.Classifier.Seed, cfg.Classifier.K)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build classifier")
	}

	counts := make(map[string]int)
	for category, n := range model.Counts() {
		counts[category.String()] = n
	}
	metrics.SetModelSamples(counts)

	log.Info().
		Int("samples", model.Len()).
		Int64("seed", cfg.Classifier.Seed).
		Int("k", model.K()).
		Interface("counts", counts).
		Dur("elapsed", time.Since(start)).
		Msg("Classifier trained")

	artifacts, repo := buildSinks(ctx, cfg)
	if repo != nil {
		defer repo.Close()
	}

	// Create RabbitMQ client
	queueClient, err := rabbitmq.NewClient(&cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
	}

	// Create worker
	w := worker.New(queueClient, model, artifacts, &cfg.Worker)

	// Start worker
	if err := w.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}

	var statusServer *http.Server
	if cfg.Status.Enabled {
		checks := map[string]handlers.Check{
			"rabbitmq": handlers.ConnectedCheck(queueClient.Connected),
			"worker":   handlers.ConnectedCheck(w.Ready),
		}
		if repo != nil {
			checks["database"] = repo.Ping
		}

		statusServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Status.Port),
			Handler:      router.SetupStatus(cfg, checks),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Str("address", statusServer.Addr).Msg("Starting status server")

			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Status server failed")
			}
		}()
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interrupt signal
	<-quit
	log.Info().Msg("Shutting down worker...")

	// Stop receiving; in-flight messages keep running until settled
	cancel()

	if !w.Stop(cfg.Worker.ShutdownTimeout) {
		log.Warn().Msg("Unsettled messages will be redelivered by the broker")
	}

	if err := queueClient.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close RabbitMQ client")
	}

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server forced to shutdown")
		}
	}

	log.Info().Msg("Worker stopped")
}

// buildSinks assembles the configured artifact sinks. A sink that cannot be created is
// logged and skipped; classification does not depend on it.
func buildSinks(ctx context.Context, cfg *config.Config) (sink.Sink, db.Repository) {
	if !cfg.Sink.Enabled {
		return nil, nil
	}

	var (
		sinks sink.Multi
		repo  db.Repository
	)

	if cfg.Sink.ResultsDir != "" {
		fs, err := sink.NewFilesystem(cfg.Sink.ResultsDir)
		if err != nil {
			log.Error().Err(err).Str("dir", cfg.Sink.ResultsDir).Msg("Filesystem sink disabled")
		} else {
			sinks = append(sinks, fs)
		}
	}

	if cfg.Sink.MinIOEnabled {
		minioClient, err := minio.NewClient(ctx, &cfg.MinIO)
		if err != nil {
			log.Error().Err(err).Msg("Object storage sink disabled")
		} else {
			sinks = append(sinks, sink.NewObjectStore(minioClient, "teams"))
		}
	}

	if cfg.Sink.DatabaseEnabled {
		r, err := postgres.NewRepository(ctx, &cfg.Database)
		if err != nil {
			log.Error().Err(err).Msg("Database sink disabled")
		} else {
			repo = r
			sinks = append(sinks, sink.NewRepository(r))
		}
	}

	if len(sinks) == 0 {
		return nil, repo
	}

	log.Info().Str("sinks", sinks.Name()).Msg("Artifact sinks enabled")
	return sinks, repo
}
