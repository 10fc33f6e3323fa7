package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/classifier"
	"github.com/not-nullexception/team-classifier/internal/logger"
	imageprocessor "github.com/not-nullexception/team-classifier/internal/processor/image"
	"github.com/not-nullexception/team-classifier/internal/queue"
	"github.com/not-nullexception/team-classifier/internal/queue/rabbitmq"
	"github.com/not-nullexception/team-classifier/internal/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Setup(&cfg.Log)

	if err := cfg.Producer.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid producer configuration")
	}

	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer shutdownTracing()

	queueClient, err := rabbitmq.NewClient(&cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
	}
	defer queueClient.Close()

	// Render each category once; every message of a category carries the same image
	payloads := make(map[classifier.Category]string)
	for _, c := range classifier.Categories() {
		payloads[c], err = imageprocessor.EncodeBase64(classifier.SyntheticImage(c))
		if err != nil {
			log.Fatal().Err(err).Str("category", c.String()).Msg("Failed to render synthetic image")
		}
	}

	log.Info().
		Dur("interval", cfg.Producer.Interval).
		Int("limit", cfg.Producer.Limit).
		Str("exchange", cfg.RabbitMQ.Exchange).
		Str("routing_key", cfg.RabbitMQ.RoutingKey).
		Msg("Starting producer")

	ticker := time.NewTicker(cfg.Producer.Interval)
	defer ticker.Stop()

	categories := classifier.Categories()
	for sent := 0; cfg.Producer.Limit <= 0 || sent < cfg.Producer.Limit; {
		select {
		case <-ctx.Done():
			log.Info().Int("sent", sent).Msg("Producer stopped")
			return
		case <-ticker.C:
		}

		category := categories[sent%len(categories)]
		msg := queue.Message{
			ID:        uuid.NewString(),
			Type:      "team",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Image:     payloads[category],
		}

		if err := queueClient.Publish(ctx, msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to publish message")
			continue
		}
		sent++

		log.Info().Str("message_id", msg.ID).Str("category", category.String()).Msg("Published message")
	}

	log.Info().Int("sent", cfg.Producer.Limit).Msg("Producer finished")
}
