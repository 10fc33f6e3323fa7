package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/classifier"
	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/not-nullexception/team-classifier/internal/metrics"
	imageprocessor "github.com/not-nullexception/team-classifier/internal/processor/image"
	"github.com/not-nullexception/team-classifier/internal/queue"
	"github.com/not-nullexception/team-classifier/internal/sink"
	"github.com/not-nullexception/team-classifier/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Result is the observable outcome of classifying one message
type Result struct {
	MessageID   string
	DeliveryTag uint64
	Prediction  classifier.Prediction
	Features    classifier.FeatureVector
}

type Worker struct {
	queueClient queue.Client
	model       *classifier.Model
	processor   *imageprocessor.Processor
	sink        sink.Sink
	logger      zerolog.Logger
	config      *config.WorkerConfig
	sem         chan struct{} // Semaphore to limit concurrent processing
	active      atomic.Int32
}

// New creates a worker around an already built model. artifacts may be nil.
func New(
	queueClient queue.Client,
	model *classifier.Model,
	artifacts sink.Sink,
	config *config.WorkerConfig,
) *Worker {
	count := config.Count
	if count < 1 {
		count = 1
	}
	return &Worker{
		queueClient: queueClient,
		model:       model,
		processor:   imageprocessor.New(),
		sink:        artifacts,
		logger:      logger.GetLogger("worker"),
		config:      config,
		sem:         make(chan struct{}, count),
	}
}

// Start starts the worker
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Int("worker_count", cap(w.sem)).
		Int("model_samples", w.model.Len()).
		Int("k", w.model.K()).
		Dur("processing_delay", w.config.ProcessingDelay).
		Msg("Starting worker")

	err := w.queueClient.Consume(ctx, w.handleDelivery)
	if err != nil {
		return fmt.Errorf("error consuming messages: %w", err)
	}

	return nil
}

// Stop waits for in-flight messages to be processed and settled, giving up after timeout.
// It reports whether every message finished. Consumption must already be stopped by
// canceling the context passed to Start.
func (w *Worker) Stop(timeout time.Duration) bool {
	w.logger.Info().Dur("timeout", timeout).Msg("Stopping worker")

	if !w.queueClient.Drain(timeout) {
		w.logger.Warn().Dur("timeout", timeout).Msg("Worker stopped with messages still in flight")
		return false
	}

	w.logger.Info().Msg("Worker stopped")
	return true
}

// Ready reports whether the worker can classify and receive messages
func (w *Worker) Ready() bool {
	return w.model != nil && w.queueClient.Connected()
}

// handleDelivery is the queue handler: any returned error requeues the delivery
func (w *Worker) handleDelivery(ctx context.Context, delivery queue.Delivery) error {
	// Acquire semaphore
	w.sem <- struct{}{}
	defer func() { <-w.sem }() // Release semaphore when done

	metrics.UpdateWorkerUtilization(int(w.active.Add(1)), cap(w.sem))
	defer func() { metrics.UpdateWorkerUtilization(int(w.active.Add(-1)), cap(w.sem)) }()

	if w.config.MessageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.MessageTimeout)
		defer cancel()
	}

	ctx, span := tracing.StartSpan(ctx, "worker.classify")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.id", delivery.ID),
		attribute.Bool("message.redelivered", delivery.Redelivered),
	)

	msgLogger := logger.GetLoggerWithContext(ctx, "worker").With().
		Str("message_id", delivery.ID).
		Uint64("delivery_tag", delivery.DeliveryTag).
		Logger()
	ctx = logger.ToContext(ctx, msgLogger)

	start := time.Now()
	result, err := w.Process(ctx, delivery)
	if err != nil {
		metrics.RecordProcessingTime(ctx, "failed", start)
		span.RecordError(err)
		msgLogger.Error().Err(err).Bool("redelivered", delivery.Redelivered).Msg("Failed to classify message")
		return err
	}

	metrics.RecordProcessingTime(ctx, "completed", start)
	span.SetAttributes(attribute.String("classification.category", result.Prediction.Category.String()))
	return nil
}

// Process runs decode, feature extraction and classification for one delivery, then
// emits the result. Decoding failures are returned as *queue.DecodeError.
func (w *Worker) Process(ctx context.Context, delivery queue.Delivery) (*Result, error) {
	reqLogger := logger.FromContext(ctx)

	if delivery.Image == "" {
		return nil, &queue.DecodeError{Field: "image", Err: imageprocessor.ErrEmptyPayload}
	}

	decoded, err := w.processor.DecodeBase64(delivery.Image)
	if err != nil {
		return nil, &queue.DecodeError{Field: "image", Err: err}
	}

	features, err := classifier.Extract(decoded.Image)
	if err != nil {
		return nil, &queue.DecodeError{Field: "image", Err: err}
	}

	prediction, err := w.model.Classify(features)
	if err != nil {
		return nil, fmt.Errorf("error classifying image: %w", err)
	}

	if err := w.simulateLatency(ctx); err != nil {
		return nil, fmt.Errorf("processing interrupted: %w", err)
	}

	result := &Result{
		MessageID:   delivery.ID,
		DeliveryTag: delivery.DeliveryTag,
		Prediction:  prediction,
		Features:    features,
	}

	metrics.RecordPrediction(prediction.Category.String())
	reqLogger.Info().
		Str("message_id", delivery.ID).
		Str("category", prediction.Category.String()).
		Int("votes", prediction.Votes).
		Int("k", prediction.K).
		Msg("Predicted team")

	if w.sink != nil {
		artifact := sink.Artifact{
			MessageID:    delivery.ID,
			MessageType:  delivery.Type,
			SentAt:       delivery.Timestamp,
			Image:        decoded.Image,
			Format:       decoded.Format,
			Prediction:   prediction,
			ClassifiedAt: time.Now().UTC(),
		}
		if err := w.sink.Store(ctx, artifact); err != nil {
			reqLogger.Warn().Err(err).Msg("Artifact not fully stored")
		}
	}

	return result, nil
}

// simulateLatency waits for the configured processing delay unless ctx ends first
func (w *Worker) simulateLatency(ctx context.Context) error {
	if w.config.ProcessingDelay <= 0 {
		return nil
	}

	trace.SpanFromContext(ctx).AddEvent("processing.delay")

	timer := time.NewTimer(w.config.ProcessingDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
