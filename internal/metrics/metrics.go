package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts the number of HTTP requests received
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "team_classifier_requests_total",
			Help: "The total number of HTTP requests processed by the API",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration measures the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "team_classifier_request_duration_seconds",
			Help:    "The duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// DeliveriesTotal counts settled deliveries by outcome
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "team_classifier_deliveries_total",
			Help: "The total number of deliveries settled with the broker",
		},
		[]string{"outcome", "redelivered"},
	)

	// PredictionsTotal counts predictions by category
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "team_classifier_predictions_total",
			Help: "The total number of images classified per category",
		},
		[]string{"category"},
	)

	// ProcessingDuration measures the time from receipt to outcome for a message
	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "team_classifier_processing_duration_seconds",
			Help:    "The duration of message processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // From 10ms to ~40s
		},
		[]string{"status"},
	)

	// SinkErrors counts artifact sink failures
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "team_classifier_sink_errors_total",
			Help: "The total number of failed artifact writes",
		},
		[]string{"sink"},
	)

	// InFlight gauges the number of messages currently being processed
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "team_classifier_in_flight",
			Help: "The number of messages currently being processed",
		},
	)

	// WorkerUtilization gauges the percentage of workers currently in use
	WorkerUtilization = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "team_classifier_worker_utilization",
			Help: "The percentage of workers currently processing messages",
		},
	)

	// ModelSamples gauges the training samples per category in the loaded model
	ModelSamples = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "team_classifier_model_samples",
			Help: "The number of training samples per category",
		},
		[]string{"category"},
	)
)

// RecordProcessingTime records the time taken to process a message
func RecordProcessingTime(ctx context.Context, status string, startTime time.Time) {
	duration := time.Since(startTime).Seconds()
	ProcessingDuration.WithLabelValues(status).Observe(duration)

	reqLogger := logger.FromContext(ctx)

	reqLogger.Debug().
		Str("status", status).
		Float64("duration_seconds", duration).
		Msg("Recorded message processing time")
}

// RecordPrediction counts a prediction for the category
func RecordPrediction(category string) {
	PredictionsTotal.WithLabelValues(category).Inc()
}

// RecordDelivery counts a settled delivery
func RecordDelivery(outcome string, redelivered bool) {
	DeliveriesTotal.WithLabelValues(outcome, strconv.FormatBool(redelivered)).Inc()
}

// RecordSinkError counts a failed artifact write
func RecordSinkError(sink string) {
	SinkErrors.WithLabelValues(sink).Inc()
}

// UpdateWorkerUtilization updates the worker utilization metric
func UpdateWorkerUtilization(active, total int) {
	InFlight.Set(float64(active))

	if total <= 0 {
		return
	}

	percentage := (float64(active) / float64(total)) * 100
	WorkerUtilization.Set(percentage)
}

// SetModelSamples publishes the training-set composition
func SetModelSamples(counts map[string]int) {
	for category, n := range counts {
		ModelSamples.WithLabelValues(category).Set(float64(n))
	}
}

// Init initializes metrics collection
func Init() {
	logger := logger.GetLogger("metrics")
	logger.Info().Msg("Metrics collection initialized")
}
