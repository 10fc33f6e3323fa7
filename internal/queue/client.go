package queue

import (
	"context"
	"time"
)

// Message is the JSON body published for every image to classify.
type Message struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Image     string `json:"image"`
}

// Delivery is a decoded message plus the broker metadata it arrived with.
type Delivery struct {
	Message
	DeliveryTag uint64
	Redelivered bool
	RoutingKey  string
}

// Handler processes one delivery. A nil return acknowledges it; any error requeues it.
type Handler func(ctx context.Context, delivery Delivery) error

// Client defines the interface for message broker operations
type Client interface {
	Publish(ctx context.Context, msg Message) error

	// Consume starts delivering messages to handler and returns once consumption is set up.
	// Deliveries keep flowing until ctx is canceled.
	Consume(ctx context.Context, handler Handler) error

	// Connected reports whether the broker connection is currently open
	Connected() bool

	// Drain waits until consumption has stopped and every delivery handed to a handler
	// has been settled. It reports false when timeout elapses first; timeout <= 0 waits
	// indefinitely.
	Drain(timeout time.Duration) bool

	// Close closes the broker connection. Deliveries not yet settled are redelivered.
	Close() error
}

// Outcome is the broker-visible disposition of one delivery.
type Outcome int

const (
	Acknowledged Outcome = iota
	Requeued
)

func (o Outcome) String() string {
	switch o {
	case Acknowledged:
		return "acknowledged"
	case Requeued:
		return "requeued"
	default:
		return "unknown"
	}
}
