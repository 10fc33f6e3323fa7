package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/not-nullexception/team-classifier/internal/metrics"
	"github.com/not-nullexception/team-classifier/internal/queue"
	"github.com/not-nullexception/team-classifier/internal/tracing"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	errDeliveriesClosed = errors.New("delivery channel closed")
	errClientClosed     = errors.New("rabbitmq client closed")
)

type RabbitMQClient struct {
	cfg *config.RabbitMQConfig

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	queueName    string
	exchangeName string
	routingKey   string
	consumerTag  string
	logger       zerolog.Logger

	closed   atomic.Bool
	inflight sync.WaitGroup
	loops    sync.WaitGroup
}

func NewClient(cfg *config.RabbitMQConfig) (*RabbitMQClient, error) {
	c := &RabbitMQClient{
		cfg:          cfg,
		queueName:    cfg.Queue,
		exchangeName: cfg.Exchange,
		routingKey:   cfg.RoutingKey,
		consumerTag:  cfg.ConsumerTag,
		logger:       logger.GetLogger("rabbitmq-client"),
	}

	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(newBackOff(cfg), uint64(attempts-1))
	if err := c.connectWithRetry(b); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.logger.Info().
		Str("exchange", cfg.Exchange).
		Str("exchange_type", cfg.ExchangeType).
		Str("queue", cfg.Queue).
		Str("routing_key", cfg.RoutingKey).
		Int("prefetch", cfg.Prefetch).
		Msg("RabbitMQ client initialized")

	return c, nil
}

func newBackOff(cfg *config.RabbitMQConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 0
	if cfg.ReconnectMaxInterval > 0 {
		b.MaxInterval = cfg.ReconnectMaxInterval
	}
	return b
}

func (c *RabbitMQClient) connectWithRetry(b backoff.BackOff) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		if c.closed.Load() {
			return backoff.Permanent(errClientClosed)
		}
		attempt++
		c.logger.Info().
			Str("host", c.cfg.Host).
			Int("port", c.cfg.Port).
			Int("attempt", attempt).
			Msg("Connecting to RabbitMQ")
		return c.connect()
	}, b, func(err error, next time.Duration) {
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_delay", next).
			Msg("Failed to connect to RabbitMQ, retrying...")
	})
}

// connect dials the broker and declares the exchange, queue and binding
func (c *RabbitMQClient) connect() error {
	conn, err := amqp.Dial(c.cfg.RabbitMQURL())
	if err != nil {
		return fmt.Errorf("error dialing broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("error creating channel: %w", err)
	}

	if err := declareTopology(channel, c.cfg); err != nil {
		channel.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	c.logger.Info().Msg("Connected to RabbitMQ")
	return nil
}

func declareTopology(channel *amqp.Channel, cfg *config.RabbitMQConfig) error {
	// Declare exchange
	err := channel.ExchangeDeclare(
		cfg.Exchange,     // name
		cfg.ExchangeType, // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return fmt.Errorf("error declaring exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("error declaring queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		cfg.Queue,      // queue name
		cfg.RoutingKey, // routing key
		cfg.Exchange,   // exchange name
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("error binding queue: %w", err)
	}

	prefetch := cfg.Prefetch
	if prefetch < 1 {
		prefetch = 1
	}
	err = channel.Qos(
		prefetch, // prefetch count
		0,        // prefetch size
		false,    // global
	)
	if err != nil {
		return fmt.Errorf("error setting QoS: %w", err)
	}

	return nil
}

// Publish publishes a message to the exchange with the configured routing key
func (c *RabbitMQClient) Publish(ctx context.Context, msg queue.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}

	c.mu.RLock()
	channel := c.channel
	c.mu.RUnlock()
	if channel == nil {
		return errors.New("rabbitmq channel not open")
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         msg.Type,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("error publishing message: %w", err)
	}

	c.logger.Debug().
		Str("message_id", msg.ID).
		Str("message_type", msg.Type).
		Msg("Message published")

	return nil
}

// Consume starts consuming messages from the queue. It returns once the consumer is
// registered; deliveries are dispatched in the background until ctx is canceled.
func (c *RabbitMQClient) Consume(ctx context.Context, handler queue.Handler) error {
	deliveries, err := c.startConsuming()
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("consumer_tag", c.consumerTag).
		Msg("Started consuming messages")

	c.loops.Add(1)
	go func() {
		defer c.loops.Done()
		c.run(ctx, deliveries, handler)
	}()

	return nil
}

func (c *RabbitMQClient) startConsuming() (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	channel := c.channel
	c.mu.RUnlock()
	if channel == nil {
		return nil, errors.New("rabbitmq channel not open")
	}

	messages, err := channel.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("error consuming from queue: %w", err)
	}
	return messages, nil
}

// run keeps dispatching across connection losses until ctx is canceled or the client closes
func (c *RabbitMQClient) run(ctx context.Context, deliveries <-chan amqp.Delivery, handler queue.Handler) {
	for {
		err := c.dispatch(ctx, deliveries, handler)
		if err == nil || c.closed.Load() {
			c.logger.Info().Msg("Stopping consumer")
			return
		}

		c.logger.Warn().Err(err).Msg("Lost RabbitMQ consumer, reconnecting")
		deliveries, err = c.reconnect(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Giving up reconnecting to RabbitMQ")
			return
		}
		c.logger.Info().Msg("RabbitMQ consumer re-established")
	}
}

func (c *RabbitMQClient) reconnect(ctx context.Context) (<-chan amqp.Delivery, error) {
	c.closeConnection()

	var deliveries <-chan amqp.Delivery
	err := c.connectWithRetry(backoff.WithContext(newBackOff(c.cfg), ctx))
	if err != nil {
		return nil, err
	}
	deliveries, err = c.startConsuming()
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// dispatch receives deliveries and hands each to its own goroutine so the loop keeps
// receiving while earlier deliveries are still being processed. It returns nil when ctx
// is canceled and errDeliveriesClosed when the broker closes the channel.
func (c *RabbitMQClient) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery, handler queue.Handler) error {
	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}

			c.logger.Debug().
				Uint64("delivery_tag", msg.DeliveryTag).
				Bool("redelivered", msg.Redelivered).
				Msg("Received message")

			c.inflight.Add(1)
			go func() {
				defer c.inflight.Done()
				// In-flight deliveries run to completion even after shutdown starts.
				c.handle(context.WithoutCancel(ctx), msg, handler)
			}()

		case <-ctx.Done():
			c.logger.Info().Msg("Stopping consumer due to context cancellation")
			return nil
		}
	}
}

// handle decodes and processes one delivery and settles it with the broker
func (c *RabbitMQClient) handle(ctx context.Context, msg amqp.Delivery, handler queue.Handler) queue.Outcome {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))
	ctx, span := tracing.StartSpan(ctx, "rabbitmq.consume")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", c.queueName),
		attribute.Int64("messaging.delivery_tag", int64(msg.DeliveryTag)),
	)

	err := c.processMessage(ctx, msg, handler)
	if err != nil {
		span.RecordError(err)
		c.logger.Error().
			Err(err).
			Uint64("delivery_tag", msg.DeliveryTag).
			Msg("Error processing message")
	}

	return c.settle(msg, err)
}

func (c *RabbitMQClient) processMessage(ctx context.Context, msg amqp.Delivery, handler queue.Handler) error {
	delivery, err := decodeDelivery(msg)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Str("message_id", delivery.ID).
		Str("message_type", delivery.Type).
		Uint64("delivery_tag", msg.DeliveryTag).
		Msg("Processing message")

	if err := handler(ctx, delivery); err != nil {
		return fmt.Errorf("error processing message %s: %w", delivery.ID, err)
	}

	return nil
}

func decodeDelivery(msg amqp.Delivery) (queue.Delivery, error) {
	var m queue.Message
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		return queue.Delivery{}, &queue.DecodeError{Field: "body", Err: err}
	}
	return queue.Delivery{
		Message:     m,
		DeliveryTag: msg.DeliveryTag,
		Redelivered: msg.Redelivered,
		RoutingKey:  msg.RoutingKey,
	}, nil
}

// settle acks on success and nacks with requeue on failure, never touching other tags
func (c *RabbitMQClient) settle(msg amqp.Delivery, processErr error) queue.Outcome {
	outcome := queue.Acknowledged
	var err error
	if processErr == nil {
		err = msg.Ack(false)
	} else {
		// A permanently malformed message is redelivered until a dead-letter policy intervenes.
		outcome = queue.Requeued
		err = msg.Nack(false, true)
	}

	metrics.RecordDelivery(outcome.String(), msg.Redelivered)

	if err != nil {
		c.logger.Error().
			Err(err).
			Uint64("delivery_tag", msg.DeliveryTag).
			Str("outcome", outcome.String()).
			Msg("Error settling message")
	}

	return outcome
}

// Connected reports whether the connection is open
func (c *RabbitMQClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *RabbitMQClient) closeConnection() error {
	c.mu.Lock()
	channel, conn := c.channel, c.conn
	c.channel, c.conn = nil, nil
	c.mu.Unlock()

	var err error
	if channel != nil && !channel.IsClosed() {
		if channelErr := channel.Close(); channelErr != nil {
			err = errors.Join(err, fmt.Errorf("error closing channel: %w", channelErr))
		}
	}
	if conn != nil && !conn.IsClosed() {
		if connErr := conn.Close(); connErr != nil {
			err = errors.Join(err, fmt.Errorf("error closing connection: %w", connErr))
		}
	}
	return err
}

// Drain waits for the consume loops to exit, then for every dispatched delivery to be
// settled. Loops must exit first: only they add to inflight.
func (c *RabbitMQClient) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.loops.Wait()
		c.inflight.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return true
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		c.logger.Warn().Dur("timeout", timeout).Msg("Deliveries still in flight after drain timeout")
		return false
	}
}

// Close closes the channel and connection and waits for the consume loops to exit.
// Call Drain first; deliveries settled after Close fail and are redelivered by the broker.
func (c *RabbitMQClient) Close() error {
	c.closed.Store(true)

	err := c.closeConnection()

	c.loops.Wait()
	if err != nil {
		return err
	}

	c.logger.Info().Msg("RabbitMQ client closed")
	return nil
}
