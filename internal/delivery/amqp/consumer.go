package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/publisher"
)

const (
	// Reconnection parameters
	maxReconnectDelay  = 30 * time.Second
	baseReconnectDelay = 1 * time.Second
)

// Consumer listens to RabbitMQ and dispatches SweepMessage (with ACK callbacks) to a channel.
type Consumer struct {
	url     string
	conn    *amqplib.Connection
	channel *amqplib.Channel
	logger  *zap.Logger
	sweeps  chan<- *domain.SweepMessage

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewConsumer creates a new RabbitMQ consumer.
// The consumer does not ack after dispatch. Each delivery is wrapped in a
// SweepMessage with Ack/Nack callbacks that the worker pool calls once the
// sweep has been processed.
func NewConsumer(url string, sweeps chan<- *domain.SweepMessage, logger *zap.Logger) (*Consumer, error) {
	c := &Consumer{
		url:     url,
		logger:  logger,
		sweeps:  sweeps,
		closeCh: make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes the AMQP connection and channel with prefetch=1.
func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	// Only deliver one unacknowledged message per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}

	if err := publisher.DeclareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp topology: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

// Start begins consuming messages. It blocks until the context is cancelled.
// On connection loss it automatically reconnects with exponential backoff.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if err == nil {
			return nil
		}

		select {
		case <-c.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		c.logger.Warn("AMQP consumer lost connection, reconnecting...", zap.Error(err))

		for attempt := 0; ; attempt++ {
			delay := time.Duration(math.Min(
				float64(baseReconnectDelay)*math.Pow(2, float64(attempt)),
				float64(maxReconnectDelay),
			))
			c.logger.Info("Reconnect attempt",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-c.closeCh:
				return nil
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnect failed", zap.Error(err))
				continue
			}

			c.logger.Info("Reconnected to RabbitMQ")
			break
		}
	}
}

// consume runs one consume session until the delivery channel closes or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("channel is nil")
	}

	deliveries, err := ch.Consume(
		publisher.QueueName,
		"",    // auto-generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	c.logger.Info("AMQP consumer started", zap.String("queue", publisher.QueueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping (context cancelled)")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			msg, err := c.decode(ch, delivery)
			if err != nil {
				c.logger.Error("Failed to decode sweep",
					zap.Error(err),
					zap.String("message_id", delivery.MessageId),
				)
				_ = delivery.Nack(false, false) // reject to DLQ
				continue
			}

			c.logger.Debug("Received sweep from queue",
				zap.String("sweep_id", msg.Run.SweepID.String()),
				zap.String("target", msg.Run.Target),
			)

			// Blocks while the pool is busy; prefetch=1 gives back-pressure.
			select {
			case c.sweeps <- msg:
			case <-ctx.Done():
				_ = delivery.Nack(false, true)
				return nil
			}
		}
	}
}

func (c *Consumer) decode(ch *amqplib.Channel, delivery amqplib.Delivery) (*domain.SweepMessage, error) {
	var run domain.SweepRun
	if err := json.Unmarshal(delivery.Body, &run); err != nil {
		return nil, err
	}
	if run.Circuit == nil {
		return nil, fmt.Errorf("sweep %s has no circuit", run.SweepID)
	}

	tag := delivery.DeliveryTag
	return &domain.SweepMessage{
		Run: &run,
		Ack: func() error {
			return ch.Ack(tag, false)
		},
		Nack: func(requeue bool) error {
			return ch.Nack(tag, false, requeue)
		},
	}, nil
}

// Close gracefully shuts down the consumer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
