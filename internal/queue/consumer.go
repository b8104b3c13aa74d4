package queue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxConsumerReconnectDelay  = 30 * time.Second
	baseConsumerReconnectDelay = 1 * time.Second
)

// Delivery is one queued job handed to a worker, with the ACK/NACK
// callbacks it must call after processing, and a Reply callback for
// RPC-style jobs that carry a reply-to address.
type Delivery struct {
	Body          []byte
	CorrelationID string

	Ack  func() error
	Nack func(requeue bool) error

	// Reply publishes a response to the delivery's reply queue. It is
	// nil when the producer did not request a reply.
	Reply func(ctx context.Context, body []byte) error
}

// Consumer listens on one named queue and dispatches deliveries to a
// channel. Prefetch is bounded so a slow worker backpressures the broker
// instead of buffering jobs in memory.
type Consumer struct {
	url       string
	queueName string
	prefetch  int
	logger    *zap.Logger
	jobs      chan<- *Delivery

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	closeCh chan struct{}
}

// NewConsumer creates a consumer for the named queue.
func NewConsumer(url, queueName string, prefetch int, jobs chan<- *Delivery, logger *zap.Logger) (*Consumer, error) {
	if prefetch < 1 {
		prefetch = 1
	}
	c := &Consumer{
		url:       url,
		queueName: queueName,
		prefetch:  prefetch,
		logger:    logger,
		jobs:      jobs,
		closeCh:   make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	// Only deliver up to prefetch unacknowledged messages per consumer.
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

// Start begins consuming messages. It blocks until the context is
// cancelled, reconnecting with exponential backoff on connection loss.
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

		c.logger.Warn("AMQP consumer lost connection, reconnecting...",
			zap.String("queue", c.queueName),
			zap.Error(err),
		)

		for attempt := 0; ; attempt++ {
			select {
			case <-c.closeCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}

			delay := time.Duration(math.Min(
				float64(baseConsumerReconnectDelay)*math.Pow(2, float64(attempt)),
				float64(maxConsumerReconnectDelay),
			))
			c.logger.Info("Reconnect attempt",
				zap.String("queue", c.queueName),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			time.Sleep(delay)

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnect failed", zap.Error(err))
				continue
			}

			c.logger.Info("Reconnected to RabbitMQ", zap.String("queue", c.queueName))
			break
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("channel is nil")
	}

	deliveries, err := ch.Consume(
		c.queueName,
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

	c.logger.Info("AMQP consumer started", zap.String("queue", c.queueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping (context cancelled)", zap.String("queue", c.queueName))
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			msg := c.wrapDelivery(ch, delivery)

			// Blocks when the channel is full; back-pressure via Qos.
			select {
			case c.jobs <- msg:
			case <-ctx.Done():
				// Shutting down; requeue so another worker picks it up.
				delivery.Nack(false, true)
				return nil
			}
		}
	}
}

func (c *Consumer) wrapDelivery(ch *amqp.Channel, delivery amqp.Delivery) *Delivery {
	tag := delivery.DeliveryTag
	replyTo := delivery.ReplyTo
	corrID := delivery.CorrelationId

	msg := &Delivery{
		Body:          delivery.Body,
		CorrelationID: corrID,
		Ack: func() error {
			return ch.Ack(tag, false)
		},
		Nack: func(requeue bool) error {
			return ch.Nack(tag, false, requeue)
		},
	}

	if replyTo != "" {
		msg.Reply = func(ctx context.Context, body []byte) error {
			return ch.PublishWithContext(ctx,
				"",      // default exchange
				replyTo, // routes straight to the reply queue
				false, false,
				amqp.Publishing{
					ContentType:   "application/json",
					CorrelationId: corrID,
					Body:          body,
				},
			)
		}
	}

	return msg
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
