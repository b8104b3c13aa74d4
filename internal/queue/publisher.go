package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 30 * time.Second

	publishTimeout = 5 * time.Second
)

// RunReply is the envelope a worker sends back on the reply queue for a
// run job: either a result or a job-level error, never both.
type RunReply struct {
	Result *domain.RunResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Publisher enqueues jobs for the judge workers.
type Publisher interface {
	// PublishSubmit enqueues a graded submit job. Fire-and-forget: the
	// caller gets the submission id and polls for the outcome.
	PublishSubmit(ctx context.Context, job *domain.SubmitJob) error

	// PublishRunAndWait enqueues a run job and blocks until the worker
	// replies on the RPC reply queue or the wait deadline passes.
	PublishRunAndWait(ctx context.Context, job *domain.RunJob, wait time.Duration) (*domain.RunResult, error)

	Close() error
}

type rabbitPublisher struct {
	url    string
	logger *zap.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	pendingMu sync.Mutex
	pending   map[string]chan RunReply
}

// NewRabbitMQPublisher creates a RabbitMQ publisher, declaring the
// exchange, both job queues and the dead-letter topology.
func NewRabbitMQPublisher(url string, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:     url,
		logger:  logger,
		pending: make(map[string]chan RunReply),
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	go p.watchConnection()

	return p, nil
}

func (p *rabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	// Direct reply-to consumption must be set up on the publishing
	// channel, with auto-ack, before the first RPC publish.
	replies, err := ch.Consume(replyToQueue, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: consume reply-to: %w", err)
	}
	go p.routeReplies(replies)

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("exchange", ExchangeName),
		zap.Strings("queues", []string{RunQueue, SubmitQueue}),
	)

	return nil
}

// declareTopology declares the exchange, the dead-letter exchange/queue,
// and both durable quorum job queues. Idempotent.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqName, "", dlxName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": dlxName,
		"x-queue-type":           "quorum",
	}
	for queue, key := range map[string]string{
		RunQueue:    RunRoutingKey,
		SubmitQueue: SubmitRoutingKey,
	} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// routeReplies dispatches reply-queue messages to the waiter registered
// under the message's correlation id.
func (p *rabbitPublisher) routeReplies(replies <-chan amqp.Delivery) {
	for d := range replies {
		var reply RunReply
		if err := json.Unmarshal(d.Body, &reply); err != nil {
			p.logger.Error("Failed to unmarshal run reply",
				zap.Error(err),
				zap.String("correlation_id", d.CorrelationId),
			)
			continue
		}

		p.pendingMu.Lock()
		waiter, ok := p.pending[d.CorrelationId]
		if ok {
			delete(p.pending, d.CorrelationId)
		}
		p.pendingMu.Unlock()

		if !ok {
			p.logger.Warn("Run reply with no waiter (producer timed out?)",
				zap.String("correlation_id", d.CorrelationId),
			)
			continue
		}
		waiter <- reply
	}
}

func (p *rabbitPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		if conn == nil {
			time.Sleep(reconnectDelay)
			continue
		}

		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error))
		if !ok {
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting...",
			zap.String("reason", reason.Error()),
		)

		delay := reconnectDelay
		for {
			p.mu.RLock()
			if p.closed {
				p.mu.RUnlock()
				return
			}
			p.mu.RUnlock()

			time.Sleep(delay)

			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
				delay = delay * 2
				if delay > maxReconnectDelay {
					delay = maxReconnectDelay
				}
				continue
			}

			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

func (p *rabbitPublisher) PublishSubmit(ctx context.Context, job *domain.SubmitJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal submit job: %w", err)
	}

	return p.publish(ctx, SubmitRoutingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.SubmissionID.String(),
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *rabbitPublisher) PublishRunAndWait(ctx context.Context, job *domain.RunJob, wait time.Duration) (*domain.RunResult, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: marshal run job: %w", err)
	}

	corrID := uuid.NewString()
	waiter := make(chan RunReply, 1)
	p.pendingMu.Lock()
	p.pending[corrID] = waiter
	p.pendingMu.Unlock()
	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, corrID)
		p.pendingMu.Unlock()
	}()

	err = p.publish(ctx, RunRoutingKey, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     job.JobID.String(),
		CorrelationId: corrID,
		ReplyTo:       replyToQueue,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	select {
	case reply := <-waiter:
		if reply.Error != "" {
			p.logger.Warn("Run job failed on worker",
				zap.String("job_id", job.JobID.String()),
				zap.String("error", reply.Error),
			)
			return nil, domain.ErrRunFailed
		}
		return reply.Result, nil
	case <-waitCtx.Done():
		return nil, fmt.Errorf("%w: no reply within %s", domain.ErrRunFailed, wait)
	}
}

// confirmation is the slice of amqp.DeferredConfirmation the publisher
// waits on.
type confirmation interface {
	Done() <-chan struct{}
	Acked() bool
}

var _ confirmation = (*amqp.DeferredConfirmation)(nil)

// awaitConfirm blocks until the broker confirms or rejects the publish,
// or the context expires.
func awaitConfirm(ctx context.Context, dc confirmation, messageID string) error {
	select {
	case <-dc.Done():
		if !dc.Acked() {
			return fmt.Errorf("rabbitmq: broker nacked message (message_id=%s)", messageID)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rabbitmq: publish confirmation timeout (message_id=%s)", messageID)
	}
}

func (p *rabbitPublisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// One deferred confirmation per publish. NotifyPublish listeners must
	// not be registered per publish on a shared channel: an abandoned
	// listener blocks the connection's reader goroutine once its buffer
	// fills, wedging the whole channel.
	dc, err := ch.PublishWithDeferredConfirmWithContext(publishCtx, ExchangeName, routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	if err := awaitConfirm(publishCtx, dc, msg.MessageId); err != nil {
		return err
	}

	p.logger.Debug("Published job",
		zap.String("routing_key", routingKey),
		zap.String("message_id", msg.MessageId),
		zap.Int("body_size", len(msg.Body)),
	)
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
