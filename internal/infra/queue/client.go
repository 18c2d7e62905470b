// Package queue carries analytics refresh jobs over RabbitMQ.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/infra/resilience"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/queue")

// Config names the broker topology.
type Config struct {
	URL      string
	Exchange string
	Queue    string
}

// Client owns one AMQP connection and channel. It implements
// port.RefreshPublisher and consumes refresh jobs for the worker.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string

	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Dial connects to the broker, retrying with backoff, and declares the
// exchange and queue.
func Dial(ctx context.Context, cfg Config, rc resilience.Config, metrics *observability.Metrics, logger *zap.Logger) (*Client, error) {
	var conn *amqp.Connection
	err := resilience.RetryWithBackoff(ctx, rc, func() error {
		var err error
		conn, err = amqp.Dial(cfg.URL)
		if err != nil {
			logger.Warn("broker not reachable yet", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		cb:       resilience.NewCircuitBreaker("amqp-publish"),
		metrics:  metrics,
		logger:   logger,
	}
	if err := c.setup(); err != nil {
		c.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	logger.Info("connected to RabbitMQ", zap.String("exchange", cfg.Exchange), zap.String("queue", cfg.Queue))
	return c, nil
}

func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key is the queue name on a direct exchange.
	if err := c.channel.QueueBind(c.queue, c.queue, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishRefresh sends a persistent refresh job. Publishing goes through a
// circuit breaker so a dead broker fails fast with ErrCircuitOpen.
func (c *Client) PublishRefresh(ctx context.Context, job *domain.RefreshJob) error {
	ctx, span := tracer.Start(ctx, "Queue.PublishRefresh")
	defer span.End()

	body, err := newRefreshMessage(job).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = resilience.Guard(c.cb, func() error {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return c.channel.PublishWithContext(pubCtx, c.exchange, c.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    time.Now(),
			Body:         body,
		})
	})
	if err != nil {
		c.metrics.IncrPublish("error")
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return err
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.metrics.IncrPublish("success")
	c.logger.Info("published refresh job",
		zap.String("job_id", job.ID),
		zap.Int("year", job.Year),
		zap.String("exchange", c.exchange),
	)
	return nil
}

// ConsumeRefresh delivers refresh jobs to handler until ctx is cancelled
// or the broker closes the channel. Acks are manual.
func (c *Client) ConsumeRefresh(ctx context.Context, handler func(context.Context, *domain.RefreshJob) error) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("consuming refresh jobs", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping refresh consumer", zap.Error(ctx.Err()))
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			processDelivery(ctx, delivery, handler, c.logger)
		}
	}
}

// processDelivery handles one delivery: malformed bodies are dropped,
// handler failures are requeued.
func processDelivery(ctx context.Context, d amqp.Delivery, handler func(context.Context, *domain.RefreshJob) error, logger *zap.Logger) {
	msg, err := RefreshMessageFromJSON(d.Body)
	if err != nil {
		logger.Error("dropping malformed refresh message", zap.String("message_id", d.MessageId), zap.Error(err))
		d.Nack(false, false)
		return
	}

	log := logger.With(zap.String("job_id", msg.JobID), zap.Int("year", msg.Year))
	if err := handler(ctx, msg.Job()); err != nil {
		log.Error("refresh job failed, requeueing", zap.Error(err))
		d.Nack(false, true)
		return
	}

	d.Ack(false)
	log.Info("refresh job done")
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
