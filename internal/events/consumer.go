package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/metrics"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// PaymentPaidKey is the routing key of a processor payment callback.
const PaymentPaidKey = "payment.paid"

// PaymentPaid is the callback the payment side publishes once a charge
// settles.
type PaymentPaid struct {
	Event   string `json:"event"`
	Version int    `json:"version"`
	Data    struct {
		PaymentID string `json:"payment_id"`
		BookingID string `json:"booking_id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// PaymentFinalizer marks a booking paid.
type PaymentFinalizer interface {
	FinalizePayment(ctx context.Context, orderID, transactionID string) (model.UpdateResult, error)
}

// Delivery headers the consumer sets when it moves a message.
const (
	HeaderAttempt    = "x-attempt"
	HeaderRoutingKey = "x-routing-key"
	HeaderError      = "x-error"
	HeaderQueue      = "x-original-queue"
)

// DefaultMaxAttempts bounds how often a payment callback is tried.
const DefaultMaxAttempts = 5

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer applies payment callbacks from the payment queue to bookings.
// A callback that keeps failing is parked on the dead-letter queue after
// maxAttempts tries.
type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	pub         channelPublisher
	queue       string
	deadQueue   string
	maxAttempts int
	finalizer   PaymentFinalizer
	log         *slog.Logger
}

// NewConsumer declares the payment exchange, a durable queue bound to
// payment.paid and its "<queue>.dlq" dead-letter queue.
func NewConsumer(url, exchange, queue string, maxAttempts int, f PaymentFinalizer, log *slog.Logger) (*Consumer, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, PaymentPaidKey, exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind %s: %w", PaymentPaidKey, err)
	}
	dlq, err := ch.QueueDeclare(q.Name+".dlq", true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare dead-letter queue: %w", err)
	}
	return &Consumer{
		conn:        conn,
		ch:          ch,
		pub:         ch,
		queue:       q.Name,
		deadQueue:   dlq.Name,
		maxAttempts: maxAttempts,
		finalizer:   f,
		log:         log.With(slog.String("component", "payment_consumer")),
	}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("consuming", slog.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks what it processed or cannot ever process. A store failure
// puts the message back at the tail of the queue with its attempt counter
// raised; malformed callbacks and those out of attempts go to the
// dead-letter queue.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	key := d.RoutingKey
	if v, ok := d.Headers[HeaderRoutingKey].(string); ok {
		key = v
	}
	if key != PaymentPaidKey {
		_ = d.Ack(false)
		return
	}

	var evt PaymentPaid
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		c.log.Error("unmarshal payment event", slog.Any("error", err))
		c.deadLetter(ctx, d, err)
		return
	}
	if evt.Data.BookingID == "" || evt.Data.PaymentID == "" {
		c.log.Warn("payment event without booking or payment id")
		_ = d.Ack(false)
		return
	}

	_, err := c.finalizer.FinalizePayment(ctx, evt.Data.BookingID, evt.Data.PaymentID)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	attempt := attemptOf(d) + 1
	c.log.Error("finalize payment",
		slog.String("booking_id", evt.Data.BookingID),
		slog.Int("attempt", attempt),
		slog.Any("error", err),
	)
	if errors.Is(err, repository.ErrInvalidID) || attempt >= c.maxAttempts {
		c.deadLetter(ctx, d, err)
		return
	}
	c.retry(ctx, d, key, attempt)
}

// attemptOf reads the attempt counter; a first delivery has none.
func attemptOf(d amqp.Delivery) int {
	switch v := d.Headers[HeaderAttempt].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// retry republishes a copy straight to the queue and acks the original.
// If the copy cannot be published the original is requeued untouched.
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, key string, attempt int) {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderAttempt] = int32(attempt)
	headers[HeaderRoutingKey] = key

	if err := c.pub.PublishWithContext(ctx, "", c.queue, false, false, copyOf(d, headers)); err != nil {
		c.log.Error("republish payment event", slog.Any("error", err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// deadLetter parks the message on the dead-letter queue with the failure
// attached.
func (c *Consumer) deadLetter(ctx context.Context, d amqp.Delivery, cause error) {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderError] = cause.Error()
	headers[HeaderQueue] = c.queue

	if err := c.pub.PublishWithContext(ctx, "", c.deadQueue, false, false, copyOf(d, headers)); err != nil {
		c.log.Error("dead-letter payment event", slog.Any("error", err))
		_ = d.Nack(false, true)
		return
	}
	metrics.DeadLettered.Inc()
	c.log.Warn("payment event dead-lettered", slog.String("queue", c.deadQueue), slog.Any("error", cause))
	_ = d.Ack(false)
}

func copyOf(d amqp.Delivery, headers amqp.Table) amqp.Publishing {
	return amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Type:         d.Type,
		Body:         d.Body,
	}
}

// Close shuts the channel and the connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
