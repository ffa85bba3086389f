package messaging

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrUnretryable marks a message that will never succeed (malformed or
// failing validation). The consumer acks and drops it instead of cycling
// it through redelivery.
var ErrUnretryable = errors.New("unretryable message")

// HandlerFunc processes one delivery body. A nil return acks the
// message; ErrUnretryable drops it; any other error hands it back to the
// broker (requeued once, dead-lettered on redelivery).
type HandlerFunc func(ctx context.Context, body []byte) error

type Consumer struct {
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, prefetch int, log *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		ch:    ch,
		queue: queue,
		log:   log,
	}, nil
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}

// Run consumes until ctx is cancelled or the channel closes. Deliveries
// in one batch are independent: one message's failure never blocks the
// rest.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.log.Info("consuming", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consume %s: delivery channel closed", c.queue)
			}
			c.dispatch(ctx, d, handle)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle HandlerFunc) {
	err := handle(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("ack failed", zap.String("queue", c.queue), zap.Error(ackErr))
		}
	case errors.Is(err, ErrUnretryable):
		c.log.Warn("dropping unretryable message",
			zap.String("queue", c.queue), zap.Error(err))
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("ack failed", zap.String("queue", c.queue), zap.Error(ackErr))
		}
	default:
		requeue := !d.Redelivered
		c.log.Error("message handling failed",
			zap.String("queue", c.queue),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			c.log.Error("nack failed", zap.String("queue", c.queue), zap.Error(nackErr))
		}
	}
}
