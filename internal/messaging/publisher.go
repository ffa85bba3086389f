package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/medbook/appointment-pipeline/internal/appointment"
)

// Publisher publishes persistent messages and waits for the broker's
// confirm before returning, so a nil error means the channel owns the
// message.
type Publisher struct {
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
	mu       sync.Mutex
	log      *zap.Logger
}

func NewPublisher(conn *amqp.Connection, log *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &Publisher{
		ch:       ch,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		log:      log,
	}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}

	if err := p.ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
	}

	select {
	case confirmed := <-p.confirms:
		if !confirmed.Ack {
			return fmt.Errorf("publish to %s/%s not confirmed", exchange, key)
		}
	case <-ctx.Done():
		return fmt.Errorf("publish to %s/%s: %w", exchange, key, ctx.Err())
	}
	return nil
}

// PublishScheduleRequested routes a new appointment to its country queue.
func (p *Publisher) PublishScheduleRequested(ctx context.Context, ev appointment.ScheduleRequested) error {
	p.log.Debug("publishing schedule requested",
		zap.String("appointmentId", ev.AppointmentID),
		zap.String("countryISO", string(ev.CountryISO)))
	return p.publish(ctx, ExchangeAppointments, string(ev.CountryISO), ev)
}

// PublishOutcome emits a completion or failure event for reconciliation.
func (p *Publisher) PublishOutcome(ctx context.Context, out appointment.ProcessingOutcome) error {
	p.log.Debug("publishing processing outcome",
		zap.String("appointmentId", out.AppointmentID),
		zap.String("status", out.Status))
	return p.publish(ctx, ExchangeOutcomes, out.Status, out)
}
