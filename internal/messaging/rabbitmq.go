package messaging

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeAppointments fans newly created appointments out to the
	// country workers; the routing key is the country ISO code.
	ExchangeAppointments = "appointments"

	// ExchangeOutcomes carries completion/failure events back to
	// reconciliation, routed by outcome status.
	ExchangeOutcomes = "appointment.events"

	QueueOutcomes = "appointment.outcomes"
)

// CountryQueue names the scheduling queue for one country.
func CountryQueue(countryISO string) string {
	return "appointments." + strings.ToLower(countryISO)
}

func Connect(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}

// DeclareTopology declares every exchange, queue, binding and DLQ the
// pipeline uses. All declarations are idempotent, so each binary calls
// this on startup.
func DeclareTopology(conn *amqp.Connection, countries []string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ExchangeAppointments, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeAppointments, err)
	}
	if err := ch.ExchangeDeclare(ExchangeOutcomes, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeOutcomes, err)
	}

	for _, country := range countries {
		queue := CountryQueue(country)
		if err := declareQueueWithDLQ(ch, queue); err != nil {
			return err
		}
		if err := ch.QueueBind(queue, country, ExchangeAppointments, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	if err := declareQueueWithDLQ(ch, QueueOutcomes); err != nil {
		return err
	}
	for _, key := range []string{"completed", "failed"} {
		if err := ch.QueueBind(QueueOutcomes, key, ExchangeOutcomes, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", QueueOutcomes, err)
		}
	}

	return nil
}

func declareQueueWithDLQ(ch *amqp.Channel, queue string) error {
	dlq := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dlq, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}
