// Package queue_publisher publishes domain events to RabbitMQ.  Errors are
// logged and returned so callers can ignore them without interrupting the
// command that produced the event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/spinsa/inventario/internal/queue"
)

// Publisher sends movement events to the durable movements queue.  Each
// publish dials its own connection; mutations are infrequent in this
// application.
type Publisher struct {
	url    string
	logger *slog.Logger
}

// New returns a publisher for the broker at url.
func New(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{url: url, logger: logger.With(slog.String("component", "rabbitmq"))}
}

// PublishMovement publishes ev as a persistent JSON message.
func (p *Publisher) PublishMovement(ctx context.Context, ev q.MovementEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("dial failed", slog.Any("error", err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("channel open failed", slog.Any("error", err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		q.MovementsQueue, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		p.logger.Warn("queue declare failed", slog.Any("error", err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.MovementsQueue, false, false, pub); err != nil {
		p.logger.Warn("publish failed", slog.Any("error", err))
		return err
	}
	return nil
}
