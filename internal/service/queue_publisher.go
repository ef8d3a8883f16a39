// Package service holds outbound integrations that sit behind the HTTP
// handlers, currently the RabbitMQ publisher for confirmed registrations.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/communitypulse/server/internal/queue"
)

// RegistrationPublisher publishes RegistrationConfirmed events to the
// registration.confirmed queue. Publishing is fire-and-forget: every
// failure is logged and swallowed so a broker outage never fails a
// registration that already committed.
type RegistrationPublisher struct {
	URL string
}

func NewRegistrationPublisher() *RegistrationPublisher {
	return &RegistrationPublisher{URL: queue.BrokerURL()}
}

// PublishConfirmed hands the event to a background goroutine and returns
// immediately.
func (p *RegistrationPublisher) PublishConfirmed(evt queue.RegistrationConfirmed) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.publish(ctx, evt); err != nil {
			log.Printf("rabbitmq: publish registration_id=%d failed: %v", evt.RegistrationID, err)
		}
	}()
}

func (p *RegistrationPublisher) publish(ctx context.Context, evt queue.RegistrationConfirmed) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.RegistrationQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",                          // default exchange
		queue.RegistrationQueueName, // routing key = queue name
		false,                       // mandatory
		false,                       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}
