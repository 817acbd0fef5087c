// Package service implements the booking lifecycle engine: the batch
// transition runner, the expiration engine, the payment reconciler and the
// supporting collaborators they are wired with.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/renthive/booking-engine/internal/notify"
	"github.com/renthive/booking-engine/internal/queue"
)

// AMQPDispatcher publishes notifications to the notifications.dispatch
// queue, where the delivery worker picks them up. It implements
// notify.Dispatcher. Errors are logged and returned so callers can ignore
// failures without interrupting the transition that triggered them;
// messages are marked persistent so they survive broker restarts.
type AMQPDispatcher struct {
	url string
}

// NewAMQPDispatcher returns a dispatcher publishing to the broker at url.
func NewAMQPDispatcher(url string) *AMQPDispatcher {
	return &AMQPDispatcher{url: url}
}

// Send publishes one notification event. A fresh connection per publish
// keeps the dispatcher free of shared channel state; notification volume
// is bounded by sweep batch sizes.
func (d *AMQPDispatcher) Send(ctx context.Context, n notify.Notification) error {
	conn, err := amqp.Dial(d.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.NotificationQueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	ev := queue.NotificationEvent{
		Notification: n,
		PublishedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                          // default exchange
		queue.NotificationQueueName, // routing key = queue name
		false,                       // mandatory
		false,                       // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
