package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/renthive/booking-engine/internal/model"
)

// StatusApplier is the slice of the PaymentReconciler the consumer needs:
// validate and apply one payment-status transition.
type StatusApplier interface {
	ApplyStatus(ctx context.Context, transactionID uint64, next model.PaymentStatus) (*model.PaymentTransaction, error)
}

// StartPaymentConsumer consumes payments.status_changed events and feeds
// them to the reconciler. An invalid transition is acked and dropped (the
// event is wrong, redelivery cannot fix it); a persistence error is nacked
// with requeue so the event is retried. Like the notification worker it
// reconnects forever with backoff.
func StartPaymentConsumer(url string, applier StatusApplier) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("payment-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumePaymentEvents(conn, applier); err != nil {
			log.Printf("payment-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumePaymentEvents(conn *amqp.Connection, applier StatusApplier) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err = ch.QueueDeclare(PaymentStatusQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(PaymentStatusQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		var ev PaymentStatusEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			log.Printf("payment-consumer: unmarshal failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		next := model.PaymentStatus(ev.Status)
		if ev.TransactionID == 0 || !next.Valid() {
			log.Printf("payment-consumer: invalid event payload: tx=%d status=%q", ev.TransactionID, ev.Status)
			_ = d.Ack(false)
			continue
		}
		if _, err := applier.ApplyStatus(context.Background(), ev.TransactionID, next); err != nil {
			var invalid *model.ErrInvalidTransition
			if errors.As(err, &invalid) {
				log.Printf("payment-consumer: dropping event: %v", err)
				_ = d.Ack(false)
				continue
			}
			log.Printf("payment-consumer: apply failed, requeueing: %v", err)
			_ = d.Nack(false, true)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}
