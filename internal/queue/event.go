// Package queue contains the AMQP event payloads exchanged by the engine
// and the background consumers that process them.
package queue

import "github.com/renthive/booking-engine/internal/notify"

// Queue names. Both queues are declared durable by publishers and
// consumers alike, so declaration is idempotent on either side.
const (
	NotificationQueueName  = "notifications.dispatch"
	PaymentStatusQueueName = "payments.status_changed"
)

// NotificationEvent is the wire form of a notification handed to the
// delivery worker. It embeds the notification unchanged plus the
// publishing timestamp.
type NotificationEvent struct {
	notify.Notification
	PublishedAt string `json:"published_at"`
}

// PaymentStatusEvent announces that a payment transaction's status changed
// out-of-band (provider webhook, support tooling). The consumer feeds it
// to the PaymentReconciler, which validates the transition before applying
// anything.
type PaymentStatusEvent struct {
	TransactionID uint64 `json:"transaction_id"`
	Status        string `json:"status"`
}
