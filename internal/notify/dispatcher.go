// Package notify defines the contract between the lifecycle engine and the
// notification delivery system. Delivery itself is an external
// collaborator: the engine fires notifications after its transactions have
// committed, catches every dispatch error locally and never lets one
// invalidate a committed state transition.
package notify

import "context"

// Channel identifies a delivery channel configured for a recipient.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// DefaultChannels is the channel set attempted when a notification does
// not name its own.
var DefaultChannels = []Channel{ChannelInApp}

// Notification is a single message addressed to one recipient. Data
// carries structured context (booking id, reminder type) for the delivery
// worker and downstream consumers.
type Notification struct {
	Type        string            `json:"type"`
	RecipientID uint64            `json:"recipient_id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Data        map[string]string `json:"data,omitempty"`
	Priority    string            `json:"priority"`
	Channels    []Channel         `json:"channels,omitempty"`
}

// Dispatcher delivers notifications. Implementations log their own
// failures; callers treat Send as fire-and-forget and only log the
// returned error.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}
