package model

import (
	"encoding/json"
	"time"
)

// TransitionSource identifies which part of the engine produced an
// automated status change. It is recorded in every audit row's metadata.
type TransitionSource string

const (
	SourceLifecycleSweep  TransitionSource = "lifecycle_sweep"
	SourceExpirationSweep TransitionSource = "expiration_sweep"
	SourceReconciler      TransitionSource = "payment_reconciler"
)

// HistoryMetadata is the minimal required schema of the audit metadata
// blob. Source, timestamp and reason are always present; Extra carries
// free-form per-transition context (e.g. the policy hours at expiry).
type HistoryMetadata struct {
	Source    TransitionSource  `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Reason    string            `json:"reason"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// JSON serializes the metadata for storage. Marshalling a plain struct of
// strings and a string map cannot fail, so errors are swallowed into an
// empty object rather than propagated into the audit write path.
func (m HistoryMetadata) JSON() string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// StatusHistoryEntry mirrors the booking_status_history table. Rows are
// written exactly once, inside the same transaction as the booking update
// they document, and are never updated or deleted.
type StatusHistoryEntry struct {
	ID             uint64
	BookingID      uint64
	PreviousStatus BookingStatus
	NewStatus      BookingStatus
	ChangedBy      uint64
	Reason         string
	Metadata       string
	ChangedAt      time.Time
}
