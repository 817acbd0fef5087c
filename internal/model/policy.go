package model

import "time"

// ExpirationPolicy is the process-wide configuration governing the
// confirmed → expired transition. It is stored in system_settings, read at
// the start of every expiration sweep and mutated only through the
// administrative update path.
type ExpirationPolicy struct {
	Hours   int
	Enabled bool
	LastRun *time.Time
}

// Window returns the policy's clock length as a duration.
func (p ExpirationPolicy) Window() time.Duration {
	return time.Duration(p.Hours) * time.Hour
}

// ExpirationLogEntry mirrors booking_expiration_logs: a forensic snapshot
// of the booking captured immediately before it is marked expired,
// together with the policy hours in force at that moment.
type ExpirationLogEntry struct {
	ID          uint64
	BookingID   uint64
	Snapshot    string
	PolicyHours int
	CreatedAt   time.Time
}
