// Package model defines the domain types of the booking lifecycle engine:
// bookings, payment transactions, status history entries and the
// expiration policy. Status enums are closed string types with explicit
// transition tables so that an unknown status can never silently pass
// through the lifecycle machinery.
package model

import (
	"fmt"
	"time"
)

// BookingStatus enumerates the lifecycle states of a booking. The graph is
// strictly forward: pending → confirmed → in_progress → completed, with
// cancelled and expired as alternate terminal branches off confirmed, and a
// post-hoc cancellation of completed bookings driven by refunds.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingExpired    BookingStatus = "expired"
)

// bookingTransitions is the closed set of allowed booking status edges.
// Terminal states map to an empty slice. There is no edge back to an
// earlier state.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingInProgress, BookingCancelled, BookingExpired},
	BookingInProgress: {BookingCompleted},
	BookingCompleted:  {BookingCancelled}, // refund-driven post-hoc cancellation
	BookingCancelled:  {},
	BookingExpired:    {},
}

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when a status change is not present in
// the transition table. It carries both endpoints so callers can log or
// surface the rejected edge.
type ErrInvalidTransition struct {
	Entity string
	From   string
	To     string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// OwnerConfirmationStatus mirrors the owner_confirmation_status column.
type OwnerConfirmationStatus string

const (
	OwnerConfirmationPending   OwnerConfirmationStatus = "pending"
	OwnerConfirmationConfirmed OwnerConfirmationStatus = "confirmed"
	OwnerConfirmationRejected  OwnerConfirmationStatus = "rejected"
)

// Booking mirrors the bookings table. Nullable timestamp columns are
// pointers; their presence is the idempotency guard against re-applying a
// transition that already fired.
type Booking struct {
	ID            uint64
	RenterID      uint64
	OwnerID       uint64
	ProductID     uint64
	Status        BookingStatus
	PaymentStatus BookingPaymentStatus

	StartDate time.Time
	EndDate   time.Time

	StartedAt   *time.Time
	CompletedAt *time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
	ExpiredAt   *time.Time
	ExpiresAt   *time.Time

	OwnerConfirmed           bool
	OwnerConfirmationStatus  OwnerConfirmationStatus
	OwnerConfirmedAt         *time.Time
	IsExpired                bool
	PickupMethod             string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// BookingPaymentStatus enumerates the payment_status column of a booking.
// It is derived from the linked payment transaction's status and never set
// directly by users.
type BookingPaymentStatus string

const (
	BookingPaymentPending           BookingPaymentStatus = "pending"
	BookingPaymentProcessing        BookingPaymentStatus = "processing"
	BookingPaymentCompleted         BookingPaymentStatus = "completed"
	BookingPaymentFailed            BookingPaymentStatus = "failed"
	BookingPaymentRefunded          BookingPaymentStatus = "refunded"
	BookingPaymentPartiallyRefunded BookingPaymentStatus = "partially_refunded"
)

// EligibleForAutoStart reports whether the booking satisfies every
// auto-start predicate at the given instant. The end-date check is a
// safety bound: a booking whose window already closed is never started.
func (b *Booking) EligibleForAutoStart(now time.Time) bool {
	return b.Status == BookingConfirmed &&
		b.PaymentStatus == BookingPaymentCompleted &&
		!b.StartDate.After(now) &&
		b.EndDate.After(now) &&
		b.StartedAt == nil
}

// EligibleForAutoComplete reports whether the booking's rental window has
// closed and completion has not yet been applied.
func (b *Booking) EligibleForAutoComplete(now time.Time) bool {
	return b.Status == BookingInProgress &&
		b.EndDate.Before(now) &&
		b.CompletedAt == nil
}

// OwnerConfirmationComplete reports whether all owner-confirmation fields
// are populated. The expiration clock only starts once this holds.
func (b *Booking) OwnerConfirmationComplete() bool {
	return b.OwnerConfirmed &&
		b.OwnerConfirmationStatus == OwnerConfirmationConfirmed &&
		b.OwnerConfirmedAt != nil
}

// ReminderWindow identifies which pre-return reminder a booking falls into.
type ReminderWindow string

const (
	Reminder24h ReminderWindow = "return_24h"
	Reminder2h  ReminderWindow = "return_2h"
)

// reminderTolerance is the half-width of each reminder window.
const reminderTolerance = time.Hour

// DueReminder returns the reminder window the booking's end date falls
// into at the given instant, if any. A booking is due the 24h reminder
// when end_date is within ±1h of now+24h, and the 2h reminder when within
// ±1h of now+2h.
func (b *Booking) DueReminder(now time.Time) (ReminderWindow, bool) {
	if b.Status != BookingInProgress {
		return "", false
	}
	for _, w := range []struct {
		window ReminderWindow
		lead   time.Duration
	}{
		{Reminder24h, 24 * time.Hour},
		{Reminder2h, 2 * time.Hour},
	} {
		target := now.Add(w.lead)
		diff := b.EndDate.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= reminderTolerance {
			return w.window, true
		}
	}
	return "", false
}
