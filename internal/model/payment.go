package model

import "time"

// PaymentStatus enumerates the states of a payment transaction. The
// transition table below is the source of truth for what a transaction may
// do next; anything not listed is rejected.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentCancelled         PaymentStatus = "cancelled"
)

// paymentTransitions lists the allowed edges per current status. Terminal
// statuses (refunded, cancelled) map to empty slices. failed → pending is
// the retry edge.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentProcessing, PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentProcessing:        {PaymentCompleted, PaymentFailed},
	PaymentCompleted:         {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentFailed:            {PaymentPending},
	PaymentRefunded:          {},
	PaymentPartiallyRefunded: {PaymentRefunded},
	PaymentCancelled:         {},
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// CanTransition reports whether a transaction may move from s to next.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error when the edge s → next is not
// in the transition table, nil otherwise.
func (s PaymentStatus) ValidateTransition(next PaymentStatus) error {
	if !s.CanTransition(next) {
		return &ErrInvalidTransition{Entity: "payment", From: string(s), To: string(next)}
	}
	return nil
}

// Final reports whether the status closes out provider processing; only
// final statuses stamp processed_at on the transaction.
func (s PaymentStatus) Final() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded, PaymentCancelled:
		return true
	}
	return false
}

// TransactionType enumerates what a payment transaction represents.
type TransactionType string

const (
	TransactionPayment       TransactionType = "payment"
	TransactionDeposit       TransactionType = "deposit"
	TransactionRefund        TransactionType = "refund"
	TransactionPartialRefund TransactionType = "partial_refund"
)

// Primary reports whether the transaction type carries the booking's main
// charge. Only a refund of a primary transaction cancels the booking; a
// refunded partial_refund row never does.
func (t TransactionType) Primary() bool {
	return t == TransactionPayment || t == TransactionDeposit
}

// PaymentTransaction mirrors the payment_transactions table. BookingID is
// nullable: standalone transactions (e.g. verification charges) carry no
// booking link and never trigger booking synchronization.
type PaymentTransaction struct {
	ID          uint64
	BookingID   *uint64
	Status      PaymentStatus
	Type        TransactionType
	AmountCents int64
	Reference   string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// bookingPaymentStatusByTransaction maps a transaction status onto the
// booking payment_status column. Transaction cancelled maps to booking
// failed: from the booking's perspective an abandoned charge is a failed
// payment.
var bookingPaymentStatusByTransaction = map[PaymentStatus]BookingPaymentStatus{
	PaymentPending:           BookingPaymentPending,
	PaymentProcessing:        BookingPaymentProcessing,
	PaymentCompleted:         BookingPaymentCompleted,
	PaymentFailed:            BookingPaymentFailed,
	PaymentRefunded:          BookingPaymentRefunded,
	PaymentPartiallyRefunded: BookingPaymentPartiallyRefunded,
	PaymentCancelled:         BookingPaymentFailed,
}

// BookingPaymentStatusFor translates a transaction status into the
// booking's payment_status value.
func BookingPaymentStatusFor(s PaymentStatus) (BookingPaymentStatus, bool) {
	v, ok := bookingPaymentStatusByTransaction[s]
	return v, ok
}
