package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentPending, PaymentProcessing, true},
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentCancelled, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentProcessing, PaymentCompleted, true},
		{PaymentProcessing, PaymentFailed, true},
		{PaymentProcessing, PaymentCancelled, false},
		{PaymentCompleted, PaymentRefunded, true},
		{PaymentCompleted, PaymentPartiallyRefunded, true},
		{PaymentCompleted, PaymentPending, false},
		{PaymentFailed, PaymentPending, true}, // retry edge
		{PaymentFailed, PaymentCompleted, false},
		{PaymentPartiallyRefunded, PaymentRefunded, true},
		{PaymentPartiallyRefunded, PaymentCompleted, false},
		{PaymentRefunded, PaymentPending, false},
		{PaymentRefunded, PaymentCompleted, false},
		{PaymentCancelled, PaymentPending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.allowed {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	if err := PaymentPending.ValidateTransition(PaymentCompleted); err != nil {
		t.Errorf("pending -> completed should be allowed, got %v", err)
	}

	err := PaymentRefunded.ValidateTransition(PaymentCompleted)
	if err == nil {
		t.Fatal("refunded -> completed should be rejected")
	}
	var inv *ErrInvalidTransition
	if !errors.As(err, &inv) {
		t.Fatalf("expected *ErrInvalidTransition, got %T", err)
	}
	if inv.From != "refunded" || inv.To != "completed" || inv.Entity != "payment" {
		t.Errorf("error endpoints wrong: %+v", inv)
	}
	if !strings.Contains(inv.Error(), "refunded -> completed") {
		t.Errorf("error message should name both endpoints: %q", inv.Error())
	}
}

func TestPaymentFinal(t *testing.T) {
	finals := map[PaymentStatus]bool{
		PaymentPending:           false,
		PaymentProcessing:        false,
		PaymentCompleted:         true,
		PaymentFailed:            true,
		PaymentRefunded:          true,
		PaymentPartiallyRefunded: true,
		PaymentCancelled:         true,
	}
	for s, want := range finals {
		if got := s.Final(); got != want {
			t.Errorf("%s.Final() = %v, want %v", s, got, want)
		}
	}
}

func TestTransactionTypePrimary(t *testing.T) {
	if !TransactionPayment.Primary() || !TransactionDeposit.Primary() {
		t.Error("payment and deposit carry the booking's main charge")
	}
	if TransactionRefund.Primary() || TransactionPartialRefund.Primary() {
		t.Error("refund rows must never speak for the booking's charge")
	}
}

func TestBookingPaymentStatusFor(t *testing.T) {
	cases := map[PaymentStatus]BookingPaymentStatus{
		PaymentPending:           BookingPaymentPending,
		PaymentProcessing:        BookingPaymentProcessing,
		PaymentCompleted:         BookingPaymentCompleted,
		PaymentFailed:            BookingPaymentFailed,
		PaymentRefunded:          BookingPaymentRefunded,
		PaymentPartiallyRefunded: BookingPaymentPartiallyRefunded,
		PaymentCancelled:         BookingPaymentFailed,
	}
	for from, want := range cases {
		got, ok := BookingPaymentStatusFor(from)
		if !ok || got != want {
			t.Errorf("BookingPaymentStatusFor(%s) = (%s, %v), want (%s, true)", from, got, ok, want)
		}
	}
	if _, ok := BookingPaymentStatusFor(PaymentStatus("bogus")); ok {
		t.Error("unknown transaction status must not map")
	}
}

func TestHistoryMetadataJSON(t *testing.T) {
	m := HistoryMetadata{
		Source:    SourceLifecycleSweep,
		Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Reason:    "Automatically started at rental start date",
		Extra:     map[string]string{"policy_hours": "24"},
	}
	var decoded HistoryMetadata
	if err := json.Unmarshal([]byte(m.JSON()), &decoded); err != nil {
		t.Fatalf("metadata should round-trip: %v", err)
	}
	if decoded.Source != SourceLifecycleSweep || decoded.Reason != m.Reason {
		t.Errorf("decoded metadata mismatch: %+v", decoded)
	}
	if decoded.Extra["policy_hours"] != "24" {
		t.Errorf("extra fields lost: %+v", decoded.Extra)
	}
}
