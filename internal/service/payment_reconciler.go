package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/renthive/booking-engine/internal/model"
	"github.com/renthive/booking-engine/internal/notify"
	"github.com/renthive/booking-engine/internal/repository"
)

// PaymentReconciler validates payment-status transitions against the
// transition table and, when a booking-linked transaction reaches a
// terminal outcome, re-derives the booking's state: a completed primary
// charge auto-confirms a pending booking, a refunded primary charge
// auto-cancels one. The booking synchronization is best-effort relative to
// the transaction's own persistence: the transaction update commits first
// and a sync failure is logged, never raised.
type PaymentReconciler struct {
	payments   *repository.PaymentRepo
	bookings   *repository.BookingRepo
	history    *repository.HistoryRepo
	dispatcher notify.Dispatcher
	provider   PaymentProvider
	actor      *SystemActor
}

// NewPaymentReconciler constructs a reconciler with an injected provider
// so tests can drive deterministic charge and refund outcomes.
func NewPaymentReconciler(
	payments *repository.PaymentRepo,
	bookings *repository.BookingRepo,
	history *repository.HistoryRepo,
	dispatcher notify.Dispatcher,
	provider PaymentProvider,
	actor *SystemActor,
) *PaymentReconciler {
	return &PaymentReconciler{
		payments:   payments,
		bookings:   bookings,
		history:    history,
		dispatcher: dispatcher,
		provider:   provider,
		actor:      actor,
	}
}

// ApplyStatus moves a transaction to next after validating the edge
// against the transition table. Anything not listed is rejected with
// *model.ErrInvalidTransition. On success the booking synchronization
// runs; its errors are logged only.
func (r *PaymentReconciler) ApplyStatus(ctx context.Context, transactionID uint64, next model.PaymentStatus) (*model.PaymentTransaction, error) {
	p, err := r.payments.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := p.Status.ValidateTransition(next); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := r.payments.UpdateStatus(ctx, p.ID, p.Status, next, now); err != nil {
		return nil, err
	}
	p.Status = next
	if next.Final() {
		p.ProcessedAt = &now
	}
	r.syncBooking(ctx, p, now)
	return p, nil
}

// ProcessPayment creates a transaction in pending, invokes the provider
// charge and applies the resulting status through the validated path. A
// provider transport error resolves the transaction as failed; the
// returned transaction's status conveys the outcome either way.
func (r *PaymentReconciler) ProcessPayment(ctx context.Context, bookingID *uint64, txType model.TransactionType, amountCents int64, reference string) (*model.PaymentTransaction, error) {
	p := &model.PaymentTransaction{
		BookingID:   bookingID,
		Status:      model.PaymentPending,
		Type:        txType,
		AmountCents: amountCents,
		Reference:   reference,
	}
	if err := r.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	status, err := r.provider.Charge(ctx, amountCents, reference)
	if err != nil {
		log.Printf("reconciler: provider charge failed for transaction %d: %v", p.ID, err)
		status = model.PaymentFailed
	}
	return r.ApplyStatus(ctx, p.ID, status)
}

// ProcessRefund refunds all or part of a completed transaction. It creates
// a linked refund (or partial_refund) transaction, invokes the provider,
// and on success moves the ORIGINAL transaction to refunded or
// partially_refunded — which is what drives the booking's auto-cancel for
// primary charges. Only completed transactions are refundable and the
// amount must not exceed the original's.
func (r *PaymentReconciler) ProcessRefund(ctx context.Context, originalID uint64, amountCents int64) (*model.PaymentTransaction, error) {
	orig, err := r.payments.GetByID(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if orig.Status != model.PaymentCompleted {
		return nil, repository.ErrNotRefundable
	}
	if amountCents <= 0 || amountCents > orig.AmountCents {
		return nil, repository.ErrRefundExceedsAmount
	}

	refundType := model.TransactionPartialRefund
	originalNext := model.PaymentPartiallyRefunded
	if amountCents == orig.AmountCents {
		refundType = model.TransactionRefund
		originalNext = model.PaymentRefunded
	}
	refund := &model.PaymentTransaction{
		BookingID:   orig.BookingID,
		Status:      model.PaymentPending,
		Type:        refundType,
		AmountCents: amountCents,
		Reference:   fmt.Sprintf("refund_of:%d", orig.ID),
	}
	if err := r.payments.Create(ctx, refund); err != nil {
		return nil, err
	}

	status, err := r.provider.Refund(ctx, amountCents, orig.Reference)
	if err != nil {
		log.Printf("reconciler: provider refund failed for transaction %d: %v", refund.ID, err)
		status = model.PaymentFailed
	}
	refund, err = r.ApplyStatus(ctx, refund.ID, status)
	if err != nil {
		return nil, err
	}
	if refund.Status != model.PaymentCompleted {
		return refund, nil
	}

	// The refund settled: mark the original as (partially) refunded, which
	// triggers the booking synchronization for primary charges.
	if _, err := r.ApplyStatus(ctx, orig.ID, originalNext); err != nil {
		return refund, err
	}
	return refund, nil
}

// syncBooking re-derives the booking's payment_status — and, where the
// transition table says so, its lifecycle status — from the transaction
// that just changed. Only primary transactions (payment, deposit) speak
// for the booking's charge; refund rows never touch the booking, so a
// refunded partial_refund transaction cannot cancel anything.
func (r *PaymentReconciler) syncBooking(ctx context.Context, p *model.PaymentTransaction, now time.Time) {
	if p.BookingID == nil || !p.Type.Primary() {
		return
	}
	b, err := r.bookings.GetByID(ctx, *p.BookingID)
	if err != nil {
		log.Printf("reconciler: booking %d load failed during sync of transaction %d: %v", *p.BookingID, p.ID, err)
		return
	}

	switch {
	case p.Status == model.PaymentCompleted && b.Status == model.BookingPending:
		if err := r.autoConfirm(ctx, b, p, now); err != nil {
			log.Printf("reconciler: auto-confirm failed for booking %d: %v", b.ID, err)
		}
	case p.Status == model.PaymentRefunded && b.Status != model.BookingCancelled:
		if err := r.autoCancel(ctx, b, p, now); err != nil {
			log.Printf("reconciler: auto-cancel failed for booking %d: %v", b.ID, err)
		}
	default:
		payStatus, ok := model.BookingPaymentStatusFor(p.Status)
		if !ok {
			log.Printf("reconciler: no booking payment status mapping for %q", p.Status)
			return
		}
		if err := r.bookings.UpdatePaymentStatus(ctx, b.ID, payStatus, now); err != nil {
			log.Printf("reconciler: payment status sync failed for booking %d: %v", b.ID, err)
		}
	}
}

// autoConfirm applies pending → confirmed with its audit row in one
// transaction. Availability was validated by the booking-creation flow;
// it is not re-checked here.
func (r *PaymentReconciler) autoConfirm(ctx context.Context, b *model.Booking, p *model.PaymentTransaction, now time.Time) error {
	actorID, err := r.actor.ID(ctx)
	if err != nil {
		return err
	}
	reason := "Automatically confirmed after successful payment"
	tx, err := r.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.bookings.ConfirmTx(ctx, tx, b.ID, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := r.history.InsertTx(ctx, tx, &model.StatusHistoryEntry{
		BookingID:      b.ID,
		PreviousStatus: b.Status,
		NewStatus:      model.BookingConfirmed,
		ChangedBy:      actorID,
		Reason:         reason,
		Metadata: model.HistoryMetadata{
			Source:    model.SourceReconciler,
			Timestamp: now,
			Reason:    reason,
			Extra:     map[string]string{"transaction_id": strconv.FormatUint(p.ID, 10)},
		}.JSON(),
		ChangedAt: now,
	}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.notifyBooking(ctx, b, "booking_confirmed", "Your booking is confirmed",
		"Payment received. Your booking is confirmed.")
	return nil
}

// autoCancel applies the refund-driven cancellation with its audit row in
// one transaction.
func (r *PaymentReconciler) autoCancel(ctx context.Context, b *model.Booking, p *model.PaymentTransaction, now time.Time) error {
	actorID, err := r.actor.ID(ctx)
	if err != nil {
		return err
	}
	reason := "Automatically cancelled after refund of the payment"
	tx, err := r.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.bookings.CancelTx(ctx, tx, b.ID, model.BookingPaymentRefunded, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := r.history.InsertTx(ctx, tx, &model.StatusHistoryEntry{
		BookingID:      b.ID,
		PreviousStatus: b.Status,
		NewStatus:      model.BookingCancelled,
		ChangedBy:      actorID,
		Reason:         reason,
		Metadata: model.HistoryMetadata{
			Source:    model.SourceReconciler,
			Timestamp: now,
			Reason:    reason,
			Extra:     map[string]string{"transaction_id": strconv.FormatUint(p.ID, 10)},
		}.JSON(),
		ChangedAt: now,
	}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.notifyBooking(ctx, b, "booking_cancelled", "Your booking was cancelled",
		"The payment was refunded and the booking has been cancelled.")
	return nil
}

func (r *PaymentReconciler) notifyBooking(ctx context.Context, b *model.Booking, notifType, title, message string) {
	n := notify.Notification{
		Type:        notifType,
		RecipientID: b.RenterID,
		Title:       title,
		Message:     message,
		Data:        map[string]string{"booking_id": strconv.FormatUint(b.ID, 10)},
		Priority:    "high",
	}
	if err := r.dispatcher.Send(ctx, n); err != nil {
		log.Printf("reconciler: %s notification failed for booking %d: %v", notifType, b.ID, err)
	}
}
