package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/renthive/booking-engine/internal/model"
)

func TestPaymentCreatePopulatesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPaymentRepo(db)

	mock.ExpectExec(`INSERT INTO payment_transactions`).
		WillReturnResult(sqlmock.NewResult(42, 1))

	bookingID := uint64(7)
	p := &model.PaymentTransaction{
		BookingID:   &bookingID,
		Status:      model.PaymentPending,
		Type:        model.TransactionPayment,
		AmountCents: 12500,
		Reference:   "ref-abc",
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if p.ID != 42 {
		t.Errorf("expected generated id 42, got %d", p.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateStatusStampsProcessedAtOnFinal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPaymentRepo(db)

	now := time.Now().UTC()
	// Final status: processed_at is part of the SET list.
	mock.ExpectExec(`UPDATE payment_transactions\s+SET status = \?, processed_at = \?`).
		WithArgs("completed", now, now, uint64(1), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdateStatus(context.Background(), 1, model.PaymentPending, model.PaymentCompleted, now); err != nil {
		t.Fatal(err)
	}

	// Non-final status: only status and updated_at change.
	mock.ExpectExec(`UPDATE payment_transactions\s+SET status = \?, updated_at = \?`).
		WithArgs("processing", now, uint64(2), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpdateStatus(context.Background(), 2, model.PaymentPending, model.PaymentProcessing, now); err != nil {
		t.Fatal(err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateStatusGuard(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPaymentRepo(db)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE payment_transactions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(context.Background(), 1, model.PaymentPending, model.PaymentCompleted, now)
	if !errors.Is(err, ErrGuardViolated) {
		t.Errorf("expected ErrGuardViolated when the row moved concurrently, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPaymentGetByIDScansNullables(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPaymentRepo(db)

	now := time.Now().UTC()
	cols := []string{"id", "booking_id", "status", "transaction_type", "amount_cents", "reference", "processed_at", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .+ FROM payment_transactions WHERE id = \?`).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, nil, "pending", "payment", 5000, "ref", nil, now, now))

	p, err := repo.GetByID(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.BookingID != nil {
		t.Error("NULL booking_id should scan to nil")
	}
	if p.ProcessedAt != nil {
		t.Error("NULL processed_at should scan to nil")
	}
	if p.Status != model.PaymentPending || p.Type != model.TransactionPayment {
		t.Errorf("enum columns scanned wrong: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
