package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/renthive/booking-engine/internal/model"
)

// PaymentRepo provides data access to the payment_transactions table.
// Status legality is the PaymentReconciler's responsibility; this layer
// only guarantees that an update is applied against the status the caller
// validated, via an optimistic WHERE on the current status.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, status, transaction_type, amount_cents, reference, processed_at, created_at, updated_at`

func scanPayment(scan func(dest ...any) error) (*model.PaymentTransaction, error) {
	var p model.PaymentTransaction
	var bookingID sql.NullInt64
	var status, txType string
	var processedAt sql.NullTime
	if err := scan(
		&p.ID, &bookingID, &status, &txType, &p.AmountCents, &p.Reference,
		&processedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.Type = model.TransactionType(txType)
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		p.BookingID = &id
	}
	if processedAt.Valid {
		t := processedAt.Time
		p.ProcessedAt = &t
	}
	return &p, nil
}

// GetByID loads a single transaction. sql.ErrNoRows is returned when it
// does not exist.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.PaymentTransaction, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE id = ?`
	return scanPayment(r.db.QueryRowContext(ctx, q, id).Scan)
}

// Create inserts a new transaction in the pending state and populates the
// generated ID on the provided record.
func (r *PaymentRepo) Create(ctx context.Context, p *model.PaymentTransaction) error {
	const q = `INSERT INTO payment_transactions
               (booking_id, status, transaction_type, amount_cents, reference, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	var bookingID any
	if p.BookingID != nil {
		bookingID = *p.BookingID
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, q,
		bookingID, string(p.Status), string(p.Type), p.AmountCents, p.Reference, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateStatus moves a transaction from the expected current status to the
// new one. processed_at is stamped only when the new status is final. The
// WHERE clause pins the expected status, so a concurrent update surfaces
// as ErrGuardViolated instead of silently overwriting.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.PaymentStatus, now time.Time) error {
	var res sql.Result
	var err error
	if to.Final() {
		const q = `UPDATE payment_transactions
                   SET status = ?, processed_at = ?, updated_at = ?
                   WHERE id = ? AND status = ?`
		res, err = r.db.ExecContext(ctx, q, string(to), now, now, id, string(from))
	} else {
		const q = `UPDATE payment_transactions
                   SET status = ?, updated_at = ?
                   WHERE id = ? AND status = ?`
		res, err = r.db.ExecContext(ctx, q, string(to), now, id, string(from))
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGuardViolated
	}
	return nil
}
