package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/renthive/booking-engine/internal/model"
)

// BookingRepo provides data access to the bookings table. All timestamps
// are stored and compared in UTC. Mutating methods re-check the relevant
// guard column in their WHERE clause so that a transition is applied at
// most once even if two sweeps overlap; the guard predicate is evaluated
// atomically by the UPDATE statement itself.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle for starting transactions that span
// bookings and their audit rows.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// bookingColumns is the canonical SELECT column list for booking rows.
// scanBooking must be kept in sync with it.
const bookingColumns = `id, renter_id, owner_id, product_id, status, payment_status,
       start_date, end_date,
       started_at, completed_at, confirmed_at, cancelled_at, expired_at, expires_at,
       owner_confirmed, owner_confirmation_status, owner_confirmed_at,
       is_expired, pickup_method, created_at, updated_at`

func scanBooking(scan func(dest ...any) error) (*model.Booking, error) {
	var b model.Booking
	var status, payStatus, ownerConfStatus string
	var startedAt, completedAt, confirmedAt, cancelledAt, expiredAt, expiresAt, ownerConfirmedAt sql.NullTime
	if err := scan(
		&b.ID, &b.RenterID, &b.OwnerID, &b.ProductID, &status, &payStatus,
		&b.StartDate, &b.EndDate,
		&startedAt, &completedAt, &confirmedAt, &cancelledAt, &expiredAt, &expiresAt,
		&b.OwnerConfirmed, &ownerConfStatus, &ownerConfirmedAt,
		&b.IsExpired, &b.PickupMethod, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.BookingPaymentStatus(payStatus)
	b.OwnerConfirmationStatus = model.OwnerConfirmationStatus(ownerConfStatus)
	if startedAt.Valid {
		t := startedAt.Time
		b.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		b.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	if expiredAt.Valid {
		t := expiredAt.Time
		b.ExpiredAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		b.ExpiresAt = &t
	}
	if ownerConfirmedAt.Valid {
		t := ownerConfirmedAt.Time
		b.OwnerConfirmedAt = &t
	}
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]*model.Booking, error) {
	defer rows.Close()
	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID loads a single booking. sql.ErrNoRows is returned when the
// booking does not exist.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBookingRow(r.db.QueryRowContext(ctx, q, id))
}

func scanBookingRow(row *sql.Row) (*model.Booking, error) {
	return scanBooking(row.Scan)
}

// FindAutoStartCandidates returns confirmed, fully paid bookings whose
// rental window contains the given instant and that have not yet been
// started. Bookings whose window has already closed are excluded entirely
// so a stale confirmed booking can never be started after the fact.
func (r *BookingRepo) FindAutoStartCandidates(ctx context.Context, now time.Time) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE status = 'confirmed'
                 AND payment_status = 'completed'
                 AND start_date <= ?
                 AND end_date > ?
                 AND started_at IS NULL
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, now, now)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// FindAutoCompleteCandidates returns in-progress bookings whose end date
// has passed and that have not yet been completed.
func (r *BookingRepo) FindAutoCompleteCandidates(ctx context.Context, now time.Time) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE status = 'in_progress'
                 AND end_date < ?
                 AND completed_at IS NULL
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// FindReminderCandidates returns in-progress bookings whose end date falls
// inside either reminder window: within ±1h of now+24h or of now+2h. The
// window bounds are computed by the caller's clock and passed in so the
// same instant drives both windows.
func (r *BookingRepo) FindReminderCandidates(ctx context.Context, now time.Time) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE status = 'in_progress'
                 AND ((end_date BETWEEN ? AND ?) OR (end_date BETWEEN ? AND ?))
               ORDER BY id`
	day := now.Add(24 * time.Hour)
	soon := now.Add(2 * time.Hour)
	rows, err := r.db.QueryContext(ctx, q,
		day.Add(-time.Hour), day.Add(time.Hour),
		soon.Add(-time.Hour), soon.Add(time.Hour),
	)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// placeholders builds a "?,?,?" list for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// MarkStartedTx bulk-transitions the given bookings to in_progress within
// the provided transaction. The guard predicate is repeated in the WHERE
// clause so rows started by a concurrent run are silently skipped. It
// returns the number of rows actually updated.
func (r *BookingRepo) MarkStartedTx(ctx context.Context, tx *sql.Tx, ids []uint64, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := `UPDATE bookings
          SET status = 'in_progress', started_at = ?, updated_at = ?
          WHERE id IN (` + placeholders(len(ids)) + `)
            AND status = 'confirmed'
            AND started_at IS NULL`
	args := make([]any, 0, len(ids)+2)
	args = append(args, now, now)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkCompletedTx bulk-transitions the given bookings to completed within
// the provided transaction, guarded by completed_at IS NULL.
func (r *BookingRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, ids []uint64, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := `UPDATE bookings
          SET status = 'completed', completed_at = ?, updated_at = ?
          WHERE id IN (` + placeholders(len(ids)) + `)
            AND status = 'in_progress'
            AND completed_at IS NULL`
	args := make([]any, 0, len(ids)+2)
	args = append(args, now, now)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ConfirmTx transitions a pending booking to confirmed inside the given
// transaction, stamping confirmed_at and marking the payment completed.
// ErrGuardViolated is returned when the booking was no longer pending.
func (r *BookingRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	const q = `UPDATE bookings
               SET status = 'confirmed', confirmed_at = ?, payment_status = 'completed', updated_at = ?
               WHERE id = ? AND status = 'pending' AND confirmed_at IS NULL`
	res, err := tx.ExecContext(ctx, q, now, now, id)
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

// CancelTx transitions a booking to cancelled inside the given
// transaction. The booking's payment_status is set to the supplied value
// (refund-driven cancellations record 'refunded'). Already-cancelled
// bookings yield ErrGuardViolated.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, payStatus model.BookingPaymentStatus, now time.Time) error {
	const q = `UPDATE bookings
               SET status = 'cancelled', cancelled_at = ?, payment_status = ?, updated_at = ?
               WHERE id = ? AND status <> 'cancelled' AND cancelled_at IS NULL`
	res, err := tx.ExecContext(ctx, q, now, string(payStatus), now, id)
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

// UpdatePaymentStatus sets only the payment_status column. Used for the
// synchronization cases that do not change the booking's lifecycle state.
func (r *BookingRepo) UpdatePaymentStatus(ctx context.Context, id uint64, status model.BookingPaymentStatus, now time.Time) error {
	const q = `UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, string(status), now, id)
	return err
}

// SetExpiresAt stamps the expiration clock exactly once. The WHERE clause
// requires every owner-confirmation field to be populated and expires_at
// to still be NULL, making repeated calls no-ops. It returns the number of
// rows updated (0 or 1).
func (r *BookingRepo) SetExpiresAt(ctx context.Context, id uint64, expiresAt time.Time, now time.Time) (int64, error) {
	const q = `UPDATE bookings
               SET expires_at = ?, updated_at = ?
               WHERE id = ?
                 AND owner_confirmed = TRUE
                 AND owner_confirmation_status = 'confirmed'
                 AND owner_confirmed_at IS NOT NULL
                 AND expires_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, expiresAt, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindExpirationCandidates returns bookings that were confirmed by their
// owner, never paid, and whose expiration clock has elapsed.
func (r *BookingRepo) FindExpirationCandidates(ctx context.Context, now time.Time) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE expires_at IS NOT NULL
                 AND expires_at <= ?
                 AND is_expired = FALSE
                 AND owner_confirmed = TRUE
                 AND owner_confirmation_status = 'confirmed'
                 AND owner_confirmed_at IS NOT NULL
                 AND payment_status IN ('pending','failed')
               ORDER BY expires_at`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// MarkExpiredTx soft-marks a booking expired inside the given transaction.
// The is_expired flag is the guard; a row already marked by a concurrent
// run yields ErrGuardViolated. Soft-marking (rather than deleting the row)
// preserves the audit chain.
func (r *BookingRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	const q = `UPDATE bookings
               SET is_expired = TRUE, expired_at = ?, status = 'expired', updated_at = ?
               WHERE id = ? AND is_expired = FALSE`
	res, err := tx.ExecContext(ctx, q, now, now, id)
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
