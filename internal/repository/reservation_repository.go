package repository

import (
	"context"
	"database/sql"
)

// ReservationRepo provides access to product_reservations, the rows that
// hold a product against a booking's dates. The only operation this core
// performs on them is release: when a booking expires its reservations are
// deleted so the product becomes bookable again.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the provided
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReleaseByBooking removes all reservation rows tied to a booking and
// returns the IDs that were released. Callers treat failures here as
// best-effort: an error is logged by the expiration engine and does not
// abort the expiration itself.
func (r *ReservationRepo) ReleaseByBooking(ctx context.Context, bookingID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM product_reservations WHERE booking_id = ?`, bookingID)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []uint64{}, nil
	}
	if _, err = r.db.ExecContext(ctx,
		`DELETE FROM product_reservations WHERE booking_id = ?`, bookingID); err != nil {
		return nil, err
	}
	return ids, nil
}
