package repository

import (
	"context"
	"database/sql"

	"github.com/renthive/booking-engine/internal/model"
)

// ExpirationLogRepo appends rows to booking_expiration_logs: a forensic
// record written before each booking is marked expired, capturing the full
// booking snapshot and the policy hours in force at that moment. Like the
// status history, the table is append-only.
type ExpirationLogRepo struct {
	db *sql.DB
}

// NewExpirationLogRepo returns a new ExpirationLogRepo bound to the
// provided database.
func NewExpirationLogRepo(db *sql.DB) *ExpirationLogRepo {
	return &ExpirationLogRepo{db: db}
}

// Insert appends one expiration log row.
func (r *ExpirationLogRepo) Insert(ctx context.Context, e *model.ExpirationLogEntry) error {
	const q = `INSERT INTO booking_expiration_logs
               (booking_id, snapshot, policy_hours, created_at)
               VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, e.BookingID, e.Snapshot, e.PolicyHours, e.CreatedAt)
	return err
}
