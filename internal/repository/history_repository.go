package repository

import (
	"context"
	"database/sql"

	"github.com/renthive/booking-engine/internal/model"
)

// HistoryRepo appends rows to booking_status_history. The table is
// append-only: no update or delete method exists, and none should be
// added. Every insert happens inside the same transaction as the booking
// mutation it documents, so callers always go through the ...Tx methods.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a new HistoryRepo bound to the provided database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// InsertTx appends a single audit row within the provided transaction.
func (r *HistoryRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.StatusHistoryEntry) error {
	const q = `INSERT INTO booking_status_history
               (booking_id, previous_status, new_status, changed_by, reason, metadata, changed_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		e.BookingID, string(e.PreviousStatus), string(e.NewStatus),
		e.ChangedBy, e.Reason, e.Metadata, e.ChangedAt)
	return err
}

// BulkInsertTx appends one audit row per entry in a single statement,
// mirroring the batch booking update it accompanies. Passing an empty
// slice has no effect and returns nil.
func (r *HistoryRepo) BulkInsertTx(ctx context.Context, tx *sql.Tx, entries []*model.StatusHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := `INSERT INTO booking_status_history
          (booking_id, previous_status, new_status, changed_by, reason, metadata, changed_at)
          VALUES `
	args := make([]any, 0, len(entries)*7)
	for i, e := range entries {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			e.BookingID, string(e.PreviousStatus), string(e.NewStatus),
			e.ChangedBy, e.Reason, e.Metadata, e.ChangedAt)
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}
