package repository

import (
	"context"
	"database/sql"
	"time"
)

// NotificationLogRepo records dispatched reminder notifications in the
// notification_log table. Reminders have no guard timestamp on the booking
// row, so the existence check here is their idempotency guard: a reminder
// with the same (recipient, type, reminder type, booking) signature is
// sent at most once.
type NotificationLogRepo struct {
	db *sql.DB
}

// NewNotificationLogRepo returns a new NotificationLogRepo bound to the
// provided database.
func NewNotificationLogRepo(db *sql.DB) *NotificationLogRepo {
	return &NotificationLogRepo{db: db}
}

// ReminderExists reports whether a reminder with this signature has
// already been recorded.
func (r *NotificationLogRepo) ReminderExists(ctx context.Context, recipientID uint64, notifType, reminderType string, bookingID uint64) (bool, error) {
	const q = `SELECT 1 FROM notification_log
               WHERE recipient_id = ? AND type = ? AND reminder_type = ? AND booking_id = ?
               LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, q, recipientID, notifType, reminderType, bookingID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordReminder persists the signature of a dispatched reminder.
func (r *NotificationLogRepo) RecordReminder(ctx context.Context, recipientID uint64, notifType, reminderType string, bookingID uint64, now time.Time) error {
	const q = `INSERT INTO notification_log
               (recipient_id, type, reminder_type, booking_id, sent_at)
               VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, recipientID, notifType, reminderType, bookingID, now)
	return err
}
