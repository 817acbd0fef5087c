package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/renthive/booking-engine/internal/model"
)

// Setting names under which the expiration policy lives in system_settings.
const (
	settingExpirationHours   = "booking_expiration_hours"
	settingExpirationEnabled = "booking_expiration_enabled"
	settingExpirationLastRun = "booking_expiration_last_run"
)

// Defaults applied when a policy setting row is absent. A deployment that
// never configured the policy expires unpaid bookings after 24 hours.
const (
	defaultExpirationHours   = 24
	defaultExpirationEnabled = true
)

// PolicyRepo reads and updates the expiration policy stored as name/value
// rows in system_settings. The policy is read at the start of every sweep;
// only last_run is written by this core, the rest is mutated through the
// administrative update path outside it.
type PolicyRepo struct {
	db *sql.DB
}

// NewPolicyRepo returns a new PolicyRepo bound to the provided database.
func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{db: db} }

// GetExpirationPolicy loads the current policy, applying defaults for any
// missing setting row.
func (r *PolicyRepo) GetExpirationPolicy(ctx context.Context) (model.ExpirationPolicy, error) {
	const q = `SELECT name, value FROM system_settings WHERE name IN (?, ?, ?)`
	rows, err := r.db.QueryContext(ctx, q,
		settingExpirationHours, settingExpirationEnabled, settingExpirationLastRun)
	if err != nil {
		return model.ExpirationPolicy{}, err
	}
	defer rows.Close()

	policy := model.ExpirationPolicy{
		Hours:   defaultExpirationHours,
		Enabled: defaultExpirationEnabled,
	}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return model.ExpirationPolicy{}, err
		}
		switch name {
		case settingExpirationHours:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				policy.Hours = n
			}
		case settingExpirationEnabled:
			policy.Enabled = value == "true" || value == "1"
		case settingExpirationLastRun:
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				u := t.UTC()
				policy.LastRun = &u
			}
		}
	}
	if err := rows.Err(); err != nil {
		return model.ExpirationPolicy{}, err
	}
	return policy, nil
}

// TouchLastRun records the completion time of an expiration sweep so
// operators can verify liveness. The upsert makes the first sweep create
// the row.
func (r *PolicyRepo) TouchLastRun(ctx context.Context, now time.Time) error {
	const q = `INSERT INTO system_settings (name, value)
               VALUES (?, ?)
               ON DUPLICATE KEY UPDATE value = VALUES(value)`
	_, err := r.db.ExecContext(ctx, q, settingExpirationLastRun, now.UTC().Format(time.RFC3339))
	return err
}
