package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/renthive/booking-engine/internal/utils"
)

// ActorRepo provisions the system actor: the user row recorded as
// changed_by on every automated audit entry. Provisioning is find-or-create
// and idempotent; the engine refuses to run a sweep without it because an
// automated transition cannot be attributed to nobody.
type ActorRepo struct {
	db *sql.DB
}

// NewActorRepo returns a new ActorRepo bound to the provided database.
func NewActorRepo(db *sql.DB) *ActorRepo { return &ActorRepo{db: db} }

// EnsureSystemActor returns the ID of the system user identified by email,
// creating it when absent. The created row carries the SYSTEM role and a
// bcrypt hash of a random secret, so the account can never be logged into.
// A duplicate-key race with a concurrent instance resolves by re-reading.
func (r *ActorRepo) EnsureSystemActor(ctx context.Context, email string, bcryptCost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id, err := r.findByEmail(ctx, email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return 0, err
	}
	hash, err := utils.HashPassword(hex.EncodeToString(secret), bcryptCost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, "SYSTEM")
	if err != nil {
		// 1062 = duplicate entry: another instance won the create race.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return r.findByEmail(ctx, email)
		}
		return 0, err
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(newID), nil
}

func (r *ActorRepo) findByEmail(ctx context.Context, email string) (uint64, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email=? LIMIT 1", email).Scan(&id)
	return id, err
}
