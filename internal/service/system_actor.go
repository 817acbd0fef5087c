package service

import (
	"context"
	"sync"

	"github.com/renthive/booking-engine/internal/repository"
)

// SystemActor resolves and caches the identity recorded as changed_by on
// automated audit rows. Provisioning happens at most once per process; the
// cached ID is an explicit field here rather than package-level state so
// the lifecycle is owned by whoever constructs the engine. Resolution
// failure is fatal for the sweep that needed it: an automated transition
// cannot be attributed without an actor.
type SystemActor struct {
	actors     *repository.ActorRepo
	email      string
	bcryptCost int

	mu sync.Mutex
	id uint64
}

// NewSystemActor returns an unresolved SystemActor. The actor row is
// provisioned on first use of ID.
func NewSystemActor(actors *repository.ActorRepo, email string, bcryptCost int) *SystemActor {
	return &SystemActor{actors: actors, email: email, bcryptCost: bcryptCost}
}

// ID returns the system actor's user ID, provisioning the row on first
// call. Concurrent callers serialize on the mutex so find-or-create runs
// once; a failed attempt leaves the cache empty and is retried next call.
func (a *SystemActor) ID(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id != 0 {
		return a.id, nil
	}
	id, err := a.actors.EnsureSystemActor(ctx, a.email, a.bcryptCost)
	if err != nil {
		return 0, err
	}
	a.id = id
	return id, nil
}
