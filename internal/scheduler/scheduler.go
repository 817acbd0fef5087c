// Package scheduler provides the periodic trigger that drives the
// lifecycle and expiration sweeps. All mutable state (the overlap flag,
// the lease identity) lives on the constructed Scheduler instance; there
// is no package-level state.
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/renthive/booking-engine/internal/service"
)

// leaseKey is the Redis key used to serialize sweeps across instances.
const leaseKey = "booking:sweep:lease"

// LifecycleSweeper runs one pass of the date-driven transitions.
type LifecycleSweeper interface {
	Sweep(ctx context.Context) service.SweepResult
}

// ExpirationSweeper runs one pass of the policy-driven expiration.
type ExpirationSweeper interface {
	Sweep(ctx context.Context) service.ExpirationResult
}

// Scheduler invokes both sweeps on a fixed interval. Overlap is prevented,
// not queued: an in-process atomic flag skips a tick that fires while the
// previous one is still running, and when a Redis client is configured a
// SET NX lease additionally serializes ticks across process instances.
// With a nil Redis client the deployment is declared single-instance and
// only the in-process flag applies.
type Scheduler struct {
	interval time.Duration
	runner   LifecycleSweeper
	engine   ExpirationSweeper
	rdb      *redis.Client
	leaseTTL time.Duration
	instance string

	ticking atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a scheduler. rdb may be nil. The lease TTL bounds how
// long a crashed holder can block other instances; it should comfortably
// exceed a worst-case sweep duration.
func New(interval time.Duration, runner LifecycleSweeper, engine ExpirationSweeper, rdb *redis.Client, leaseTTL time.Duration) *Scheduler {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return &Scheduler{
		interval: interval,
		runner:   runner,
		engine:   engine,
		rdb:      rdb,
		leaseTTL: leaseTTL,
		instance: hex.EncodeToString(b),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker loop in its own goroutine and returns
// immediately. The loop runs until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		log.Printf("scheduler: started, interval=%s instance=%s", s.interval, s.instance)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop terminates the ticker loop and waits for the in-flight tick, if
// any, to return.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// tick runs one scheduled invocation of both sweeps.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		log.Printf("scheduler: previous tick still running, skipping")
		return
	}
	defer s.ticking.Store(false)

	if !s.acquireLease(ctx) {
		log.Printf("scheduler: sweep lease held elsewhere, skipping tick")
		return
	}
	defer s.releaseLease(ctx)

	lres := s.runner.Sweep(ctx)
	if lres.Skipped {
		log.Printf("scheduler: lifecycle sweep skipped (already running)")
	} else {
		log.Printf("scheduler: lifecycle sweep done: started=%d completed=%d reminders=%d errors=%d",
			lres.StartedCount, lres.CompletedCount, lres.ReminderCount, len(lres.Errors))
	}
	for _, e := range lres.Errors {
		log.Printf("scheduler: lifecycle sweep error: %s", e)
	}

	eres := s.engine.Sweep(ctx)
	log.Printf("scheduler: expiration sweep done: expired=%d errors=%d", eres.ExpiredCount, len(eres.Errors))
	for _, e := range eres.Errors {
		log.Printf("scheduler: expiration sweep error: %s", e)
	}
}

// acquireLease takes the cross-instance sweep lease. A nil client or a
// Redis error grants the tick: losing the lease degrades to
// single-instance behavior instead of stalling the engine.
func (s *Scheduler) acquireLease(ctx context.Context) bool {
	if s.rdb == nil {
		return true
	}
	ok, err := s.rdb.SetNX(ctx, leaseKey, s.instance, s.leaseTTL).Result()
	if err != nil {
		log.Printf("scheduler: lease acquire failed, proceeding without lease: %v", err)
		return true
	}
	return ok
}

// releaseLease drops the lease if this instance still holds it. A lease
// stolen by TTL expiry is left alone.
func (s *Scheduler) releaseLease(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	v, err := s.rdb.Get(ctx, leaseKey).Result()
	if err != nil || v != s.instance {
		return
	}
	if err := s.rdb.Del(ctx, leaseKey).Err(); err != nil {
		log.Printf("scheduler: lease release failed (will expire by TTL): %v", err)
	}
}
