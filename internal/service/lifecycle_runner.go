package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/renthive/booking-engine/internal/model"
	"github.com/renthive/booking-engine/internal/notify"
	"github.com/renthive/booking-engine/internal/repository"
)

// DefaultBatchSize bounds how many bookings a single transaction updates.
// Batches are processed sequentially to keep transactions small and avoid
// lock contention on large tables.
const DefaultBatchSize = 50

// SweepResult is the outcome of one lifecycle sweep. It is always
// returned, never thrown past the runner's boundary: batch failures are
// collected into Errors and the sweep continues, so callers and
// operational tooling can always render an outcome.
type SweepResult struct {
	StartedCount   int      `json:"startedCount"`
	CompletedCount int      `json:"completedCount"`
	ReminderCount  int      `json:"reminderCount"`
	Errors         []string `json:"errors"`
	Skipped        bool     `json:"skipped,omitempty"`
}

// LifecycleRunner drives the date-driven booking transitions: auto-start,
// auto-complete and return reminders. One sweep queries the eligible set
// per transition, applies changes in bounded batches (booking updates and
// audit rows in one transaction per batch) and fires notifications only
// after each batch has committed.
type LifecycleRunner struct {
	bookings   *repository.BookingRepo
	history    *repository.HistoryRepo
	notifLog   *repository.NotificationLogRepo
	dispatcher notify.Dispatcher
	actor      *SystemActor
	batchSize  int

	// sweeping is the in-process re-entrancy guard: a trigger while a
	// sweep is active is skipped, not queued. Safe for a single-process
	// deployment only; multi-instance overlap is handled by the
	// scheduler's lease.
	sweeping atomic.Bool
}

// NewLifecycleRunner constructs a runner. batchSize <= 0 falls back to
// DefaultBatchSize.
func NewLifecycleRunner(
	bookings *repository.BookingRepo,
	history *repository.HistoryRepo,
	notifLog *repository.NotificationLogRepo,
	dispatcher notify.Dispatcher,
	actor *SystemActor,
	batchSize int,
) *LifecycleRunner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &LifecycleRunner{
		bookings:   bookings,
		history:    history,
		notifLog:   notifLog,
		dispatcher: dispatcher,
		actor:      actor,
		batchSize:  batchSize,
	}
}

// Sweep runs one pass over all eligible bookings. The three transition
// families are independent: their eligibility predicates are mutually
// exclusive by status, so no booking can match more than one in the same
// sweep.
func (r *LifecycleRunner) Sweep(ctx context.Context) SweepResult {
	if !r.sweeping.CompareAndSwap(false, true) {
		log.Printf("lifecycle: sweep already running, skipping trigger")
		return SweepResult{Errors: []string{}, Skipped: true}
	}
	defer r.sweeping.Store(false)

	res := SweepResult{Errors: []string{}}
	actorID, err := r.actor.ID(ctx)
	if err != nil {
		// Without an actor no automated transition can be attributed;
		// abort the whole sweep and let the next tick retry.
		res.Errors = append(res.Errors, fmt.Sprintf("system actor unavailable: %v", err))
		return res
	}

	now := time.Now().UTC()
	r.autoStart(ctx, now, actorID, &res)
	r.autoComplete(ctx, now, actorID, &res)
	r.sendReminders(ctx, now, &res)
	return res
}

// autoStart applies confirmed → in_progress to every booking whose rental
// window contains now.
func (r *LifecycleRunner) autoStart(ctx context.Context, now time.Time, actorID uint64, res *SweepResult) {
	candidates, err := r.bookings.FindAutoStartCandidates(ctx, now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("auto-start query: %v", err))
		return
	}
	for _, batch := range chunk(candidates, r.batchSize) {
		n, err := r.applyBatch(ctx, batch, now, actorID,
			model.BookingInProgress,
			"Automatically started at rental start date",
			r.bookings.MarkStartedTx)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("auto-start batch: %v", err))
			continue
		}
		res.StartedCount += n
		for _, b := range batch {
			r.notifyStart(ctx, b)
		}
	}
}

// autoComplete applies in_progress → completed to every booking whose end
// date has passed.
func (r *LifecycleRunner) autoComplete(ctx context.Context, now time.Time, actorID uint64, res *SweepResult) {
	candidates, err := r.bookings.FindAutoCompleteCandidates(ctx, now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("auto-complete query: %v", err))
		return
	}
	for _, batch := range chunk(candidates, r.batchSize) {
		n, err := r.applyBatch(ctx, batch, now, actorID,
			model.BookingCompleted,
			"Automatically completed at rental end date",
			r.bookings.MarkCompletedTx)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("auto-complete batch: %v", err))
			continue
		}
		res.CompletedCount += n
		for _, b := range batch {
			r.notifyComplete(ctx, b)
		}
	}
}

// applyBatch runs one batch inside one transaction: a conditional bulk
// UPDATE of the booking rows followed by a bulk INSERT of one audit row
// per booking. Notifications are the caller's job, after commit.
func (r *LifecycleRunner) applyBatch(
	ctx context.Context,
	batch []*model.Booking,
	now time.Time,
	actorID uint64,
	newStatus model.BookingStatus,
	reason string,
	mark func(context.Context, *sql.Tx, []uint64, time.Time) (int64, error),
) (int, error) {
	tx, err := r.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	ids := make([]uint64, 0, len(batch))
	entries := make([]*model.StatusHistoryEntry, 0, len(batch))
	for _, b := range batch {
		ids = append(ids, b.ID)
		entries = append(entries, &model.StatusHistoryEntry{
			BookingID:      b.ID,
			PreviousStatus: b.Status,
			NewStatus:      newStatus,
			ChangedBy:      actorID,
			Reason:         reason,
			Metadata: model.HistoryMetadata{
				Source:    model.SourceLifecycleSweep,
				Timestamp: now,
				Reason:    reason,
			}.JSON(),
			ChangedAt: now,
		})
	}
	n, err := mark(ctx, tx, ids, now)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := r.history.BulkInsertTx(ctx, tx, entries); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// sendReminders dispatches return reminders for in-progress bookings
// approaching their end date. Reminders change no booking state; the
// notification log existence check is their only idempotency guard.
func (r *LifecycleRunner) sendReminders(ctx context.Context, now time.Time, res *SweepResult) {
	candidates, err := r.bookings.FindReminderCandidates(ctx, now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("reminder query: %v", err))
		return
	}
	const notifType = "rental_reminder"
	for _, b := range candidates {
		window, due := b.DueReminder(now)
		if !due {
			continue
		}
		exists, err := r.notifLog.ReminderExists(ctx, b.RenterID, notifType, string(window), b.ID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("reminder dedup booking %d: %v", b.ID, err))
			continue
		}
		if exists {
			continue
		}
		n := notify.Notification{
			Type:        notifType,
			RecipientID: b.RenterID,
			Title:       "Your rental ends soon",
			Message:     reminderMessage(window, b.EndDate),
			Data: map[string]string{
				"booking_id":    strconv.FormatUint(b.ID, 10),
				"reminder_type": string(window),
			},
			Priority: "normal",
		}
		if err := r.dispatcher.Send(ctx, n); err != nil {
			log.Printf("lifecycle: reminder dispatch failed for booking %d: %v", b.ID, err)
			continue
		}
		if err := r.notifLog.RecordReminder(ctx, b.RenterID, notifType, string(window), b.ID, now); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("reminder record booking %d: %v", b.ID, err))
			continue
		}
		res.ReminderCount++
	}
}

func reminderMessage(window model.ReminderWindow, endDate time.Time) string {
	switch window {
	case model.Reminder24h:
		return fmt.Sprintf("Your rental ends in about 24 hours, on %s.", endDate.Format("Jan 2 at 15:04 MST"))
	default:
		return fmt.Sprintf("Your rental ends in about 2 hours, at %s.", endDate.Format("15:04 MST"))
	}
}

// notifyStart informs both parties that the rental began. Each dispatch
// error is caught and logged here so one recipient's failure never affects
// the other's notification or the committed transition.
func (r *LifecycleRunner) notifyStart(ctx context.Context, b *model.Booking) {
	data := map[string]string{"booking_id": strconv.FormatUint(b.ID, 10)}
	for _, n := range []notify.Notification{
		{
			Type:        "rental_started",
			RecipientID: b.RenterID,
			Title:       "Your rental has started",
			Message:     fmt.Sprintf("Your rental runs until %s. Enjoy!", b.EndDate.Format("Jan 2 at 15:04 MST")),
			Data:        data,
			Priority:    "normal",
		},
		{
			Type:        "rental_started",
			RecipientID: b.OwnerID,
			Title:       "A rental of your item has started",
			Message:     fmt.Sprintf("The rental period runs until %s.", b.EndDate.Format("Jan 2 at 15:04 MST")),
			Data:        data,
			Priority:    "normal",
		},
	} {
		if err := r.dispatcher.Send(ctx, n); err != nil {
			log.Printf("lifecycle: start notification failed for booking %d recipient %d: %v", b.ID, n.RecipientID, err)
		}
	}
}

// notifyComplete informs both parties that the rental ended, with return
// instructions derived from the booking's pickup method.
func (r *LifecycleRunner) notifyComplete(ctx context.Context, b *model.Booking) {
	data := map[string]string{"booking_id": strconv.FormatUint(b.ID, 10)}
	for _, n := range []notify.Notification{
		{
			Type:        "rental_completed",
			RecipientID: b.RenterID,
			Title:       "Your rental has ended",
			Message:     returnInstructions(b.PickupMethod),
			Data:        data,
			Priority:    "high",
		},
		{
			Type:        "rental_completed",
			RecipientID: b.OwnerID,
			Title:       "A rental of your item has ended",
			Message:     "The rental period is over. Expect the item to be returned shortly.",
			Data:        data,
			Priority:    "normal",
		},
	} {
		if err := r.dispatcher.Send(ctx, n); err != nil {
			log.Printf("lifecycle: completion notification failed for booking %d recipient %d: %v", b.ID, n.RecipientID, err)
		}
	}
}

func returnInstructions(pickupMethod string) string {
	switch pickupMethod {
	case "delivery":
		return "Your rental has ended. Please package the item and hand it to the courier for the return shipment."
	default:
		return "Your rental has ended. Please return the item to the owner at the agreed pickup location."
	}
}

// chunk splits items into slices of at most size elements, preserving
// order.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	return append(out, items)
}
