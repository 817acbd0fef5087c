package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/renthive/booking-engine/internal/model"
	"github.com/renthive/booking-engine/internal/notify"
	"github.com/renthive/booking-engine/internal/repository"
)

// ExpirationResult is the outcome of one expiration sweep, returned even
// when individual bookings failed so operational tooling can always render
// it.
type ExpirationResult struct {
	ExpiredCount      int      `json:"expiredCount"`
	ProcessedBookings []uint64 `json:"processedBookings"`
	Errors            []string `json:"errors"`
}

// renterChannels is the channel set attempted when expiring a booking.
// Each channel is attempted independently; one failing channel never
// blocks the others.
var renterChannels = []notify.Channel{notify.ChannelInApp, notify.ChannelEmail, notify.ChannelSMS}

// ExpirationEngine applies the policy-driven confirmed → expired
// transition: bookings confirmed by their owner but never paid expire once
// policy.Hours have elapsed since owner confirmation. Unlike the date
// driven transitions, eligibility derives from the policy clock, not from
// dates intrinsic to the booking.
type ExpirationEngine struct {
	bookings     *repository.BookingRepo
	history      *repository.HistoryRepo
	reservations *repository.ReservationRepo
	policies     *repository.PolicyRepo
	expLogs      *repository.ExpirationLogRepo
	dispatcher   notify.Dispatcher
	actor        *SystemActor
}

// NewExpirationEngine constructs the engine with its persistence and
// dispatch collaborators.
func NewExpirationEngine(
	bookings *repository.BookingRepo,
	history *repository.HistoryRepo,
	reservations *repository.ReservationRepo,
	policies *repository.PolicyRepo,
	expLogs *repository.ExpirationLogRepo,
	dispatcher notify.Dispatcher,
	actor *SystemActor,
) *ExpirationEngine {
	return &ExpirationEngine{
		bookings:     bookings,
		history:      history,
		reservations: reservations,
		policies:     policies,
		expLogs:      expLogs,
		dispatcher:   dispatcher,
		actor:        actor,
	}
}

// ScheduleExpiry stamps the booking's expiration clock:
// expires_at = owner_confirmed_at + policy.Hours. It is a no-op unless
// every owner-confirmation field is populated, and writes at most once;
// repeated calls return false without touching the row.
func (e *ExpirationEngine) ScheduleExpiry(ctx context.Context, bookingID uint64) (bool, error) {
	b, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if !b.OwnerConfirmationComplete() {
		return false, nil
	}
	policy, err := e.policies.GetExpirationPolicy(ctx)
	if err != nil {
		return false, err
	}
	expiresAt := b.OwnerConfirmedAt.Add(policy.Window())
	n, err := e.bookings.SetExpiresAt(ctx, bookingID, expiresAt, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Sweep expires every eligible booking. Each candidate is processed with
// independent failure isolation: a log-write or persistence failure on one
// booking is recorded and the loop moves on. The policy's last_run is
// touched unconditionally after the loop, zero candidates included, so
// operators can verify the sweep is alive.
func (e *ExpirationEngine) Sweep(ctx context.Context) ExpirationResult {
	res := ExpirationResult{ProcessedBookings: []uint64{}, Errors: []string{}}

	policy, err := e.policies.GetExpirationPolicy(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("load policy: %v", err))
		return res
	}
	if !policy.Enabled {
		return res
	}
	actorID, err := e.actor.ID(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("system actor unavailable: %v", err))
		return res
	}

	now := time.Now().UTC()
	candidates, err := e.bookings.FindExpirationCandidates(ctx, now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("candidate query: %v", err))
		return res
	}

	for _, b := range candidates {
		if err := e.expireOne(ctx, b, policy, actorID, now); err != nil {
			if errors.Is(err, repository.ErrGuardViolated) {
				// Another run marked it first; nothing to record.
				continue
			}
			res.Errors = append(res.Errors, fmt.Sprintf("booking %d: %v", b.ID, err))
			continue
		}
		res.ExpiredCount++
		res.ProcessedBookings = append(res.ProcessedBookings, b.ID)
	}

	if err := e.policies.TouchLastRun(ctx, time.Now().UTC()); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("touch last_run: %v", err))
	}
	return res
}

// expireOne processes a single candidate in the mandated order: forensic
// log first, reservation release second (best-effort), then the
// soft-mark + audit row in one transaction, and finally the per-channel
// renter notifications.
func (e *ExpirationEngine) expireOne(ctx context.Context, b *model.Booking, policy model.ExpirationPolicy, actorID uint64, now time.Time) error {
	snapshot, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := e.expLogs.Insert(ctx, &model.ExpirationLogEntry{
		BookingID:   b.ID,
		Snapshot:    string(snapshot),
		PolicyHours: policy.Hours,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("expiration log: %w", err)
	}

	if _, err := e.reservations.ReleaseByBooking(ctx, b.ID); err != nil {
		// Best-effort: a stuck reservation row does not keep the booking
		// alive past its expiry.
		log.Printf("expiration: reservation release failed for booking %d: %v", b.ID, err)
	}

	reason := fmt.Sprintf("Expired after %d hours without payment", policy.Hours)
	tx, err := e.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := e.bookings.MarkExpiredTx(ctx, tx, b.ID, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := e.history.InsertTx(ctx, tx, &model.StatusHistoryEntry{
		BookingID:      b.ID,
		PreviousStatus: b.Status,
		NewStatus:      model.BookingExpired,
		ChangedBy:      actorID,
		Reason:         reason,
		Metadata: model.HistoryMetadata{
			Source:    model.SourceExpirationSweep,
			Timestamp: now,
			Reason:    reason,
			Extra:     map[string]string{"policy_hours": strconv.Itoa(policy.Hours)},
		}.JSON(),
		ChangedAt: now,
	}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	e.notifyExpired(ctx, b, policy)
	return nil
}

// notifyExpired tells the renter on every configured channel. Channels are
// attempted one by one with individually caught errors.
func (e *ExpirationEngine) notifyExpired(ctx context.Context, b *model.Booking, policy model.ExpirationPolicy) {
	for _, ch := range renterChannels {
		n := notify.Notification{
			Type:        "booking_expired",
			RecipientID: b.RenterID,
			Title:       "Your booking has expired",
			Message:     fmt.Sprintf("The booking was not paid within %d hours of the owner's confirmation and has expired.", policy.Hours),
			Data:        map[string]string{"booking_id": strconv.FormatUint(b.ID, 10)},
			Priority:    "high",
			Channels:    []notify.Channel{ch},
		}
		if err := e.dispatcher.Send(ctx, n); err != nil {
			log.Printf("expiration: %s notification failed for booking %d: %v", ch, b.ID, err)
		}
	}
}
