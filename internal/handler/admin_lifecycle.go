package handler

// This file defines the manual trigger surface for operators. Each
// endpoint invokes the same code path as the scheduled run and returns the
// same result shape, with per-item failures embedded in the payload so
// operational tooling can always render a sweep outcome instead of hitting
// an unhandled error.

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/renthive/booking-engine/internal/service"
)

// LifecycleSweeper and ExpirationRunner are the slices of the engine the
// admin handlers need. Interfaces keep the handlers testable without a
// database.
type LifecycleSweeper interface {
	Sweep(ctx context.Context) service.SweepResult
}

// ExpirationRunner combines the expiration sweep with the clock-setting
// entry point used when a booking becomes owner-confirmed.
type ExpirationRunner interface {
	Sweep(ctx context.Context) service.ExpirationResult
	ScheduleExpiry(ctx context.Context, bookingID uint64) (bool, error)
}

// AdminHandler exposes the run-now operations.
type AdminHandler struct {
	Runner LifecycleSweeper
	Engine ExpirationRunner
}

// NewAdminHandler constructs an AdminHandler. Both dependencies must be
// non-nil.
func NewAdminHandler(runner LifecycleSweeper, engine ExpirationRunner) *AdminHandler {
	if runner == nil || engine == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Runner: runner, Engine: engine}
}

// RunLifecycle handles POST /v1/admin/lifecycle/run. It triggers one
// lifecycle sweep and returns its counts and error list. A sweep already
// in progress yields the skipped marker, not an error status.
func (h *AdminHandler) RunLifecycle(c echo.Context) error {
	res := h.Runner.Sweep(c.Request().Context())
	return c.JSON(http.StatusOK, res)
}

// RunExpiration handles POST /v1/admin/expiration/run. It triggers one
// expiration sweep and returns the processed bookings and error list.
func (h *AdminHandler) RunExpiration(c echo.Context) error {
	res := h.Engine.Sweep(c.Request().Context())
	return c.JSON(http.StatusOK, res)
}

// ScheduleExpiry handles POST /v1/admin/bookings/:id/expiry. It stamps the
// booking's expiration clock from its owner-confirmation time and the
// current policy. Repeated calls are no-ops and report applied=false, as
// does a booking whose owner confirmation is incomplete.
func (h *AdminHandler) ScheduleExpiry(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	applied, err := h.Engine.ScheduleExpiry(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to schedule expiry"})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": id, "applied": applied})
}
