package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/renthive/booking-engine/internal/service"
)

type fakeSweeper struct {
	result service.SweepResult
}

func (f *fakeSweeper) Sweep(ctx context.Context) service.SweepResult { return f.result }

type fakeEngine struct {
	result      service.ExpirationResult
	applied     bool
	scheduleErr error
}

func (f *fakeEngine) Sweep(ctx context.Context) service.ExpirationResult { return f.result }

func (f *fakeEngine) ScheduleExpiry(ctx context.Context, bookingID uint64) (bool, error) {
	return f.applied, f.scheduleErr
}

func newAdminContext(t *testing.T, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRunLifecycleReturnsResult(t *testing.T) {
	h := NewAdminHandler(
		&fakeSweeper{result: service.SweepResult{StartedCount: 3, Errors: []string{}}},
		&fakeEngine{},
	)
	c, rec := newAdminContext(t, http.MethodPost, "/v1/admin/lifecycle/run")

	if err := h.RunLifecycle(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res service.SweepResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.StartedCount != 3 {
		t.Errorf("startedCount = %d, want 3", res.StartedCount)
	}
}

func TestRunLifecycleSkippedStillOK(t *testing.T) {
	h := NewAdminHandler(
		&fakeSweeper{result: service.SweepResult{Skipped: true, Errors: []string{}}},
		&fakeEngine{},
	)
	c, rec := newAdminContext(t, http.MethodPost, "/v1/admin/lifecycle/run")

	if err := h.RunLifecycle(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("a skipped sweep is not an error, status = %d", rec.Code)
	}
	var res service.SweepResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("response should carry the skipped marker")
	}
}

func TestRunExpirationReturnsResult(t *testing.T) {
	h := NewAdminHandler(
		&fakeSweeper{},
		&fakeEngine{result: service.ExpirationResult{
			ExpiredCount:      2,
			ProcessedBookings: []uint64{4, 9},
			Errors:            []string{},
		}},
	)
	c, rec := newAdminContext(t, http.MethodPost, "/v1/admin/expiration/run")

	if err := h.RunExpiration(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res service.ExpirationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.ExpiredCount != 2 || len(res.ProcessedBookings) != 2 {
		t.Errorf("unexpected body: %+v", res)
	}
}

func TestScheduleExpiryValidation(t *testing.T) {
	h := NewAdminHandler(&fakeSweeper{}, &fakeEngine{applied: true})

	c, rec := newAdminContext(t, http.MethodPost, "/v1/admin/bookings/abc/expiry")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	if err := h.ScheduleExpiry(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id should be 400, got %d", rec.Code)
	}

	c, rec = newAdminContext(t, http.MethodPost, "/v1/admin/bookings/0/expiry")
	c.SetParamNames("id")
	c.SetParamValues("0")
	if err := h.ScheduleExpiry(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero id should be 400, got %d", rec.Code)
	}
}

func TestScheduleExpiryNotFound(t *testing.T) {
	h := NewAdminHandler(&fakeSweeper{}, &fakeEngine{scheduleErr: sql.ErrNoRows})

	c, rec := newAdminContext(t, http.MethodPost, "/v1/admin/bookings/42/expiry")
	c.SetParamNames("id")
	c.SetParamValues("42")
	if err := h.ScheduleExpiry(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing booking should be 404, got %d", rec.Code)
	}
}

func TestScheduleExpiryApplied(t *testing.T) {
	h := NewAdminHandler(&fakeSweeper{}, &fakeEngine{applied: true})

	c, rec := newAdminContext(t, http.MethodPost, "/v1/admin/bookings/42/expiry")
	c.SetParamNames("id")
	c.SetParamValues("42")
	if err := h.ScheduleExpiry(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["applied"] != true {
		t.Errorf("applied = %v, want true", body["applied"])
	}
}
