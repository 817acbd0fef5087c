package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetExpirationPolicyDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPolicyRepo(db)

	mock.ExpectQuery(`SELECT name, value FROM system_settings`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}))

	policy, err := repo.GetExpirationPolicy(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if policy.Hours != 24 || !policy.Enabled || policy.LastRun != nil {
		t.Errorf("expected 24h enabled defaults, got %+v", policy)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetExpirationPolicyParsesSettings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPolicyRepo(db)

	last := time.Date(2026, 8, 19, 6, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT name, value FROM system_settings`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("booking_expiration_hours", "48").
			AddRow("booking_expiration_enabled", "false").
			AddRow("booking_expiration_last_run", last.Format(time.RFC3339)))

	policy, err := repo.GetExpirationPolicy(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if policy.Hours != 48 {
		t.Errorf("hours = %d, want 48", policy.Hours)
	}
	if policy.Enabled {
		t.Error("policy should be disabled")
	}
	if policy.LastRun == nil || !policy.LastRun.Equal(last) {
		t.Errorf("last_run = %v, want %v", policy.LastRun, last)
	}
	if policy.Window() != 48*time.Hour {
		t.Errorf("window = %v, want 48h", policy.Window())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetExpirationPolicyIgnoresBadValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPolicyRepo(db)

	mock.ExpectQuery(`SELECT name, value FROM system_settings`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("booking_expiration_hours", "not-a-number").
			AddRow("booking_expiration_hours", "-3"))

	policy, err := repo.GetExpirationPolicy(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if policy.Hours != 24 {
		t.Errorf("unparseable hours should keep the default, got %d", policy.Hours)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTouchLastRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewPolicyRepo(db)

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO system_settings`).
		WithArgs("booking_expiration_last_run", now.Format(time.RFC3339)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.TouchLastRun(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
