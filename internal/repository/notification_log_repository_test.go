package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestReminderExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewNotificationLogRepo(db)

	mock.ExpectQuery(`SELECT 1 FROM notification_log`).
		WithArgs(uint64(10), "rental_reminder", "return_24h", uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	exists, err := repo.ReminderExists(context.Background(), 10, "rental_reminder", "return_24h", 1)
	if err != nil || !exists {
		t.Errorf("expected exists=true, got %v err=%v", exists, err)
	}

	mock.ExpectQuery(`SELECT 1 FROM notification_log`).
		WithArgs(uint64(10), "rental_reminder", "return_2h", uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	exists, err = repo.ReminderExists(context.Background(), 10, "rental_reminder", "return_2h", 1)
	if err != nil || exists {
		t.Errorf("expected exists=false for unseen signature, got %v err=%v", exists, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
