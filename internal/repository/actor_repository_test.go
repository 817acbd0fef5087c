package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEnsureSystemActorFindsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewActorRepo(db)

	mock.ExpectQuery(`SELECT id FROM users WHERE email=\?`).
		WithArgs("system@booking-engine.local").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))

	id, err := repo.EnsureSystemActor(context.Background(), " System@Booking-Engine.local ", 4)
	if err != nil {
		t.Fatal(err)
	}
	if id != 99 {
		t.Errorf("expected existing id 99, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEnsureSystemActorCreatesWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewActorRepo(db)

	mock.ExpectQuery(`SELECT id FROM users WHERE email=\?`).
		WithArgs("system@booking-engine.local").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.EnsureSystemActor(context.Background(), "system@booking-engine.local", 4)
	if err != nil {
		t.Fatal(err)
	}
	if id != 7 {
		t.Errorf("expected created id 7, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
