package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

var eventCols = []string{"id", "device_id", "geofence_id", "type", "latitude", "longitude", "occurred_at"}

func TestEventInsert_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	mock.ExpectExec(`INSERT INTO geofence_events`).
		WithArgs("e-1", "123456789012345", "gf-1", "entry", 40.7128, -74.0060, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewEventRepo(db)
	err = repo.Insert(context.Background(), &domain.GeofenceEvent{
		ID:         "e-1",
		DeviceID:   "123456789012345",
		GeofenceID: "gf-1",
		Type:       domain.TransitionEntry,
		Lat:        40.7128,
		Lng:        -74.0060,
		OccurredAt: ts,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEventLatest_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	rows := sqlmock.NewRows(eventCols).
		AddRow("e-2", "123456789012345", "gf-1", "exit", 40.73, -74.02, ts)

	mock.ExpectQuery(`SELECT (.+) FROM geofence_events WHERE device_id = (.+) AND geofence_id = (.+)\s+ORDER BY occurred_at DESC LIMIT 1`).
		WithArgs("123456789012345", "gf-1").
		WillReturnRows(rows)

	repo := NewEventRepo(db)
	e, err := repo.Latest(context.Background(), "123456789012345", "gf-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Type != domain.TransitionExit {
		t.Errorf("expected exit, got %s", e.Type)
	}
}

func TestEventLatest_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT (.+) FROM geofence_events`).
		WithArgs("123456789012345", "gf-1").
		WillReturnRows(sqlmock.NewRows(eventCols))

	repo := NewEventRepo(db)
	_, err = repo.Latest(context.Background(), "123456789012345", "gf-1")
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventList_NewestFirstWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	rows := sqlmock.NewRows(eventCols).
		AddRow("e-2", "123456789012345", "gf-1", "exit", 40.73, -74.02, ts).
		AddRow("e-1", "123456789012345", "gf-1", "entry", 40.7128, -74.0060, ts.Add(-time.Minute))

	mock.ExpectQuery(`SELECT (.+) FROM geofence_events WHERE device_id = (.+) AND type = (.+) ORDER BY occurred_at DESC LIMIT (.+) OFFSET (.+)`).
		WithArgs("123456789012345", "exit", 50, 0).
		WillReturnRows(rows)

	repo := NewEventRepo(db)
	events, err := repo.List(context.Background(), &domain.EventFilter{
		DeviceID: "123456789012345",
		Type:     domain.TransitionExit,
		Page:     1,
		PageSize: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "e-2" {
		t.Errorf("expected newest first, got %s", events[0].ID)
	}
}

func TestEventList_EmptyResultIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT (.+) FROM geofence_events WHERE geofence_id = (.+) ORDER BY occurred_at DESC`).
		WithArgs("deleted-gf", 20, 0).
		WillReturnRows(sqlmock.NewRows(eventCols))

	repo := NewEventRepo(db)
	events, err := repo.List(context.Background(), &domain.EventFilter{
		GeofenceID: "deleted-gf",
		Page:       1,
		PageSize:   20,
	})
	if err != nil {
		t.Fatalf("expected empty result, not an error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected 0 events, got %d", len(events))
	}
}
