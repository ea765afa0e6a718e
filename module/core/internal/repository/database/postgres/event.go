package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database"
)

var _ database.EventRepository = (*EventRepo)(nil)

type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Insert(ctx context.Context, e *domain.GeofenceEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO geofence_events (id, device_id, geofence_id, type, latitude, longitude, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.DeviceID, e.GeofenceID, string(e.Type), e.Lat, e.Lng, e.OccurredAt,
	)
	return err
}

func (r *EventRepo) List(ctx context.Context, filter *domain.EventFilter) ([]domain.GeofenceEvent, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.DeviceID != "" {
		add("device_id = $%d", filter.DeviceID)
	}
	if filter.GeofenceID != "" {
		add("geofence_id = $%d", filter.GeofenceID)
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if !filter.Start.IsZero() {
		add("occurred_at >= $%d", filter.Start)
	}
	if !filter.End.IsZero() {
		add("occurred_at <= $%d", filter.End)
	}

	query := `SELECT id, device_id, geofence_id, type, latitude, longitude, occurred_at FROM geofence_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC"

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.GeofenceEvent
	for rows.Next() {
		var e domain.GeofenceEvent
		var t string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.GeofenceID, &t, &e.Lat, &e.Lng, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Type = domain.TransitionType(t)
		results = append(results, e)
	}
	return results, rows.Err()
}

func (r *EventRepo) Latest(ctx context.Context, deviceID, geofenceID string) (*domain.GeofenceEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, geofence_id, type, latitude, longitude, occurred_at
		 FROM geofence_events WHERE device_id = $1 AND geofence_id = $2
		 ORDER BY occurred_at DESC LIMIT 1`,
		deviceID, geofenceID,
	)

	var e domain.GeofenceEvent
	var t string
	err := row.Scan(&e.ID, &e.DeviceID, &e.GeofenceID, &t, &e.Lat, &e.Lng, &e.OccurredAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Type = domain.TransitionType(t)
	return &e, nil
}
