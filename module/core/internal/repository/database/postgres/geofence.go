package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database"
)

var _ database.GeofenceRepository = (*GeofenceRepo)(nil)

const geofenceColumns = `id, name, type, center_lat, center_lng, radius_m, vertices,
	device_id, user_id, alert_on_entry, alert_on_exit, active,
	description, color, tags, last_activity, created_at, updated_at`

type GeofenceRepo struct {
	db *sql.DB
}

func NewGeofenceRepo(db *sql.DB) *GeofenceRepo {
	return &GeofenceRepo{db: db}
}

func (r *GeofenceRepo) Insert(ctx context.Context, g *domain.Geofence) error {
	centerLat, centerLng, radius, vertices, err := geometryColumns(g)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO geofences (`+geofenceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		g.ID, g.Name, string(g.Type), centerLat, centerLng, radius, vertices,
		g.DeviceID, g.UserID, g.AlertOnEntry, g.AlertOnExit, g.Active,
		g.Description, g.Color, tagsArray(g.Tags), g.LastActivity, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// tags column is NOT NULL; a nil slice stores as an empty array
func tagsArray(tags []string) interface{} {
	if tags == nil {
		tags = []string{}
	}
	return pq.Array(tags)
}

func (r *GeofenceRepo) Update(ctx context.Context, g *domain.Geofence) error {
	centerLat, centerLng, radius, vertices, err := geometryColumns(g)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE geofences SET name = $2, type = $3, center_lat = $4, center_lng = $5,
		 radius_m = $6, vertices = $7, device_id = $8, user_id = $9,
		 alert_on_entry = $10, alert_on_exit = $11, active = $12,
		 description = $13, color = $14, tags = $15, last_activity = $16, updated_at = $17
		 WHERE id = $1`,
		g.ID, g.Name, string(g.Type), centerLat, centerLng, radius, vertices,
		g.DeviceID, g.UserID, g.AlertOnEntry, g.AlertOnExit, g.Active,
		g.Description, g.Color, tagsArray(g.Tags), g.LastActivity, g.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GeofenceRepo) GetByID(ctx context.Context, id string) (*domain.Geofence, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+geofenceColumns+` FROM geofences WHERE id = $1`, id)
	g, err := scanGeofence(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return g, err
}

func (r *GeofenceRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM geofence_events WHERE geofence_id = $1`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM geofences WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit()
}

var sortColumns = map[domain.SortField]string{
	domain.SortByName:         "name",
	domain.SortByCreatedAt:    "created_at",
	domain.SortByLastActivity: "last_activity",
}

func (r *GeofenceRepo) List(ctx context.Context, filter *domain.GeofenceFilter) ([]domain.Geofence, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.DeviceID != "" {
		add("device_id = $%d", filter.DeviceID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Active != nil {
		add("active = $%d", *filter.Active)
	}
	if filter.Tag != "" {
		add("$%d = ANY(tags)", filter.Tag)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	query := `SELECT ` + geofenceColumns + ` FROM geofences`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	sortCol, ok := sortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	query += " ORDER BY " + sortCol

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectGeofences(rows)
}

func (r *GeofenceRepo) NameExists(ctx context.Context, name, deviceID, userID, excludeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM geofences
			WHERE LOWER(name) = LOWER($1) AND device_id = $2 AND user_id = $3 AND id <> $4
		)`,
		name, deviceID, userID, excludeID,
	).Scan(&exists)
	return exists, err
}

func (r *GeofenceRepo) ListApplicable(ctx context.Context, deviceID, userID string) ([]domain.Geofence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+geofenceColumns+` FROM geofences
		 WHERE active = true
		   AND ((device_id = '' AND user_id = '') OR device_id = $1 OR (user_id = $2 AND user_id <> ''))
		 ORDER BY created_at`,
		deviceID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectGeofences(rows)
}

func (r *GeofenceRepo) TouchActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE geofences SET last_activity = $2 WHERE id = $1`, id, at)
	return err
}

func geometryColumns(g *domain.Geofence) (centerLat, centerLng, radius sql.NullFloat64, vertices []byte, err error) {
	switch g.Type {
	case domain.ShapeCircle:
		if g.Center != nil {
			centerLat = sql.NullFloat64{Float64: g.Center.Lat, Valid: true}
			centerLng = sql.NullFloat64{Float64: g.Center.Lng, Valid: true}
			radius = sql.NullFloat64{Float64: g.RadiusMeters, Valid: true}
		}
	case domain.ShapePolygon:
		vertices, err = json.Marshal(g.Vertices)
		if err != nil {
			err = fmt.Errorf("marshal vertices: %w", err)
		}
	}
	return
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGeofence(row rowScanner) (*domain.Geofence, error) {
	var g domain.Geofence
	var shapeType string
	var centerLat, centerLng, radius sql.NullFloat64
	var vertices []byte
	var tags pq.StringArray

	err := row.Scan(
		&g.ID, &g.Name, &shapeType, &centerLat, &centerLng, &radius, &vertices,
		&g.DeviceID, &g.UserID, &g.AlertOnEntry, &g.AlertOnExit, &g.Active,
		&g.Description, &g.Color, &tags, &g.LastActivity, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Type = domain.ShapeType(shapeType)
	g.Tags = tags
	if g.Type == domain.ShapeCircle && centerLat.Valid && centerLng.Valid {
		g.Center = &domain.Coordinate{Lat: centerLat.Float64, Lng: centerLng.Float64}
		g.RadiusMeters = radius.Float64
	}
	if g.Type == domain.ShapePolygon && len(vertices) > 0 {
		if err := json.Unmarshal(vertices, &g.Vertices); err != nil {
			return nil, fmt.Errorf("unmarshal vertices: %w", err)
		}
	}
	return &g, nil
}

func collectGeofences(rows *sql.Rows) ([]domain.Geofence, error) {
	var results []domain.Geofence
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *g)
	}
	return results, rows.Err()
}
