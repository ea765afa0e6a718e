package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database"
)

var _ database.NotificationRepository = (*NotificationRepo)(nil)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Insert(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, message, payload, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Message, payload, n.Read, n.CreatedAt,
	)
	return err
}

var _ database.DeviceDirectory = (*DeviceRepo)(nil)

// DeviceRepo answers the one question this subsystem asks the device
// registry: which user owns a device.
type DeviceRepo struct {
	db *sql.DB
}

func NewDeviceRepo(db *sql.DB) *DeviceRepo {
	return &DeviceRepo{db: db}
}

func (r *DeviceRepo) OwnerUserID(ctx context.Context, deviceID string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM devices WHERE device_id = $1`, deviceID,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	return userID, err
}
