package database

import (
	"context"
	"time"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
)

type GeofenceRepository interface {
	Insert(ctx context.Context, g *domain.Geofence) error
	Update(ctx context.Context, g *domain.Geofence) error
	GetByID(ctx context.Context, id string) (*domain.Geofence, error)
	// Delete removes the geofence and all of its events in one transaction.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *domain.GeofenceFilter) ([]domain.Geofence, error)
	// NameExists reports a case-insensitive name match within the same
	// (device, user) binding scope, excluding excludeID.
	NameExists(ctx context.Context, name, deviceID, userID, excludeID string) (bool, error)
	// ListApplicable returns active geofences that are unbound, bound to
	// the device, or bound to the owning user.
	ListApplicable(ctx context.Context, deviceID, userID string) ([]domain.Geofence, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

type EventRepository interface {
	Insert(ctx context.Context, e *domain.GeofenceEvent) error
	List(ctx context.Context, filter *domain.EventFilter) ([]domain.GeofenceEvent, error)
	// Latest returns the most recent event for a (device, geofence) pair,
	// or domain.ErrNotFound when none exists.
	Latest(ctx context.Context, deviceID, geofenceID string) (*domain.GeofenceEvent, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *domain.Notification) error
}

// DeviceDirectory resolves a device's owning user. The device registry
// itself is a separate service; this is the only contract consumed here.
type DeviceDirectory interface {
	OwnerUserID(ctx context.Context, deviceID string) (string, error)
}
