package domain

import "time"

type TransitionType string

const (
	TransitionEntry TransitionType = "entry"
	TransitionExit  TransitionType = "exit"
)

// GeofenceEvent records one detected boundary crossing. Immutable once
// appended; removed only when its geofence is deleted.
type GeofenceEvent struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	GeofenceID string         `json:"geofence_id"`
	Type       TransitionType `json:"type"`
	Lat        float64        `json:"latitude"`
	Lng        float64        `json:"longitude"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type EventFilter struct {
	DeviceID   string
	GeofenceID string
	Type       TransitionType
	Start      time.Time
	End        time.Time
	Page       int
	PageSize   int
}
