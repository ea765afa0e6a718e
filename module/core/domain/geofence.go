package domain

import "time"

type ShapeType string

const (
	ShapeCircle  ShapeType = "circle"
	ShapePolygon ShapeType = "polygon"
)

type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Geofence is a named virtual region evaluated against streaming positions.
// Exactly one geometry representation is populated, matching Type.
type Geofence struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         ShapeType    `json:"type"`
	Center       *Coordinate  `json:"center,omitempty"`
	RadiusMeters float64      `json:"radius_meters,omitempty"`
	Vertices     []Coordinate `json:"vertices,omitempty"`

	// Optional bindings. Empty means unbound (global).
	DeviceID string `json:"device_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`

	AlertOnEntry bool `json:"alert_on_entry"`
	AlertOnExit  bool `json:"alert_on_exit"`
	Active       bool `json:"active"`

	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SortField string

const (
	SortByName         SortField = "name"
	SortByCreatedAt    SortField = "createdAt"
	SortByLastActivity SortField = "lastActivity"
)

type GeofenceFilter struct {
	DeviceID string
	UserID   string
	Active   *bool
	Tag      string
	Search   string
	SortBy   SortField
	Page     int
	PageSize int
}

// GeofenceSpec carries the mutable fields for create and update calls.
// Nil pointers on update mean "leave unchanged".
type GeofenceSpec struct {
	Name         *string
	Type         *ShapeType
	Center       *Coordinate
	RadiusMeters *float64
	Vertices     []Coordinate
	DeviceID     *string
	UserID       *string
	AlertOnEntry *bool
	AlertOnExit  *bool
	Description  *string
	Color        *string
	Tags         []string
}
