package domain

import "time"

// PositionUpdate is a validated telemetry sample. It is evaluated and
// discarded; this subsystem never stores it.
type PositionUpdate struct {
	DeviceID  string    `json:"device_id"`
	Lat       float64   `json:"latitude"`
	Lng       float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
}
