package domain

import "time"

// Notification is the durable user-facing record written alongside a
// real-time alert, retrieved later by the notification-center collaborator.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}
