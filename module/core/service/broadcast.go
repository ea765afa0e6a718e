package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/broadcast"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/publisher"
)

type scopeBroadcaster interface {
	Broadcast(event string, data interface{}, scopes ...string)
}

// BroadcastService routes alerts and registry changes to live subscriber
// scopes and persists the durable notification record for the
// notification-center collaborator. Real-time delivery is best-effort.
type BroadcastService struct {
	hub           scopeBroadcaster
	notifications database.NotificationRepository
	publisher     publisher.NotificationPublisher
	now           func() time.Time
}

func NewBroadcastService(hub scopeBroadcaster, notifications database.NotificationRepository, pub publisher.NotificationPublisher) *BroadcastService {
	return &BroadcastService{
		hub:           hub,
		notifications: notifications,
		publisher:     pub,
		now:           time.Now,
	}
}

func (s *BroadcastService) NotifyTransition(ctx context.Context, e *domain.GeofenceEvent, g *domain.Geofence) {
	payload := map[string]interface{}{
		"type":   string(e.Type),
		"device": e.DeviceID,
		"geofence": map[string]interface{}{
			"id":    g.ID,
			"name":  g.Name,
			"type":  string(g.Type),
			"color": g.Color,
		},
		"location": map[string]interface{}{
			"latitude":  e.Lat,
			"longitude": e.Lng,
		},
		"timestamp": e.OccurredAt.Unix(),
	}

	scopes := []string{broadcast.DeviceScope(e.DeviceID)}
	if g.UserID != "" {
		scopes = append(scopes, broadcast.UserScope(g.UserID))
	}
	s.hub.Broadcast("geofence.alert", payload, scopes...)

	if g.UserID == "" {
		return
	}

	verb := "entered"
	if e.Type == domain.TransitionExit {
		verb = "left"
	}
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    g.UserID,
		Message:   fmt.Sprintf("Device %s %s geofence %q", e.DeviceID, verb, g.Name),
		Payload:   payload,
		CreatedAt: s.now(),
	}

	// Both writes are off the delivery guarantee path: failures are logged,
	// the alert itself has already gone out.
	if err := s.notifications.Insert(ctx, n); err != nil {
		log.Printf("store notification for %s: %v", g.UserID, err)
	}
	if err := s.publisher.PublishNotification(ctx, n); err != nil {
		log.Printf("publish notification for %s: %v", g.UserID, err)
	}
}

// NotifyRegistryChange pushes created/updated/deleted/toggled summaries to
// the same scopes as alerts so dashboards track registry mutations without
// polling.
func (s *BroadcastService) NotifyRegistryChange(kind string, g *domain.Geofence) {
	data := map[string]interface{}{
		"id":     g.ID,
		"name":   g.Name,
		"type":   string(g.Type),
		"color":  g.Color,
		"active": g.Active,
	}

	var scopes []string
	if g.DeviceID != "" {
		scopes = append(scopes, broadcast.DeviceScope(g.DeviceID))
	}
	if g.UserID != "" {
		scopes = append(scopes, broadcast.UserScope(g.UserID))
	}
	if len(scopes) == 0 {
		return
	}
	s.hub.Broadcast("geofence."+kind, data, scopes...)
}
