package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database"
)

type activityToucher interface {
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

// EventService is the append-only transition log. Records never change
// after Append; the only removal path is the registry's cascade delete.
type EventService struct {
	repo      database.EventRepository
	geofences activityToucher
}

func NewEventService(repo database.EventRepository, geofences activityToucher) *EventService {
	return &EventService{repo: repo, geofences: geofences}
}

func (s *EventService) Append(ctx context.Context, e *domain.GeofenceEvent) error {
	if err := s.repo.Insert(ctx, e); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	// lastActivity is a convenience marker on the geofence; a failed touch
	// does not invalidate the already-persisted event.
	if err := s.geofences.TouchActivity(ctx, e.GeofenceID, e.OccurredAt); err != nil {
		log.Printf("touch geofence %s activity: %v", e.GeofenceID, err)
	}
	return nil
}

func (s *EventService) Query(ctx context.Context, filter *domain.EventFilter) ([]domain.GeofenceEvent, error) {
	normalizePages(&filter.Page, &filter.PageSize)
	return s.repo.List(ctx, filter)
}

func (s *EventService) Latest(ctx context.Context, deviceID, geofenceID string) (*domain.GeofenceEvent, error) {
	return s.repo.Latest(ctx, deviceID, geofenceID)
}
